package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/cortex/internal/tlsutil"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// LlamaParseConfig configures the LlamaParse cloud client.
type LlamaParseConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL      string        `json:"base_url,omitempty" yaml:"base_url" env:"BASE_URL"`
	Language     string        `json:"language,omitempty" yaml:"language" env:"LANGUAGE"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval" env:"POLL_INTERVAL"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout" env:"TIMEOUT"`
}

// Job states reported by the parsing API.
const (
	jobPending = "PENDING"
	jobSuccess = "SUCCESS"
	jobError   = "ERROR"
)

// LlamaParseParser uploads a file, polls the job and fetches the markdown result.
type LlamaParseParser struct {
	cfg    LlamaParseConfig
	client *http.Client
	logger *zap.Logger
}

// NewLlamaParseParser creates a LlamaParse client.
func NewLlamaParseParser(cfg LlamaParseConfig, logger *zap.Logger) *LlamaParseParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloud.llamaindex.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &LlamaParseParser{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(60 * time.Second),
		logger: logger.With(zap.String("component", "llamaparse")),
	}
}

func (p *LlamaParseParser) SupportedTypes() []string {
	return []string{".pdf", ".docx", ".doc", ".pptx", ".xlsx", ".html", ".rtf", ".epub"}
}

// Parse runs the upload → poll → result sequence under cfg.Timeout.
func (p *LlamaParseParser) Parse(ctx context.Context, fileName string, r io.Reader) (types.ParsedDocument, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return types.ParsedDocument{}, fmt.Errorf("llamaparse api_key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	jobID, err := p.upload(ctx, fileName, r)
	if err != nil {
		return types.ParsedDocument{}, err
	}
	p.logger.Info("parse job submitted", zap.String("file", fileName), zap.String("job_id", jobID))

	if err := p.wait(ctx, jobID); err != nil {
		return types.ParsedDocument{}, err
	}

	var result struct {
		Markdown string `json:"markdown"`
	}
	if err := p.doJSON(ctx, http.MethodGet, "/api/parsing/job/"+jobID+"/result/markdown", nil, "", &result); err != nil {
		return types.ParsedDocument{}, fmt.Errorf("fetch parse result: %w", err)
	}
	return types.ParsedDocument{Name: fileName, Content: result.Markdown}, nil
}

func (p *LlamaParseParser) upload(ctx context.Context, fileName string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read %s: %w", fileName, err)
	}
	_ = mw.WriteField("language", p.cfg.Language)
	if err := mw.Close(); err != nil {
		return "", err
	}

	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/api/parsing/upload", &buf, mw.FormDataContentType(), &job); err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("upload %s: empty job id", fileName)
	}
	return job.ID, nil
}

func (p *LlamaParseParser) wait(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var job struct {
			Status string `json:"status"`
			Error  string `json:"error_message,omitempty"`
		}
		if err := p.doJSON(ctx, http.MethodGet, "/api/parsing/job/"+jobID, nil, "", &job); err != nil {
			return fmt.Errorf("poll parse job %s: %w", jobID, err)
		}

		switch strings.ToUpper(job.Status) {
		case jobSuccess:
			return nil
		case jobError:
			return fmt.Errorf("parse job %s failed: %s", jobID, job.Error)
		case jobPending, "":
		default:
			p.logger.Debug("parse job status", zap.String("job_id", jobID), zap.String("status", job.Status))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *LlamaParseParser) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
