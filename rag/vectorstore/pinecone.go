package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cortex/internal/tlsutil"
)

// PineconeConfig configures the Pinecone Store implementation.
//
// Either BaseURL (data-plane host) or Index must be set; with only Index the
// host is resolved once through the controller API.
type PineconeConfig struct {
	APIKey    string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	Index     string        `json:"index,omitempty" yaml:"index" env:"INDEX"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout" env:"TIMEOUT"`

	ControllerBaseURL string `json:"controller_base_url,omitempty" yaml:"controller_base_url" env:"CONTROLLER_BASE_URL"` // Default: https://api.pinecone.io

	// Metadata field holding the record text.
	TextField string `json:"text_field,omitempty" yaml:"text_field" env:"TEXT_FIELD"` // Default: "text"
}

// PineconeStore implements Store on Pinecone's REST API.
// Each collection maps to one namespace.
type PineconeStore struct {
	cfg    PineconeConfig
	logger *zap.Logger
	client *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeStore creates a Pinecone-backed Store.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ControllerBaseURL == "" {
		cfg.ControllerBaseURL = "https://api.pinecone.io"
	}
	if cfg.TextField == "" {
		cfg.TextField = "text"
	}

	return &PineconeStore{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "pinecone_store")),
		client:  tlsutil.NewHTTPClient(cfg.Timeout),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
	}
}

func (s *PineconeStore) ensureBaseURL(ctx context.Context) error {
	s.mu.RLock()
	if s.baseURL != "" {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	if strings.TrimSpace(s.cfg.Index) == "" {
		return fmt.Errorf("pinecone base_url is required when index is empty")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("pinecone api_key is required")
	}

	// GET /indexes/{index}
	controller := strings.TrimRight(strings.TrimSpace(s.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(s.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone describe index failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return fmt.Errorf("pinecone controller returned empty host for index %q", s.cfg.Index)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	s.mu.Lock()
	s.baseURL = strings.TrimRight(host, "/")
	s.mu.Unlock()

	s.logger.Info("pinecone host resolved", zap.String("index", s.cfg.Index), zap.String("host", host))
	return nil
}

func (s *PineconeStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	if err := s.ensureBaseURL(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	endpoint := s.baseURL + path
	s.mu.RUnlock()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes records into the collection namespace.
func (s *PineconeStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if strings.TrimSpace(collection) == "" {
		return ErrEmptyCollection
	}
	if len(records) == 0 {
		return nil
	}

	vectors := make([]pineconeVector, 0, len(records))
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record[%d] has empty id", i)
		}
		if len(r.Values) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}

		meta := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		if r.Text != "" {
			meta[s.cfg.TextField] = r.Text
		}
		vectors = append(vectors, pineconeVector{ID: r.ID, Values: r.Values, Metadata: meta})
	}

	req := struct {
		Vectors   []pineconeVector `json:"vectors"`
		Namespace string           `json:"namespace"`
	}{
		Vectors:   vectors,
		Namespace: collection,
	}
	return s.doJSON(ctx, http.MethodPost, "/vectors/upsert", req, nil)
}

// Query searches the collection namespace with an equality metadata filter.
func (s *PineconeStore) Query(ctx context.Context, collection string, vector []float64, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	req := struct {
		Vector          []float64      `json:"vector"`
		TopK            int            `json:"topK"`
		Namespace       string         `json:"namespace"`
		IncludeMetadata bool           `json:"includeMetadata"`
		Filter          map[string]any `json:"filter,omitempty"`
	}{
		Vector:          vector,
		TopK:            topK,
		Namespace:       collection,
		IncludeMetadata: true,
		Filter:          pineconeFilter(filter),
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		rec := Record{ID: m.ID, Metadata: make(map[string]string, len(m.Metadata))}
		for k, v := range m.Metadata {
			if k == s.cfg.TextField {
				if text, ok := v.(string); ok {
					rec.Text = text
				}
				continue
			}
			rec.Metadata[k] = fmt.Sprint(v)
		}
		out = append(out, Match{Record: rec, Score: ClampScore(m.Score)})
	}
	SortMatches(out)
	return out, nil
}

func pineconeFilter(filter Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		out[k] = map[string]any{"$eq": v}
	}
	return out
}

// Delete removes records by id from the collection namespace.
func (s *PineconeStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := struct {
		IDs       []string `json:"ids"`
		Namespace string   `json:"namespace"`
	}{
		IDs:       ids,
		Namespace: collection,
	}
	return s.doJSON(ctx, http.MethodPost, "/vectors/delete", req, nil)
}

// CollectionExists reports whether the namespace holds any vectors.
func (s *PineconeStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Namespaces       map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return false, err
	}
	st, ok := resp.Namespaces[collection]
	return ok && st.VectorCount > 0, nil
}
