package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/cortex/llm/tokenizer"
	"github.com/BaSui01/cortex/types"
)

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`       // 块大小
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"` // 重叠大小
}

// DefaultChildChunking 多向量索引子块：400 字符，无重叠
func DefaultChildChunking() ChunkingConfig {
	return ChunkingConfig{ChunkSize: 400, ChunkOverlap: 0}
}

// DefaultSparseChunking 稀疏索引分块：512 token，重叠 50
func DefaultSparseChunking() ChunkingConfig {
	return ChunkingConfig{ChunkSize: 512, ChunkOverlap: 50}
}

// SplitPages 按页分隔符切分内容，去掉空白页
func SplitPages(content string) []string {
	raw := strings.Split(content, types.PageSeparator)
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// RecursiveSplitter 递归字符分块器。
// 分隔符优先级：段落 > 行 > 单词 > 字符；片段按长度合并，块之间保留重叠。
type RecursiveSplitter struct {
	cfg        ChunkingConfig
	separators []string
}

// NewRecursiveSplitter 创建递归分块器，长度按 rune 计算
func NewRecursiveSplitter(cfg ChunkingConfig) *RecursiveSplitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChildChunking().ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	return &RecursiveSplitter{
		cfg:        cfg,
		separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Split 切分文本；每块长度不超过 ChunkSize
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	sep := ""
	var next []string
	for i, candidate := range separators {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			next = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = strings.Split(text, "")
	} else {
		parts = strings.Split(text, sep)
	}

	var chunks, pending []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= s.cfg.ChunkSize {
			pending = append(pending, part)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		// 单个片段超长，降级到下一级分隔符
		chunks = append(chunks, s.split(part, next)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge 合并片段，超出 ChunkSize 时输出并按 ChunkOverlap 保留尾部片段
func (s *RecursiveSplitter) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		out     []string
		current []string
		total   int
	)

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if joinedLen(n) > s.cfg.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				out = append(out, doc)
			}
			for total > s.cfg.ChunkOverlap || (joinedLen(n) > s.cfg.ChunkSize && total > 0) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, part)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		out = append(out, doc)
	}
	return out
}

// TokenSplitter 按 token 滑动窗口分块
type TokenSplitter struct {
	cfg ChunkingConfig
	tok tokenizer.Tokenizer
}

// NewTokenSplitter 创建 token 分块器
func NewTokenSplitter(cfg ChunkingConfig, tok tokenizer.Tokenizer) *TokenSplitter {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultSparseChunking()
	}
	return &TokenSplitter{cfg: cfg, tok: tok}
}

// Split 切分文本，去掉纯空白窗口
func (s *TokenSplitter) Split(text string) ([]string, error) {
	windows, err := tokenizer.Windows(s.tok, text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	out := windows[:0]
	for _, w := range windows {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out, nil
}
