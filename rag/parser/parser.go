package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/BaSui01/cortex/types"
)

// ErrUnsupportedType is returned when no parser handles a file extension.
var ErrUnsupportedType = errors.New("parser: unsupported file type")

// Parser turns an uploaded file into text. Multi-page output joins pages
// with types.PageSeparator.
type Parser interface {
	Parse(ctx context.Context, fileName string, r io.Reader) (types.ParsedDocument, error)
	SupportedTypes() []string
}

// PlainTextParser reads UTF-8 text files as a single page.
type PlainTextParser struct {
	MaxBytes int64
}

// NewPlainTextParser creates a PlainTextParser limited to 32 MiB.
func NewPlainTextParser() *PlainTextParser {
	return &PlainTextParser{MaxBytes: 32 << 20}
}

func (p *PlainTextParser) SupportedTypes() []string {
	return []string{".txt", ".md", ".markdown", ".csv", ".json"}
}

func (p *PlainTextParser) Parse(ctx context.Context, fileName string, r io.Reader) (types.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return types.ParsedDocument{}, err
	}
	limit := p.MaxBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return types.ParsedDocument{}, fmt.Errorf("read %s: %w", fileName, err)
	}
	if int64(len(data)) > limit {
		return types.ParsedDocument{}, fmt.Errorf("parser: %s exceeds %d bytes", fileName, limit)
	}
	if !utf8.Valid(data) {
		return types.ParsedDocument{}, fmt.Errorf("parser: %s is not valid UTF-8 text", fileName)
	}
	return types.ParsedDocument{Name: fileName, Content: string(data)}, nil
}

// Registry routes Parse calls by file extension. A fallback parser, when
// set, handles every extension without a dedicated parser.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]Parser
	fallback Parser
}

// NewRegistry creates a registry with the plain-text parser registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(NewPlainTextParser())
	return r
}

// Register adds p for each of its supported extensions.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedTypes() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// SetFallback sets the parser used for unregistered extensions.
func (r *Registry) SetFallback(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// Parse delegates to the parser registered for the file's extension.
func (r *Registry) Parse(ctx context.Context, fileName string, body io.Reader) (types.ParsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	r.mu.RLock()
	p, ok := r.parsers[ext]
	if !ok {
		p = r.fallback
	}
	r.mu.RUnlock()

	if p == nil {
		return types.ParsedDocument{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return p.Parse(ctx, fileName, body)
}

// SupportedTypes returns the registered extensions, sorted.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
