package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/rag"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ComposerConfig 组合器配置
type ComposerConfig struct {
	// Workers 子查询上下文合成的并发上限
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultComposerConfig 两个 worker
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{Workers: 2}
}

// Composer turns retrieved evidence into per-sub-query contexts, a final
// answer and a table.
type Composer struct {
	llm    llm.Provider
	cfg    ComposerConfig
	logger *zap.Logger
}

// NewComposer 创建组合器
func NewComposer(provider llm.Provider, cfg ComposerConfig, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultComposerConfig().Workers
	}
	return &Composer{
		llm:    provider,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "composer")),
	}
}

// ComposeContext synthesizes one context paragraph for a sub-query.
func (c *Composer) ComposeContext(ctx context.Context, sq types.SubQuery, ev *rag.Evidence) (string, error) {
	if ev == nil {
		ev = &rag.Evidence{}
	}
	prompt := fmt.Sprintf(contextInputPrompt, sq.Text, ev.KnowledgeGraphContext, ev.VectorContext, ev.SparseContext)
	text, err := llm.CompletePrompt(ctx, c.llm, contextSystemPrompt, prompt)
	if err != nil {
		return "", types.NewCompositionError(fmt.Sprintf("context composition failed for %q", sq.Text), err)
	}
	return text, nil
}

// ComposeContexts composes every sub-query with at most Workers in flight.
// Step i always belongs to sub-query i.
func (c *Composer) ComposeContexts(ctx context.Context, subQueries []types.SubQuery, evidence []*rag.Evidence) ([]types.ReasoningStep, error) {
	if len(subQueries) != len(evidence) {
		return nil, types.NewCompositionError(
			fmt.Sprintf("got %d evidence sets for %d sub-queries", len(evidence), len(subQueries)), nil)
	}

	steps := make([]types.ReasoningStep, len(subQueries))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.cfg.Workers)
	for i, sq := range subQueries {
		eg.Go(func() error {
			text, err := c.ComposeContext(egCtx, sq, evidence[i])
			if err != nil {
				return err
			}
			steps[i] = types.ReasoningStep{
				SubQueryText:    sq.Text,
				StructuredHint:  sq.StructuredHint,
				ComposedContext: text,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return steps, nil
}

// ComposeAnswer folds all steps into the final answer. The prompt carries
// the original query and every step verbatim.
func (c *Composer) ComposeAnswer(ctx context.Context, query string, steps []types.ReasoningStep) (string, error) {
	prompt := fmt.Sprintf(answerPrompt, query, FormatSteps(steps))
	answer, err := llm.CompletePrompt(ctx, c.llm, "", prompt)
	if err != nil {
		return "", types.NewCompositionError("answer composition failed", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", types.NewCompositionError("answer composition returned no text", nil)
	}
	return answer, nil
}
