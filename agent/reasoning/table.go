package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// removalIntent matches instructions that ask to drop rows.
var removalIntent = regexp.MustCompile(`(?i)\b(remove|delete|drop|exclude|eliminate|discard|without|get rid of)\b`)

// ParseTable decodes a JSON array of objects (code fences tolerated) and
// rejects rows whose key sets differ.
func ParseTable(text string) (types.Table, error) {
	raw := llm.ExtractJSON(text)
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, types.NewCompositionError("table output is not a JSON array of objects", err)
	}
	table := make(types.Table, 0, len(rows))
	for i, r := range rows {
		if r == nil {
			return nil, types.NewCompositionError(fmt.Sprintf("table row %d is null", i), nil)
		}
		table = append(table, types.TableRow(r))
	}
	if ok, bad := table.Uniform(); !ok {
		return nil, types.NewCompositionError(
			fmt.Sprintf("table row %d has keys %v, want %v", bad, table[bad].Keys(), table.KeySet()), nil)
	}
	return table, nil
}

// RequestsRemoval reports whether an instruction asks to drop rows.
func RequestsRemoval(instruction string) bool {
	return removalIntent.MatchString(instruction)
}

// ComposeTable extracts a uniform-key table from the final answer.
func (c *Composer) ComposeTable(ctx context.Context, finalAnswer string) (types.Table, error) {
	text, err := llm.CompletePrompt(ctx, c.llm, "", fmt.Sprintf(composeTablePrompt, finalAnswer))
	if err != nil {
		return nil, types.NewCompositionError("table composition failed", err)
	}
	table, err := ParseTable(text)
	if err != nil {
		c.logger.Warn("rejected composed table", zap.Error(err))
		return nil, err
	}
	return table, nil
}

// UpdateTable applies an instruction to the existing table. Outputs with
// fewer rows are rejected unless the instruction asks for removal.
func (c *Composer) UpdateTable(ctx context.Context, existing types.Table, inputText, instruction string) (types.Table, error) {
	current, err := json.MarshalIndent(nonNilTable(existing), "", "  ")
	if err != nil {
		return nil, types.NewCompositionError("encode existing table", err)
	}
	prompt := fmt.Sprintf(updateTablePrompt, updateTableExample, inputText, current, instruction)
	text, err := llm.CompletePrompt(ctx, c.llm, "", prompt)
	if err != nil {
		return nil, types.NewCompositionError("table update failed", err)
	}
	table, err := ParseTable(text)
	if err != nil {
		c.logger.Warn("rejected updated table", zap.Error(err))
		return nil, err
	}
	if len(table) < len(existing) && !RequestsRemoval(instruction) {
		return nil, types.NewCompositionError(
			fmt.Sprintf("table update dropped %d rows without a removal instruction", len(existing)-len(table)), nil)
	}
	c.logger.Info("table updated", zap.Int("rows_before", len(existing)), zap.Int("rows_after", len(table)))
	return table, nil
}

func nonNilTable(t types.Table) types.Table {
	if t == nil {
		return types.Table{}
	}
	return t
}
