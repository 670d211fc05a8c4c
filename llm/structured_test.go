package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 以函数字段驱动 Completion。
type fakeProvider struct {
	completionFn func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	calls        int
}

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	return f.completionFn(ctx, req)
}

func (f *fakeProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func textReply(s string) func(context.Context, *ChatRequest) (*ChatResponse, error) {
	return func(context.Context, *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: s}}}}, nil
	}
}

const subQuerySchema = `{
  "type": "object",
  "properties": {
    "sub_queries": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["sub_queries"]
}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		{"array first", "[1,2] and {\"x\":1}", `[1,2]`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExtractJSON(tt.in)))
		})
	}
}

func TestCompleteJSON(t *testing.T) {
	schema := MustCompileSchema("sub_queries", subQuerySchema)

	t.Run("valid output decoded", func(t *testing.T) {
		var seen *ChatRequest
		p := &fakeProvider{completionFn: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			seen = req
			return textReply("```json\n{\"sub_queries\":[\"a\",\"b\"]}\n```")(ctx, req)
		}}
		var out struct {
			SubQueries []string `json:"sub_queries"`
		}
		err := CompleteJSON(context.Background(), p, &ChatRequest{Messages: PromptMessages("", "q")}, schema, &out)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.SubQueries)
		require.NotNil(t, seen.ResponseFormat)
		assert.JSONEq(t, string(schema.Raw()), string(seen.ResponseFormat.Schema))
	})

	t.Run("schema violation", func(t *testing.T) {
		p := &fakeProvider{completionFn: textReply(`{"sub_queries":"not a list"}`)}
		var out map[string]any
		err := CompleteJSON(context.Background(), p, &ChatRequest{}, schema, &out)
		var llmErr *Error
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrOutputSchema, llmErr.Code)
	})

	t.Run("provider error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		p := &fakeProvider{completionFn: func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, boom }}
		var out map[string]any
		assert.ErrorIs(t, CompleteJSON(context.Background(), p, &ChatRequest{}, schema, &out), boom)
	})
}

func TestCompleteText_NoChoices(t *testing.T) {
	p := &fakeProvider{completionFn: func(context.Context, *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{}, nil
	}}
	_, err := CompleteText(context.Background(), p, &ChatRequest{})
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrEmptyResponse, llmErr.Code)
}

func TestPromptMessages(t *testing.T) {
	assert.Len(t, PromptMessages("", "q"), 1)
	msgs := PromptMessages("sys", "q")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema("broken", `{"type": 12}`)
	assert.Error(t, err)
	_, err = CompileSchema("not-json", `{`)
	assert.Error(t, err)
}

func TestSchema_Validate(t *testing.T) {
	schema := MustCompileSchema("sub_queries_v", subQuerySchema)
	assert.NoError(t, schema.Validate([]byte(`{"sub_queries":[]}`)))
	assert.Error(t, schema.Validate([]byte(`{}`)))
	assert.Error(t, schema.Validate([]byte(`not json`)))
}
