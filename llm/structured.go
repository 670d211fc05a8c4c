package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// CompleteText sends req and returns the trimmed text of the first choice.
func CompleteText(ctx context.Context, p Provider, req *ChatRequest) (string, error) {
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return "", &Error{
			Code:       ErrEmptyResponse,
			Message:    "provider returned no choices",
			HTTPStatus: http.StatusBadGateway,
			Provider:   p.Name(),
		}
	}
	return strings.TrimSpace(msg.Content), nil
}

// CompletePrompt is CompleteText for a single user prompt with an optional
// system instruction.
func CompletePrompt(ctx context.Context, p Provider, system, prompt string) (string, error) {
	return CompleteText(ctx, p, &ChatRequest{Messages: PromptMessages(system, prompt)})
}

// CompleteJSON asks for a JSON document matching schema, validates it and
// decodes it into out.
func CompleteJSON(ctx context.Context, p Provider, req *ChatRequest, schema *Schema, out any) error {
	r := *req
	r.ResponseFormat = &ResponseFormat{Schema: schema.Raw()}

	text, err := CompleteText(ctx, p, &r)
	if err != nil {
		return err
	}
	raw := ExtractJSON(text)
	if err := schema.Validate(raw); err != nil {
		return &Error{
			Code:       ErrOutputSchema,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Provider:   p.Name(),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s output: %w", schema.Name(), err)
	}
	return nil
}

// PromptMessages builds a system + user message list. An empty system
// instruction is omitted.
func PromptMessages(system, prompt string) []Message {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	return append(msgs, Message{Role: RoleUser, Content: prompt})
}

// ExtractJSON strips markdown code fences and surrounding prose from a model
// reply and returns the outermost JSON object or array.
func ExtractJSON(text string) []byte {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []byte(s)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return []byte(s[start:])
	}
	return []byte(s[start : end+1])
}
