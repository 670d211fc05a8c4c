package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema that keeps its source document so it can
// also be sent to providers as a response or tool-parameter schema.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document (Draft 2020-12).
func CompileSchema(name, document string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://cortex.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(document)); err != nil {
		return nil, fmt.Errorf("schema %s is not valid JSON: %w", name, err)
	}
	return &Schema{name: name, raw: compact.Bytes(), compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schema literals.
func MustCompileSchema(name, document string) *Schema {
	s, err := CompileSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Raw returns the compact schema document.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(doc []byte) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.ValidateValue(v)
}

// ValidateValue checks an already decoded JSON value.
func (s *Schema) ValidateValue(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
