// Package tools defines the declaration and argument-validation types shared
// by the built-in MCP tool sets. A tool set declares each tool's input as a
// JSON Schema; [Schema] resolves it once and validates every call's arguments
// against it before anything is executed.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Definition is the client-facing descriptor of a tool.
type Definition struct {
	// Name is the tool identifier clients call (e.g. "sapling_status").
	Name string

	// Description tells the model what the tool does.
	Description string

	// InputSchema is the JSON Schema of the tool's argument object.
	InputSchema *jsonschema.Schema
}

// ValidationError reports arguments that do not match a tool's declared
// shape, or a call to a tool that does not exist. It is always detected
// before any side effect.
type ValidationError struct {
	// Tool is the requested tool identifier.
	Tool string

	// Err describes the mismatch.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrUnknownTool is wrapped by the [ValidationError] returned for a tool
// identifier that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// IsValidationError reports whether err is or wraps a [*ValidationError].
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Schema is a resolved input schema. It is immutable after [NewSchema] and
// safe for concurrent use.
type Schema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchema resolves s for validation.
func NewSchema(s *jsonschema.Schema) (*Schema, error) {
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("tools: resolve schema: %w", err)
	}
	return &Schema{schema: s, resolved: resolved}, nil
}

// JSONSchema returns the declared schema.
func (s *Schema) JSONSchema() *jsonschema.Schema { return s.schema }

// Decode validates args against the schema, fills in declared defaults, and
// decodes the result into dst. args is not modified. A nil args map is
// treated as an empty object.
func (s *Schema) Decode(args map[string]any, dst any) error {
	instance := make(map[string]any, len(args))
	for k, v := range args {
		instance[k] = v
	}
	if err := s.resolved.ApplyDefaults(&instance); err != nil {
		return err
	}
	if err := s.resolved.Validate(instance); err != nil {
		return err
	}

	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// ─── Schema builders ──────────────────────────────────────────────────────────

// Object returns a closed object schema: properties not listed are rejected.
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// String returns a schema for a non-empty string. The constraint is
// appended to description so clients see it.
func String(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: description + " Must not be empty.",
		MinLength:   ptr(1),
	}
}

// StringList returns a schema for an array of non-empty strings with at
// least minItems entries.
func StringList(description string, minItems int) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:        "array",
		Description: description + " Entries must not be empty.",
		Items:       &jsonschema.Schema{Type: "string", MinLength: ptr(1)},
	}
	if minItems > 0 {
		s.MinItems = ptr(minItems)
		s.Description += fmt.Sprintf(" At least %d required.", minItems)
	}
	return s
}

// PositiveInteger returns a schema for an integer >= 1 with the given default.
func PositiveInteger(description string, def int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: fmt.Sprintf("%s Whole number, at least 1. Defaults to %d.", description, def),
		Minimum:     ptr(1.0),
		Default:     json.RawMessage(fmt.Sprint(def)),
	}
}

func ptr[T any](v T) *T { return &v }
