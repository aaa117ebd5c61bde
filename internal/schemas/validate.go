// Package schemas provides JSON Schema validation for the step progress
// document persisted on every application.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// StepProgressSchema describes the persisted step progress document. The shape
// is stable; stored documents from older releases must keep validating.
const StepProgressSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "StepProgressDocument",
  "type": "object",
  "additionalProperties": { "$ref": "#/definitions/mainStep" },
  "definitions": {
    "timestamp": { "type": "string", "format": "date-time" },
    "mainStep": {
      "type": "object",
      "required": ["completed", "sub"],
      "properties": {
        "completed": { "type": "boolean" },
        "updated_at": { "$ref": "#/definitions/timestamp" },
        "completed_at": { "$ref": "#/definitions/timestamp" },
        "metadata": { "type": "object" },
        "sub": {
          "type": "object",
          "additionalProperties": { "$ref": "#/definitions/subStep" }
        }
      }
    },
    "subStep": {
      "type": "object",
      "required": ["completed", "updated_at", "record_ids"],
      "properties": {
        "completed": { "type": "boolean" },
        "updated_at": { "$ref": "#/definitions/timestamp" },
        "completed_at": { "$ref": "#/definitions/timestamp" },
        "record_ids": {
          "type": "array",
          "items": { "type": "string" },
          "uniqueItems": true
        },
        "metadata": { "type": "object" }
      }
    }
  }
}`

var (
	stepProgressOnce   sync.Once
	stepProgressSchema *gojsonschema.Schema
	stepProgressErr    error
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// ValidateStepProgress validates an encoded step progress document.
func ValidateStepProgress(document []byte) error {
	stepProgressOnce.Do(func() {
		stepProgressSchema, stepProgressErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(StepProgressSchema))
	})
	if stepProgressErr != nil {
		return &SchemaLoadError{Path: "(step progress)", Message: "invalid schema", Cause: stepProgressErr}
	}

	result, err := stepProgressSchema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to read step progress document: %w", err)
	}
	return toValidationError(result)
}

// ValidateStepProgressValue encodes v and validates the result. It fails when
// v is not JSON-serializable.
func ValidateStepProgressValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("step progress is not JSON-serializable: %w", err)
	}
	return ValidateStepProgress(data)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
