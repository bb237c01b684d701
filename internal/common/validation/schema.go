package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema describes a worker's job-variable contract. It is rendered to a
// draft-07 document and checked with gojsonschema.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
	Nullable    bool                `json:"-"`
}

// MarshalJSON renders nullable properties as a ["<type>", "null"] union.
func (p Property) MarshalJSON() ([]byte, error) {
	type alias Property
	raw, err := json.Marshal(alias(p))
	if err != nil || !p.Nullable {
		return raw, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["type"] = []string{p.Type, "null"}
	if len(p.Enum) > 0 {
		enum := make([]interface{}, 0, len(p.Enum)+1)
		for _, e := range p.Enum {
			enum = append(enum, e)
		}
		doc["enum"] = append(enum, nil)
	}
	return json.Marshal(doc)
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput checks job variables against a schema.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "SCHEMA_ERROR",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldOf(e),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}
}

// Required-property errors are reported on the parent; point at the property.
func fieldOf(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			if field == prop || strings.HasSuffix(field, "."+prop) {
				return field
			}
			if field == "(root)" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

func (r *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

// Error joins the validation messages, for use as error details.
func (r *ValidationResult) Error() string {
	return strings.Join(r.GetErrorMessages(), "; ")
}

func IntPtr(i int) *int {
	return &i
}

func StringPtr(s string) *string {
	return &s
}
