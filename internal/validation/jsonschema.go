package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/rootfinder/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const requestSchemaURL = "https://rootfinder.dev/schemas/requests.json"

// requestSchemaJSON describes every request document. Each Kind compiles
// the matching entry of $defs.
const requestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://rootfinder.dev/schemas/requests.json",
  "$defs": {
    "bisection": {
      "type": "object",
      "required": ["a", "b"],
      "properties": {
        "a": { "type": "number" },
        "b": { "type": "number" }
      },
      "additionalProperties": false
    },
    "newton": {
      "type": "object",
      "required": ["x0"],
      "properties": {
        "x0": { "type": "number" }
      },
      "additionalProperties": false
    },
    "secant": {
      "type": "object",
      "required": ["x0", "x1"],
      "properties": {
        "x0": { "type": "number" },
        "x1": { "type": "number" }
      },
      "additionalProperties": false
    },
    "params": {
      "type": "object",
      "minProperties": 1,
      "properties": {
        "bisection": { "$ref": "#/$defs/bisection" },
        "newton": { "$ref": "#/$defs/newton" },
        "secant": { "$ref": "#/$defs/secant" }
      },
      "additionalProperties": false
    },
    "function": {
      "type": "string",
      "minLength": 1,
      "maxLength": 1024
    },
    "tolerance": {
      "type": "number",
      "exclusiveMinimum": 0
    },
    "max_iterations": {
      "type": "integer",
      "minimum": 1,
      "maximum": 1000000
    },
    "solve": {
      "type": "object",
      "required": ["function", "method", "params"],
      "properties": {
        "function": { "$ref": "#/$defs/function" },
        "method": { "type": "string", "enum": ["bisection", "newton", "secant"] },
        "tolerance": { "$ref": "#/$defs/tolerance" },
        "max_iterations": { "$ref": "#/$defs/max_iterations" },
        "params": { "$ref": "#/$defs/params" }
      },
      "additionalProperties": false
    },
    "compare": {
      "type": "object",
      "required": ["function", "params"],
      "properties": {
        "name": { "type": "string" },
        "function": { "$ref": "#/$defs/function" },
        "tolerance": { "$ref": "#/$defs/tolerance" },
        "max_iterations": { "$ref": "#/$defs/max_iterations" },
        "params": { "$ref": "#/$defs/params" }
      },
      "additionalProperties": false
    },
    "problem_set": {
      "type": "object",
      "required": ["problems"],
      "properties": {
        "name": { "type": "string" },
        "tolerance": { "$ref": "#/$defs/tolerance" },
        "max_iterations": { "$ref": "#/$defs/max_iterations" },
        "problems": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/compare" }
        }
      },
      "additionalProperties": false
    }
  }
}`

var printer = message.NewPrinter(language.English)

// JSONSchemaValidator implements the Validator interface using JSON Schema Draft 2020-12.
// Schemas are compiled once; it is safe for concurrent use.
type JSONSchemaValidator struct {
	schemas map[Kind]*jsonschema.Schema
}

// NewJSONSchemaValidator compiles the request schemas.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(requestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal request schema: %w", err)
	}
	if err := c.AddResource(requestSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add request schema resource: %w", err)
	}

	v := &JSONSchemaValidator{schemas: make(map[Kind]*jsonschema.Schema, len(Kinds))}
	for _, k := range Kinds {
		compiled, err := c.Compile(requestSchemaURL + "#/$defs/" + string(k))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", k, err)
		}
		v.schemas[k] = compiled
	}
	return v, nil
}

// Validate checks doc against the schema of kind. doc may be raw JSON bytes
// or any value that encodes to JSON (a decoded MCP argument map, a YAML tree).
func (v *JSONSchemaValidator) Validate(kind Kind, doc any) error {
	compiled, ok := v.schemas[kind]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown document kind %q", kind)
	}
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "%s document is not valid JSON", kind).WithCause(err)
	}
	if err := compiled.Validate(val); err != nil {
		return toSolverError(kind, err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	var b []byte
	switch doc := v.(type) {
	case []byte:
		b = doc
	case json.RawMessage:
		b = doc
	default:
		var err error
		if b, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSolverError converts a jsonschema.ValidationError into a SolverError
// listing every leaf violation with its instance location.
func toSolverError(kind Kind, err error) *schema.SolverError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	details := map[string]any{"kind": string(kind), "violations": violations}
	if len(violations) == 1 {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid %s request: %s", kind, violations[0]).
			WithDetails(details)
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "invalid %s request: %d violations", kind, len(violations)).
		WithDetails(details)
}

// collectViolations walks a ValidationError tree and collects leaf error messages.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.ErrorKind.LocalizedString(printer))}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
