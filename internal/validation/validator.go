package validation

import (
	"bytes"
	"encoding/json"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Kind names a request document shape.
type Kind string

const (
	KindSolve      Kind = "solve"
	KindCompare    Kind = "compare"
	KindProblemSet Kind = "problem_set"
)

// Kinds lists every document kind with a schema.
var Kinds = []Kind{KindSolve, KindCompare, KindProblemSet}

// Validator checks request documents before they reach the solver.
// Uses JSON Schema Draft 2020-12.
type Validator interface {
	Validate(kind Kind, doc any) error
}

// DecodeSolve validates doc and decodes it into a SolveRequest. Besides the
// schema it requires params for the selected method.
func DecodeSolve(v Validator, doc any) (*schema.SolveRequest, error) {
	var req schema.SolveRequest
	if err := decode(v, KindSolve, doc, &req); err != nil {
		return nil, err
	}
	if req.Params.For(req.Method) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"params.%s is required for method %s", req.Method, req.Method).
			WithMethod(req.Method).
			WithDetails(map[string]any{"violations": []string{"/params: missing property '" + string(req.Method) + "'"}})
	}
	return &req, nil
}

// DecodeCompare validates doc and decodes it into a ComparisonRequest.
func DecodeCompare(v Validator, doc any) (*schema.ComparisonRequest, error) {
	var req schema.ComparisonRequest
	if err := decode(v, KindCompare, doc, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decode(v Validator, kind Kind, doc any, out any) error {
	if err := v.Validate(kind, doc); err != nil {
		return err
	}
	raw, err := toBytes(doc)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "encode %s request", kind).WithCause(err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "decode %s request: %v", kind, err).WithCause(err)
	}
	return nil
}

func toBytes(doc any) ([]byte, error) {
	switch d := doc.(type) {
	case []byte:
		return d, nil
	case json.RawMessage:
		return d, nil
	}
	return json.Marshal(doc)
}

var _ Validator = (*JSONSchemaValidator)(nil)
