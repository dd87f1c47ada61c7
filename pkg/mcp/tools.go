package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/rootfinder/internal/catalog"
	"github.com/rendis/rootfinder/internal/expressions"
	"github.com/rendis/rootfinder/internal/history"
	"github.com/rendis/rootfinder/internal/validation"
	"github.com/rendis/rootfinder/pkg/schema"
)

const maxSamplePoints = 10000

// solveResponse is the payload of rootfinder.solve.
type solveResponse struct {
	ID     string               `json:"id,omitempty"`
	Result *schema.MethodResult `json:"result"`
}

// sampleResponse is the payload of rootfinder.sample. Points that could not
// be evaluated are null.
type sampleResponse struct {
	Function string     `json:"function"`
	Lo       float64    `json:"lo"`
	Hi       float64    `json:"hi"`
	X        []float64  `json:"x"`
	Y        []*float64 `json:"y"`
}

// handleSolve runs one method and records it when history is configured.
func (s *Server) handleSolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	solveReq, err := validation.DecodeSolve(s.validator, req.GetArguments())
	if err != nil {
		return errorResult(err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	result, err := s.comparator.Solve(ctx, *solveReq)
	if err != nil {
		return errorResult(err), nil
	}

	resp := solveResponse{Result: result}
	if s.history != nil {
		calc, recErr := s.history.RecordCalculation(ctx, *solveReq, *result)
		if recErr != nil {
			s.logger.WarnContext(ctx, "failed to record calculation", "error", recErr)
		} else {
			resp.ID = calc.ID
		}
	}
	return marshalResult(resp)
}

// handleCompare runs every selected method and records the session when
// history is configured.
func (s *Server) handleCompare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := withCatalogDefaults(req.GetArguments())
	if err != nil {
		return errorResult(err), nil
	}
	cmpReq, err := validation.DecodeCompare(s.validator, args)
	if err != nil {
		return errorResult(err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	result, err := s.comparator.CompareAll(ctx, *cmpReq)
	if err != nil {
		return errorResult(err), nil
	}

	if s.history != nil {
		if _, recErr := s.history.RecordComparison(ctx, result); recErr != nil {
			s.logger.WarnContext(ctx, "failed to record comparison", "id", result.ID, "error", recErr)
		}
	}
	return marshalResult(result)
}

// handleHistory lists or fetches saved records.
func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("history is not configured"), nil
	}

	resource := req.GetString("resource", "calculations")
	id := req.GetString("id", "")
	limit := req.GetInt("limit", history.DefaultLimit)

	switch resource {
	case "calculations":
		if id != "" {
			calc, err := s.history.GetCalculation(ctx, id)
			if err != nil {
				return errorResult(err), nil
			}
			return marshalResult(calc)
		}
		q := history.Query{
			Method:  schema.Method(req.GetString("method", "")),
			Limit:   limit,
			Where:   req.GetString("where", ""),
			Project: req.GetString("project", ""),
		}
		if v, ok := req.GetArguments()["converged"].(bool); ok {
			q.Converged = &v
		}
		listing, err := s.history.ListCalculations(ctx, q)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(listing)
	case "comparisons":
		if id != "" {
			cmp, err := s.history.GetComparison(ctx, id)
			if err != nil {
				return errorResult(err), nil
			}
			return marshalResult(cmp)
		}
		sessions, err := s.history.ListComparisons(ctx, req.GetString("function", ""), limit)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(map[string]any{"comparisons": sessions, "count": len(sessions)})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// handleDelete removes one saved record.
func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("history is not configured"), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	if err := s.history.Delete(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return marshalResult(map[string]any{"ok": true, "id": id})
}

// handleClear removes all saved records.
func (s *Server) handleClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("history is not configured"), nil
	}
	counts, err := s.history.Clear(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return marshalResult(counts)
}

// handleFunctions lists the built-in test functions.
func (s *Server) handleFunctions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"functions": catalog.All()})
}

// handleSample evaluates a function over a plotting range.
func (s *Server) handleSample(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	function, err := req.RequireString("function")
	if err != nil {
		return mcp.NewToolResultError("function is required"), nil
	}
	points := req.GetInt("points", catalog.PlotPoints)
	if points < 2 || points > maxSamplePoints {
		return mcp.NewToolResultError(fmt.Sprintf("points must be between 2 and %d", maxSamplePoints)), nil
	}

	lo, hi, err := sampleRange(req)
	if err != nil {
		return errorResult(err), nil
	}

	compiled, err := expressions.Compile(function, false)
	if err != nil {
		return errorResult(err), nil
	}

	xs, ys := expressions.Sample(compiled.F, lo, hi, points)
	resp := sampleResponse{Function: function, Lo: lo, Hi: hi, X: xs, Y: make([]*float64, len(ys))}
	for i := range ys {
		if !math.IsNaN(ys[i]) {
			resp.Y[i] = &ys[i]
		}
	}
	return marshalResult(resp)
}

// --- Internal helpers ---

// sampleRange uses lo and hi when both are set, otherwise derives the range
// from a result's method, params and root.
func sampleRange(req mcp.CallToolRequest) (float64, float64, error) {
	args := req.GetArguments()
	_, hasLo := args["lo"]
	_, hasHi := args["hi"]
	if hasLo || hasHi {
		if !hasLo || !hasHi {
			return 0, 0, schema.NewError(schema.ErrCodeValidation, "lo and hi must be set together")
		}
		lo, hi := req.GetFloat("lo", 0), req.GetFloat("hi", 0)
		if !(lo < hi) {
			return 0, 0, schema.NewErrorf(schema.ErrCodeValidation, "lo (%g) must be less than hi (%g)", lo, hi)
		}
		return lo, hi, nil
	}

	var params schema.MethodParams
	if raw := mcp.ParseStringMap(req, "params", nil); raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return 0, 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid params: %v", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return 0, 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid params: %v", err)
		}
	}
	root := schema.Undefined()
	if _, ok := args["root"]; ok {
		root = schema.Defined(req.GetFloat("root", 0))
	}
	lo, hi := catalog.PlotRange(schema.Method(req.GetString("method", "")), params, root)
	return lo, hi, nil
}

// withCatalogDefaults expands a "catalog" argument into the function and
// default params of that test function. Explicit arguments win.
func withCatalogDefaults(args map[string]any) (map[string]any, error) {
	name, ok := args["catalog"].(string)
	if !ok || name == "" {
		if _, present := args["catalog"]; !present {
			return args, nil
		}
		out := copyArgs(args)
		delete(out, "catalog")
		return out, nil
	}
	f, err := catalog.Get(name)
	if err != nil {
		return nil, err
	}
	out := copyArgs(args)
	delete(out, "catalog")
	if _, ok := out["function"]; !ok {
		out["function"] = f.Expression
	}
	if _, ok := out["params"]; !ok {
		out["params"] = f.Defaults
	}
	if _, ok := out["name"]; !ok {
		out["name"] = f.Name
	}
	return out, nil
}

func copyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// errorResult renders an error as a tool error. SolverError messages carry
// their code.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
