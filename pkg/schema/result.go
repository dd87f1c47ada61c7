package schema

import (
	"encoding/json"
	"time"
)

// MethodResult is the terminal artifact of one algorithm run. It is built
// once when the run terminates and must not be modified afterwards.
type MethodResult struct {
	Method        Method
	MethodName    string
	Root          Real
	Iterations    int
	Error         Real
	Converged     bool
	ExecutionTime time.Duration
	History       []TraceEntry
}

// FailureReason returns the reason of a trailing FailureNote, or "".
func (r MethodResult) FailureReason() string {
	if note, ok := r.FailureNote(); ok {
		return note.Reason
	}
	return ""
}

// FailureNote returns the trailing FailureNote, if the trace ends with one.
func (r MethodResult) FailureNote() (FailureNote, bool) {
	if len(r.History) == 0 {
		return FailureNote{}, false
	}
	note, ok := r.History[len(r.History)-1].(FailureNote)
	return note, ok
}

// Steps returns the numeric steps of the trace in order.
func (r MethodResult) Steps() []NumericStep {
	steps := make([]NumericStep, 0, len(r.History))
	for _, e := range r.History {
		if s, ok := e.(NumericStep); ok {
			steps = append(steps, s)
		}
	}
	return steps
}

// ConvergenceRate averages the ratios of consecutive step errors that lie
// strictly between 0 and 1. Undefined for non-converged runs and for traces
// too short to estimate a rate.
func (r MethodResult) ConvergenceRate() Real {
	if !r.Converged || len(r.History) < 2 {
		return Undefined()
	}
	steps := r.Steps()
	if len(steps) < 3 {
		return Undefined()
	}
	var sum float64
	var n int
	for i := 1; i < len(steps)-1; i++ {
		prev, next := steps[i].StepError(), steps[i+1].StepError()
		if prev <= 0 || next <= 0 {
			continue
		}
		ratio := next / prev
		if ratio > 0 && ratio < 1 {
			sum += ratio
			n++
		}
	}
	if n == 0 {
		return Undefined()
	}
	return Defined(sum / float64(n))
}

// Record is the flat serializable form of a MethodResult, consumed by
// persistence and transport layers.
type Record struct {
	Method           Method           `json:"method"`
	MethodName       string           `json:"method_name"`
	Root             Real             `json:"root"`
	Iterations       int              `json:"iterations"`
	Error            Real             `json:"error"`
	Converged        bool             `json:"converged"`
	ExecutionTime    float64          `json:"execution_time"`
	ConvergenceRate  Real             `json:"convergence_rate"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	IterationHistory []map[string]any `json:"iteration_history"`
}

// Record converts the result to its flat form. Execution time is in seconds.
func (r MethodResult) Record() Record {
	history := make([]map[string]any, len(r.History))
	for i, e := range r.History {
		history[i] = e.Fields()
	}
	return Record{
		Method:           r.Method,
		MethodName:       r.MethodName,
		Root:             r.Root,
		Iterations:       r.Iterations,
		Error:            r.Error,
		Converged:        r.Converged,
		ExecutionTime:    r.ExecutionTime.Seconds(),
		ConvergenceRate:  r.ConvergenceRate(),
		FailureReason:    r.FailureReason(),
		IterationHistory: history,
	}
}

// MarshalJSON encodes the result as its Record.
func (r MethodResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// Map returns the record as a generic map, the shape expected by CEL and jq.
func (rec Record) Map() (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
