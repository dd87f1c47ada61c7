package schema

// EntryKind tags an iteration-history entry.
type EntryKind string

const (
	EntryBisection EntryKind = "bisection"
	EntryNewton    EntryKind = "newton"
	EntrySecant    EntryKind = "secant"
	EntryFailure   EntryKind = "failure"
)

// FailureKind classifies why a method stopped without converging.
type FailureKind string

const (
	FailurePrecondition FailureKind = "precondition_violation"
	FailureDegeneracy   FailureKind = "numeric_degeneracy"
	FailureEvaluation   FailureKind = "evaluation_failure"
)

// TraceEntry is one element of an iteration history: a numeric step of a
// specific method, or a trailing FailureNote.
type TraceEntry interface {
	Kind() EntryKind
	// Fields returns the flat wire form of the entry.
	Fields() map[string]any
	isTraceEntry()
}

// NumericStep is a TraceEntry produced by an actual iteration.
type NumericStep interface {
	TraceEntry
	Index() int
	StepError() float64
}

// BisectionStep records one halving of the bracket.
type BisectionStep struct {
	Iteration     int
	A, B, C       float64
	FC            float64
	Error         float64
	IntervalWidth float64
}

func (s BisectionStep) Kind() EntryKind    { return EntryBisection }
func (s BisectionStep) Index() int         { return s.Iteration }
func (s BisectionStep) StepError() float64 { return s.Error }
func (BisectionStep) isTraceEntry()        {}

func (s BisectionStep) Fields() map[string]any {
	return map[string]any{
		"kind":           string(EntryBisection),
		"iteration":      s.Iteration,
		"a":              wireFloat(s.A),
		"b":              wireFloat(s.B),
		"c":              wireFloat(s.C),
		"f(c)":           wireFloat(s.FC),
		"error":          wireFloat(s.Error),
		"interval_width": wireFloat(s.IntervalWidth),
	}
}

// NewtonStep records one tangent step.
type NewtonStep struct {
	Iteration int
	X         float64
	FX        float64
	DFX       float64
	XNew      float64
	Error     float64
	StepSize  float64
}

func (s NewtonStep) Kind() EntryKind    { return EntryNewton }
func (s NewtonStep) Index() int         { return s.Iteration }
func (s NewtonStep) StepError() float64 { return s.Error }
func (NewtonStep) isTraceEntry()        {}

func (s NewtonStep) Fields() map[string]any {
	return map[string]any{
		"kind":      string(EntryNewton),
		"iteration": s.Iteration,
		"x":         wireFloat(s.X),
		"f(x)":      wireFloat(s.FX),
		"f'(x)":     wireFloat(s.DFX),
		"x_new":     wireFloat(s.XNew),
		"error":     wireFloat(s.Error),
		"step_size": wireFloat(s.StepSize),
	}
}

// SecantStep records one secant step.
type SecantStep struct {
	Iteration   int
	X0, X1      float64
	FX0, FX1    float64
	X2, FX2     float64
	Error       float64
	SecantSlope float64
}

func (s SecantStep) Kind() EntryKind    { return EntrySecant }
func (s SecantStep) Index() int         { return s.Iteration }
func (s SecantStep) StepError() float64 { return s.Error }
func (SecantStep) isTraceEntry()        {}

func (s SecantStep) Fields() map[string]any {
	return map[string]any{
		"kind":         string(EntrySecant),
		"iteration":    s.Iteration,
		"x0":           wireFloat(s.X0),
		"x1":           wireFloat(s.X1),
		"f(x0)":        wireFloat(s.FX0),
		"f(x1)":        wireFloat(s.FX1),
		"x2":           wireFloat(s.X2),
		"f(x2)":        wireFloat(s.FX2),
		"error":        wireFloat(s.Error),
		"secant_slope": wireFloat(s.SecantSlope),
	}
}

// FailureNote is the diagnostic that terminates a failed trace.
type FailureNote struct {
	Failure FailureKind
	Reason  string
}

func (n FailureNote) Kind() EntryKind { return EntryFailure }
func (FailureNote) isTraceEntry()     {}

func (n FailureNote) Fields() map[string]any {
	return map[string]any{
		"kind":         string(EntryFailure),
		"failure_kind": string(n.Failure),
		"reason":       n.Reason,
	}
}

var (
	_ NumericStep = BisectionStep{}
	_ NumericStep = NewtonStep{}
	_ NumericStep = SecantStep{}
	_ TraceEntry  = FailureNote{}
)
