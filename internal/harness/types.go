package harness

// Trace event types.
const (
	TraceEffect = "effect"
	TraceOp     = "op"
	TraceNote   = "note"
)

// TraceEvent is one observable outcome of a step.
type TraceEvent struct {
	// Step is the 1-based index of the step that produced the event.
	Step   int    `json:"step"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held and no step failed.
	Pass bool `json:"pass"`

	// Trace contains effects and mirror ops in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state: mirror, shadow, tracked.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(step int, typ, detail string) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Type: typ, Detail: detail})
}

// Effects returns the details of effect events in order.
func (r *Result) Effects() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == TraceEffect {
			out = append(out, ev.Detail)
		}
	}
	return out
}
