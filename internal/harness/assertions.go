package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/coedit/internal/presence"
	"github.com/roach88/coedit/internal/value"
)

// AssertionContext is the final session state assertions run against.
type AssertionContext struct {
	Ops     int
	Mirror  value.Value
	Shadow  presence.ShadowState
	Tracked []string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %-6s %s\n", event.Step, event.Type, event.Detail)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEffectContains:
		return assertEffectContains(trace, a)
	case AssertEffectOrder:
		return assertEffectOrder(trace, a)
	case AssertEffectCount:
		return assertEffectCount(trace, a)
	case AssertOpCount:
		if actx.Ops != a.Count {
			return &AssertionError{
				Type:     AssertOpCount,
				Expected: fmt.Sprintf("%d mirror ops", a.Count),
				Actual:   fmt.Sprintf("%d mirror ops", actx.Ops),
				Trace:    trace,
			}
		}
		return nil
	case AssertShadow:
		return assertShadow(actx.Shadow, a)
	case AssertTracked:
		return assertTracked(actx.Tracked, a)
	case AssertMirror:
		return assertMirror(actx.Mirror, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEffectContains checks that the effect was rendered at least once.
func assertEffectContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == TraceEffect && event.Detail == a.Effect {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEffectContains,
		Expected: a.Effect,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEffectOrder checks that the effects appear as a subsequence of the
// trace. Intervening effects are allowed; a repeated expectation needs a
// repeated occurrence.
func assertEffectOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Effects) {
			break
		}
		if event.Type == TraceEffect && event.Detail == a.Effects[next] {
			next++
		}
	}
	if next == len(a.Effects) {
		return nil
	}

	actual := fmt.Sprintf("%s not found after %d matched effects", a.Effects[next], next)
	if next == 0 {
		actual = fmt.Sprintf("%s not found in trace", a.Effects[0])
	}
	return &AssertionError{
		Type:     AssertEffectOrder,
		Expected: fmt.Sprintf("effects in order: %v", a.Effects),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertEffectCount checks that the effect appears exactly Count times.
func assertEffectCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceEffect && event.Detail == a.Effect {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEffectCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Effect),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertShadow(shadow presence.ShadowState, a Assertion) error {
	if a.Peer == "" && !shadow.Enabled {
		return nil
	}
	if shadow.Enabled && shadow.Peer == a.Peer {
		return nil
	}

	describe := func(enabled bool, peer string) string {
		if !enabled {
			return "not shadowing"
		}
		return "shadowing " + peer
	}
	return &AssertionError{
		Type:     AssertShadow,
		Expected: describe(a.Peer != "", a.Peer),
		Actual:   describe(shadow.Enabled, shadow.Peer),
	}
}

func assertTracked(tracked []string, a Assertion) error {
	want := slices.Clone(a.Peers)
	slices.Sort(want)
	if slices.Equal(want, tracked) || (len(want) == 0 && len(tracked) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTracked,
		Expected: fmt.Sprintf("tracked peers %v", want),
		Actual:   fmt.Sprintf("tracked peers %v", tracked),
	}
}

func assertMirror(mirrored value.Value, a Assertion) error {
	want, err := value.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("mirror expect: %w", err)
	}
	if value.Equal(want, mirrored) {
		return nil
	}

	render := func(v value.Value) string {
		data, err := value.MarshalCanonical(v)
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return string(data)
	}
	return &AssertionError{
		Type:     AssertMirror,
		Expected: render(want),
		Actual:   render(mirrored),
	}
}
