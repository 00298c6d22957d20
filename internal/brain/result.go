package brain

import (
	"errors"
	"fmt"
)

// ErrPanic wraps a panic recovered while running a step.
var ErrPanic = errors.New("brain: step panicked")

// Step names one fail-open stage of message processing.
type Step string

const (
	StepValidate     Step = "validate"
	StepSpam         Step = "guard_spam"
	StepLength       Step = "guard_length"
	StepEmoji        Step = "guard_emoji"
	StepUnsupported  Step = "guard_unsupported"
	StepKnowledge    Step = "knowledge"
	StepMemoryRead   Step = "memory_read"
	StepIntent       Step = "intent"
	StepUnknownTrack Step = "unknown_track"
	StepResponse     Step = "response"
	StepMemoryWrite  Step = "memory_write"
)

// Result is the outcome of one step. A failed step carries Err and the
// caller substitutes the step's documented default.
type Result[T any] struct {
	Value T
	Err   error
	Step  Step
}

// OK reports whether the step succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Or returns Value on success and def otherwise.
func (r Result[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// attempt runs fn as step, converting a panic into an ErrPanic result.
func attempt[T any](step Step, fn func() (T, error)) (res Result[T]) {
	res.Step = step
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			res.Value = zero
			res.Err = fmt.Errorf("%w: %s: %v", ErrPanic, step, rec)
		}
	}()
	res.Value, res.Err = fn()
	return res
}
