package constraint

import (
	"errors"
	"fmt"
)

var (
	ErrConstraintUnsatisfiable = errors.New("witness does not satisfy the constraint system")
	ErrTraceInconsistency      = errors.New("execution trace is inconsistent")
	ErrTraceNotHalted          = errors.New("execution trace does not end in a halt")
	ErrStepBound               = errors.New("step bound exceeded")
	ErrInvalidPublicInputs     = errors.New("invalid public inputs")
	ErrDegenerateChallenge     = errors.New("challenge collides with a folded tuple")
	ErrMissingProducts         = errors.New("running products not computed")
)

// TraceInconsistencyError reports a step that does not continue from its predecessor.
type TraceInconsistencyError struct {
	Step  uint64
	Field string
}

func (e *TraceInconsistencyError) Error() string {
	return fmt.Sprintf("%v: step %d: %s", ErrTraceInconsistency, e.Step, e.Field)
}

func (e *TraceInconsistencyError) Unwrap() error {
	return ErrTraceInconsistency
}

// Failure identifies the first constraint that does not hold on the witness.
type Failure struct {
	// Handle of the failing constraint
	Handle string
	// Row on which the constraint failed
	Row int
	// Step is the execution step the row belongs to, or -1 when it is not tied to one.
	Step int64
}

func (f *Failure) Message() string {
	msg := fmt.Sprintf("constraint %q does not hold (row %d", f.Handle, f.Row)
	if f.Step >= 0 {
		msg += fmt.Sprintf(", step %d", f.Step)
	}
	return msg + ")"
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %s", ErrConstraintUnsatisfiable, f.Message())
}

func (f *Failure) Unwrap() error {
	return ErrConstraintUnsatisfiable
}

// AsFailure extracts a Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
