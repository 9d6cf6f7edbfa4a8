package fast

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrDeviceFetch        = errors.New("instruction fetch from device page")
	ErrDevicePointer      = errors.New("indirect pointer stored in device page")
	ErrReadOnlyDevice     = errors.New("write to read-only device register")
	ErrUnmappedDevice     = errors.New("access to unmapped device address")
	ErrStepBudget         = errors.New("step budget exhausted before halt")
	ErrNotRunning         = errors.New("machine is not running")

	ErrEmptyObject    = errors.New("object file has no origin word")
	ErrOddObject      = errors.New("object file has a trailing odd byte")
	ErrObjectTooLarge = errors.New("object does not fit below the device page")
)

// FaultKind classifies an abnormal termination.
type FaultKind uint8

const (
	DecodeAnomaly FaultKind = iota + 1
	MemoryAccessFault
	StepBudgetExceeded
)

func (k FaultKind) String() string {
	switch k {
	case DecodeAnomaly:
		return "decode anomaly"
	case MemoryAccessFault:
		return "memory access fault"
	case StepBudgetExceeded:
		return "step budget exceeded"
	default:
		return fmt.Sprintf("FaultKind(%d)", uint8(k))
	}
}

// Fault is the terminal error of a faulted machine.
type Fault struct {
	Kind  FaultKind
	Step  uint64
	PC    uint16
	Instr uint16
	Addr  uint16 // the offending address of a MemoryAccessFault
	Err   error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case MemoryAccessFault:
		return fmt.Sprintf("%s at step %d pc %04x (instr %04x) addr %04x: %v", f.Kind, f.Step, f.PC, f.Instr, f.Addr, f.Err)
	default:
		return fmt.Sprintf("%s at step %d pc %04x (instr %04x): %v", f.Kind, f.Step, f.PC, f.Instr, f.Err)
	}
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// AsFault returns the Fault wrapped in err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	ok := errors.As(err, &f)
	return f, ok
}
