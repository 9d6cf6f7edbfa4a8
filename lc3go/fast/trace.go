package fast

import (
	"errors"
	"fmt"
)

// AccessSlot is the position of a memory access within an instruction.
type AccessSlot uint8

const (
	// SlotFetch reads the instruction word.
	SlotFetch AccessSlot = iota + 1
	// SlotAux reads an indirect pointer (LDI, STI) or a trap vector.
	SlotAux
	// SlotData is the load or store of LD, LDI, LDR, ST, STI and STR.
	SlotData
)

func (s AccessSlot) String() string {
	switch s {
	case SlotFetch:
		return "fetch"
	case SlotAux:
		return "aux"
	case SlotData:
		return "data"
	default:
		return fmt.Sprintf("AccessSlot(%d)", uint8(s))
	}
}

// Access is one memory or device access made by an instruction.
type Access struct {
	Slot  AccessSlot `json:"slot"`
	Addr  uint16     `json:"addr"`
	Write bool       `json:"write,omitempty"`
	// Value is the word read, or the word written.
	Value uint16 `json:"value"`
	// Prev is the memory word before the access. Device accesses leave it zero.
	Prev uint16 `json:"prev"`

	Device Device `json:"device,omitempty"`
	// IOEvent marks a consumed keyboard byte or an emitted display byte,
	// IOIndex is its position in the respective stream.
	IOEvent bool   `json:"ioEvent,omitempty"`
	IOIndex uint32 `json:"ioIndex,omitempty"`
}

// ExecutionStep records the state transition of one executed instruction.
type ExecutionStep struct {
	Index  uint64       `json:"index"`
	Instr  Instruction  `json:"instr"`
	Before RegisterFile `json:"before"`
	After  RegisterFile `json:"after"`
	// Accesses are in slot order; the fetch is always first.
	Accesses []Access `json:"accesses"`
	Halted   bool     `json:"halted,omitempty"`
}

// Access returns the access in the given slot.
func (s *ExecutionStep) Access(slot AccessSlot) (Access, bool) {
	for _, a := range s.Accesses {
		if a.Slot == slot {
			return a, true
		}
	}
	return Access{}, false
}

var (
	ErrTraceOrder  = errors.New("execution step recorded out of order")
	ErrTraceClosed = errors.New("trace already ends in a halt")
)

// Trace is the append-only record of a run, in program order.
type Trace struct {
	steps []ExecutionStep
}

func NewTrace() *Trace {
	return &Trace{}
}

// Record appends the next step.
func (t *Trace) Record(step ExecutionStep) error {
	if n := len(t.steps); n > 0 && t.steps[n-1].Halted {
		return ErrTraceClosed
	}
	if step.Index != uint64(len(t.steps)) {
		return fmt.Errorf("%w: got step %d, expected %d", ErrTraceOrder, step.Index, len(t.steps))
	}
	t.steps = append(t.steps, step)
	return nil
}

func (t *Trace) Len() int {
	return len(t.steps)
}

// Steps returns the recorded steps. The slice must not be modified.
func (t *Trace) Steps() []ExecutionStep {
	return t.steps
}

// Halted reports whether the last recorded step halted the machine.
func (t *Trace) Halted() bool {
	return len(t.steps) > 0 && t.steps[len(t.steps)-1].Halted
}

// Final returns the register state after the last step.
func (t *Trace) Final() (RegisterFile, bool) {
	if len(t.steps) == 0 {
		return RegisterFile{}, false
	}
	return t.steps[len(t.steps)-1].After, true
}

// Output collects the display bytes emitted during the run.
func (t *Trace) Output() []byte {
	var out []byte
	for i := range t.steps {
		for _, a := range t.steps[i].Accesses {
			if a.IOEvent && a.Device == DeviceDDR {
				out = append(out, byte(a.Value))
			}
		}
	}
	return out
}

// InputConsumed counts the keyboard bytes read during the run.
func (t *Trace) InputConsumed() uint64 {
	var n uint64
	for i := range t.steps {
		for _, a := range t.steps[i].Accesses {
			if a.IOEvent && a.Device == DeviceKBDR {
				n++
			}
		}
	}
	return n
}

// TraceFromSteps rebuilds a trace, validating the order of the steps.
func TraceFromSteps(steps []ExecutionStep) (*Trace, error) {
	t := NewTrace()
	for _, s := range steps {
		if err := t.Record(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}
