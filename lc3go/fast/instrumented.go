package fast

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
)

// Config controls an instrumented run.
type Config struct {
	// MaxSteps faults the machine once this many steps executed without a halt. Zero means unbounded.
	MaxSteps uint64
	// Record keeps every executed step in the trace.
	Record bool
	Logger log.Logger
}

type InstrumentedState struct {
	state *VMState
	port  IOPort
	trace *Trace
	log   log.Logger

	maxSteps uint64

	memProofEnabled bool
	memProofs       [][MemProofSize]byte

	last ExecutionStep
}

func NewInstrumentedState(state *VMState, port IOPort, cfg Config) *InstrumentedState {
	if port == nil {
		port = NewBufferedPort(nil, nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	m := &InstrumentedState{
		state:    state,
		port:     port,
		log:      logger,
		maxSteps: cfg.MaxSteps,
	}
	if cfg.Record {
		m.trace = NewTrace()
	}
	return m
}

func (m *InstrumentedState) State() *VMState {
	return m.state
}

// Trace returns the recorded steps, or nil when recording is disabled.
func (m *InstrumentedState) Trace() *Trace {
	return m.trace
}

// LastStep returns the most recently executed step.
func (m *InstrumentedState) LastStep() ExecutionStep {
	return m.last
}

// Step executes one instruction. With proof set, it returns the witness to re-execute it.
func (m *InstrumentedState) Step(proof bool) (wit *StepWitness, err error) {
	s := m.state
	if s.Status != StatusRunning {
		return nil, ErrNotRunning
	}
	if m.maxSteps != 0 && s.Step >= m.maxSteps {
		s.Status = StatusFaulted
		f := &Fault{Kind: StepBudgetExceeded, Step: s.Step, PC: s.Registers.PC, Err: ErrStepBudget}
		if !IsDeviceAddress(f.PC) {
			f.Instr = s.Instr()
		}
		return nil, f
	}

	m.memProofEnabled = proof
	m.memProofs = m.memProofs[:0]
	if proof {
		wit = &StepWitness{State: s.EncodeWitness()}
	}

	st, err := step(s, m.port, m.trackMemAccess)
	if err != nil {
		m.log.Debug("machine faulted", "step", s.Step, "pc", HexU16(s.Registers.PC), "err", err)
		return nil, err
	}
	if m.trace != nil {
		if err := m.trace.Record(st); err != nil {
			return nil, err
		}
	}
	m.last = st

	if proof {
		wit.MemProof = make([]byte, 0, len(m.memProofs)*MemProofSize)
		for i := range m.memProofs {
			wit.MemProof = append(wit.MemProof, m.memProofs[i][:]...)
		}
		if acc, ok := st.Access(SlotData); ok {
			switch acc.Device {
			case DeviceKBSR:
				wit.KeyReady = acc.Value == StatusReady
			case DeviceKBDR:
				wit.KeyReady = acc.IOEvent
				wit.Key = byte(acc.Value)
			}
		}
	}
	return wit, nil
}

func (m *InstrumentedState) trackMemAccess(addr uint16) {
	if !m.memProofEnabled {
		return
	}
	m.memProofs = append(m.memProofs, m.state.Memory.MerkleProof(addr))
}

// Run steps until the machine halts or faults. ctx is checked every 100 steps.
func (m *InstrumentedState) Run(ctx context.Context) error {
	for i := 0; m.state.Status == StatusRunning; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := m.Step(false); err != nil {
			return err
		}
	}
	return nil
}

// Outcome summarizes a finished run.
type Outcome struct {
	Status        Status       `json:"status"`
	Registers     RegisterFile `json:"registers"`
	Steps         uint64       `json:"steps"`
	InputConsumed uint64       `json:"inputConsumed"`
	Output        []byte       `json:"output"`
	Fault         *Fault       `json:"-"`
}

// RunProgram loads p, runs it to completion against a buffered console fed with input,
// and returns the outcome together with the recorded trace.
// A fault is reported in the outcome; the error is reserved for failures of the run itself.
func RunProgram(ctx context.Context, p *Program, input []byte, cfg Config) (*Outcome, *Trace, error) {
	state, err := NewProgramState(p)
	if err != nil {
		return nil, nil, err
	}
	cfg.Record = true
	port := NewBufferedPort(input, nil)
	m := NewInstrumentedState(state, port, cfg)
	out := &Outcome{}
	if err := m.Run(ctx); err != nil {
		f, ok := AsFault(err)
		if !ok {
			return nil, nil, err
		}
		out.Fault = f
	}
	out.Status = state.Status
	out.Registers = state.Registers
	out.Steps = state.Step
	out.InputConsumed = uint64(len(port.Consumed()))
	out.Output = append([]byte(nil), port.Output()...)
	return out, m.trace, nil
}
