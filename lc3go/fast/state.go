package fast

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Status is the run status of the machine. Halted and Faulted are terminal.
type Status uint8

const (
	StatusRunning Status = iota
	StatusHalted
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusHalted:
		return "halted"
	case StatusFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

type VMState struct {
	Memory *Memory `json:"memory"`

	Registers RegisterFile `json:"registers"`

	Status Status `json:"status"`
	Step   uint64 `json:"step"`

	// keyboard bytes consumed and display bytes emitted so far
	InputCount  uint32 `json:"inputCount"`
	OutputCount uint32 `json:"outputCount"`
}

func NewVMState() *VMState {
	return &VMState{
		Memory:    NewMemory(),
		Registers: NewRegisterFile(0),
	}
}

// StateWitnessSize is the length of an encoded state witness.
const (
	StateWitnessSize    = 32 + 8*2 + 2 + 1 + 1 + 8 + 4 + 4
	witnessStatusOffset = 32 + 8*2 + 2 + 1
)

type StateWitness []byte

func (state *VMState) EncodeWitness() StateWitness {
	out := make([]byte, 0, StateWitnessSize)
	memRoot := state.Memory.MerkleRoot()
	out = append(out, memRoot[:]...)
	for _, r := range state.Registers.R {
		out = binary.BigEndian.AppendUint16(out, r)
	}
	out = binary.BigEndian.AppendUint16(out, state.Registers.PC)
	out = append(out, byte(state.Registers.Cond))
	out = append(out, byte(state.Status))
	out = binary.BigEndian.AppendUint64(out, state.Step)
	out = binary.BigEndian.AppendUint32(out, state.InputCount)
	out = binary.BigEndian.AppendUint32(out, state.OutputCount)
	return out
}

// StateHash commits to the witness. The first byte is replaced by the status,
// so the run status can be read off the hash.
func (sw StateWitness) StateHash() (common.Hash, error) {
	if len(sw) != StateWitnessSize {
		return common.Hash{}, fmt.Errorf("invalid state witness length %d, must be %d", len(sw), StateWitnessSize)
	}
	hash := crypto.Keccak256Hash(sw)
	hash[0] = sw[witnessStatusOffset]
	return hash, nil
}

// Instr returns the word at the current PC without side effects.
func (state *VMState) Instr() uint16 {
	return state.Memory.GetWord(state.Registers.PC)
}
