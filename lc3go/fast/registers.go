package fast

import "fmt"

// Cond is the condition code. Exactly one flag is set at any time.
type Cond uint8

const (
	CondP Cond = 1 << 0
	CondZ Cond = 1 << 1
	CondN Cond = 1 << 2
)

func (c Cond) String() string {
	switch c {
	case CondN:
		return "N"
	case CondZ:
		return "Z"
	case CondP:
		return "P"
	default:
		return fmt.Sprintf("Cond(%d)", uint8(c))
	}
}

// CondOf is the condition code a register write of v produces.
func CondOf(v uint16) Cond {
	switch {
	case v == 0:
		return CondZ
	case v&0x8000 != 0:
		return CondN
	default:
		return CondP
	}
}

// RegisterFile is the architectural register state.
type RegisterFile struct {
	R    [8]uint16 `json:"r"`
	PC   uint16    `json:"pc"`
	Cond Cond      `json:"cond"`
}

// NewRegisterFile returns the reset state: all registers zero, Z set.
func NewRegisterFile(pc uint16) RegisterFile {
	return RegisterFile{PC: pc, Cond: CondZ}
}

func (rf *RegisterFile) Get(r uint8) uint16 {
	return rf.R[r&7]
}

// Set writes a general purpose register and recomputes the condition code.
func (rf *RegisterFile) Set(r uint8, v uint16) {
	rf.R[r&7] = v
	rf.Cond = CondOf(v)
}

// Link stores a return address in R7. The condition code is unchanged.
func (rf *RegisterFile) Link(pc uint16) {
	rf.R[7] = pc
}

func (rf RegisterFile) String() string {
	return fmt.Sprintf("pc=%04x cc=%s r=[%04x %04x %04x %04x %04x %04x %04x %04x]",
		rf.PC, rf.Cond, rf.R[0], rf.R[1], rf.R[2], rf.R[3], rf.R[4], rf.R[5], rf.R[6], rf.R[7])
}
