package fast

import (
	"fmt"
	"strings"
)

// Opcode is the top nibble of an instruction word.
type Opcode uint8

const (
	OpBR   Opcode = 0x0
	OpADD  Opcode = 0x1
	OpLD   Opcode = 0x2
	OpST   Opcode = 0x3
	OpJSR  Opcode = 0x4
	OpAND  Opcode = 0x5
	OpLDR  Opcode = 0x6
	OpSTR  Opcode = 0x7
	OpRTI  Opcode = 0x8
	OpNOT  Opcode = 0x9
	OpLDI  Opcode = 0xA
	OpSTI  Opcode = 0xB
	OpJMP  Opcode = 0xC
	OpRES  Opcode = 0xD
	OpLEA  Opcode = 0xE
	OpTRAP Opcode = 0xF
)

// Kind identifies the instruction variant carried by an Instruction.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindADD
	KindAND
	KindNOT
	KindBR
	KindJMP
	KindJSR
	KindJSRR
	KindLD
	KindLDI
	KindLDR
	KindLEA
	KindST
	KindSTI
	KindSTR
	KindTRAP
	KindRTI
)

var kindNames = [...]string{
	KindInvalid: "INVALID",
	KindADD:     "ADD",
	KindAND:     "AND",
	KindNOT:     "NOT",
	KindBR:      "BR",
	KindJMP:     "JMP",
	KindJSR:     "JSR",
	KindJSRR:    "JSRR",
	KindLD:      "LD",
	KindLDI:     "LDI",
	KindLDR:     "LDR",
	KindLEA:     "LEA",
	KindST:      "ST",
	KindSTI:     "STI",
	KindSTR:     "STR",
	KindTRAP:    "TRAP",
	KindRTI:     "RTI",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Trap vectors with an OS routine, plus HALT which the machine executes itself.
const (
	TrapGETC  uint8 = 0x20
	TrapOUT   uint8 = 0x21
	TrapPUTS  uint8 = 0x22
	TrapIN    uint8 = 0x23
	TrapPUTSP uint8 = 0x24
	TrapHALT  uint8 = 0x25
)

// Instruction is a decoded instruction word. Only the fields relevant to Kind are set.
//
// DR holds the register in bits 11:9: the destination for register writes,
// the source for ST, STI and STR. SR1 holds bits 8:6, which is the base
// register for LDR, STR, JMP and JSRR.
type Instruction struct {
	Kind Kind   `json:"kind"`
	Raw  uint16 `json:"raw"`

	DR  uint8 `json:"dr,omitempty"`
	SR1 uint8 `json:"sr1,omitempty"`
	SR2 uint8 `json:"sr2,omitempty"`

	Imm  bool   `json:"imm,omitempty"`
	Imm5 uint16 `json:"imm5,omitempty"`

	// Offset is the sign-extended PC or base offset, as a wrapping 16-bit word.
	Offset uint16 `json:"offset,omitempty"`

	N bool `json:"n,omitempty"`
	Z bool `json:"z,omitempty"`
	P bool `json:"p,omitempty"`

	TrapVect uint8 `json:"trapVect,omitempty"`
}

var pcRelativeKinds = [16]Kind{
	OpLD:  KindLD,
	OpLDI: KindLDI,
	OpLEA: KindLEA,
	OpST:  KindST,
	OpSTI: KindSTI,
}

// SignExtend widens the low n bits of x to a 16-bit two's complement word.
func SignExtend(x uint16, n uint) uint16 {
	x &= (1 << n) - 1
	if x&(1<<(n-1)) != 0 {
		x |= 0xFFFF << n
	}
	return x
}

// Decode turns an instruction word into its variant. Reserved bit patterns
// decode to KindInvalid; decoding never fails otherwise.
func Decode(word uint16) Instruction {
	in := Instruction{Raw: word}
	invalid := Instruction{Kind: KindInvalid, Raw: word}
	dr := uint8(word>>9) & 7
	sr1 := uint8(word>>6) & 7
	switch Opcode(word >> 12) {
	case OpADD, OpAND:
		in.Kind = KindADD
		if Opcode(word>>12) == OpAND {
			in.Kind = KindAND
		}
		in.DR, in.SR1 = dr, sr1
		if word&0x20 != 0 {
			in.Imm = true
			in.Imm5 = SignExtend(word, 5)
		} else {
			if word&0x18 != 0 {
				return invalid
			}
			in.SR2 = uint8(word) & 7
		}
	case OpNOT:
		if word&0x3F != 0x3F {
			return invalid
		}
		in.Kind, in.DR, in.SR1 = KindNOT, dr, sr1
	case OpBR:
		in.Kind = KindBR
		in.N = word&0x800 != 0
		in.Z = word&0x400 != 0
		in.P = word&0x200 != 0
		in.Offset = SignExtend(word, 9)
	case OpJMP:
		if word&0x0E3F != 0 {
			return invalid
		}
		in.Kind, in.SR1 = KindJMP, sr1
	case OpJSR:
		if word&0x800 != 0 {
			in.Kind = KindJSR
			in.Offset = SignExtend(word, 11)
		} else {
			if word&0x063F != 0 {
				return invalid
			}
			in.Kind, in.SR1 = KindJSRR, sr1
		}
	case OpLD, OpLDI, OpLEA, OpST, OpSTI:
		in.Kind = pcRelativeKinds[word>>12]
		in.DR = dr
		in.Offset = SignExtend(word, 9)
	case OpLDR, OpSTR:
		in.Kind = KindLDR
		if Opcode(word>>12) == OpSTR {
			in.Kind = KindSTR
		}
		in.DR, in.SR1 = dr, sr1
		in.Offset = SignExtend(word, 6)
	case OpTRAP:
		vect := uint8(word)
		if word&0x0F00 != 0 || vect < TrapGETC || vect > TrapHALT {
			return invalid
		}
		in.Kind, in.TrapVect = KindTRAP, vect
	case OpRTI:
		if word != 0x8000 {
			return invalid
		}
		in.Kind = KindRTI
	default:
		return invalid
	}
	return in
}

// Encode is the inverse of Decode for valid instructions.
// KindInvalid encodes to its Raw word.
func Encode(in Instruction) uint16 {
	dr := uint16(in.DR&7) << 9
	sr1 := uint16(in.SR1&7) << 6
	switch in.Kind {
	case KindADD, KindAND:
		w := uint16(OpADD) << 12
		if in.Kind == KindAND {
			w = uint16(OpAND) << 12
		}
		w |= dr | sr1
		if in.Imm {
			return w | 0x20 | in.Imm5&0x1F
		}
		return w | uint16(in.SR2&7)
	case KindNOT:
		return uint16(OpNOT)<<12 | dr | sr1 | 0x3F
	case KindBR:
		w := in.Offset & 0x1FF
		if in.N {
			w |= 0x800
		}
		if in.Z {
			w |= 0x400
		}
		if in.P {
			w |= 0x200
		}
		return w
	case KindJMP:
		return uint16(OpJMP)<<12 | sr1
	case KindJSR:
		return uint16(OpJSR)<<12 | 0x800 | in.Offset&0x7FF
	case KindJSRR:
		return uint16(OpJSR)<<12 | sr1
	case KindLD:
		return uint16(OpLD)<<12 | dr | in.Offset&0x1FF
	case KindLDI:
		return uint16(OpLDI)<<12 | dr | in.Offset&0x1FF
	case KindLEA:
		return uint16(OpLEA)<<12 | dr | in.Offset&0x1FF
	case KindST:
		return uint16(OpST)<<12 | dr | in.Offset&0x1FF
	case KindSTI:
		return uint16(OpSTI)<<12 | dr | in.Offset&0x1FF
	case KindLDR:
		return uint16(OpLDR)<<12 | dr | sr1 | in.Offset&0x3F
	case KindSTR:
		return uint16(OpSTR)<<12 | dr | sr1 | in.Offset&0x3F
	case KindTRAP:
		return uint16(OpTRAP)<<12 | uint16(in.TrapVect)
	case KindRTI:
		return uint16(OpRTI) << 12
	default:
		return in.Raw
	}
}

// IsStore reports whether the instruction writes data memory.
func (in Instruction) IsStore() bool {
	return in.Kind == KindST || in.Kind == KindSTI || in.Kind == KindSTR
}

// IsHalt reports whether the instruction is TRAP x25.
func (in Instruction) IsHalt() bool {
	return in.Kind == KindTRAP && in.TrapVect == TrapHALT
}

func (in Instruction) String() string {
	off := int16(in.Offset)
	switch in.Kind {
	case KindADD, KindAND:
		if in.Imm {
			return fmt.Sprintf("%s R%d, R%d, #%d", in.Kind, in.DR, in.SR1, int16(in.Imm5))
		}
		return fmt.Sprintf("%s R%d, R%d, R%d", in.Kind, in.DR, in.SR1, in.SR2)
	case KindNOT:
		return fmt.Sprintf("NOT R%d, R%d", in.DR, in.SR1)
	case KindBR:
		var cc strings.Builder
		if in.N {
			cc.WriteByte('n')
		}
		if in.Z {
			cc.WriteByte('z')
		}
		if in.P {
			cc.WriteByte('p')
		}
		return fmt.Sprintf("BR%s #%d", cc.String(), off)
	case KindJMP:
		if in.SR1 == 7 {
			return "RET"
		}
		return fmt.Sprintf("JMP R%d", in.SR1)
	case KindJSR:
		return fmt.Sprintf("JSR #%d", off)
	case KindJSRR:
		return fmt.Sprintf("JSRR R%d", in.SR1)
	case KindLD, KindLDI, KindLEA, KindST, KindSTI:
		return fmt.Sprintf("%s R%d, #%d", in.Kind, in.DR, off)
	case KindLDR, KindSTR:
		return fmt.Sprintf("%s R%d, R%d, #%d", in.Kind, in.DR, in.SR1, off)
	case KindTRAP:
		return fmt.Sprintf("TRAP x%02X", in.TrapVect)
	case KindRTI:
		return "RTI"
	default:
		return fmt.Sprintf(".FILL x%04X", in.Raw)
	}
}
