package fast

import (
	"errors"
	"fmt"
)

var ErrOffsetRange = errors.New("label out of reach of the offset field")

type fixup struct {
	index int
	label string
	bits  uint // width of the PC-relative offset, 0 for an absolute .FILL
}

// Builder assembles a program from instructions and labels.
// Label references are resolved when the program is built.
type Builder struct {
	origin uint16
	words  []uint16
	instrs map[int]Instruction
	labels map[string]uint16
	fixups []fixup
	err    error
}

func NewBuilder(origin uint16) *Builder {
	return &Builder{
		origin: origin,
		instrs: make(map[int]Instruction),
		labels: make(map[string]uint16),
	}
}

// Addr is the address of the next emitted word.
func (b *Builder) Addr() uint16 {
	return b.origin + uint16(len(b.words))
}

func (b *Builder) Label(name string) *Builder {
	if _, ok := b.labels[name]; ok && b.err == nil {
		b.err = fmt.Errorf("duplicate label %q", name)
	}
	b.labels[name] = b.Addr()
	return b
}

// Emit appends a fully specified instruction.
func (b *Builder) Emit(in Instruction) *Builder {
	b.words = append(b.words, Encode(in))
	return b
}

func (b *Builder) emitRef(in Instruction, label string, bits uint) *Builder {
	b.instrs[len(b.words)] = in
	b.fixups = append(b.fixups, fixup{index: len(b.words), label: label, bits: bits})
	b.words = append(b.words, Encode(in))
	return b
}

// Fill appends a raw data word.
func (b *Builder) Fill(v uint16) *Builder {
	b.words = append(b.words, v)
	return b
}

// FillLabel appends the address of a label.
func (b *Builder) FillLabel(label string) *Builder {
	b.fixups = append(b.fixups, fixup{index: len(b.words), label: label})
	b.words = append(b.words, 0)
	return b
}

// Block reserves n zero words.
func (b *Builder) Block(n int) *Builder {
	b.words = append(b.words, make([]uint16, n)...)
	return b
}

// Stringz appends one word per character followed by a terminating zero.
func (b *Builder) Stringz(s string) *Builder {
	for i := 0; i < len(s); i++ {
		b.words = append(b.words, uint16(s[i]))
	}
	b.words = append(b.words, 0)
	return b
}

// PackedString appends two characters per word, low byte first, zero terminated.
func (b *Builder) PackedString(s string) *Builder {
	for i := 0; i < len(s); i += 2 {
		w := uint16(s[i])
		if i+1 < len(s) {
			w |= uint16(s[i+1]) << 8
		}
		b.words = append(b.words, w)
	}
	b.words = append(b.words, 0)
	return b
}

func (b *Builder) ADD(dr, sr1, sr2 uint8) *Builder {
	return b.Emit(Instruction{Kind: KindADD, DR: dr, SR1: sr1, SR2: sr2})
}

func (b *Builder) ADDi(dr, sr1 uint8, imm int16) *Builder {
	return b.Emit(Instruction{Kind: KindADD, DR: dr, SR1: sr1, Imm: true, Imm5: uint16(imm)})
}

func (b *Builder) AND(dr, sr1, sr2 uint8) *Builder {
	return b.Emit(Instruction{Kind: KindAND, DR: dr, SR1: sr1, SR2: sr2})
}

func (b *Builder) ANDi(dr, sr1 uint8, imm int16) *Builder {
	return b.Emit(Instruction{Kind: KindAND, DR: dr, SR1: sr1, Imm: true, Imm5: uint16(imm)})
}

func (b *Builder) NOT(dr, sr uint8) *Builder {
	return b.Emit(Instruction{Kind: KindNOT, DR: dr, SR1: sr})
}

// BR branches to label when any of the flags in cond ("n", "zp", "nzp", ...) is set.
func (b *Builder) BR(cond string, label string) *Builder {
	in := Instruction{Kind: KindBR}
	for _, c := range cond {
		switch c {
		case 'n':
			in.N = true
		case 'z':
			in.Z = true
		case 'p':
			in.P = true
		default:
			if b.err == nil {
				b.err = fmt.Errorf("invalid branch condition %q", cond)
			}
		}
	}
	return b.emitRef(in, label, 9)
}

func (b *Builder) JMP(base uint8) *Builder {
	return b.Emit(Instruction{Kind: KindJMP, SR1: base})
}

func (b *Builder) RET() *Builder {
	return b.JMP(7)
}

func (b *Builder) JSR(label string) *Builder {
	return b.emitRef(Instruction{Kind: KindJSR}, label, 11)
}

func (b *Builder) JSRR(base uint8) *Builder {
	return b.Emit(Instruction{Kind: KindJSRR, SR1: base})
}

func (b *Builder) LD(dr uint8, label string) *Builder {
	return b.emitRef(Instruction{Kind: KindLD, DR: dr}, label, 9)
}

func (b *Builder) LDI(dr uint8, label string) *Builder {
	return b.emitRef(Instruction{Kind: KindLDI, DR: dr}, label, 9)
}

func (b *Builder) LEA(dr uint8, label string) *Builder {
	return b.emitRef(Instruction{Kind: KindLEA, DR: dr}, label, 9)
}

func (b *Builder) ST(sr uint8, label string) *Builder {
	return b.emitRef(Instruction{Kind: KindST, DR: sr}, label, 9)
}

func (b *Builder) STI(sr uint8, label string) *Builder {
	return b.emitRef(Instruction{Kind: KindSTI, DR: sr}, label, 9)
}

func (b *Builder) LDR(dr, base uint8, off int16) *Builder {
	return b.Emit(Instruction{Kind: KindLDR, DR: dr, SR1: base, Offset: uint16(off)})
}

func (b *Builder) STR(sr, base uint8, off int16) *Builder {
	return b.Emit(Instruction{Kind: KindSTR, DR: sr, SR1: base, Offset: uint16(off)})
}

func (b *Builder) TRAP(vect uint8) *Builder {
	return b.Emit(Instruction{Kind: KindTRAP, TrapVect: vect})
}

func (b *Builder) HALT() *Builder {
	return b.TRAP(TrapHALT)
}

// Program resolves all label references.
func (b *Builder) Program() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	words := append([]uint16(nil), b.words...)
	for _, f := range b.fixups {
		target, ok := b.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		if f.bits == 0 {
			words[f.index] = target
			continue
		}
		off := int32(target) - int32(b.origin+uint16(f.index)+1)
		limit := int32(1) << (f.bits - 1)
		if off < -limit || off >= limit {
			return nil, fmt.Errorf("%w: %q is %d words away, %d-bit field", ErrOffsetRange, f.label, off, f.bits)
		}
		in := b.instrs[f.index]
		in.Offset = uint16(off)
		words[f.index] = Encode(in)
	}
	p := &Program{Origin: b.origin, Words: words}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProgram is Program for statically known code.
func (b *Builder) MustProgram() *Program {
	p, err := b.Program()
	if err != nil {
		panic(err)
	}
	return p
}
