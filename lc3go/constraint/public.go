package constraint

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const (
	// MaxStepBound keeps StepBound - steps inside a single 16-bit decomposition.
	MaxStepBound = 1<<WordBits - 1

	minDomainSize = 32
)

// PublicInputs is the claim a proof is checked against: this program, run on this
// input, halts within StepBound steps with these registers and this output.
type PublicInputs struct {
	// ProgramHash is the merkle root of the initial memory (OS and program).
	ProgramHash common.Hash `json:"programHash"`
	Origin      uint16      `json:"origin"`
	StepBound   uint64      `json:"stepBound"`

	// Input is the whole keyboard stream, of which the run read InputConsumed bytes.
	Input         hexutil.Bytes `json:"input"`
	InputConsumed uint64        `json:"inputConsumed"`
	Output        hexutil.Bytes `json:"output"`

	Registers [8]uint16 `json:"registers"`
}

// NewPublicInputs states the outcome of a halted run.
func NewPublicInputs(p *fast.Program, out *fast.Outcome, input []byte, stepBound uint64) (*PublicInputs, error) {
	if out.Status != fast.StatusHalted {
		return nil, fmt.Errorf("%w: run ended %s", ErrTraceNotHalted, out.Status)
	}
	pub := &PublicInputs{
		ProgramHash:   p.Commitment(),
		Origin:        p.Origin,
		StepBound:     stepBound,
		Input:         append([]byte(nil), input...),
		InputConsumed: out.InputConsumed,
		Output:        append([]byte(nil), out.Output...),
		Registers:     out.Registers.R,
	}
	return pub, pub.Validate()
}

func (p *PublicInputs) Validate() error {
	if p.StepBound == 0 || p.StepBound > MaxStepBound {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrStepBound, p.StepBound, MaxStepBound)
	}
	if p.InputConsumed > uint64(len(p.Input)) {
		return fmt.Errorf("%w: consumed %d of %d input bytes", ErrInvalidPublicInputs, p.InputConsumed, len(p.Input))
	}
	if uint64(len(p.Output)) > p.StepBound {
		return fmt.Errorf("%w: %d output bytes in %d steps", ErrInvalidPublicInputs, len(p.Output), p.StepBound)
	}
	if fast.IsDeviceAddress(p.Origin) {
		return fmt.Errorf("%w: origin %04x in the device page", ErrInvalidPublicInputs, p.Origin)
	}
	return nil
}

// Bytes is the canonical encoding bound into the proof transcript.
func (p *PublicInputs) Bytes() []byte {
	out := make([]byte, 0, 32+2+8+8+len(p.Input)+8+8+len(p.Output)+16)
	out = append(out, p.ProgramHash[:]...)
	out = binary.BigEndian.AppendUint16(out, p.Origin)
	out = binary.BigEndian.AppendUint64(out, p.StepBound)
	out = binary.BigEndian.AppendUint64(out, uint64(len(p.Input)))
	out = append(out, p.Input...)
	out = binary.BigEndian.AppendUint64(out, p.InputConsumed)
	out = binary.BigEndian.AppendUint64(out, uint64(len(p.Output)))
	out = append(out, p.Output...)
	for _, r := range p.Registers {
		out = binary.BigEndian.AppendUint16(out, r)
	}
	return out
}

// DomainSize is the number of rows of both tables. It fits every step plus
// halted padding in the cpu table, and every access plus the initial image and
// a leading inactive row in the memory table.
func DomainSize(stepBound uint64, imageWords int) int {
	n := max(uint64(minDomainSize), 3*stepBound+uint64(imageWords)+2)
	return 1 << bits.Len64(n-1)
}

// IOEvent is a keyboard byte consumed, or a display byte emitted.
type IOEvent struct {
	Output bool
	Index  uint64
	Byte   byte
}

// Events lists the public I/O events of the claim.
func (p *PublicInputs) Events() []IOEvent {
	events := make([]IOEvent, 0, int(p.InputConsumed)+len(p.Output))
	for i := uint64(0); i < p.InputConsumed; i++ {
		events = append(events, IOEvent{Index: i, Byte: p.Input[i]})
	}
	for i, b := range p.Output {
		events = append(events, IOEvent{Output: true, Index: uint64(i), Byte: b})
	}
	return events
}

// foldMem folds a memory access tuple with alpha.
func foldMem(alpha *fr.Element, addr, time, val uint64, write bool) fr.Element {
	var acc, t fr.Element
	if write {
		acc.SetOne()
	}
	t.SetUint64(val)
	acc.Mul(&acc, alpha).Add(&acc, &t)
	t.SetUint64(time)
	acc.Mul(&acc, alpha).Add(&acc, &t)
	t.SetUint64(addr)
	acc.Mul(&acc, alpha).Add(&acc, &t)
	return acc
}

// foldIO folds an I/O event: kind*alpha^4 + index*alpha + byte*alpha^2.
func foldIO(alpha *fr.Element, ev IOEvent) fr.Element {
	var acc, t fr.Element
	kind := uint64(1)
	if ev.Output {
		kind = 2
	}
	acc.SetUint64(kind)
	acc.Mul(&acc, alpha)
	acc.Mul(&acc, alpha)
	t.SetUint64(uint64(ev.Byte))
	acc.Add(&acc, &t)
	acc.Mul(&acc, alpha)
	t.SetUint64(ev.Index)
	acc.Add(&acc, &t)
	acc.Mul(&acc, alpha)
	return acc
}

// ComputeRho returns prod(gamma - init) / prod(gamma - io) over the initial image
// writes and the public I/O events. It is what closes the grand product.
func ComputeRho(image []fast.ImageWord, pub *PublicInputs, alpha, gamma fr.Element) (fr.Element, error) {
	num := fr.One()
	for _, w := range image {
		f := foldMem(&alpha, uint64(w.Addr), 0, uint64(w.Value), true)
		f.Sub(&gamma, &f)
		num.Mul(&num, &f)
	}
	den := fr.One()
	for _, ev := range pub.Events() {
		f := foldIO(&alpha, ev)
		f.Sub(&gamma, &f)
		den.Mul(&den, &f)
	}
	if den.IsZero() {
		return fr.Element{}, ErrDegenerateChallenge
	}
	den.Inverse(&den)
	num.Mul(&num, &den)
	return num, nil
}
