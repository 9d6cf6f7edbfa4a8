package constraint

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

// Challenges are the verifier randomness the running products depend on.
type Challenges struct {
	Alpha fr.Element
	Gamma fr.Element
	Rho   fr.Element
}

// Witness is the full assignment of the columns over the trace domain.
type Witness struct {
	N       int
	Columns [][]fr.Element
	// Steps is the number of executed steps; cpu rows past it are halted padding.
	Steps int

	challenges *Challenges
}

func newWitness(n int) *Witness {
	w := &Witness{N: n, Columns: make([][]fr.Element, NumColumns)}
	for c := range w.Columns {
		w.Columns[c] = make([]fr.Element, n)
	}
	return w
}

func (w *Witness) set(c Column, row int, v uint64) {
	w.Columns[c][row].SetUint64(v)
}

func (w *Witness) setInt(c Column, row int, v int64) {
	w.Columns[c][row].SetInt64(v)
}

// setWord writes v and its bit decomposition starting at bitCol.
func (w *Witness) setWord(c, bitCol Column, row int, v uint16) {
	w.set(c, row, uint64(v))
	for k := 0; k < WordBits; k++ {
		w.set(bitCol+Column(k), row, uint64(v>>k&1))
	}
}

func (w *Witness) setInverse(c Column, row int, of *fr.Element) {
	if !of.IsZero() {
		w.Columns[c][row].Inverse(of)
	}
}

// Challenges returns the challenges the running products were computed with, or nil.
func (w *Witness) Challenges() *Challenges {
	return w.challenges
}

// Encode translates a halted trace into the constraint system of the claim and its witness.
// image is the initial memory the trace started from.
func Encode(tr *fast.Trace, image []fast.ImageWord, pub *PublicInputs) (*System, *Witness, error) {
	sys, err := NewSystem(pub, image)
	if err != nil {
		return nil, nil, err
	}
	steps := tr.Steps()
	if err := checkChain(steps); err != nil {
		return nil, nil, err
	}
	if uint64(len(steps)) > pub.StepBound {
		return nil, nil, fmt.Errorf("%w: %d steps, bound %d", ErrStepBound, len(steps), pub.StepBound)
	}
	w := newWitness(sys.N)
	w.Steps = len(steps)
	w.fillCPU(steps, pub)
	if err := w.fillMemory(steps, image); err != nil {
		return nil, nil, err
	}
	return sys, w, nil
}

func checkChain(steps []fast.ExecutionStep) error {
	if len(steps) == 0 {
		return ErrTraceNotHalted
	}
	for i := range steps {
		st := &steps[i]
		if st.Index != uint64(i) {
			return &TraceInconsistencyError{Step: uint64(i), Field: fmt.Sprintf("index %d", st.Index)}
		}
		if i > 0 && st.Before != steps[i-1].After {
			return &TraceInconsistencyError{Step: uint64(i), Field: "registers do not continue from the previous step"}
		}
		if len(st.Accesses) == 0 || st.Accesses[0].Slot != fast.SlotFetch {
			return &TraceInconsistencyError{Step: uint64(i), Field: "missing instruction fetch"}
		}
		if st.Accesses[0].Value != st.Instr.Raw || st.Accesses[0].Addr != st.Before.PC {
			return &TraceInconsistencyError{Step: uint64(i), Field: "fetch does not match the instruction"}
		}
		if st.Halted && i != len(steps)-1 {
			return &TraceInconsistencyError{Step: uint64(i), Field: "halt before the end of the trace"}
		}
	}
	if !steps[len(steps)-1].Halted {
		return ErrTraceNotHalted
	}
	return nil
}

func (w *Witness) setState(row int, regs *fast.RegisterFile) {
	w.set(ColPC, row, uint64(regs.PC))
	for j, r := range regs.R {
		w.set(reg(j), row, uint64(r))
	}
	var n, z, p uint64
	switch regs.Cond {
	case fast.CondN:
		n = 1
	case fast.CondZ:
		z = 1
	case fast.CondP:
		p = 1
	}
	w.set(ColFlagN, row, n)
	w.set(ColFlagZ, row, z)
	w.set(ColFlagP, row, p)
}

func (w *Witness) setRes(row int, v uint16) {
	w.setWord(ColRes, ColResBit, row, v)
	if v == 0 {
		w.set(ColResZero, row, 1)
	} else {
		w.setInverse(ColResInv, row, &w.Columns[ColRes][row])
	}
}

func (w *Witness) setInput(row int, inIdx, inputLen int64) {
	left := inputLen - inIdx
	w.setInt(ColInIdx, row, inIdx)
	w.setInt(ColInLeft, row, left)
	if left != 0 {
		w.set(ColInReady, row, 1)
		w.setInverse(ColInInv, row, &w.Columns[ColInLeft][row])
	}
}

func (w *Witness) fillCPU(steps []fast.ExecutionStep, pub *PublicInputs) {
	inputLen := int64(len(pub.Input))
	var inIdx, outIdx int64
	for i := range steps {
		st := &steps[i]
		w.setState(i, &st.Before)
		w.set(ColClk, i, uint64(i))
		w.setInput(i, inIdx, inputLen)
		w.setInt(ColOutIdx, i, outIdx)

		raw := st.Instr.Raw
		opc := fast.Opcode(raw >> 12)
		w.setWord(ColInstr, ColInstrBit, i, raw)
		w.set(ColOp+Column(opc), i, 1)
		isHalt := opc == fast.OpTRAP && raw&0x5 == 0x5
		if isHalt {
			w.set(ColIsHalt, i, 1)
		}
		dr, sa, sb := int(raw>>9&7), int(raw>>6&7), int(raw&7)
		w.set(ColDR+Column(dr), i, 1)
		w.set(ColSA+Column(sa), i, 1)
		w.set(ColSB+Column(sb), i, 1)

		regs := &st.Before
		a := regs.R[sa]
		b := regs.R[sb]
		if raw&0x20 != 0 {
			b = fast.SignExtend(raw, 5)
		}
		w.setWord(ColA, ColABit, i, a)
		w.setWord(ColB, ColBBit, i, b)

		data, hasData := st.Access(fast.SlotData)
		if aux, ok := st.Access(fast.SlotAux); ok {
			w.set(ColPtr, i, uint64(aux.Value))
		}

		var res uint16
		switch opc {
		case fast.OpADD:
			res = st.After.R[dr]
			w.set(ColCarry, i, (uint64(a)+uint64(b))>>WordBits)
		case fast.OpAND, fast.OpNOT, fast.OpLD, fast.OpLDI, fast.OpLDR, fast.OpLEA:
			res = st.After.R[dr]
		case fast.OpJSR:
			res = st.After.R[7]
		case fast.OpTRAP:
			if !isHalt {
				res = st.After.R[7]
			}
		case fast.OpST, fast.OpSTI, fast.OpSTR:
			res = data.Value
		}
		w.setRes(i, res)

		pc1 := uint64(regs.PC) + 1
		var ea uint64
		switch opc {
		case fast.OpBR, fast.OpLD, fast.OpLDI, fast.OpST, fast.OpSTI, fast.OpLEA:
			ea = pc1 + uint64(fast.SignExtend(raw, 9))
		case fast.OpJSR:
			if raw&0x800 != 0 {
				ea = pc1 + uint64(fast.SignExtend(raw, 11))
			} else {
				ea = uint64(a)
			}
		case fast.OpLDR, fast.OpSTR:
			ea = uint64(a) + uint64(fast.SignExtend(raw, 6))
		case fast.OpJMP:
			ea = uint64(a)
		case fast.OpTRAP:
			ea = uint64(raw & 0xFF)
		}
		w.set(ColEA, i, ea&0xFFFF)
		w.set(ColEACarry, i, ea>>WordBits)

		if hasData {
			w.set(ColAddrD, i, uint64(data.Addr))
			w.set(ColDVal, i, uint64(data.Value))
			switch data.Device {
			case fast.DeviceKBSR:
				w.set(ColDevKBSR, i, 1)
			case fast.DeviceKBDR:
				w.set(ColDevKBDR, i, 1)
				w.setInt(ColIOIdx, i, inIdx)
			case fast.DeviceDSR:
				w.set(ColDevDSR, i, 1)
			case fast.DeviceDDR:
				w.set(ColDevDDR, i, 1)
				w.setInt(ColIOIdx, i, outIdx)
			case fast.DeviceMCR:
				w.set(ColDevMCR, i, 1)
			}
			if data.IOEvent {
				w.set(ColIOE, i, 1)
				if data.Device == fast.DeviceKBDR {
					inIdx++
				} else {
					outIdx++
				}
			}
		}
	}

	final := steps[len(steps)-1].After
	clk := uint64(len(steps))
	for i := len(steps); i < w.N; i++ {
		w.setState(i, &final)
		w.set(ColHalted, i, 1)
		w.set(ColClk, i, clk)
		w.setInput(i, inIdx, inputLen)
		w.setInt(ColOutIdx, i, outIdx)
		w.set(ColDR, i, 1)
		w.set(ColSA, i, 1)
		w.set(ColSB, i, 1)
		w.setWord(ColA, ColABit, i, final.R[0])
		w.setWord(ColB, ColBBit, i, final.R[0])
		if i == w.N-1 {
			w.setRes(i, uint16(pub.StepBound-clk))
		} else {
			w.setRes(i, 0)
		}
	}
}

type memEntry struct {
	addr  uint16
	time  uint64
	val   uint16
	write bool
}

func (w *Witness) fillMemory(steps []fast.ExecutionStep, image []fast.ImageWord) error {
	entries := make([]memEntry, 0, len(image)+3*len(steps))
	for _, iw := range image {
		entries = append(entries, memEntry{addr: iw.Addr, val: iw.Value, write: true})
	}
	for i := range steps {
		for _, acc := range steps[i].Accesses {
			if acc.Device != fast.DeviceNone {
				continue
			}
			entries = append(entries, memEntry{
				addr:  acc.Addr,
				time:  3*uint64(i) + uint64(acc.Slot),
				val:   acc.Value,
				write: acc.Write,
			})
		}
	}
	if len(entries) > w.N-1 {
		return fmt.Errorf("%w: %d memory accesses do not fit %d rows", ErrStepBound, len(entries), w.N)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].addr != entries[j].addr {
			return entries[i].addr < entries[j].addr
		}
		return entries[i].time < entries[j].time
	})

	start := w.N - len(entries)
	for k, e := range entries {
		row := start + k
		w.set(ColMActive, row, 1)
		w.set(ColMAddr, row, uint64(e.addr))
		w.set(ColMTime, row, e.time)
		w.set(ColMVal, row, uint64(e.val))
		if e.write {
			w.set(ColMWrite, row, 1)
		}
		var delta int64
		switch {
		case k == 0:
			delta = int64(e.addr)
		case entries[k-1].addr == e.addr:
			w.set(ColMSame, row, 1)
			delta = int64(e.time) - int64(entries[k-1].time) - 1
		default:
			delta = int64(e.addr) - int64(entries[k-1].addr) - 1
		}
		w.setDelta(row, delta)
	}
	w.setDelta(0, int64(fast.MaxMemoryAddr)-int64(entries[len(entries)-1].addr))
	return nil
}

// setDelta writes a range-checked gap. Out-of-range gaps keep their true value and
// truncated bits, which the decomposition constraint rejects.
func (w *Witness) setDelta(row int, delta int64) {
	w.setInt(ColMDelta, row, delta)
	for k := 0; k < MemDeltaBits; k++ {
		w.set(ColMDeltaBit+Column(k), row, uint64(delta)>>k&1)
	}
}
