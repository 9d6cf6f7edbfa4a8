package constraint

import (
	"fmt"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const wordMod = 1 << WordBits

func ib(k int) Expr { return Col(ColInstrBit + Column(k)) }

func op(o fast.Opcode) Expr { return Col(ColOp + Column(o)) }

func ops(os ...fast.Opcode) Expr {
	terms := make([]Expr, len(os))
	for i, o := range os {
		terms[i] = op(o)
	}
	return Add(terms...)
}

func reg(j int) Column { return ColR0 + Column(j) }

// regRead selects a register through a one-hot group.
func regRead(onehot Column) Expr {
	terms := make([]Expr, 8)
	for j := range terms {
		terms[j] = Mul(Col(onehot+Column(j)), Col(reg(j)))
	}
	return Add(terms...)
}

// sext is the n-bit field at the bottom of the instruction, sign-extended to a word.
func sext(n int) Expr {
	return Add(Weighted(ColInstrBit, n-1), Scale(wordMod-(1<<(n-1)), ib(n-1)))
}

// fieldOf ties a one-hot group to a 3-bit instruction field starting at bit lo.
func fieldOf(onehot Column, lo int) Expr {
	idx := make([]Expr, 8)
	for j := range idx {
		idx[j] = Scale(int64(j), Col(onehot+Column(j)))
	}
	return Sub(Add(idx...), Add(ib(lo), Scale(2, ib(lo+1)), Scale(4, ib(lo+2))))
}

var (
	running = Not(Col(ColHalted))
	pc1     = Add(Col(ColPC), Const(1))
)

func loadOps() Expr { return ops(fast.OpLD, fast.OpLDI, fast.OpLDR) }

func storeOps() Expr { return ops(fast.OpST, fast.OpSTI, fast.OpSTR) }

// link covers JSR, JSRR and every TRAP except HALT.
func link() Expr { return Sub(Add(op(fast.OpJSR), op(fast.OpTRAP)), Col(ColIsHalt)) }

// writesDR covers the instructions that write the register named by bits 11:9.
func writesDR() Expr {
	return ops(fast.OpADD, fast.OpAND, fast.OpNOT, fast.OpLD, fast.OpLDI, fast.OpLDR, fast.OpLEA)
}

func devices() Expr { return Sum(ColDevKBSR, 5) }

func cpuConstraints(pub *PublicInputs) []Constraint {
	var cs constraints

	for _, c := range []Column{ColFlagN, ColFlagZ, ColFlagP, ColHalted, ColIsHalt, ColResZero, ColCarry, ColEACarry,
		ColDevKBSR, ColDevKBDR, ColDevDSR, ColDevDDR, ColDevMCR, ColInReady, ColIOE} {
		cs.boolean("cpu.bool."+c.String(), c)
	}
	cs.booleans("cpu.bool.ib", ColInstrBit, WordBits)
	cs.booleans("cpu.bool.dr", ColDR, 8)
	cs.booleans("cpu.bool.sa", ColSA, 8)
	cs.booleans("cpu.bool.sb", ColSB, 8)
	cs.booleans("cpu.bool.a", ColABit, WordBits)
	cs.booleans("cpu.bool.b", ColBBit, WordBits)
	cs.booleans("cpu.bool.res", ColResBit, WordBits)

	decodeConstraints(&cs)
	executeConstraints(&cs)
	deviceConstraints(&cs)
	transitionConstraints(&cs)
	boundaryConstraints(&cs, pub)
	return cs
}

func decodeConstraints(cs *constraints) {
	cs.add("cpu.instr", Sub(Col(ColInstr), Weighted(ColInstrBit, WordBits)))
	for k := 0; k < 16; k++ {
		f := []Expr{running}
		for j := 0; j < 4; j++ {
			if k>>j&1 == 1 {
				f = append(f, ib(12+j))
			} else {
				f = append(f, Not(ib(12+j)))
			}
		}
		cs.add(fmt.Sprintf("cpu.op%d", k), Sub(Col(ColOp+Column(k)), Mul(f...)))
	}
	cs.add("cpu.op.rti", op(fast.OpRTI))
	cs.add("cpu.op.reserved", op(fast.OpRES))
	cs.add("cpu.is_halt", Sub(Col(ColIsHalt), Mul(op(fast.OpTRAP), ib(2), ib(0))))

	alu := ops(fast.OpADD, fast.OpAND)
	cs.add("cpu.decode.alu3", Mul(alu, Not(ib(5)), ib(3)))
	cs.add("cpu.decode.alu4", Mul(alu, Not(ib(5)), ib(4)))
	for k := 0; k < 6; k++ {
		cs.add(fmt.Sprintf("cpu.decode.not%d", k), Mul(op(fast.OpNOT), Not(ib(k))))
	}
	for _, k := range []int{0, 1, 2, 3, 4, 5, 9, 10, 11} {
		cs.add(fmt.Sprintf("cpu.decode.jmp%d", k), Mul(op(fast.OpJMP), ib(k)))
	}
	for _, k := range []int{0, 1, 2, 3, 4, 5, 9, 10} {
		cs.add(fmt.Sprintf("cpu.decode.jsrr%d", k), Mul(op(fast.OpJSR), Not(ib(11)), ib(k)))
	}
	// Trap vectors are x20 to x25.
	for _, k := range []int{3, 4, 6, 7, 8, 9, 10, 11} {
		cs.add(fmt.Sprintf("cpu.decode.trap%d", k), Mul(op(fast.OpTRAP), ib(k)))
	}
	cs.add("cpu.decode.trap5", Mul(op(fast.OpTRAP), Not(ib(5))))
	cs.add("cpu.decode.trap_range", Mul(op(fast.OpTRAP), ib(2), ib(1)))

	for _, g := range []struct {
		name string
		col  Column
		lo   int
	}{{"dr", ColDR, 9}, {"sa", ColSA, 6}, {"sb", ColSB, 0}} {
		cs.add("cpu."+g.name+".onehot", Sub(Sum(g.col, 8), Const(1)))
		cs.add("cpu."+g.name+".field", fieldOf(g.col, g.lo))
	}
}

func executeConstraints(cs *constraints) {
	a, b, res := Col(ColA), Col(ColB), Col(ColRes)

	cs.add("cpu.a", Sub(a, regRead(ColSA)))
	cs.add("cpu.a.bits", Sub(a, Weighted(ColABit, WordBits)))
	imm5 := sext(5)
	cs.add("cpu.b", Sub(b, Add(Mul(ib(5), imm5), Mul(Not(ib(5)), regRead(ColSB)))))
	cs.add("cpu.b.bits", Sub(b, Weighted(ColBBit, WordBits)))
	cs.add("cpu.res.bits", Sub(res, Weighted(ColResBit, WordBits)))
	cs.add("cpu.res.zero", Mul(res, Col(ColResZero)))
	cs.add("cpu.res.inv", Sub(Col(ColResZero), Not(Mul(res, Col(ColResInv)))))

	cs.add("cpu.add", Mul(op(fast.OpADD), Sub(Add(a, b), Add(res, Scale(wordMod, Col(ColCarry))))))
	and := make([]Expr, WordBits)
	for k := range and {
		and[k] = Mul(Const(int64(1)<<k), Col(ColABit+Column(k)), Col(ColBBit+Column(k)))
	}
	cs.add("cpu.and", Mul(op(fast.OpAND), Sub(res, Add(and...))))
	cs.add("cpu.not", Mul(op(fast.OpNOT), Add(res, a, Const(-(wordMod-1)))))
	cs.add("cpu.load", Mul(loadOps(), Sub(res, Col(ColDVal))))
	cs.add("cpu.store.value", Mul(storeOps(), Sub(Col(ColDVal), regRead(ColDR))))
	cs.add("cpu.store.res", Mul(storeOps(), Sub(res, Col(ColDVal))))
	cs.add("cpu.lea", Mul(op(fast.OpLEA), Sub(res, Col(ColEA))))
	cs.add("cpu.link", Mul(link(), Sub(res, pc1)))

	ea := Add(Col(ColEA), Scale(wordMod, Col(ColEACarry)))
	pcrel := ops(fast.OpBR, fast.OpLD, fast.OpLDI, fast.OpST, fast.OpSTI, fast.OpLEA)
	cs.add("cpu.ea.pcrel", Mul(pcrel, Sub(ea, Add(pc1, sext(9)))))
	cs.add("cpu.ea.jsr", Mul(op(fast.OpJSR), ib(11), Sub(ea, Add(pc1, sext(11)))))
	cs.add("cpu.ea.base", Mul(ops(fast.OpLDR, fast.OpSTR), Sub(ea, Add(a, sext(6)))))
	cs.add("cpu.ea.jmp", Mul(op(fast.OpJMP), Sub(Col(ColEA), a)))
	cs.add("cpu.ea.jsrr", Mul(op(fast.OpJSR), Not(ib(11)), Sub(Col(ColEA), a)))
	cs.add("cpu.ea.trap", Mul(op(fast.OpTRAP), Sub(Col(ColEA), Weighted(ColInstrBit, 8))))

	cs.add("cpu.addr.direct", Mul(ops(fast.OpLD, fast.OpLDR, fast.OpST, fast.OpSTR), Sub(Col(ColAddrD), Col(ColEA))))
	cs.add("cpu.addr.indirect", Mul(ops(fast.OpLDI, fast.OpSTI), Sub(Col(ColAddrD), Col(ColPtr))))
}

func deviceConstraints(cs *constraints) {
	dev := devices()
	ready := Const(int64(fast.StatusReady))
	dval := Col(ColDVal)

	cs.add("cpu.dev.single", Mul(dev, Not(dev)))
	cs.add("cpu.dev.op", Mul(dev, Not(Add(loadOps(), storeOps()))))
	for _, d := range []struct {
		col Column
		dev fast.Device
	}{
		{ColDevKBSR, fast.DeviceKBSR},
		{ColDevKBDR, fast.DeviceKBDR},
		{ColDevDSR, fast.DeviceDSR},
		{ColDevDDR, fast.DeviceDDR},
		{ColDevMCR, fast.DeviceMCR},
	} {
		cs.add("cpu.dev.addr."+d.dev.String(), Mul(Col(d.col), Sub(Col(ColAddrD), Const(int64(d.dev.Address())))))
	}
	readOnly := Add(Col(ColDevKBSR), Col(ColDevKBDR), Col(ColDevDSR), Col(ColDevMCR))
	cs.add("cpu.dev.readonly", Mul(readOnly, storeOps()))

	cs.add("cpu.dev.kbsr", Mul(Col(ColDevKBSR), Sub(dval, Mul(ready, Col(ColInReady)))))
	cs.add("cpu.dev.kbdr", Mul(Col(ColDevKBDR), Not(Col(ColInReady)), dval))
	cs.add("cpu.dev.kbdr.byte", Mul(Col(ColDevKBDR), Sum(ColResBit+8, 8)))
	cs.add("cpu.dev.dsr", Mul(Col(ColDevDSR), Sub(dval, ready)))
	cs.add("cpu.dev.mcr", Mul(Col(ColDevMCR), Sub(dval, ready)))
	cs.add("cpu.dev.ddr", Mul(Col(ColDevDDR), loadOps(), dval))

	cs.add("cpu.in.ready", Mul(Col(ColInLeft), Not(Col(ColInReady))))
	cs.add("cpu.in.inv", Sub(Col(ColInReady), Mul(Col(ColInLeft), Col(ColInInv))))
	cs.add("cpu.io.event", Sub(Col(ColIOE), Add(
		Mul(Col(ColDevKBDR), Col(ColInReady)),
		Mul(Col(ColDevDDR), storeOps()))))
	cs.add("cpu.io.idx", Sub(Col(ColIOIdx), Add(
		Mul(Col(ColDevKBDR), Col(ColInIdx)),
		Mul(Col(ColDevDDR), Col(ColOutIdx)))))
}

func transitionConstraints(cs *constraints) {
	notLast := Sel(NotLast)
	next := func(handle string, c Column, delta Expr) {
		cs.add(handle, Mul(notLast, Sub(Next(c), Add(Col(c), delta))))
	}
	ea := Col(ColEA)

	taken := Add(
		Mul(ib(11), Col(ColFlagN)),
		Mul(ib(10), Col(ColFlagZ)),
		Mul(ib(9), Col(ColFlagP)))
	jumpBy := Sub(ea, pc1)
	next("cpu.next.pc", ColPC, Add(
		Not(Col(ColHalted)),
		Mul(op(fast.OpBR), taken, jumpBy),
		Mul(ops(fast.OpJMP, fast.OpJSR), jumpBy),
		Mul(Sub(op(fast.OpTRAP), Col(ColIsHalt)), Sub(Col(ColPtr), pc1))))

	res := Col(ColRes)
	for j := 0; j < 8; j++ {
		w := Mul(writesDR(), Col(ColDR+Column(j)))
		if j == 7 {
			w = Add(w, link())
		}
		next(fmt.Sprintf("cpu.next.r%d", j), reg(j), Mul(w, Sub(res, Col(reg(j)))))
	}

	writes := writesDR()
	neg := Col(ColResBit + WordBits - 1)
	next("cpu.next.flag_n", ColFlagN, Mul(writes, Sub(neg, Col(ColFlagN))))
	next("cpu.next.flag_z", ColFlagZ, Mul(writes, Sub(Col(ColResZero), Col(ColFlagZ))))
	next("cpu.next.flag_p", ColFlagP, Mul(writes, Sub(Sub(Not(neg), Col(ColResZero)), Col(ColFlagP))))

	next("cpu.next.halted", ColHalted, Col(ColIsHalt))
	next("cpu.next.clk", ColClk, running)
	input := Mul(Col(ColIOE), Col(ColDevKBDR))
	next("cpu.next.in_idx", ColInIdx, input)
	next("cpu.next.in_left", ColInLeft, Neg(input))
	next("cpu.next.out_idx", ColOutIdx, Mul(Col(ColIOE), Col(ColDevDDR)))
}

func boundaryConstraints(cs *constraints, pub *PublicInputs) {
	first := func(handle string, c Column, v int64) {
		cs.add(handle, Mul(Sel(FirstRow), Sub(Col(c), Const(v))))
	}
	last := func(handle string, c Column, v int64) {
		cs.add(handle, Mul(Sel(LastRow), Sub(Col(c), Const(v))))
	}

	first("cpu.first.pc", ColPC, int64(pub.Origin))
	for j := 0; j < 8; j++ {
		first(fmt.Sprintf("cpu.first.r%d", j), reg(j), 0)
	}
	first("cpu.first.flag_n", ColFlagN, 0)
	first("cpu.first.flag_z", ColFlagZ, 1)
	first("cpu.first.flag_p", ColFlagP, 0)
	first("cpu.first.halted", ColHalted, 0)
	first("cpu.first.clk", ColClk, 0)
	first("cpu.first.in_idx", ColInIdx, 0)
	first("cpu.first.in_left", ColInLeft, int64(len(pub.Input)))
	first("cpu.first.out_idx", ColOutIdx, 0)

	last("cpu.last.halted", ColHalted, 1)
	for j := 0; j < 8; j++ {
		last(fmt.Sprintf("cpu.last.r%d", j), reg(j), int64(pub.Registers[j]))
	}
	last("cpu.last.in_idx", ColInIdx, int64(pub.InputConsumed))
	last("cpu.last.out_idx", ColOutIdx, int64(len(pub.Output)))
	// The residual StepBound - steps must fit a word, which bounds the run length.
	cs.add("cpu.last.bound", Mul(Sel(LastRow), Sub(Col(ColRes), Sub(Const(int64(pub.StepBound)), Col(ColClk)))))
}
