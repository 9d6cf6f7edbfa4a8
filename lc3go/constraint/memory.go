package constraint

import (
	"github.com/lc3zk/lc3zk/lc3go/fast"
)

// Memory accesses of step c happen at times 3c+1 (fetch), 3c+2 (pointer or
// trap vector) and 3c+3 (data). The initial image is written at time 0.
const (
	timeFetch = 1 + iota
	timeAux
	timeData
)

func memoryConstraints() []Constraint {
	var cs constraints
	notLast := Sel(NotLast)
	active, nextActive := Col(ColMActive), Next(ColMActive)
	nextSame := Next(ColMSame)

	cs.boolean("mem.bool.active", ColMActive)
	cs.boolean("mem.bool.write", ColMWrite)
	cs.boolean("mem.bool.same", ColMSame)
	cs.booleans("mem.bool.delta", ColMDeltaBit, MemDeltaBits)
	cs.add("mem.delta.bits", Sub(Col(ColMDelta), Weighted(ColMDeltaBit, MemDeltaBits)))

	cs.add("mem.first.inactive", Mul(Sel(FirstRow), active))
	cs.add("mem.last.active", Mul(Sel(LastRow), Not(active)))
	cs.add("mem.suffix", Mul(notLast, active, Not(nextActive)))

	// Within an address, times strictly increase.
	cs.add("mem.same.addr", Mul(notLast, nextActive, nextSame, Sub(Next(ColMAddr), Col(ColMAddr))))
	cs.add("mem.same.time", Mul(notLast, nextActive, nextSame,
		Sub(Next(ColMDelta), Sub(Next(ColMTime), Add(Col(ColMTime), Const(1))))))
	// Across addresses, addresses strictly increase.
	cs.add("mem.order.addr", Mul(notLast, nextActive, active, Not(nextSame),
		Sub(Next(ColMDelta), Sub(Next(ColMAddr), Add(Col(ColMAddr), Const(1))))))
	cs.add("mem.first.addr", Mul(notLast, nextActive, Not(active), Sub(Next(ColMDelta), Next(ColMAddr))))
	cs.add("mem.first.same", Mul(notLast, nextActive, Not(active), nextSame))
	// The highest address is plain memory. Row 0 is inactive, so its delta is free to carry this.
	cs.add("mem.last.addr", Mul(Sel(LastRow),
		Sub(Next(ColMDelta), Sub(Const(int64(fast.MaxMemoryAddr)), Col(ColMAddr)))))

	// A read returns the previous value at its address, or zero if there is none.
	cs.add("mem.read", Mul(notLast, nextActive, Not(Next(ColMWrite)),
		Sub(Next(ColMVal), Mul(nextSame, Col(ColMVal)))))
	return cs
}

// fold is t0 + alpha*t1 + alpha^2*t2 + ...
func fold(terms ...Expr) Expr {
	alpha := Chal(Alpha)
	out := []Expr{terms[0]}
	pow := []Expr{}
	for _, t := range terms[1:] {
		pow = append(pow, alpha)
		out = append(out, Mul(append(append([]Expr{}, pow...), t)...))
	}
	return Add(out...)
}

// factor is sel*(gamma - tuple) + 1 - sel: the tuple's grand-product term when sel is
// set, and one otherwise.
func factor(sel Expr, tuple Expr) Expr {
	return Add(Mul(sel, Sub(Chal(Gamma), tuple)), Not(sel))
}

func clkTime(slot int64) Expr {
	return Add(Scale(3, Col(ColClk)), Const(slot))
}

func productFactors() factors {
	auxOps := Sub(Add(ops(fast.OpLDI, fast.OpSTI), op(fast.OpTRAP)), Col(ColIsHalt))
	memData := Sub(Add(loadOps(), storeOps()), devices())
	lowByte := Weighted(ColResBit, 8)
	ioKind := Add(Const(1), Col(ColDevDDR))
	alpha := Chal(Alpha)

	return factors{
		fetch: factor(running, fold(Col(ColPC), clkTime(timeFetch), Col(ColInstr))),
		aux:   factor(auxOps, fold(Col(ColEA), clkTime(timeAux), Col(ColPtr))),
		data:  factor(memData, fold(Col(ColAddrD), clkTime(timeData), Col(ColDVal), storeOps())),
		io: factor(Col(ColIOE), Add(
			Mul(alpha, alpha, alpha, alpha, ioKind),
			fold(Const(0), Col(ColIOIdx), lowByte))),
		mem: factor(Col(ColMActive), fold(Col(ColMAddr), Col(ColMTime), Col(ColMVal), Col(ColMWrite))),
	}
}

// productConstraints tie the cpu accesses and public I/O to the memory table:
// Z accumulates the cpu side over the memory side row by row, and Rho closes the
// product with the initial image and the public I/O events.
func productConstraints(f factors) []Constraint {
	var cs constraints
	z := Col(ColZ)
	cs.add("prod.pp", Sub(Col(ColPP), Mul(f.fetch, f.aux)))
	cs.add("prod.first", Mul(Sel(FirstRow), Sub(z, Const(1))))
	cs.add("prod.step", Mul(Sel(NotLast), Sub(
		Mul(Next(ColZ), f.mem),
		Mul(z, Col(ColPP), f.data, f.io))))
	cs.add("prod.last", Mul(Sel(LastRow), Sub(
		Mul(z, Col(ColPP), f.data, f.io, Chal(Rho)),
		f.mem)))
	return cs
}
