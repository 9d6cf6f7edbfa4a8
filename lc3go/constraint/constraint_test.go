package constraint

import (
	"context"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/stretchr/testify/require"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const testOrigin = 0x3000

func randElement() fr.Element {
	var e fr.Element
	e.MustSetRandom()
	return e
}

func runTrace(t *testing.T, p *fast.Program, input []byte) (*fast.Trace, *PublicInputs) {
	t.Helper()
	out, tr, err := fast.RunProgram(context.Background(), p, input, fast.Config{MaxSteps: 10_000})
	require.NoError(t, err)
	require.Equal(t, fast.StatusHalted, out.Status, "fault: %v", out.Fault)
	pub, err := NewPublicInputs(p, out, input, out.Steps+8)
	require.NoError(t, err)
	return tr, pub
}

func checkWitness(t *testing.T, sys *System, w *Witness) error {
	t.Helper()
	require.NoError(t, sys.ComputeProducts(w, randElement(), randElement()))
	return sys.Check(w)
}

func encodeAndCheck(t *testing.T, steps []fast.ExecutionStep, p *fast.Program, pub *PublicInputs) error {
	t.Helper()
	tr, err := fast.TraceFromSteps(steps)
	require.NoError(t, err)
	sys, w, err := Encode(tr, p.Image(), pub)
	if err != nil {
		return err
	}
	return checkWitness(t, sys, w)
}

func cloneSteps(tr *fast.Trace) []fast.ExecutionStep {
	steps := append([]fast.ExecutionStep(nil), tr.Steps()...)
	for i := range steps {
		steps[i].Accesses = append([]fast.Access(nil), steps[i].Accesses...)
	}
	return steps
}

// overrideReg rewrites register r from the result of step k onwards, keeping the chain intact.
func overrideReg(steps []fast.ExecutionStep, k int, r int, v uint16) {
	steps[k].After.R[r] = v
	steps[k].After.Cond = fast.CondOf(v)
	for i := k + 1; i < len(steps); i++ {
		steps[i].Before.R[r], steps[i].Before.Cond = v, fast.CondOf(v)
		steps[i].After.R[r], steps[i].After.Cond = v, fast.CondOf(v)
	}
}

func setDataValue(steps []fast.ExecutionStep, k int, v uint16) {
	for i := range steps[k].Accesses {
		if steps[k].Accesses[i].Slot == fast.SlotData {
			steps[k].Accesses[i].Value = v
		}
	}
}

func completenessPrograms() map[string]struct {
	prog  *fast.Program
	input []byte
} {
	return map[string]struct {
		prog  *fast.Program
		input []byte
	}{
		"alu and memory": {
			prog: fast.NewBuilder(testOrigin).
				LD(1, "A").
				LD(2, "B").
				AND(3, 1, 2).
				ANDi(4, 1, 15).
				ADD(5, 1, 2).
				ADDi(6, 5, -16).
				NOT(7, 3).
				LEA(0, "BUF").
				STR(1, 0, 1).
				LDR(2, 0, 1).
				STI(5, "PTR").
				LDI(3, "PTR").
				ST(6, "BUF").
				JSR("SUB").
				LEA(0, "SUB2").
				JSRR(0).
				BR("nzp", "END").
				ADDi(1, 1, 1).
				Label("END").
				HALT().
				Label("SUB").ADDi(1, 1, -1).RET().
				Label("SUB2").JMP(7).
				Label("A").Fill(0x1234).
				Label("B").Fill(0xF0F0).
				Label("PTR").FillLabel("BUF").
				Label("BUF").Block(3).
				MustProgram(),
		},
		"loop": {
			prog: fast.NewBuilder(testOrigin).
				LD(1, "N").
				LEA(2, "BUF").
				Label("LOOP").
				STR(1, 2, 0).
				ADDi(2, 2, 1).
				ADDi(1, 1, -1).
				BR("p", "LOOP").
				BR("n", "LOOP").
				LDI(3, "PTR").
				HALT().
				Label("N").Fill(4).
				Label("PTR").FillLabel("BUF").
				Label("BUF").Block(4).
				MustProgram(),
		},
		"console": {
			prog: fast.NewBuilder(testOrigin).
				Label("LOOP").
				TRAP(fast.TrapIN).
				ADDi(0, 0, 0).
				BR("np", "LOOP").
				LEA(0, "MSG").
				TRAP(fast.TrapPUTS).
				LEA(0, "PACKED").
				TRAP(fast.TrapPUTSP).
				TRAP(fast.TrapGETC).
				LD(1, "MCR").
				LDR(2, 1, 0).
				LD(1, "DDR").
				LDR(3, 1, 0).
				HALT().
				Label("MSG").Stringz("ok").
				Label("PACKED").PackedString("abc").
				Label("MCR").Fill(fast.AddrMCR).
				Label("DDR").Fill(fast.AddrDDR).
				MustProgram(),
			input: []byte("hi"),
		},
		"branch after link": {
			prog: fast.NewBuilder(testOrigin).
				ADDi(0, 0, -1).
				JSR("SUB").
				HALT().
				Label("SUB").
				BR("n", "NEG").
				ADDi(1, 1, 1).
				Label("NEG").
				RET().
				MustProgram(),
		},
		"fresh indirect load": {
			prog: fast.NewBuilder(testOrigin).
				LDI(0, "PTR").
				HALT().
				Label("PTR").Fill(0x4000).
				MustProgram(),
		},
	}
}

func TestEncodeCompleteness(t *testing.T) {
	for name, c := range completenessPrograms() {
		t.Run(name, func(t *testing.T) {
			tr, pub := runTrace(t, c.prog, c.input)
			sys, w, err := Encode(tr, c.prog.Image(), pub)
			require.NoError(t, err)
			require.Equal(t, tr.Len(), w.Steps)
			require.NoError(t, checkWitness(t, sys, w))
		})
	}
}

func TestConsoleClaim(t *testing.T) {
	c := completenessPrograms()["console"]
	_, pub := runTrace(t, c.prog, c.input)
	prompt := fast.InPrompt
	require.Equal(t, prompt+"h\n"+prompt+"i\n"+prompt+"okabc", string(pub.Output))
	require.Equal(t, uint64(2), pub.InputConsumed)
	require.Equal(t, fast.StatusReady, pub.Registers[2], "MCR reads ready")
	require.Equal(t, uint16(0), pub.Registers[3], "DDR reads zero")
}

func TestLinkKeepsFlags(t *testing.T) {
	c := completenessPrograms()["branch after link"]
	_, pub := runTrace(t, c.prog, c.input)
	require.Equal(t, uint16(0), pub.Registers[1], "JSR keeps N")
}

func TestFreshReadIsZero(t *testing.T) {
	c := completenessPrograms()["fresh indirect load"]
	tr, pub := runTrace(t, c.prog, nil)
	require.Equal(t, uint16(0), pub.Registers[0])

	steps := cloneSteps(tr)
	setDataValue(steps, 0, 7)
	overrideReg(steps, 0, 0, 7)
	pub.Registers[0] = 7
	err := encodeAndCheck(t, steps, c.prog, pub)
	f, ok := AsFailure(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, "mem.read", f.Handle)
	require.Equal(t, int64(0), f.Step)
}

func TestTamperedTrace(t *testing.T) {
	loadProg := fast.NewBuilder(testOrigin).
		LD(1, "X").
		HALT().
		Label("X").Fill(5).
		MustProgram()
	addProg := fast.NewBuilder(testOrigin).
		ADDi(0, 0, 1).
		HALT().
		MustProgram()

	t.Run("load value", func(t *testing.T) {
		tr, pub := runTrace(t, loadProg, nil)
		steps := cloneSteps(tr)
		setDataValue(steps, 0, 6)
		overrideReg(steps, 0, 1, 6)
		pub.Registers[1] = 6
		f, ok := AsFailure(encodeAndCheck(t, steps, loadProg, pub))
		require.True(t, ok)
		require.Equal(t, "mem.read", f.Handle)
	})
	t.Run("register write", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		steps := cloneSteps(tr)
		overrideReg(steps, 0, 0, 2)
		pub.Registers[0] = 2
		f, ok := AsFailure(encodeAndCheck(t, steps, addProg, pub))
		require.True(t, ok)
		require.Equal(t, "cpu.add", f.Handle)
		require.Equal(t, 0, f.Row)
		require.Equal(t, int64(0), f.Step)
	})
	t.Run("condition code", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		steps := cloneSteps(tr)
		steps[0].After.Cond = fast.CondN
		steps[1].Before.Cond, steps[1].After.Cond = fast.CondN, fast.CondN
		f, ok := AsFailure(encodeAndCheck(t, steps, addProg, pub))
		require.True(t, ok)
		require.Equal(t, "cpu.next.flag_n", f.Handle)
	})
	t.Run("link sets flags", func(t *testing.T) {
		linkProg := fast.NewBuilder(testOrigin).
			ADDi(0, 0, -1).
			JSR("SUB").
			HALT().
			Label("SUB").
			RET().
			MustProgram()
		tr, pub := runTrace(t, linkProg, nil)
		steps := cloneSteps(tr)
		require.Equal(t, fast.CondN, steps[1].After.Cond)
		steps[1].After.Cond = fast.CondP
		for i := 2; i < len(steps); i++ {
			steps[i].Before.Cond, steps[i].After.Cond = fast.CondP, fast.CondP
		}
		f, ok := AsFailure(encodeAndCheck(t, steps, linkProg, pub))
		require.True(t, ok)
		require.Equal(t, "cpu.next.flag_n", f.Handle)
		require.Equal(t, 1, f.Row)
	})
	t.Run("fetched word", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		steps := cloneSteps(tr)
		// ADD R0, R0, #2 in place of #1, with a matching result.
		steps[0].Instr = fast.Decode(0x1022)
		steps[0].Accesses[0].Value = 0x1022
		overrideReg(steps, 0, 0, 2)
		pub.Registers[0] = 2
		f, ok := AsFailure(encodeAndCheck(t, steps, addProg, pub))
		require.True(t, ok)
		require.Equal(t, "mem.read", f.Handle)
	})
	t.Run("broken chain", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		steps := cloneSteps(tr)
		steps[1].Before.R[0] = 9
		err := encodeAndCheck(t, steps, addProg, pub)
		require.ErrorIs(t, err, ErrTraceInconsistency)
		var tie *TraceInconsistencyError
		require.ErrorAs(t, err, &tie)
		require.Equal(t, uint64(1), tie.Step)
	})
	t.Run("missing halt", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		steps := cloneSteps(tr)[:1]
		require.ErrorIs(t, encodeAndCheck(t, steps, addProg, pub), ErrTraceNotHalted)
	})
	t.Run("step bound", func(t *testing.T) {
		tr, pub := runTrace(t, addProg, nil)
		pub.StepBound = 1
		_, _, err := Encode(tr, addProg.Image(), pub)
		require.ErrorIs(t, err, ErrStepBound)
	})
}

func TestPublicMismatch(t *testing.T) {
	c := completenessPrograms()["console"]
	tr, pub := runTrace(t, c.prog, c.input)
	image := c.prog.Image()
	if DomainSize(pub.StepBound+1, len(image)) != DomainSize(pub.StepBound, len(image)) {
		pub.StepBound--
	}
	_, w, err := Encode(tr, image, pub)
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(p *PublicInputs)
		handle string
	}{
		{"output byte", func(p *PublicInputs) { p.Output[0]++ }, "prod.last"},
		{"output length", func(p *PublicInputs) { p.Output = p.Output[:len(p.Output)-1] }, "cpu.last.out_idx"},
		{"register", func(p *PublicInputs) { p.Registers[4]++ }, "cpu.last.r4"},
		{"origin", func(p *PublicInputs) { p.Origin++ }, "cpu.first.pc"},
		{"input byte", func(p *PublicInputs) { p.Input[1]++ }, "prod.last"},
		{"step bound", func(p *PublicInputs) { p.StepBound++ }, "cpu.last.bound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mut := *pub
			mut.Input = append([]byte(nil), pub.Input...)
			mut.Output = append([]byte(nil), pub.Output...)
			tc.mutate(&mut)
			sys, err := NewSystem(&mut, image)
			require.NoError(t, err)
			require.Equal(t, w.N, sys.N)
			f, ok := AsFailure(checkWitness(t, sys, w))
			require.True(t, ok)
			require.Equal(t, tc.handle, f.Handle)
		})
	}
}

func TestDomainSize(t *testing.T) {
	require.Equal(t, 32, DomainSize(1, 0))
	require.Equal(t, 64, DomainSize(10, 20))
	require.Equal(t, 64, DomainSize(20, 2))
	require.Equal(t, 128, DomainSize(21, 2))
	require.Equal(t, 1<<18, DomainSize(MaxStepBound, 200))
}

func TestColumnLayout(t *testing.T) {
	require.Equal(t, Column(NumTraceColumns), ColPP)
	require.Equal(t, ColPP+1, ColZ)
	require.Equal(t, NumColumns, int(ColZ)+1)
	require.Equal(t, Column(NumTraceColumns-MemDeltaBits), ColMDeltaBit)
}

func TestCheckReportsLowestRow(t *testing.T) {
	b := fast.NewBuilder(testOrigin)
	for i := 0; i < 40; i++ {
		b.ADDi(0, 0, 1)
	}
	prog := b.HALT().MustProgram()
	tr, pub := runTrace(t, prog, nil)
	steps := cloneSteps(tr)
	// Every ADD from step 5 on now disagrees with its result.
	overrideReg(steps, 5, 0, 100)
	pub.Registers[0] = 100
	for i := 0; i < 3; i++ {
		f, ok := AsFailure(encodeAndCheck(t, steps, prog, pub))
		require.True(t, ok)
		require.Equal(t, "cpu.add", f.Handle)
		require.Equal(t, 5, f.Row)
	}
}

func TestSystemShape(t *testing.T) {
	c := completenessPrograms()["loop"]
	_, pub := runTrace(t, c.prog, nil)
	sys, err := NewSystem(pub, c.prog.Image())
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, con := range sys.Constraints {
		require.LessOrEqual(t, con.Expr.Degree(), MaxDegree, con.Handle)
		require.False(t, seen[con.Handle], "duplicate handle %s", con.Handle)
		seen[con.Handle] = true
	}
	require.Contains(t, sys.Shifted(), ColZ)
	require.Contains(t, sys.Shifted(), ColPC)
	require.Contains(t, sys.Shifted(), ColMDelta)
	require.NotContains(t, sys.Shifted(), ColInstr)
}

func TestFaultedRunHasNoClaim(t *testing.T) {
	p := &fast.Program{Origin: testOrigin, Words: []uint16{0x1021, 0xD000}}
	out, _, err := fast.RunProgram(context.Background(), p, nil, fast.Config{})
	require.NoError(t, err)
	require.Equal(t, fast.StatusFaulted, out.Status)
	_, err = NewPublicInputs(p, out, nil, 16)
	require.ErrorIs(t, err, ErrTraceNotHalted)
}

func TestCheckNeedsProducts(t *testing.T) {
	c := completenessPrograms()["loop"]
	tr, pub := runTrace(t, c.prog, nil)
	sys, w, err := Encode(tr, c.prog.Image(), pub)
	require.NoError(t, err)
	require.ErrorIs(t, sys.Check(w), ErrMissingProducts)
}
