package fast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testOrigin = 0x3000

func testState(t *testing.T, words ...uint16) *VMState {
	t.Helper()
	s, err := NewProgramState(&Program{Origin: testOrigin, Words: words})
	require.NoError(t, err)
	return s
}

func TestStepInstructions(t *testing.T) {
	cases := []struct {
		name  string
		words []uint16
		setup func(s *VMState)
		check func(t *testing.T, s *VMState, st ExecutionStep)
	}{
		{
			name:  "add register",
			words: []uint16{Encode(Instruction{Kind: KindADD, DR: 0, SR1: 1, SR2: 2})},
			setup: func(s *VMState) { s.Registers.R[1], s.Registers.R[2] = 5, 0xFFFF },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(4), s.Registers.R[0])
				require.Equal(t, CondP, s.Registers.Cond)
				require.Equal(t, uint16(testOrigin+1), s.Registers.PC)
			},
		},
		{
			name:  "add wraps to negative",
			words: []uint16{Encode(Instruction{Kind: KindADD, DR: 1, SR1: 1, Imm: true, Imm5: 1})},
			setup: func(s *VMState) { s.Registers.R[1] = 0x7FFF },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0x8000), s.Registers.R[1])
				require.Equal(t, CondN, s.Registers.Cond)
			},
		},
		{
			name:  "and immediate zero",
			words: []uint16{Encode(Instruction{Kind: KindAND, DR: 3, SR1: 3, Imm: true})},
			setup: func(s *VMState) { s.Registers.R[3], s.Registers.Cond = 0x1234, CondP },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0), s.Registers.R[3])
				require.Equal(t, CondZ, s.Registers.Cond)
			},
		},
		{
			name:  "not",
			words: []uint16{Encode(Instruction{Kind: KindNOT, DR: 0, SR1: 4})},
			setup: func(s *VMState) { s.Registers.R[4] = 0x00F0 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0xFF0F), s.Registers.R[0])
				require.Equal(t, CondN, s.Registers.Cond)
			},
		},
		{
			name:  "branch taken",
			words: []uint16{Encode(Instruction{Kind: KindBR, Z: true, Offset: 0x10})},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(testOrigin+0x11), s.Registers.PC)
			},
		},
		{
			name:  "branch not taken",
			words: []uint16{Encode(Instruction{Kind: KindBR, N: true, P: true, Offset: 0x10})},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(testOrigin+1), s.Registers.PC)
			},
		},
		{
			name:  "branch without flags never taken",
			words: []uint16{0x0005},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(testOrigin+1), s.Registers.PC)
			},
		},
		{
			name:  "jmp",
			words: []uint16{Encode(Instruction{Kind: KindJMP, SR1: 3})},
			setup: func(s *VMState) { s.Registers.R[3] = 0x4321 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0x4321), s.Registers.PC)
				require.Equal(t, CondZ, s.Registers.Cond, "jumps leave the condition code alone")
			},
		},
		{
			name:  "jsr links r7",
			words: []uint16{Encode(Instruction{Kind: KindJSR, Offset: 5})},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(testOrigin+1), s.Registers.R[7])
				require.Equal(t, uint16(testOrigin+6), s.Registers.PC)
				require.Equal(t, CondZ, s.Registers.Cond, "linking leaves the condition code alone")
			},
		},
		{
			name:  "jsrr reads base before linking",
			words: []uint16{Encode(Instruction{Kind: KindJSRR, SR1: 7})},
			setup: func(s *VMState) { s.Registers.R[7], s.Registers.Cond = 0x4000, CondN },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0x4000), s.Registers.PC)
				require.Equal(t, uint16(testOrigin+1), s.Registers.R[7])
				require.Equal(t, CondN, s.Registers.Cond)
			},
		},
		{
			name:  "ld",
			words: []uint16{Encode(Instruction{Kind: KindLD, DR: 2, Offset: 1}), 0, 0xFFFE},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0xFFFE), s.Registers.R[2])
				require.Equal(t, CondN, s.Registers.Cond)
				acc, ok := st.Access(SlotData)
				require.True(t, ok)
				require.Equal(t, uint16(testOrigin+2), acc.Addr)
			},
		},
		{
			name:  "ldi",
			words: []uint16{Encode(Instruction{Kind: KindLDI, DR: 0, Offset: 0}), 0x3005, 0, 0, 0, 77},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(77), s.Registers.R[0])
				require.Len(t, st.Accesses, 3)
				require.Equal(t, SlotAux, st.Accesses[1].Slot)
				require.Equal(t, uint16(0x3005), st.Accesses[1].Value)
			},
		},
		{
			name:  "ldr negative offset",
			words: []uint16{Encode(Instruction{Kind: KindLDR, DR: 1, SR1: 2, Offset: 0xFFFF}), 9},
			setup: func(s *VMState) { s.Registers.R[2] = testOrigin + 2 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(9), s.Registers.R[1])
			},
		},
		{
			name:  "lea sets flags",
			words: []uint16{Encode(Instruction{Kind: KindLEA, DR: 5, Offset: 0xFFFF})},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(testOrigin), s.Registers.R[5])
				require.Equal(t, CondP, s.Registers.Cond)
			},
		},
		{
			name:  "st",
			words: []uint16{Encode(Instruction{Kind: KindST, DR: 1, Offset: 3})},
			setup: func(s *VMState) { s.Registers.R[1] = 0xBEEF },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0xBEEF), s.Memory.GetWord(testOrigin+4))
				acc, _ := st.Access(SlotData)
				require.True(t, acc.Write)
				require.Equal(t, uint16(0), acc.Prev)
				require.Equal(t, CondZ, s.Registers.Cond, "stores leave the condition code alone")
			},
		},
		{
			name:  "sti",
			words: []uint16{Encode(Instruction{Kind: KindSTI, DR: 0, Offset: 0}), 0x4000},
			setup: func(s *VMState) { s.Registers.R[0] = 3 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(3), s.Memory.GetWord(0x4000))
			},
		},
		{
			name:  "str",
			words: []uint16{Encode(Instruction{Kind: KindSTR, DR: 0, SR1: 1, Offset: 2}), 0x1111},
			setup: func(s *VMState) { s.Registers.R[0], s.Registers.R[1] = 0x2222, testOrigin-1 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, uint16(0x2222), s.Memory.GetWord(testOrigin+1))
				acc, _ := st.Access(SlotData)
				require.Equal(t, uint16(0x1111), acc.Prev)
			},
		},
		{
			name:  "trap through the vector table",
			words: []uint16{Encode(Instruction{Kind: KindTRAP, TrapVect: TrapOUT})},
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, s.Memory.GetWord(uint16(TrapOUT)), s.Registers.PC)
				require.Equal(t, uint16(testOrigin+1), s.Registers.R[7])
				require.Equal(t, CondZ, s.Registers.Cond)
			},
		},
		{
			name:  "halt",
			words: []uint16{Encode(Instruction{Kind: KindTRAP, TrapVect: TrapHALT})},
			setup: func(s *VMState) { s.Registers.R[7] = 0x1234 },
			check: func(t *testing.T, s *VMState, st ExecutionStep) {
				require.Equal(t, StatusHalted, s.Status)
				require.True(t, st.Halted)
				require.Equal(t, uint16(testOrigin+1), s.Registers.PC)
				require.Equal(t, uint16(0x1234), s.Registers.R[7], "halt does not link")
				require.Len(t, st.Accesses, 1)
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := testState(t, c.words...)
			if c.setup != nil {
				c.setup(s)
			}
			before := s.Registers
			st, err := Step(s, NewBufferedPort(nil, nil))
			require.NoError(t, err)
			require.Equal(t, before, st.Before)
			require.Equal(t, s.Registers, st.After)
			require.Equal(t, uint64(1), s.Step)
			require.Equal(t, SlotFetch, st.Accesses[0].Slot)
			c.check(t, s, st)
		})
	}
}

func TestStepFaults(t *testing.T) {
	cases := []struct {
		name   string
		origin uint16
		words  []uint16
		setup  func(s *VMState)
		kind   FaultKind
		err    error
	}{
		{name: "reserved opcode", words: []uint16{0xD000}, kind: DecodeAnomaly, err: ErrInvalidInstruction},
		{name: "rti", words: []uint16{0x8000}, kind: DecodeAnomaly, err: ErrInvalidInstruction},
		{name: "malformed add", words: []uint16{0x1048}, kind: DecodeAnomaly, err: ErrInvalidInstruction},
		{
			name:  "fetch from device page",
			words: []uint16{Encode(Instruction{Kind: KindJMP, SR1: 1})},
			setup: func(s *VMState) {
				s.Registers.PC = 0xFE00
			},
			kind: MemoryAccessFault, err: ErrDeviceFetch,
		},
		{
			name:  "store to keyboard status",
			words: []uint16{Encode(Instruction{Kind: KindSTI, Offset: 0}), AddrKBSR},
			kind:  MemoryAccessFault, err: ErrReadOnlyDevice,
		},
		{
			name:  "store to machine control",
			words: []uint16{Encode(Instruction{Kind: KindSTR, SR1: 1})},
			setup: func(s *VMState) { s.Registers.R[1] = AddrMCR },
			kind:  MemoryAccessFault, err: ErrReadOnlyDevice,
		},
		{
			name:  "load from unmapped device",
			words: []uint16{Encode(Instruction{Kind: KindLDR, DR: 0, SR1: 1})},
			setup: func(s *VMState) { s.Registers.R[1] = 0xFE10 },
			kind:  MemoryAccessFault, err: ErrUnmappedDevice,
		},
		{
			name:   "pointer in device page",
			origin: 0xFDF0,
			words:  []uint16{Encode(Instruction{Kind: KindLDI, Offset: 0x0F})},
			kind:   MemoryAccessFault, err: ErrDevicePointer,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			origin := c.origin
			if origin == 0 {
				origin = testOrigin
			}
			s, err := NewProgramState(&Program{Origin: origin, Words: c.words})
			require.NoError(t, err)
			if c.setup != nil {
				c.setup(s)
			}
			before := s.Registers
			root := s.Memory.MerkleRoot()
			_, err = Step(s, NewBufferedPort(nil, nil))
			require.ErrorIs(t, err, c.err)
			f, ok := AsFault(err)
			require.True(t, ok)
			require.Equal(t, c.kind, f.Kind)
			require.Equal(t, before.PC, f.PC)
			require.Equal(t, StatusFaulted, s.Status)
			require.Equal(t, before, s.Registers, "faults do not change registers")
			require.Equal(t, root, s.Memory.MerkleRoot(), "faults do not change memory")

			_, err = Step(s, NewBufferedPort(nil, nil))
			require.ErrorIs(t, err, ErrNotRunning)
		})
	}
}

func TestStepDevices(t *testing.T) {
	ldi := Encode(Instruction{Kind: KindLDI, DR: 0, Offset: 0})
	sti := Encode(Instruction{Kind: KindSTI, DR: 0, Offset: 0})

	t.Run("keyboard status with input", func(t *testing.T) {
		s := testState(t, ldi, AddrKBSR)
		_, err := Step(s, NewBufferedPort([]byte("x"), nil))
		require.NoError(t, err)
		require.Equal(t, StatusReady, s.Registers.R[0])
		require.Equal(t, CondN, s.Registers.Cond)
	})
	t.Run("keyboard status without input", func(t *testing.T) {
		s := testState(t, ldi, AddrKBSR)
		s.Registers.R[0] = 1
		_, err := Step(s, NewBufferedPort(nil, nil))
		require.NoError(t, err)
		require.Equal(t, uint16(0), s.Registers.R[0])
	})
	t.Run("keyboard data consumes", func(t *testing.T) {
		s := testState(t, ldi, AddrKBDR)
		port := NewBufferedPort([]byte("AB"), nil)
		st, err := Step(s, port)
		require.NoError(t, err)
		require.Equal(t, uint16('A'), s.Registers.R[0])
		require.Equal(t, uint32(1), s.InputCount)
		require.Equal(t, []byte("A"), port.Consumed())
		acc, _ := st.Access(SlotData)
		require.True(t, acc.IOEvent)
		require.Equal(t, DeviceKBDR, acc.Device)
		require.Equal(t, uint32(0), acc.IOIndex)
	})
	t.Run("keyboard data when empty", func(t *testing.T) {
		s := testState(t, ldi, AddrKBDR)
		st, err := Step(s, NewBufferedPort(nil, nil))
		require.NoError(t, err)
		require.Equal(t, uint16(0), s.Registers.R[0])
		acc, _ := st.Access(SlotData)
		require.False(t, acc.IOEvent)
	})
	t.Run("display status always ready", func(t *testing.T) {
		s := testState(t, ldi, AddrDSR)
		_, err := Step(s, NewBufferedPort(nil, nil))
		require.NoError(t, err)
		require.Equal(t, StatusReady, s.Registers.R[0])
	})
	t.Run("display data emits low byte", func(t *testing.T) {
		s := testState(t, sti, AddrDDR)
		s.Registers.R[0] = 0x1241
		port := NewBufferedPort(nil, nil)
		st, err := Step(s, port)
		require.NoError(t, err)
		require.Equal(t, []byte("A"), port.Output())
		require.Equal(t, uint32(1), s.OutputCount)
		acc, _ := st.Access(SlotData)
		require.True(t, acc.IOEvent)
		require.Equal(t, uint16(0x1241), acc.Value)
	})
}
