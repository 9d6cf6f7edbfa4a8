package fast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignExtend(t *testing.T) {
	require.Equal(t, uint16(0x000F), SignExtend(0x0F, 5))
	require.Equal(t, uint16(0xFFF0), SignExtend(0x10, 5))
	require.Equal(t, uint16(0xFFFF), SignExtend(0x1FF, 9))
	require.Equal(t, uint16(0x00FF), SignExtend(0x0FF, 9))
	require.Equal(t, uint16(0xFC00), SignExtend(0x400, 11))
	require.Equal(t, uint16(0xFFE0), SignExtend(0x20, 6))
}

func TestDecodeRoundTrip(t *testing.T) {
	valid := 0
	for w := 0; w <= 0xFFFF; w++ {
		in := Decode(uint16(w))
		require.Equal(t, uint16(w), in.Raw)
		if in.Kind == KindInvalid {
			continue
		}
		valid++
		require.Equal(t, uint16(w), Encode(in), "word %04x decoded as %s", w, in)
	}
	require.Greater(t, valid, 0x8000)
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		word uint16
		want Instruction
	}{
		{"add register", 0x1042, Instruction{Kind: KindADD, DR: 0, SR1: 1, SR2: 2}},
		{"add immediate", 0x1261, Instruction{Kind: KindADD, DR: 1, SR1: 1, Imm: true, Imm5: 1}},
		{"add negative immediate", 0x127F, Instruction{Kind: KindADD, DR: 1, SR1: 1, Imm: true, Imm5: 0xFFFF}},
		{"and immediate", 0x5020, Instruction{Kind: KindAND, DR: 0, SR1: 0, Imm: true}},
		{"not", 0x947F, Instruction{Kind: KindNOT, DR: 2, SR1: 1}},
		{"brnzp", 0x0FFE, Instruction{Kind: KindBR, N: true, Z: true, P: true, Offset: 0xFFFE}},
		{"ret", 0xC1C0, Instruction{Kind: KindJMP, SR1: 7}},
		{"jsr", 0x4805, Instruction{Kind: KindJSR, Offset: 5}},
		{"jsrr", 0x4080, Instruction{Kind: KindJSRR, SR1: 2}},
		{"ldr", 0x6C7F, Instruction{Kind: KindLDR, DR: 6, SR1: 1, Offset: 0xFFFF}},
		{"sti", 0xB602, Instruction{Kind: KindSTI, DR: 3, Offset: 2}},
		{"lea", 0xE1FF, Instruction{Kind: KindLEA, DR: 0, Offset: 0xFFFF}},
		{"trap out", 0xF021, Instruction{Kind: KindTRAP, TrapVect: TrapOUT}},
		{"halt", 0xF025, Instruction{Kind: KindTRAP, TrapVect: TrapHALT}},
		{"rti", 0x8000, Instruction{Kind: KindRTI}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.want.Raw = c.word
			require.Equal(t, c.want, Decode(c.word))
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, w := range []uint16{
		0xD000, // reserved opcode
		0xDFFF,
		0x1048, // ADD register mode with bit 3 set
		0x5050, // AND register mode with bit 4 set
		0x943E, // NOT without the all-ones tail
		0xC1C1, // JMP with low bits
		0xC3C0, // JMP with bits 11:9
		0x4280, // JSRR with bit 9
		0xF120, // TRAP with bits 11:8
		0xF01F, // trap vector below GETC
		0xF026, // trap vector above HALT
		0x8001, // RTI with operand bits
	} {
		require.Equal(t, KindInvalid, Decode(w).Kind, "word %04x", w)
	}
}

func TestInstructionString(t *testing.T) {
	require.Equal(t, "ADD R1, R1, #-1", Decode(0x127F).String())
	require.Equal(t, "BRnz #-2", Decode(0x0DFE).String())
	require.Equal(t, "RET", Decode(0xC1C0).String())
	require.Equal(t, "TRAP x25", Decode(0xF025).String())
	require.Equal(t, ".FILL xD000", Decode(0xD000).String())
}
