package fast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderLabels(t *testing.T) {
	p, err := NewBuilder(0x3000).
		Label("TOP").
		LD(0, "DATA").
		BR("np", "TOP").
		JSR("SUB").
		Label("DATA").Fill(0x1234).
		Label("PTR").FillLabel("DATA").
		Label("SUB").RET().
		Program()
	require.NoError(t, err)
	require.Equal(t, uint16(0x3000), p.Origin)

	ld := Decode(p.Words[0])
	require.Equal(t, KindLD, ld.Kind)
	require.Equal(t, uint16(2), ld.Offset)

	br := Decode(p.Words[1])
	require.Equal(t, KindBR, br.Kind)
	require.True(t, br.N && br.P && !br.Z)
	require.Equal(t, uint16(0xFFFE), br.Offset)

	jsr := Decode(p.Words[2])
	require.Equal(t, KindJSR, jsr.Kind)
	require.Equal(t, uint16(2), jsr.Offset)

	require.Equal(t, uint16(0x1234), p.Words[3])
	require.Equal(t, uint16(0x3003), p.Words[4])
	require.Equal(t, KindJMP, Decode(p.Words[5]).Kind)
}

func TestBuilderErrors(t *testing.T) {
	t.Run("undefined label", func(t *testing.T) {
		_, err := NewBuilder(0x3000).LD(0, "NOWHERE").Program()
		require.ErrorContains(t, err, "NOWHERE")
	})
	t.Run("duplicate label", func(t *testing.T) {
		_, err := NewBuilder(0x3000).Label("A").HALT().Label("A").Program()
		require.ErrorContains(t, err, "duplicate")
	})
	t.Run("offset out of range", func(t *testing.T) {
		_, err := NewBuilder(0x3000).LD(0, "FAR").Block(300).Label("FAR").Fill(1).Program()
		require.ErrorIs(t, err, ErrOffsetRange)
	})
	t.Run("bad condition", func(t *testing.T) {
		_, err := NewBuilder(0x3000).Label("A").BR("x", "A").Program()
		require.Error(t, err)
	})
}

func TestBuilderStrings(t *testing.T) {
	p := NewBuilder(0x3000).Stringz("hi").PackedString("abc").MustProgram()
	require.Equal(t, []uint16{'h', 'i', 0, 'a' | 'b'<<8, 'c', 0}, p.Words)
}
