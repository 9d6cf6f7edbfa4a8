package fast

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadObject(t *testing.T) {
	t.Run("words after origin", func(t *testing.T) {
		p, err := LoadObject(bytes.NewReader([]byte{0x30, 0x00, 0x12, 0x61, 0xF0, 0x25}))
		require.NoError(t, err)
		require.Equal(t, uint16(0x3000), p.Origin)
		require.Equal(t, []uint16{0x1261, 0xF025}, p.Words)
		require.Equal(t, []byte{0x30, 0x00, 0x12, 0x61, 0xF0, 0x25}, p.Encode())
	})
	t.Run("origin only", func(t *testing.T) {
		p, err := LoadObject(bytes.NewReader([]byte{0x40, 0x00}))
		require.NoError(t, err)
		require.Empty(t, p.Words)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := LoadObject(bytes.NewReader(nil))
		require.ErrorIs(t, err, ErrEmptyObject)
	})
	t.Run("odd length", func(t *testing.T) {
		_, err := LoadObject(bytes.NewReader([]byte{0x30, 0x00, 0x12}))
		require.ErrorIs(t, err, ErrOddObject)
	})
	t.Run("reaches the device page", func(t *testing.T) {
		_, err := LoadObject(bytes.NewReader([]byte{0xFD, 0xFF, 0x00, 0x01, 0x00, 0x02}))
		require.ErrorIs(t, err, ErrObjectTooLarge)
	})
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prog.obj")
		require.NoError(t, os.WriteFile(path, []byte{0x30, 0x00, 0xF0, 0x25}, 0o644))
		p, err := LoadObjectFile(path)
		require.NoError(t, err)
		require.Equal(t, []uint16{0xF025}, p.Words)
	})
}

func TestProgramImage(t *testing.T) {
	p := &Program{Origin: 0x3000, Words: []uint16{0x1261, 0, 0xF025}}
	img := p.Image()
	for i := 1; i < len(img); i++ {
		require.Less(t, img[i-1].Addr, img[i].Addr, "sorted and unique")
	}
	for _, w := range img {
		require.NotZero(t, w.Value)
	}
	require.Contains(t, img, ImageWord{Addr: 0x3000, Value: 0x1261})
	require.Contains(t, img, ImageWord{Addr: 0x3002, Value: 0xF025})
	require.NotContains(t, img, ImageWord{Addr: 0x3001})

	m := p.Memory()
	for _, w := range img {
		require.Equal(t, w.Value, m.GetWord(w.Addr))
	}
	require.Equal(t, p.Commitment(), (&Program{Origin: 0x3000, Words: []uint16{0x1261, 0, 0xF025}}).Commitment())
	require.NotEqual(t, p.Commitment(), (&Program{Origin: 0x3000, Words: []uint16{0x1262, 0, 0xF025}}).Commitment())
}

func TestProgramOverlaysOS(t *testing.T) {
	p := &Program{Origin: uint16(TrapOUT), Words: []uint16{0x4000}}
	s, err := NewProgramState(p)
	require.NoError(t, err)
	require.Equal(t, uint16(0x4000), s.Memory.GetWord(uint16(TrapOUT)))
	require.Equal(t, OSImage().Words[0], s.Memory.GetWord(uint16(TrapGETC)))
	require.Equal(t, uint16(TrapOUT), s.Registers.PC)
	require.Equal(t, CondZ, s.Registers.Cond)
}
