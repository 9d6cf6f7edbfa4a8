package fast

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Program is an object file: a block of words placed at Origin.
type Program struct {
	Origin uint16   `json:"origin"`
	Words  []uint16 `json:"words"`
}

// LoadObject parses the object format: big-endian words, the first of which is the origin.
func LoadObject(r io.Reader) (*Program, error) {
	br := bufio.NewReader(r)
	var buf [2]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyObject
		}
		if err == io.ErrUnexpectedEOF {
			return nil, ErrOddObject
		}
		return nil, fmt.Errorf("failed to read origin: %w", err)
	}
	p := &Program{Origin: binary.BigEndian.Uint16(buf[:])}
	for {
		_, err := io.ReadFull(br, buf[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, ErrOddObject
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read word %d: %w", len(p.Words), err)
		}
		p.Words = append(p.Words, binary.BigEndian.Uint16(buf[:]))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func LoadObjectFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open object file %q: %w", path, err)
	}
	defer f.Close()
	return LoadObject(f)
}

// Validate checks that the program lies entirely in plain memory.
func (p *Program) Validate() error {
	if uint32(p.Origin)+uint32(len(p.Words)) > uint32(DevicePage) {
		return fmt.Errorf("%w: origin %04x, %d words", ErrObjectTooLarge, p.Origin, len(p.Words))
	}
	return nil
}

// Encode renders the program in the object format.
func (p *Program) Encode() []byte {
	out := make([]byte, 0, 2+2*len(p.Words))
	out = binary.BigEndian.AppendUint16(out, p.Origin)
	for _, w := range p.Words {
		out = binary.BigEndian.AppendUint16(out, w)
	}
	return out
}

// ImageWord is one initialized memory word.
type ImageWord struct {
	Addr  uint16 `json:"addr"`
	Value uint16 `json:"value"`
}

// Image returns the initial memory of the program: the OS image overlaid by the program
// words, without zero words, sorted by address.
func (p *Program) Image() []ImageWord {
	words := make(map[uint16]uint16)
	for _, src := range []*Program{OSImage(), p} {
		for i, w := range src.Words {
			words[src.Origin+uint16(i)] = w
		}
	}
	out := make([]ImageWord, 0, len(words))
	for addr, v := range words {
		if v != 0 {
			out = append(out, ImageWord{Addr: addr, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Addr < out[j].Addr
	})
	return out
}

// Memory materializes the initial memory of the program.
func (p *Program) Memory() *Memory {
	m := NewMemory()
	for _, w := range p.Image() {
		m.SetWord(w.Addr, w.Value)
	}
	return m
}

// Commitment is the merkle root of the initial memory.
func (p *Program) Commitment() common.Hash {
	return p.Memory().MerkleRoot()
}

// NewProgramState returns the reset machine with the program loaded: PC at the origin,
// registers zero, condition code Z.
func NewProgramState(p *Program) (*VMState, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state := NewVMState()
	state.Memory = p.Memory()
	state.Registers = NewRegisterFile(p.Origin)
	return state, nil
}
