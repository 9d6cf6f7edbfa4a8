package slow

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const (
	stateSizeMemRoot     = 32
	stateSizeRegisters   = 2 * 8
	stateSizePC          = 2
	stateSizeCond        = 1
	stateSizeStatus      = 1
	stateSizeStep        = 8
	stateSizeInputCount  = 4
	stateSizeOutputCount = 4
)

const (
	stateOffsetMemRoot     = 0
	stateOffsetRegisters   = stateOffsetMemRoot + stateSizeMemRoot
	stateOffsetPC          = stateOffsetRegisters + stateSizeRegisters
	stateOffsetCond        = stateOffsetPC + stateSizePC
	stateOffsetStatus      = stateOffsetCond + stateSizeCond
	stateOffsetStep        = stateOffsetStatus + stateSizeStatus
	stateOffsetInputCount  = stateOffsetStep + stateSizeStep
	stateOffsetOutputCount = stateOffsetInputCount + stateSizeInputCount
	stateSize              = stateOffsetOutputCount + stateSizeOutputCount
)

const (
	leafWords    = 16
	proofNodes   = 13
	memProofSize = proofNodes * 32
)

var (
	ErrInvalidProof   = errors.New("memory proof does not match the state root")
	ErrMissingProof   = errors.New("witness has too few memory proofs")
	ErrUnusedProof    = errors.New("witness has unused memory proofs")
	ErrBadStateLength = errors.New("invalid state witness length")
)

type vmState struct {
	memRoot [32]byte
	regs    fast.RegisterFile
	status  fast.Status
	step    uint64
	inputs  uint32
	outputs uint32
}

func decodeState(dat []byte) (*vmState, error) {
	if len(dat) != stateSize {
		return nil, fmt.Errorf("%w: %d, expected %d", ErrBadStateLength, len(dat), stateSize)
	}
	s := &vmState{}
	copy(s.memRoot[:], dat[stateOffsetMemRoot:])
	for i := range s.regs.R {
		s.regs.R[i] = binary.BigEndian.Uint16(dat[stateOffsetRegisters+2*i:])
	}
	s.regs.PC = binary.BigEndian.Uint16(dat[stateOffsetPC:])
	s.regs.Cond = fast.Cond(dat[stateOffsetCond])
	s.status = fast.Status(dat[stateOffsetStatus])
	s.step = binary.BigEndian.Uint64(dat[stateOffsetStep:])
	s.inputs = binary.BigEndian.Uint32(dat[stateOffsetInputCount:])
	s.outputs = binary.BigEndian.Uint32(dat[stateOffsetOutputCount:])
	return s, nil
}

func (s *vmState) encode() []byte {
	out := make([]byte, 0, stateSize)
	out = append(out, s.memRoot[:]...)
	for _, r := range s.regs.R {
		out = binary.BigEndian.AppendUint16(out, r)
	}
	out = binary.BigEndian.AppendUint16(out, s.regs.PC)
	out = append(out, byte(s.regs.Cond), byte(s.status))
	out = binary.BigEndian.AppendUint64(out, s.step)
	out = binary.BigEndian.AppendUint32(out, s.inputs)
	out = binary.BigEndian.AppendUint32(out, s.outputs)
	return out
}

func hashPair(left, right []byte) [32]byte {
	return crypto.Keccak256Hash(left, right)
}

// proofRoot recomputes the memory root from a leaf and its sibling path.
func proofRoot(addr uint16, leaf []byte, siblings []byte) [32]byte {
	node := *(*[32]byte)(leaf)
	path := uint64(addr) / leafWords
	for i := 0; i < len(siblings); i += 32 {
		sib := siblings[i : i+32]
		if path&1 != 0 {
			node = hashPair(sib, node[:])
		} else {
			node = hashPair(node[:], sib)
		}
		path >>= 1
	}
	return node
}

type stepper struct {
	s        *vmState
	proofs   []byte
	keyReady bool
	key      byte
}

func (sp *stepper) nextProof() ([]byte, error) {
	if len(sp.proofs) < memProofSize {
		return nil, ErrMissingProof
	}
	p := sp.proofs[:memProofSize]
	sp.proofs = sp.proofs[memProofSize:]
	return p, nil
}

func (sp *stepper) readMem(addr uint16) (uint16, error) {
	p, err := sp.nextProof()
	if err != nil {
		return 0, err
	}
	if proofRoot(addr, p[:32], p[32:]) != sp.s.memRoot {
		return 0, fmt.Errorf("%w: read at %04x", ErrInvalidProof, addr)
	}
	off := (addr % leafWords) * 2
	return binary.BigEndian.Uint16(p[off:]), nil
}

func (sp *stepper) writeMem(addr uint16, v uint16) error {
	p, err := sp.nextProof()
	if err != nil {
		return err
	}
	if proofRoot(addr, p[:32], p[32:]) != sp.s.memRoot {
		return fmt.Errorf("%w: write at %04x", ErrInvalidProof, addr)
	}
	var leaf [32]byte
	copy(leaf[:], p[:32])
	binary.BigEndian.PutUint16(leaf[(addr%leafWords)*2:], v)
	sp.s.memRoot = proofRoot(addr, leaf[:], p[32:])
	return nil
}

func (sp *stepper) load(addr uint16) (uint16, error) {
	if !fast.IsDeviceAddress(addr) {
		return sp.readMem(addr)
	}
	dev, ok := fast.DeviceAt(addr)
	if !ok {
		return 0, fast.ErrUnmappedDevice
	}
	switch dev {
	case fast.DeviceKBSR:
		if sp.keyReady {
			return fast.StatusReady, nil
		}
	case fast.DeviceKBDR:
		if sp.keyReady {
			sp.s.inputs++
			return uint16(sp.key), nil
		}
	case fast.DeviceDSR, fast.DeviceMCR:
		return fast.StatusReady, nil
	}
	return 0, nil
}

func (sp *stepper) store(addr uint16, v uint16) error {
	if !fast.IsDeviceAddress(addr) {
		return sp.writeMem(addr, v)
	}
	dev, ok := fast.DeviceAt(addr)
	if !ok {
		return fast.ErrUnmappedDevice
	}
	if !dev.Writable() {
		return fast.ErrReadOnlyDevice
	}
	sp.s.outputs++
	return nil
}

func (sp *stepper) pointer(addr uint16) (uint16, error) {
	if fast.IsDeviceAddress(addr) {
		return 0, fast.ErrDevicePointer
	}
	return sp.readMem(addr)
}

// Step re-executes one step from its witness, checking every memory access
// against the memory root of the pre-state, and returns the encoded post-state.
func Step(wit *fast.StepWitness) (post []byte, err error) {
	s, err := decodeState(wit.State)
	if err != nil {
		return nil, err
	}
	if s.status != fast.StatusRunning {
		return nil, fast.ErrNotRunning
	}
	sp := &stepper{s: s, proofs: wit.MemProof, keyReady: wit.KeyReady, key: wit.Key}
	regs := &s.regs
	pc := regs.PC
	if fast.IsDeviceAddress(pc) {
		return nil, fast.ErrDeviceFetch
	}
	word, err := sp.readMem(pc)
	if err != nil {
		return nil, err
	}
	in := fast.Decode(word)
	pc1 := pc + 1
	regs.PC = pc1

	switch in.Kind {
	case fast.KindADD, fast.KindAND:
		b := regs.Get(in.SR2)
		if in.Imm {
			b = in.Imm5
		}
		if in.Kind == fast.KindADD {
			regs.Set(in.DR, regs.Get(in.SR1)+b)
		} else {
			regs.Set(in.DR, regs.Get(in.SR1)&b)
		}
	case fast.KindNOT:
		regs.Set(in.DR, ^regs.Get(in.SR1))
	case fast.KindBR:
		if (in.N && regs.Cond == fast.CondN) || (in.Z && regs.Cond == fast.CondZ) || (in.P && regs.Cond == fast.CondP) {
			regs.PC = pc1 + in.Offset
		}
	case fast.KindJMP:
		regs.PC = regs.Get(in.SR1)
	case fast.KindJSR, fast.KindJSRR:
		target := pc1 + in.Offset
		if in.Kind == fast.KindJSRR {
			target = regs.Get(in.SR1)
		}
		regs.Link(pc1)
		regs.PC = target
	case fast.KindLD, fast.KindLDI, fast.KindLDR:
		addr := pc1 + in.Offset
		switch in.Kind {
		case fast.KindLDI:
			if addr, err = sp.pointer(addr); err != nil {
				return nil, err
			}
		case fast.KindLDR:
			addr = regs.Get(in.SR1) + in.Offset
		}
		v, err := sp.load(addr)
		if err != nil {
			return nil, err
		}
		regs.Set(in.DR, v)
	case fast.KindLEA:
		regs.Set(in.DR, pc1+in.Offset)
	case fast.KindST, fast.KindSTI, fast.KindSTR:
		addr := pc1 + in.Offset
		switch in.Kind {
		case fast.KindSTI:
			if addr, err = sp.pointer(addr); err != nil {
				return nil, err
			}
		case fast.KindSTR:
			addr = regs.Get(in.SR1) + in.Offset
		}
		if err := sp.store(addr, regs.Get(in.DR)); err != nil {
			return nil, err
		}
	case fast.KindTRAP:
		if in.TrapVect == fast.TrapHALT {
			s.status = fast.StatusHalted
			break
		}
		target, err := sp.readMem(uint16(in.TrapVect))
		if err != nil {
			return nil, err
		}
		regs.Link(pc1)
		regs.PC = target
	default:
		return nil, fmt.Errorf("%w: %04x at pc %04x", fast.ErrInvalidInstruction, word, pc)
	}
	if len(sp.proofs) != 0 {
		return nil, ErrUnusedProof
	}
	s.step++
	return s.encode(), nil
}

// StepHash is Step followed by the state hash of the post-state.
func StepHash(wit *fast.StepWitness) (common.Hash, error) {
	post, err := Step(wit)
	if err != nil {
		return common.Hash{}, err
	}
	return fast.StateWitness(post).StateHash()
}
