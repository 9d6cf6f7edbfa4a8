package fast

// Step executes a single instruction.
// A fault moves the machine to StatusFaulted and leaves registers and memory untouched.
func Step(s *VMState, port IOPort) (ExecutionStep, error) {
	return step(s, port, nil)
}

// step executes one instruction. onMem, when set, is called with the address of
// every plain memory access before the access takes effect.
func step(s *VMState, port IOPort, onMem func(addr uint16)) (st ExecutionStep, err error) {
	if s.Status != StatusRunning {
		return st, ErrNotRunning
	}
	regs := s.Registers
	pc := regs.PC
	st = ExecutionStep{Index: s.Step, Before: regs}

	fault := func(kind FaultKind, addr uint16, cause error) error {
		s.Status = StatusFaulted
		return &Fault{Kind: kind, Step: s.Step, PC: pc, Instr: st.Instr.Raw, Addr: addr, Err: cause}
	}
	track := func(addr uint16) {
		if onMem != nil {
			onMem(addr)
		}
	}
	inputs, outputs := s.InputCount, s.OutputCount

	if IsDeviceAddress(pc) {
		return st, fault(MemoryAccessFault, pc, ErrDeviceFetch)
	}
	track(pc)
	word := s.Memory.GetWord(pc)
	st.Accesses = append(st.Accesses, Access{Slot: SlotFetch, Addr: pc, Value: word, Prev: word})
	in := Decode(word)
	st.Instr = in
	pc1 := pc + 1
	regs.PC = pc1

	aux := func(addr uint16) (uint16, error) {
		if IsDeviceAddress(addr) {
			return 0, fault(MemoryAccessFault, addr, ErrDevicePointer)
		}
		track(addr)
		v := s.Memory.GetWord(addr)
		st.Accesses = append(st.Accesses, Access{Slot: SlotAux, Addr: addr, Value: v, Prev: v})
		return v, nil
	}

	load := func(addr uint16) (uint16, error) {
		acc := Access{Slot: SlotData, Addr: addr}
		if !IsDeviceAddress(addr) {
			track(addr)
			acc.Value = s.Memory.GetWord(addr)
			acc.Prev = acc.Value
			st.Accesses = append(st.Accesses, acc)
			return acc.Value, nil
		}
		dev, ok := DeviceAt(addr)
		if !ok {
			return 0, fault(MemoryAccessFault, addr, ErrUnmappedDevice)
		}
		acc.Device = dev
		switch dev {
		case DeviceKBSR:
			if port.InputReady() {
				acc.Value = StatusReady
			}
		case DeviceKBDR:
			if b, ok := port.ReadInput(); ok {
				acc.Value = uint16(b)
				acc.IOEvent = true
				acc.IOIndex = inputs
				inputs++
			}
		case DeviceDSR, DeviceMCR:
			acc.Value = StatusReady
		}
		st.Accesses = append(st.Accesses, acc)
		return acc.Value, nil
	}

	store := func(addr, v uint16) error {
		acc := Access{Slot: SlotData, Addr: addr, Write: true, Value: v}
		if !IsDeviceAddress(addr) {
			track(addr)
			acc.Prev = s.Memory.GetWord(addr)
			st.Accesses = append(st.Accesses, acc)
			s.Memory.SetWord(addr, v)
			return nil
		}
		dev, ok := DeviceAt(addr)
		if !ok {
			return fault(MemoryAccessFault, addr, ErrUnmappedDevice)
		}
		if !dev.Writable() {
			return fault(MemoryAccessFault, addr, ErrReadOnlyDevice)
		}
		acc.Device = dev
		acc.IOEvent = true
		acc.IOIndex = outputs
		outputs++
		st.Accesses = append(st.Accesses, acc)
		port.WriteOutput(byte(v))
		return nil
	}

	switch in.Kind {
	case KindADD:
		regs.Set(in.DR, regs.Get(in.SR1)+operand2(in, &regs))
	case KindAND:
		regs.Set(in.DR, regs.Get(in.SR1)&operand2(in, &regs))
	case KindNOT:
		regs.Set(in.DR, ^regs.Get(in.SR1))
	case KindBR:
		if (in.N && regs.Cond == CondN) || (in.Z && regs.Cond == CondZ) || (in.P && regs.Cond == CondP) {
			regs.PC = pc1 + in.Offset
		}
	case KindJMP:
		regs.PC = regs.Get(in.SR1)
	case KindJSR:
		regs.Link(pc1)
		regs.PC = pc1 + in.Offset
	case KindJSRR:
		target := regs.Get(in.SR1)
		regs.Link(pc1)
		regs.PC = target
	case KindLD:
		v, err := load(pc1 + in.Offset)
		if err != nil {
			return st, err
		}
		regs.Set(in.DR, v)
	case KindLDI:
		ptr, err := aux(pc1 + in.Offset)
		if err != nil {
			return st, err
		}
		v, err := load(ptr)
		if err != nil {
			return st, err
		}
		regs.Set(in.DR, v)
	case KindLDR:
		v, err := load(regs.Get(in.SR1) + in.Offset)
		if err != nil {
			return st, err
		}
		regs.Set(in.DR, v)
	case KindLEA:
		regs.Set(in.DR, pc1+in.Offset)
	case KindST:
		if err := store(pc1+in.Offset, regs.Get(in.DR)); err != nil {
			return st, err
		}
	case KindSTI:
		ptr, err := aux(pc1 + in.Offset)
		if err != nil {
			return st, err
		}
		if err := store(ptr, regs.Get(in.DR)); err != nil {
			return st, err
		}
	case KindSTR:
		if err := store(regs.Get(in.SR1)+in.Offset, regs.Get(in.DR)); err != nil {
			return st, err
		}
	case KindTRAP:
		if in.TrapVect == TrapHALT {
			st.Halted = true
			break
		}
		target, err := aux(uint16(in.TrapVect))
		if err != nil {
			return st, err
		}
		regs.Link(pc1)
		regs.PC = target
	default:
		return st, fault(DecodeAnomaly, pc, ErrInvalidInstruction)
	}

	s.Registers = regs
	s.InputCount, s.OutputCount = inputs, outputs
	s.Step++
	if st.Halted {
		s.Status = StatusHalted
	}
	st.After = regs
	return st, nil
}

func operand2(in Instruction, regs *RegisterFile) uint16 {
	if in.Imm {
		return in.Imm5
	}
	return regs.Get(in.SR2)
}
