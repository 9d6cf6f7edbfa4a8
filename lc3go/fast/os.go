package fast

import "fmt"

// OSOrigin is where the trap vector table starts. The service routines follow it.
const OSOrigin uint16 = 0x0020

// InPrompt is displayed by IN before it reads a key.
const InPrompt = "Enter a character: "

var osImage = buildOS()

// OSImage returns the trap vector table and the service routines every program is loaded over.
// HALT has no routine: TRAP x25 is executed by the machine itself.
func OSImage() *Program {
	return osImage
}

func buildOS() *Program {
	b := NewBuilder(OSOrigin)
	b.FillLabel("GETC").
		FillLabel("OUT").
		FillLabel("PUTS").
		FillLabel("IN").
		FillLabel("PUTSP").
		Fill(0) // x25

	// GETC: R0 <- next keyboard byte, 0 when the input is exhausted.
	b.Label("GETC").
		LDI(0, "KBSR").
		BR("zp", "GETC_NONE").
		LDI(0, "KBDR").
		RET().
		Label("GETC_NONE").
		ANDi(0, 0, 0).
		RET()

	// OUT: display the low byte of R0.
	b.Label("OUT").
		ST(1, "SAVE1").
		Label("OUT_WAIT").
		LDI(1, "DSR").
		BR("zp", "OUT_WAIT").
		STI(0, "DDR").
		LD(1, "SAVE1").
		RET()

	// PUTS: display the zero terminated string of one character per word at R0.
	b.Label("PUTS").
		ST(0, "SAVE0").
		ST(1, "SAVE1").
		ST(2, "SAVE2").
		Label("PUTS_LOOP").
		LDR(1, 0, 0).
		BR("z", "PUTS_DONE").
		Label("PUTS_WAIT").
		LDI(2, "DSR").
		BR("zp", "PUTS_WAIT").
		STI(1, "DDR").
		ADDi(0, 0, 1).
		BR("nzp", "PUTS_LOOP").
		Label("PUTS_DONE").
		LD(0, "SAVE0").
		LD(1, "SAVE1").
		LD(2, "SAVE2").
		RET()

	// IN: prompt, then GETC. A byte that was read is echoed with a newline.
	b.Label("IN").
		ST(7, "SAVE7").
		LEA(0, "IN_PROMPT").
		TRAP(TrapPUTS).
		TRAP(TrapGETC).
		ADDi(0, 0, 0).
		BR("z", "IN_DONE").
		TRAP(TrapOUT).
		ST(0, "IN_CHAR").
		LD(0, "NEWLINE").
		TRAP(TrapOUT).
		LD(0, "IN_CHAR").
		Label("IN_DONE").
		LD(7, "SAVE7").
		RET()

	// PUTSP: display the string at R0 packed two characters per word, low byte first.
	b.Label("PUTSP")
	for r := uint8(0); r < 7; r++ {
		b.ST(r, saveSlot(r))
	}
	b.Label("PUTSP_LOOP").
		LDR(1, 0, 0).
		LD(2, "LOWMASK").
		AND(2, 1, 2).
		BR("z", "PUTSP_DONE").
		Label("PUTSP_WAIT1").
		LDI(3, "DSR").
		BR("zp", "PUTSP_WAIT1").
		STI(2, "DDR").
		// R2 <- R1 >> 8, testing bit R3 and adding R4 for each of the high 8 bits
		ANDi(2, 2, 0).
		LD(3, "HIGHBIT").
		ANDi(4, 4, 0).
		ADDi(4, 4, 1).
		ANDi(5, 5, 0).
		ADDi(5, 5, 8).
		Label("PUTSP_SHIFT").
		AND(6, 1, 3).
		BR("z", "PUTSP_SKIP").
		ADD(2, 2, 4).
		Label("PUTSP_SKIP").
		ADD(3, 3, 3).
		ADD(4, 4, 4).
		ADDi(5, 5, -1).
		BR("p", "PUTSP_SHIFT").
		ADDi(2, 2, 0).
		BR("z", "PUTSP_DONE").
		Label("PUTSP_WAIT2").
		LDI(3, "DSR").
		BR("zp", "PUTSP_WAIT2").
		STI(2, "DDR").
		ADDi(0, 0, 1).
		BR("nzp", "PUTSP_LOOP").
		Label("PUTSP_DONE")
	for r := uint8(0); r < 7; r++ {
		b.LD(r, saveSlot(r))
	}
	b.RET()

	b.Label("KBSR").Fill(AddrKBSR).
		Label("KBDR").Fill(AddrKBDR).
		Label("DSR").Fill(AddrDSR).
		Label("DDR").Fill(AddrDDR).
		Label("LOWMASK").Fill(0x00FF).
		Label("HIGHBIT").Fill(0x0100).
		Label("NEWLINE").Fill('\n').
		Label("IN_CHAR").Fill(0).
		Label("IN_PROMPT").Stringz(InPrompt)
	for r := uint8(0); r < 8; r++ {
		b.Label(saveSlot(r)).Fill(0)
	}
	return b.MustProgram()
}

func saveSlot(r uint8) string {
	return fmt.Sprintf("SAVE%d", r)
}
