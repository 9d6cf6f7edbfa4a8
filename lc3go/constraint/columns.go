package constraint

import "fmt"

// Column indexes a witness column. Columns are laid out in groups; the
// constants below mark the first column of each group.
type Column int

const (
	WordBits = 16
	// MemDeltaBits bounds the gap between consecutive memory-table rows.
	// Access times reach 3*MaxStepBound+3, which fits in 18 bits.
	MemDeltaBits = 18
)

// CPU table: the architectural state before the row's step.
const (
	ColPC      Column = 0
	ColR0             = ColPC + 1
	ColFlagN          = ColR0 + 8
	ColFlagZ          = ColFlagN + 1
	ColFlagP          = ColFlagZ + 1
	ColHalted         = ColFlagP + 1
	ColClk            = ColHalted + 1
	ColInIdx          = ColClk + 1
	ColInLeft         = ColInIdx + 1
	ColOutIdx         = ColInLeft + 1
	ColInstr          = ColOutIdx + 1
	ColInstrBit       = ColInstr + 1
	ColOp             = ColInstrBit + WordBits
	ColIsHalt         = ColOp + 16
	ColDR             = ColIsHalt + 1
	ColSA             = ColDR + 8
	ColSB             = ColSA + 8
	ColA              = ColSB + 8
	ColABit           = ColA + 1
	ColB              = ColABit + WordBits
	ColBBit           = ColB + 1
	ColRes            = ColBBit + WordBits
	ColResBit         = ColRes + 1
	ColResZero        = ColResBit + WordBits
	ColResInv         = ColResZero + 1
	ColCarry          = ColResInv + 1
	ColEA             = ColCarry + 1
	ColEACarry        = ColEA + 1
	ColPtr            = ColEACarry + 1
	ColAddrD          = ColPtr + 1
	ColDVal           = ColAddrD + 1
	ColDevKBSR        = ColDVal + 1
	ColDevKBDR        = ColDevKBSR + 1
	ColDevDSR         = ColDevKBDR + 1
	ColDevDDR         = ColDevDSR + 1
	ColDevMCR         = ColDevDDR + 1
	ColInReady        = ColDevMCR + 1
	ColInInv          = ColInReady + 1
	ColIOE            = ColInInv + 1
	ColIOIdx          = ColIOE + 1
)

// Memory table: accesses sorted by (address, time), inactive rows first.
const (
	ColMActive   = ColIOIdx + 1
	ColMAddr     = ColMActive + 1
	ColMTime     = ColMAddr + 1
	ColMVal      = ColMTime + 1
	ColMWrite    = ColMVal + 1
	ColMSame     = ColMWrite + 1
	ColMDelta    = ColMSame + 1
	ColMDeltaBit = ColMDelta + 1

	// NumTraceColumns is the number of columns committed before any challenge is drawn.
	NumTraceColumns = int(ColMDeltaBit + MemDeltaBits)
)

// Running-product columns, filled in once alpha and gamma are known.
const (
	ColPP = Column(NumTraceColumns)
	ColZ  = ColPP + 1

	NumColumns = int(ColZ + 1)
)

type columnGroup struct {
	first Column
	size  int
	name  string
}

var columnGroups = []columnGroup{
	{ColPC, 1, "pc"},
	{ColR0, 8, "r"},
	{ColFlagN, 1, "flag_n"},
	{ColFlagZ, 1, "flag_z"},
	{ColFlagP, 1, "flag_p"},
	{ColHalted, 1, "halted"},
	{ColClk, 1, "clk"},
	{ColInIdx, 1, "in_idx"},
	{ColInLeft, 1, "in_left"},
	{ColOutIdx, 1, "out_idx"},
	{ColInstr, 1, "instr"},
	{ColInstrBit, WordBits, "ib"},
	{ColOp, 16, "op"},
	{ColIsHalt, 1, "is_halt"},
	{ColDR, 8, "dr"},
	{ColSA, 8, "sa"},
	{ColSB, 8, "sb"},
	{ColA, 1, "a"},
	{ColABit, WordBits, "a_bit"},
	{ColB, 1, "b"},
	{ColBBit, WordBits, "b_bit"},
	{ColRes, 1, "res"},
	{ColResBit, WordBits, "res_bit"},
	{ColResZero, 1, "res_zero"},
	{ColResInv, 1, "res_inv"},
	{ColCarry, 1, "carry"},
	{ColEA, 1, "ea"},
	{ColEACarry, 1, "ea_carry"},
	{ColPtr, 1, "ptr"},
	{ColAddrD, 1, "addr_d"},
	{ColDVal, 1, "dval"},
	{ColDevKBSR, 1, "dev_kbsr"},
	{ColDevKBDR, 1, "dev_kbdr"},
	{ColDevDSR, 1, "dev_dsr"},
	{ColDevDDR, 1, "dev_ddr"},
	{ColDevMCR, 1, "dev_mcr"},
	{ColInReady, 1, "in_ready"},
	{ColInInv, 1, "in_inv"},
	{ColIOE, 1, "io_event"},
	{ColIOIdx, 1, "io_idx"},
	{ColMActive, 1, "m_active"},
	{ColMAddr, 1, "m_addr"},
	{ColMTime, 1, "m_time"},
	{ColMVal, 1, "m_val"},
	{ColMWrite, 1, "m_write"},
	{ColMSame, 1, "m_same"},
	{ColMDelta, 1, "m_delta"},
	{ColMDeltaBit, MemDeltaBits, "m_delta_bit"},
	{ColPP, 1, "pp"},
	{ColZ, 1, "z"},
}

func (c Column) String() string {
	for _, g := range columnGroups {
		if c >= g.first && c < g.first+Column(g.size) {
			if g.size == 1 {
				return g.name
			}
			return fmt.Sprintf("%s%d", g.name, c-g.first)
		}
	}
	return fmt.Sprintf("Column(%d)", int(c))
}

// IsMemory reports whether the column belongs to the memory table.
func (c Column) IsMemory() bool {
	return c >= ColMActive && c < ColPP
}
