package fast

// StepWitness is everything needed to re-execute a single step against a state commitment.
type StepWitness struct {
	// encoded pre-state
	State StateWitness

	// one merkle proof per plain memory access, in access order
	MemProof []byte

	// Keyboard device data when the step read KBSR or KBDR.
	// KeyReady reports pending input; Key is the byte consumed from KBDR.
	KeyReady bool
	Key      byte
}

// MemProofCount is the number of memory proofs carried by the witness.
func (wit *StepWitness) MemProofCount() int {
	return len(wit.MemProof) / MemProofSize
}
