package prover

import "errors"

var (
	// ErrProofVerificationFailure is the verifier's rejection. It is a result, not a malfunction.
	ErrProofVerificationFailure = errors.New("proof verification failure")
	ErrSRSTooSmall              = errors.New("srs too small for the trace domain")
	ErrProgramMismatch          = errors.New("program hash does not match the key")
	ErrMalformedProof           = errors.New("malformed proof")
)
