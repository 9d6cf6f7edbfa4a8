package prover

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

// ProvingKey binds a reference string to the program whose runs are proven.
type ProvingKey struct {
	Program *fast.Program
	KZG     kzg.ProvingKey
}

// VerifyingKey is what a verifier needs: the program image the constraint
// relations are derived from, and the pairing side of the reference string.
type VerifyingKey struct {
	Program *fast.Program
	KZG     kzg.VerifyingKey
}

func NewKeys(srs *kzg.SRS, p *fast.Program) (*ProvingKey, *VerifyingKey) {
	return &ProvingKey{Program: p, KZG: srs.Pk}, &VerifyingKey{Program: p, KZG: srs.Vk}
}
