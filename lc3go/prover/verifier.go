package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"golang.org/x/crypto/sha3"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
)

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProofVerificationFailure, fmt.Sprintf(format, args...))
}

// openingEnv evaluates expressions from the values opened at zeta and zeta*omega.
type openingEnv struct {
	at   []fr.Element
	next map[constraint.Column]fr.Element
	sel  selectorValues
	ch   *constraint.Challenges
}

func (e *openingEnv) Column(c constraint.Column) fr.Element { return e.at[c] }

func (e *openingEnv) Next(c constraint.Column) fr.Element { return e.next[c] }

func (e *openingEnv) Selector(s constraint.Selector) fr.Element {
	switch s {
	case constraint.FirstRow:
		return e.sel.first
	case constraint.LastRow:
		return e.sel.last
	default:
		return e.sel.notLast
	}
}

func (e *openingEnv) Challenge(c constraint.Challenge) fr.Element {
	return challengeValue(e.ch, c)
}

// Verify accepts the proof by returning nil. Any rejection wraps ErrProofVerificationFailure.
// The work is independent of the trace length: it rebuilds the constraint relations from
// the public inputs and the program image, checks two batched openings and one identity
// at the challenge point.
func Verify(vk *VerifyingKey, pub *constraint.PublicInputs, proof *Proof) error {
	if pub.ProgramHash != vk.Program.Commitment() {
		return fmt.Errorf("%w: %w", ErrProofVerificationFailure, ErrProgramMismatch)
	}
	image := vk.Program.Image()
	sys, err := constraint.NewSystem(pub, image)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProofVerificationFailure, err)
	}
	shifted := sys.Shifted()
	if err := proof.checkShape(len(shifted)); err != nil {
		return fmt.Errorf("%w: %w", ErrProofVerificationFailure, err)
	}
	n := sys.N
	ch, err := replay(pub, n, proof)
	if err != nil {
		return reject("transcript: %v", err)
	}
	rho, err := constraint.ComputeRho(image, pub, ch.alpha, ch.gamma)
	if err != nil {
		return reject("%v", err)
	}

	digests := append(append([]kzg.Digest{}, proof.Commitments...), proof.Quotient)
	if err := kzg.BatchVerifySinglePoint(digests, &proof.AtZeta, ch.zeta, sha3.NewLegacyKeccak256(), vk.KZG); err != nil {
		return reject("opening at zeta: %v", err)
	}
	domain := fft.NewDomain(uint64(n), fft.WithoutPrecompute())
	sDigests := make([]kzg.Digest, len(shifted))
	next := make(map[constraint.Column]fr.Element, len(shifted))
	for i, c := range shifted {
		sDigests[i] = proof.Commitments[c]
		next[c] = proof.AtZetaOmega.ClaimedValues[i]
	}
	var zetaOmega fr.Element
	zetaOmega.Mul(&ch.zeta, &domain.Generator)
	if err := kzg.BatchVerifySinglePoint(sDigests, &proof.AtZetaOmega, zetaOmega, sha3.NewLegacyKeccak256(), vk.KZG); err != nil {
		return reject("opening at shifted zeta: %v", err)
	}

	var zh fr.Element
	zh.Exp(ch.zeta, new(big.Int).SetUint64(uint64(n))).Sub(&zh, &one)
	sel, err := lagrangeBoundary(domain, &ch.zeta, &zh)
	if err != nil {
		return reject("zeta: %v", err)
	}
	env := &openingEnv{
		at:   proof.AtZeta.ClaimedValues[:constraint.NumColumns],
		next: next,
		sel:  sel,
		ch:   &constraint.Challenges{Alpha: ch.alpha, Gamma: ch.gamma, Rho: rho},
	}
	lhs := combine(sys.Constraints, env, &ch.lambda)
	var rhs fr.Element
	rhs.Mul(&proof.AtZeta.ClaimedValues[constraint.NumColumns], &zh)
	if !lhs.Equal(&rhs) {
		return reject("constraint identity does not hold at zeta")
	}
	return nil
}

// VerifyBool reports acceptance only.
func VerifyBool(vk *VerifyingKey, pub *constraint.PublicInputs, proof *Proof) bool {
	return Verify(vk, pub, proof) == nil
}
