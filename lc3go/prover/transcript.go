package prover

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"
	"golang.org/x/crypto/sha3"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
)

const (
	challengeAlpha  = "alpha"
	challengeGamma  = "gamma"
	challengeLambda = "lambda"
	challengeZeta   = "zeta"
)

// transcript derives the verifier challenges. Prover and verifier feed it the same
// values in the same order.
type transcript struct {
	fs *fiatshamir.Transcript
}

func newTranscript(pub *constraint.PublicInputs, n int) (*transcript, error) {
	t := &transcript{fs: fiatshamir.NewTranscript(sha3.NewLegacyKeccak256(),
		challengeAlpha, challengeGamma, challengeLambda, challengeZeta)}
	if err := t.fs.Bind(challengeAlpha, pub.Bytes()); err != nil {
		return nil, err
	}
	if err := t.fs.Bind(challengeAlpha, binary.BigEndian.AppendUint64(nil, uint64(n))); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *transcript) bind(id string, digests ...kzg.Digest) error {
	for i := range digests {
		b := digests[i].Bytes()
		if err := t.fs.Bind(id, b[:]); err != nil {
			return fmt.Errorf("bind %s: %w", id, err)
		}
	}
	return nil
}

func (t *transcript) challenge(id string) (fr.Element, error) {
	b, err := t.fs.ComputeChallenge(id)
	if err != nil {
		return fr.Element{}, fmt.Errorf("challenge %s: %w", id, err)
	}
	var e fr.Element
	e.SetBytes(b)
	return e, nil
}

// challenges holds every challenge of one proof, in derivation order.
type challenges struct {
	alpha, gamma, lambda, zeta fr.Element
}

// replay derives all challenges from the commitments of a proof. The prover
// interleaves the same steps with its rounds.
func replay(pub *constraint.PublicInputs, n int, proof *Proof) (*challenges, error) {
	t, err := newTranscript(pub, n)
	if err != nil {
		return nil, err
	}
	var ch challenges
	if err := t.bind(challengeAlpha, proof.Commitments[:constraint.NumTraceColumns]...); err != nil {
		return nil, err
	}
	if ch.alpha, err = t.challenge(challengeAlpha); err != nil {
		return nil, err
	}
	if ch.gamma, err = t.challenge(challengeGamma); err != nil {
		return nil, err
	}
	if err := t.bind(challengeLambda, proof.Commitments[constraint.NumTraceColumns:]...); err != nil {
		return nil, err
	}
	if ch.lambda, err = t.challenge(challengeLambda); err != nil {
		return nil, err
	}
	if err := t.bind(challengeZeta, proof.Quotient); err != nil {
		return nil, err
	}
	if ch.zeta, err = t.challenge(challengeZeta); err != nil {
		return nil, err
	}
	return &ch, nil
}
