package prover

import (
	"bytes"
	"fmt"
	"io"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
)

// Proof is a KZG-based proof of a halted run.
//
// Commitments holds one digest per column, products last. AtZeta opens every
// column and then the quotient at zeta; AtZetaOmega opens the shifted columns,
// in column order, at zeta times the domain generator.
type Proof struct {
	Commitments []kzg.Digest
	Quotient    kzg.Digest
	AtZeta      kzg.BatchOpeningProof
	AtZetaOmega kzg.BatchOpeningProof
}

func (p *Proof) checkShape(shifted int) error {
	switch {
	case len(p.Commitments) != constraint.NumColumns:
		return fmt.Errorf("%w: %d commitments, want %d", ErrMalformedProof, len(p.Commitments), constraint.NumColumns)
	case len(p.AtZeta.ClaimedValues) != constraint.NumColumns+1:
		return fmt.Errorf("%w: %d values at zeta, want %d", ErrMalformedProof, len(p.AtZeta.ClaimedValues), constraint.NumColumns+1)
	case len(p.AtZetaOmega.ClaimedValues) != shifted:
		return fmt.Errorf("%w: %d shifted values, want %d", ErrMalformedProof, len(p.AtZetaOmega.ClaimedValues), shifted)
	}
	return nil
}

// WriteTo writes the compressed binary encoding.
func (p *Proof) WriteTo(w io.Writer) (int64, error) {
	enc := bls12377.NewEncoder(w)
	for _, v := range []any{p.Commitments, &p.Quotient, &p.AtZeta, &p.AtZetaOmega} {
		if err := enc.Encode(v); err != nil {
			return enc.BytesWritten(), err
		}
	}
	return enc.BytesWritten(), nil
}

func (p *Proof) ReadFrom(r io.Reader) (int64, error) {
	dec := bls12377.NewDecoder(r)
	for _, v := range []any{&p.Commitments, &p.Quotient, &p.AtZeta, &p.AtZetaOmega} {
		if err := dec.Decode(v); err != nil {
			return dec.BytesRead(), fmt.Errorf("%w: %w", ErrMalformedProof, err)
		}
	}
	return dec.BytesRead(), nil
}

func (p *Proof) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return hexutil.Bytes(buf.Bytes()).MarshalText()
}

func (p *Proof) UnmarshalText(text []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	if _, err := p.ReadFrom(bytes.NewReader(b)); err != nil {
		return err
	}
	return nil
}

// Artifact is the proof file: the claim and its proof, verifiable without the trace.
type Artifact struct {
	Public *constraint.PublicInputs `json:"public"`
	Proof  *Proof                   `json:"proof"`
}
