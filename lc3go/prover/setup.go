package prover

import (
	"bufio"
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
)

// quotientLen is the number of coefficients of the quotient over a domain of n rows.
// Columns are blinded to degree n+2 and every constraint has at most MaxDegree such
// factors plus one linear selector.
func quotientLen(n int) int {
	return (constraint.MaxDegree-1)*n + 2*constraint.MaxDegree + 2
}

// SRSSize is the number of G1 points needed to prove over a domain of n rows.
func SRSSize(n int) int {
	return quotientLen(n)
}

// Setup samples a reference string for domains of up to maxDomain rows.
// The toxic secret is dropped on return; this is a single-party setup.
func Setup(maxDomain int) (*kzg.SRS, error) {
	var secret fr.Element
	if _, err := secret.SetRandom(); err != nil {
		return nil, fmt.Errorf("sample srs secret: %w", err)
	}
	var b big.Int
	secret.BigInt(&b)
	srs, err := kzg.NewSRS(uint64(SRSSize(maxDomain)), &b)
	if err != nil {
		return nil, fmt.Errorf("generate srs: %w", err)
	}
	return srs, nil
}

// SetupForProgram sizes the reference string for an image of imageWords words run within stepBound steps.
func SetupForProgram(imageWords int, stepBound uint64) (*kzg.SRS, error) {
	if stepBound == 0 || stepBound > constraint.MaxStepBound {
		return nil, fmt.Errorf("%w: step bound %d", constraint.ErrInvalidPublicInputs, stepBound)
	}
	return Setup(constraint.DomainSize(stepBound, imageWords))
}

func WriteSRS(path string, srs *kzg.SRS) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create srs file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := srs.WriteTo(w); err != nil {
		return fmt.Errorf("encode srs: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write srs: %w", err)
	}
	return f.Close()
}

func ReadSRS(path string) (*kzg.SRS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open srs file: %w", err)
	}
	defer f.Close()
	var srs kzg.SRS
	if _, err := srs.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("decode srs: %w", err)
	}
	return &srs, nil
}
