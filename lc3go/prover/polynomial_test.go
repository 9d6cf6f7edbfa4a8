package prover

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/fft"
	"github.com/stretchr/testify/require"
)

func randomVector(n int) []fr.Element {
	v := make([]fr.Element, n)
	for i := range v {
		v[i].MustSetRandom()
	}
	return v
}

func TestInterpolateAndBlind(t *testing.T) {
	const n = 32
	d := fft.NewDomain(n)
	evals := randomVector(n)
	coeffs := interpolate(d, evals)
	blinded, err := blind(coeffs)
	require.NoError(t, err)
	require.Len(t, blinded, n+3)
	require.NotEqual(t, coeffs, blinded[:n])

	x := fr.One()
	for i := 0; i < n; i++ {
		require.Equal(t, evals[i], evalPoly(coeffs, &x), "row %d", i)
		require.Equal(t, evals[i], evalPoly(blinded, &x), "blinded row %d", i)
		x.Mul(&x, &d.Generator)
	}
}

func TestCosetRoundTrip(t *testing.T) {
	const n = 64
	coset := fft.NewDomain(n)
	coeffs := randomVector(n / 2)
	evals := cosetLDE(coset, coeffs)

	x := coset.FrMultiplicativeGen
	for i := 0; i < 4; i++ {
		require.Equal(t, evalPoly(coeffs, &x), evals[i])
		x.Mul(&x, &coset.Generator)
	}

	cosetInterpolate(coset, evals)
	require.Equal(t, coeffs, evals[:n/2])
	for i := n / 2; i < n; i++ {
		require.True(t, evals[i].IsZero())
	}
}

func TestSelectors(t *testing.T) {
	const n = 32
	d := fft.NewDomain(n)
	coset := fft.NewDomain(8 * n)
	sel, zhInv := cosetSelectors(d, coset)

	// Every coset point agrees with the single-point formula used by the verifier.
	x := coset.FrMultiplicativeGen
	for i := 0; i < 20; i++ {
		var zh fr.Element
		zh.Exp(x, big.NewInt(n)).Sub(&zh, &one)
		want, err := lagrangeBoundary(d, &x, &zh)
		require.NoError(t, err)
		require.Equal(t, want, sel[i])

		var inv fr.Element
		inv.Inverse(&zh)
		require.Equal(t, inv, zhInv[i%8])
		x.Mul(&x, &coset.Generator)
	}

	root := fr.One()
	var zero fr.Element
	_, err := lagrangeBoundary(d, &root, &zero)
	require.Error(t, err)
}
