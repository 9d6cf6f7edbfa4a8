package prover

import (
	"fmt"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/fft"
)

// interpolate returns the coefficients of the polynomial taking evals on the domain.
func interpolate(d *fft.Domain, evals []fr.Element) []fr.Element {
	out := slices.Clone(evals)
	d.FFTInverse(out, fft.DIF)
	fft.BitReverse(out)
	return out
}

// blind adds (b0 + b1*x + b2*x^2)(x^n - 1) for random b, which leaves the values
// on the domain of size n = len(coeffs) unchanged.
func blind(coeffs []fr.Element) ([]fr.Element, error) {
	n := len(coeffs)
	out := make([]fr.Element, n+3)
	copy(out, coeffs)
	for k := 0; k < 3; k++ {
		var b fr.Element
		if _, err := b.SetRandom(); err != nil {
			return nil, fmt.Errorf("sample blinding: %w", err)
		}
		out[k].Sub(&out[k], &b)
		out[n+k].Add(&out[n+k], &b)
	}
	return out, nil
}

var one = fr.One()

// cosetLDE evaluates coeffs on the shifted domain, in natural order.
func cosetLDE(coset *fft.Domain, coeffs []fr.Element) []fr.Element {
	out := make([]fr.Element, coset.Cardinality)
	copy(out, coeffs)
	coset.FFT(out, fft.DIF, fft.OnCoset())
	fft.BitReverse(out)
	return out
}

// cosetInterpolate is the inverse of cosetLDE.
func cosetInterpolate(coset *fft.Domain, evals []fr.Element) {
	coset.FFTInverse(evals, fft.DIF, fft.OnCoset())
	fft.BitReverse(evals)
}

func evalPoly(coeffs []fr.Element, x *fr.Element) fr.Element {
	var acc fr.Element
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.Mul(&acc, x).Add(&acc, &coeffs[i])
	}
	return acc
}

// selectorValues are the fixed selector polynomials at one point x of a domain of n rows:
// L_0(x), L_{n-1}(x) and x - w^(n-1).
type selectorValues struct {
	first, last, notLast fr.Element
}

// lagrangeBoundary computes the selectors at x given zh = x^n - 1. It fails when x
// lies in the domain.
func lagrangeBoundary(d *fft.Domain, x, zh *fr.Element) (selectorValues, error) {
	var s selectorValues
	var nEl, den0, denLast fr.Element
	nEl.SetUint64(d.Cardinality)
	lastRoot := d.GeneratorInv

	den0.SetOne()
	den0.Sub(x, &den0).Mul(&den0, &nEl)
	s.notLast.Sub(x, &lastRoot)
	denLast.Mul(&s.notLast, &nEl)
	if den0.IsZero() || denLast.IsZero() || zh.IsZero() {
		return s, fmt.Errorf("point in the trace domain")
	}
	den0.Inverse(&den0)
	denLast.Inverse(&denLast)
	s.first.Mul(zh, &den0)
	s.last.Mul(zh, &lastRoot).Mul(&s.last, &denLast)
	return s, nil
}
