package prover

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/kzg"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
	"github.com/lc3zk/lc3zk/lc3go/fast"
)

type Config struct {
	// Debug checks every constraint row by row before proving, and reports the
	// first failing constraint and step. Without it an unsatisfied witness is
	// caught by the quotient degree check, with no location.
	Debug bool
	// Workers bounds the parallel interpolation, commitment and quotient jobs.
	// Zero means GOMAXPROCS.
	Workers int
	Logger  log.Logger
}

type Prover struct {
	pk  *ProvingKey
	cfg Config
	log log.Logger
}

func NewProver(pk *ProvingKey, cfg Config) *Prover {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Prover{pk: pk, cfg: cfg, log: logger}
}

func (p *Prover) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	return g, ctx
}

// Prove produces a proof that the trace is a halted run of the key's program with
// the given public inputs. A trace that does not satisfy the constraints yields no proof.
func (p *Prover) Prove(ctx context.Context, tr *fast.Trace, pub *constraint.PublicInputs) (*Proof, error) {
	if pub.ProgramHash != p.pk.Program.Commitment() {
		return nil, ErrProgramMismatch
	}
	sys, w, err := constraint.Encode(tr, p.pk.Program.Image(), pub)
	if err != nil {
		return nil, err
	}
	n := sys.N
	if need := SRSSize(n); len(p.pk.KZG.G1) < need {
		return nil, fmt.Errorf("%w: domain of %d rows needs %d points, have %d", ErrSRSTooSmall, n, need, len(p.pk.KZG.G1))
	}
	p.log.Info("Encoded trace", "steps", w.Steps, "rows", n, "constraints", len(sys.Constraints))

	domain := fft.NewDomain(uint64(n))
	ts, err := newTranscript(pub, n)
	if err != nil {
		return nil, err
	}
	proof := &Proof{Commitments: make([]kzg.Digest, constraint.NumColumns)}
	polys := make([][]fr.Element, constraint.NumColumns, constraint.NumColumns+1)

	if err := p.commitColumns(ctx, domain, w, 0, constraint.Column(constraint.NumTraceColumns), polys, proof.Commitments); err != nil {
		return nil, err
	}
	if err := ts.bind(challengeAlpha, proof.Commitments[:constraint.NumTraceColumns]...); err != nil {
		return nil, err
	}
	alpha, err := ts.challenge(challengeAlpha)
	if err != nil {
		return nil, err
	}
	gamma, err := ts.challenge(challengeGamma)
	if err != nil {
		return nil, err
	}
	if err := sys.ComputeProducts(w, alpha, gamma); err != nil {
		return nil, err
	}
	if p.cfg.Debug {
		if err := sys.Check(w); err != nil {
			return nil, err
		}
	}

	if err := p.commitColumns(ctx, domain, w, constraint.Column(constraint.NumTraceColumns), constraint.Column(constraint.NumColumns), polys, proof.Commitments); err != nil {
		return nil, err
	}
	if err := ts.bind(challengeLambda, proof.Commitments[constraint.NumTraceColumns:]...); err != nil {
		return nil, err
	}
	lambda, err := ts.challenge(challengeLambda)
	if err != nil {
		return nil, err
	}

	quot, err := p.quotient(ctx, sys, domain, polys, w.Challenges(), lambda)
	if err != nil {
		return nil, err
	}
	if proof.Quotient, err = kzg.Commit(quot, p.pk.KZG); err != nil {
		return nil, fmt.Errorf("commit quotient: %w", err)
	}
	if err := ts.bind(challengeZeta, proof.Quotient); err != nil {
		return nil, err
	}
	zeta, err := ts.challenge(challengeZeta)
	if err != nil {
		return nil, err
	}
	var zh fr.Element
	zh.Exp(zeta, new(big.Int).SetUint64(uint64(n))).Sub(&zh, &one)
	if zh.IsZero() {
		return nil, constraint.ErrDegenerateChallenge
	}

	polys = append(polys, quot)
	digests := append(slices.Clone(proof.Commitments), proof.Quotient)
	if proof.AtZeta, err = kzg.BatchOpenSinglePoint(polys, digests, zeta, sha3.NewLegacyKeccak256(), p.pk.KZG); err != nil {
		return nil, fmt.Errorf("open at zeta: %w", err)
	}
	shifted := sys.Shifted()
	sPolys := make([][]fr.Element, len(shifted))
	sDigests := make([]kzg.Digest, len(shifted))
	for i, c := range shifted {
		sPolys[i], sDigests[i] = polys[c], proof.Commitments[c]
	}
	var zetaOmega fr.Element
	zetaOmega.Mul(&zeta, &domain.Generator)
	if proof.AtZetaOmega, err = kzg.BatchOpenSinglePoint(sPolys, sDigests, zetaOmega, sha3.NewLegacyKeccak256(), p.pk.KZG); err != nil {
		return nil, fmt.Errorf("open at shifted zeta: %w", err)
	}
	p.log.Info("Proof complete", "rows", n, "commitments", len(digests), "shifted", len(shifted))
	return proof, nil
}

// commitColumns interpolates, blinds and commits columns [from, to). Results land at
// their column index so the transcript order does not depend on scheduling.
func (p *Prover) commitColumns(ctx context.Context, domain *fft.Domain, w *constraint.Witness, from, to constraint.Column, polys [][]fr.Element, digests []kzg.Digest) error {
	g, ctx := p.group(ctx)
	for c := from; c < to; c++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			coeffs, err := blind(interpolate(domain, w.Columns[c]))
			if err != nil {
				return err
			}
			d, err := kzg.Commit(coeffs, p.pk.KZG)
			if err != nil {
				return fmt.Errorf("commit column %s: %w", c, err)
			}
			polys[c], digests[c] = coeffs, d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.log.Debug("Committed columns", "from", from, "to", to)
	return nil
}

// cosetEnv evaluates expressions at one point of the quotient coset.
type cosetEnv struct {
	lde       [][]fr.Element
	sel       []selectorValues
	ch        *constraint.Challenges
	i, next   int
	shiftRows int
}

func (e *cosetEnv) at(i int) {
	e.i = i
	e.next = (i + e.shiftRows) % len(e.sel)
}

func (e *cosetEnv) Column(c constraint.Column) fr.Element { return e.lde[c][e.i] }

func (e *cosetEnv) Next(c constraint.Column) fr.Element { return e.lde[c][e.next] }

func (e *cosetEnv) Selector(s constraint.Selector) fr.Element {
	switch s {
	case constraint.FirstRow:
		return e.sel[e.i].first
	case constraint.LastRow:
		return e.sel[e.i].last
	default:
		return e.sel[e.i].notLast
	}
}

func (e *cosetEnv) Challenge(c constraint.Challenge) fr.Element {
	return challengeValue(e.ch, c)
}

func challengeValue(ch *constraint.Challenges, c constraint.Challenge) fr.Element {
	switch c {
	case constraint.Alpha:
		return ch.Alpha
	case constraint.Gamma:
		return ch.Gamma
	default:
		return ch.Rho
	}
}

// combine is sum_k lambda^k c_k(env) over all constraints.
func combine(cs []constraint.Constraint, env constraint.Env, lambda *fr.Element) fr.Element {
	var acc fr.Element
	for k := len(cs) - 1; k >= 0; k-- {
		v := cs[k].Expr.Eval(env)
		acc.Mul(&acc, lambda).Add(&acc, &v)
	}
	return acc
}

// quotient computes t = C / Z_H on a coset of Blowup*N points and checks that the
// division was exact.
func (p *Prover) quotient(ctx context.Context, sys *constraint.System, domain *fft.Domain,
	polys [][]fr.Element, ch *constraint.Challenges, lambda fr.Element) ([]fr.Element, error) {
	n := sys.N
	m := constraint.Blowup * n
	coset := fft.NewDomain(uint64(m))

	lde := make([][]fr.Element, len(polys))
	g, gctx := p.group(ctx)
	for c := range polys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lde[c] = cosetLDE(coset, polys[c])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sel, zhInv := cosetSelectors(domain, coset)
	out := make([]fr.Element, m)
	chunk := (m + p.cfg.Workers - 1) / p.cfg.Workers
	g, gctx = p.group(ctx)
	for lo := 0; lo < m; lo += chunk {
		hi := min(lo+chunk, m)
		g.Go(func() error {
			env := &cosetEnv{lde: lde, sel: sel, ch: ch, shiftRows: constraint.Blowup}
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				env.at(i)
				v := combine(sys.Constraints, env, &lambda)
				out[i].Mul(&v, &zhInv[i%constraint.Blowup])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cosetInterpolate(coset, out)
	qlen := quotientLen(n)
	for i := qlen; i < m; i++ {
		if !out[i].IsZero() {
			return nil, fmt.Errorf("%w: quotient exceeds its degree bound", constraint.ErrConstraintUnsatisfiable)
		}
	}
	return out[:qlen], nil
}

// cosetSelectors evaluates the selectors on every coset point, and the inverse of
// Z_H, which takes only Blowup distinct values there.
func cosetSelectors(domain, coset *fft.Domain) ([]selectorValues, []fr.Element) {
	n := domain.Cardinality
	m := int(coset.Cardinality)

	// x^n on the coset cycles through shift^n * mu^j with mu a primitive Blowup-th root.
	var shiftN, mu fr.Element
	shiftN.Exp(coset.FrMultiplicativeGen, new(big.Int).SetUint64(n))
	mu.Exp(coset.Generator, new(big.Int).SetUint64(n))
	zh := make([]fr.Element, constraint.Blowup)
	cur := shiftN
	for j := range zh {
		zh[j].Sub(&cur, &one)
		cur.Mul(&cur, &mu)
	}
	zhInv := fr.BatchInvert(zh)

	var nEl fr.Element
	nEl.SetUint64(n)
	lastRoot := domain.GeneratorInv
	xs := make([]fr.Element, m)
	den := make([]fr.Element, 2*m)
	x := coset.FrMultiplicativeGen
	for i := 0; i < m; i++ {
		xs[i] = x
		den[i].Sub(&x, &one).Mul(&den[i], &nEl)
		den[m+i].Sub(&x, &lastRoot).Mul(&den[m+i], &nEl)
		x.Mul(&x, &coset.Generator)
	}
	inv := fr.BatchInvert(den)

	sel := make([]selectorValues, m)
	for i := range sel {
		z := &zh[i%constraint.Blowup]
		sel[i].first.Mul(z, &inv[i])
		sel[i].last.Mul(z, &lastRoot).Mul(&sel[i].last, &inv[m+i])
		sel[i].notLast.Sub(&xs[i], &lastRoot)
	}
	return sel, zhInv
}
