package constraint

import (
	"fmt"
	"runtime"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"golang.org/x/sync/errgroup"
)

// rowEnv evaluates expressions on one row of a witness.
type rowEnv struct {
	w         *Witness
	ch        *Challenges
	row, next int
}

func (e *rowEnv) at(row int) {
	e.row = row
	e.next = (row + 1) % e.w.N
}

func (e *rowEnv) Column(c Column) fr.Element { return e.w.Columns[c][e.row] }

func (e *rowEnv) Next(c Column) fr.Element { return e.w.Columns[c][e.next] }

func (e *rowEnv) Selector(s Selector) fr.Element {
	var on bool
	switch s {
	case FirstRow:
		on = e.row == 0
	case LastRow:
		on = e.row == e.w.N-1
	case NotLast:
		on = e.row != e.w.N-1
	}
	if on {
		return fr.One()
	}
	return fr.Element{}
}

func (e *rowEnv) Challenge(c Challenge) fr.Element {
	switch c {
	case Alpha:
		return e.ch.Alpha
	case Gamma:
		return e.ch.Gamma
	default:
		return e.ch.Rho
	}
}

// ComputeProducts fills the PP and Z columns for the given challenges.
func (s *System) ComputeProducts(w *Witness, alpha, gamma fr.Element) error {
	if w.N != s.N {
		return fmt.Errorf("witness has %d rows, system expects %d", w.N, s.N)
	}
	rho, err := ComputeRho(s.Image, s.Public, alpha, gamma)
	if err != nil {
		return err
	}
	ch := &Challenges{Alpha: alpha, Gamma: gamma, Rho: rho}
	cpu := make([]fr.Element, w.N)
	mem := make([]fr.Element, w.N)
	env := &rowEnv{w: w, ch: ch}
	for i := 0; i < w.N; i++ {
		env.at(i)
		fetch, aux := s.factors.fetch.Eval(env), s.factors.aux.Eval(env)
		data, io := s.factors.data.Eval(env), s.factors.io.Eval(env)
		w.Columns[ColPP][i].Mul(&fetch, &aux)
		cpu[i].Mul(&w.Columns[ColPP][i], &data).Mul(&cpu[i], &io)
		mem[i] = s.factors.mem.Eval(env)
		if mem[i].IsZero() {
			return ErrDegenerateChallenge
		}
	}
	inv := fr.BatchInvert(mem)
	z := fr.One()
	w.Columns[ColZ][0] = z
	for i := 0; i+1 < w.N; i++ {
		z.Mul(&z, &cpu[i]).Mul(&z, &inv[i])
		w.Columns[ColZ][i+1] = z
	}
	w.challenges = ch
	return nil
}

// Check evaluates every constraint on every row and reports the failure on the
// lowest row. The running products must have been computed.
func (s *System) Check(w *Witness) error {
	if w.challenges == nil {
		return ErrMissingProducts
	}
	if w.N != s.N {
		return fmt.Errorf("witness has %d rows, system expects %d", w.N, s.N)
	}
	workers := runtime.GOMAXPROCS(0)
	chunk := (w.N + workers - 1) / workers
	failures := make([]*Failure, workers)
	var g errgroup.Group
	for k := 0; k < workers; k++ {
		lo, hi := k*chunk, min((k+1)*chunk, w.N)
		g.Go(func() error {
			env := &rowEnv{w: w, ch: w.challenges}
			for row := lo; row < hi; row++ {
				env.at(row)
				for _, c := range s.Constraints {
					if v := c.Expr.Eval(env); !v.IsZero() {
						failures[k] = &Failure{Handle: c.Handle, Row: row, Step: stepOf(c.Handle, row, w)}
						return nil
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, f := range failures {
		if f != nil {
			return f
		}
	}
	return nil
}
