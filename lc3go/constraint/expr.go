package constraint

import (
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Selector is a fixed polynomial that picks out rows of the domain.
type Selector uint8

const (
	// FirstRow is one on row 0 and zero elsewhere.
	FirstRow Selector = iota
	// LastRow is one on row N-1 and zero elsewhere.
	LastRow
	// NotLast vanishes on row N-1 only. Off the last row it is nonzero but not
	// necessarily one, so it may only gate constraints that must vanish.
	NotLast
)

func (s Selector) String() string {
	switch s {
	case FirstRow:
		return "first"
	case LastRow:
		return "last"
	case NotLast:
		return "notlast"
	}
	return fmt.Sprintf("Selector(%d)", uint8(s))
}

// Challenge is a verifier randomness value, fixed after the trace columns are committed.
type Challenge uint8

const (
	// Alpha folds access tuples into single field elements.
	Alpha Challenge = iota
	// Gamma offsets folded tuples in the grand product.
	Gamma
	// Rho is the ratio of the public initial-memory and I/O products.
	Rho
)

func (c Challenge) String() string {
	switch c {
	case Alpha:
		return "alpha"
	case Gamma:
		return "gamma"
	case Rho:
		return "rho"
	}
	return fmt.Sprintf("Challenge(%d)", uint8(c))
}

// Env provides the values an expression is evaluated against: a table row,
// a coset point, or the opening point.
type Env interface {
	Column(c Column) fr.Element
	// Next is the value of the column on the following row.
	Next(c Column) fr.Element
	Selector(s Selector) fr.Element
	Challenge(c Challenge) fr.Element
}

// Expr is a polynomial expression over columns, selectors and challenges.
type Expr interface {
	Eval(env Env) fr.Element
	// Degree counts trace-sized polynomial factors. NotLast is linear and counts zero.
	Degree() int
	String() string
}

type colExpr struct {
	col  Column
	next bool
}

func (e colExpr) Eval(env Env) fr.Element {
	if e.next {
		return env.Next(e.col)
	}
	return env.Column(e.col)
}

func (e colExpr) Degree() int { return 1 }

func (e colExpr) String() string {
	if e.next {
		return e.col.String() + "'"
	}
	return e.col.String()
}

type constExpr struct {
	v fr.Element
}

func (e constExpr) Eval(Env) fr.Element { return e.v }

func (e constExpr) Degree() int { return 0 }

func (e constExpr) String() string { return e.v.String() }

type selExpr struct {
	sel Selector
}

func (e selExpr) Eval(env Env) fr.Element { return env.Selector(e.sel) }

func (e selExpr) Degree() int {
	if e.sel == NotLast {
		return 0
	}
	return 1
}

func (e selExpr) String() string { return e.sel.String() }

type chalExpr struct {
	ch Challenge
}

func (e chalExpr) Eval(env Env) fr.Element { return env.Challenge(e.ch) }

func (e chalExpr) Degree() int { return 0 }

func (e chalExpr) String() string { return e.ch.String() }

type sumExpr struct {
	terms []Expr
}

func (e sumExpr) Eval(env Env) fr.Element {
	var acc fr.Element
	for _, t := range e.terms {
		v := t.Eval(env)
		acc.Add(&acc, &v)
	}
	return acc
}

func (e sumExpr) Degree() int {
	d := 0
	for _, t := range e.terms {
		d = max(d, t.Degree())
	}
	return d
}

func (e sumExpr) String() string {
	parts := make([]string, len(e.terms))
	for i, t := range e.terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

type mulExpr struct {
	factors []Expr
}

func (e mulExpr) Eval(env Env) fr.Element {
	acc := fr.One()
	for _, f := range e.factors {
		v := f.Eval(env)
		acc.Mul(&acc, &v)
		if acc.IsZero() {
			break
		}
	}
	return acc
}

func (e mulExpr) Degree() int {
	d := 0
	for _, f := range e.factors {
		d += f.Degree()
	}
	return d
}

func (e mulExpr) String() string {
	parts := make([]string, len(e.factors))
	for i, f := range e.factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "*")
}

// Col references a column on the current row.
func Col(c Column) Expr { return colExpr{col: c} }

// Next references a column on the following row.
func Next(c Column) Expr { return colExpr{col: c, next: true} }

func Sel(s Selector) Expr { return selExpr{sel: s} }

func Chal(c Challenge) Expr { return chalExpr{ch: c} }

// Const is an integer constant; negative values are field negations.
func Const(v int64) Expr {
	var e fr.Element
	e.SetInt64(v)
	return constExpr{v: e}
}

func ConstElement(v fr.Element) Expr { return constExpr{v: v} }

func Add(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return sumExpr{terms: terms}
}

func Sub(a, b Expr) Expr {
	return sumExpr{terms: []Expr{a, Neg(b)}}
}

func Mul(factors ...Expr) Expr {
	if len(factors) == 1 {
		return factors[0]
	}
	return mulExpr{factors: factors}
}

func Neg(e Expr) Expr {
	return Scale(-1, e)
}

// Scale multiplies e by an integer constant.
func Scale(k int64, e Expr) Expr {
	return mulExpr{factors: []Expr{Const(k), e}}
}

// Not is 1 - e, the negation of a boolean expression.
func Not(e Expr) Expr {
	return Sub(Const(1), e)
}

// Weighted sums columns first, first+1, ... with weights 1, 2, 4, ...
func Weighted(first Column, n int) Expr {
	terms := make([]Expr, n)
	for k := 0; k < n; k++ {
		terms[k] = Scale(int64(1)<<k, Col(first+Column(k)))
	}
	return Add(terms...)
}

// Sum adds n consecutive columns.
func Sum(first Column, n int) Expr {
	terms := make([]Expr, n)
	for k := range terms {
		terms[k] = Col(first + Column(k))
	}
	return Add(terms...)
}

// Walk calls fn on e and all its subexpressions.
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	switch x := e.(type) {
	case sumExpr:
		for _, t := range x.terms {
			Walk(t, fn)
		}
	case mulExpr:
		for _, f := range x.factors {
			Walk(f, fn)
		}
	}
}
