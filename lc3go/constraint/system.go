package constraint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

const (
	// MaxDegree bounds the degree of every constraint, counted in trace-sized factors.
	MaxDegree = 7
	// Blowup is the size of the quotient evaluation coset relative to the trace domain.
	Blowup = MaxDegree + 1
)

// Constraint is a named polynomial relation that must vanish on every row.
type Constraint struct {
	Handle string
	Expr   Expr
}

// factors are the grand-product terms contributed by one row.
type factors struct {
	fetch, aux, data, io, mem Expr
}

// System is the constraint system for one claim. It depends only on public data:
// the initial image and the public inputs.
type System struct {
	Public *PublicInputs
	Image  []fast.ImageWord
	// N is the number of rows of the trace domain.
	N int

	Constraints []Constraint

	factors factors
	shifted []Column
}

// NewSystem builds the constraint system for a claim about the program whose
// initial memory is image.
func NewSystem(pub *PublicInputs, image []fast.ImageWord) (*System, error) {
	if err := pub.Validate(); err != nil {
		return nil, err
	}
	s := &System{
		Public: pub,
		Image:  image,
		N:      DomainSize(pub.StepBound, len(image)),
	}
	s.factors = productFactors()
	s.Constraints = append(s.Constraints, cpuConstraints(pub)...)
	s.Constraints = append(s.Constraints, memoryConstraints()...)
	s.Constraints = append(s.Constraints, productConstraints(s.factors)...)

	shifted := make(map[Column]bool)
	for _, c := range s.Constraints {
		if d := c.Expr.Degree(); d > MaxDegree {
			return nil, fmt.Errorf("constraint %q has degree %d, limit %d", c.Handle, d, MaxDegree)
		}
		Walk(c.Expr, func(e Expr) {
			if ce, ok := e.(colExpr); ok && ce.next {
				shifted[ce.col] = true
			}
		})
	}
	for c := range shifted {
		s.shifted = append(s.shifted, c)
	}
	sort.Slice(s.shifted, func(i, j int) bool { return s.shifted[i] < s.shifted[j] })
	return s, nil
}

// Shifted lists, in ascending order, the columns some constraint reads on the next row.
func (s *System) Shifted() []Column {
	return s.shifted
}

// nextRowHandles are the memory constraints that judge the entry on the following row.
var nextRowHandles = map[string]bool{
	"mem.same.addr":  true,
	"mem.same.time":  true,
	"mem.order.addr": true,
	"mem.first.addr": true,
	"mem.first.same": true,
	"mem.read":       true,
}

// stepOf maps a failing row back to the execution step it encodes.
func stepOf(handle string, row int, w *Witness) int64 {
	if strings.HasPrefix(handle, "mem.") {
		if nextRowHandles[handle] {
			row = (row + 1) % w.N
		}
		t := w.Columns[ColMTime][row]
		if !t.IsUint64() || t.Uint64() == 0 {
			return -1
		}
		return int64((t.Uint64() - 1) / 3)
	}
	if row < w.Steps {
		return int64(row)
	}
	return -1
}

// constraints is a small builder that names constraints as they are added.
type constraints []Constraint

func (cs *constraints) add(handle string, e Expr) {
	*cs = append(*cs, Constraint{Handle: handle, Expr: e})
}

func (cs *constraints) boolean(handle string, c Column) {
	cs.add(handle, Mul(Col(c), Not(Col(c))))
}

func (cs *constraints) booleans(handle string, first Column, n int) {
	for k := 0; k < n; k++ {
		cs.boolean(fmt.Sprintf("%s%d", handle, k), first+Column(k))
	}
}
