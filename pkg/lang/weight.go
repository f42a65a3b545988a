package lang

import (
	"strconv"

	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Literal is anything that can stand as a rule head or body element: a bare
// *Atom or a *WeightedAtom.
type Literal interface {
	Atom() *Atom
	Weight() *WeightSpec
	Format() pp.Doc
	String() string
	EqualLiteral(Literal) bool
}

// WeightSpec describes the learnable (or fixed) tensor attached to a literal.
// Exactly one of Shape or Value is set.
type WeightSpec struct {
	Shape []int
	Value *float64
	// Fixed weights are not updated by the engine.
	Fixed bool
}

// Shape returns a learnable weight of the given dimensions, e.g. Shape(out, in).
func Shape(dims ...int) WeightSpec {
	copied := make([]int, len(dims))
	copy(copied, dims)
	return WeightSpec{Shape: copied}
}

// Scalar returns a learnable scalar weight initialized to v.
func Scalar(v float64) WeightSpec {
	return WeightSpec{Value: &v}
}

// FixedScalar returns a non-learnable scalar weight.
func FixedScalar(v float64) WeightSpec {
	return WeightSpec{Value: &v, Fixed: true}
}

func (w WeightSpec) Format() pp.Doc {
	var doc pp.Doc
	if w.Value != nil {
		doc = pp.Text(strconv.FormatFloat(*w.Value, 'g', -1, 64))
	} else {
		dimDocs := make([]pp.Doc, len(w.Shape))
		for idx, dim := range w.Shape {
			dimDocs[idx] = pp.Textf("%d", dim)
		}
		doc = pp.Surround("{", pp.Join(dimDocs, pp.CommaSpace), "}")
	}
	if w.Fixed {
		return pp.Surround("<", doc, ">")
	}
	return doc
}

func (w WeightSpec) String() string { return w.Format().String() }

func (w WeightSpec) Equal(other WeightSpec) bool {
	if w.Fixed != other.Fixed || len(w.Shape) != len(other.Shape) {
		return false
	}
	if (w.Value == nil) != (other.Value == nil) {
		return false
	}
	if w.Value != nil && *w.Value != *other.Value {
		return false
	}
	for idx := range w.Shape {
		if w.Shape[idx] != other.Shape[idx] {
			return false
		}
	}
	return true
}

// WeightedAtom pairs an atom with a weight. The relational identity is the
// wrapped atom's.
type WeightedAtom struct {
	atom   *Atom
	weight WeightSpec
}

var _ Literal = &WeightedAtom{}

func (w *WeightedAtom) Atom() *Atom { return w.atom }

func (w *WeightedAtom) Weight() *WeightSpec {
	weight := w.weight
	return &weight
}

func (w *WeightedAtom) Format() pp.Doc {
	return pp.Seq(w.weight.Format(), pp.Text(" "), w.atom.Format())
}

func (w *WeightedAtom) String() string { return w.Format().String() }

func (w *WeightedAtom) EqualLiteral(other Literal) bool {
	otherWeight := other.Weight()
	return otherWeight != nil &&
		w.weight.Equal(*otherWeight) &&
		w.atom.Equal(other.Atom())
}
