package lang

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Term is an argument of an atom: a Variable, a Constant or a nested *Atom.
// Terms are immutable and compared structurally.
type Term interface {
	Format() pp.Doc
	String() string
	Equal(Term) bool

	isTerm()
}

var (
	variableName = regexp.MustCompile(`^[A-Z_][a-zA-Z0-9_]*$`)
	symbolName   = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)
	numberText   = regexp.MustCompile(`^[-+]?\d*\.?\d+([eE][-+]?\d+)?$`)
)

// Variable

type Variable struct {
	name string
}

var _ Term = Variable{}

// Var returns the variable with the given name. Names are scoped to the
// rule they appear in; two variables are equal iff their names are.
func Var(name string) Variable {
	return Variable{name: name}
}

// Commonly used rule variables.
var (
	X = Var("X")
	Y = Var("Y")
	Z = Var("Z")
	E = Var("E")
	R = Var("R")
)

func (v Variable) Name() string { return v.name }

func (v Variable) Format() pp.Doc { return pp.Text(v.name) }

func (v Variable) String() string { return v.name }

func (v Variable) Equal(other Term) bool {
	o, ok := other.(Variable)
	return ok && o.name == v.name
}

func (Variable) isTerm() {}

// IsVariableName reports whether s would be read back as a variable.
func IsVariableName(s string) bool {
	return variableName.MatchString(s)
}

// IsRelationName reports whether s can name a relation in template text.
func IsRelationName(s string) bool {
	return symbolName.MatchString(s)
}

// Constant

type constKind int

const (
	symbolConst constKind = iota
	numberConst
)

type Constant struct {
	kind constKind
	lit  string
}

var _ Term = Constant{}

// NewConst builds a constant from a Go literal. Integers and floats become
// numeric constants; anything else is rendered with %v and becomes a symbol.
// Non-finite floats and symbols that are not valid UTF-8 have no template
// form and are rejected.
func NewConst(value interface{}) (Constant, error) {
	switch v := value.(type) {
	case int:
		return Constant{kind: numberConst, lit: strconv.Itoa(v)}, nil
	case int64:
		return Constant{kind: numberConst, lit: strconv.FormatInt(v, 10)}, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return Constant{}, &InvalidConstantError{Value: v, Reason: "not a finite number"}
		}
		return Constant{kind: numberConst, lit: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case float32:
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			return Constant{}, &InvalidConstantError{Value: v, Reason: "not a finite number"}
		}
		return Constant{kind: numberConst, lit: strconv.FormatFloat(float64(v), 'g', -1, 32)}, nil
	case Constant:
		return v, nil
	}
	lit, ok := value.(string)
	if !ok {
		lit = fmt.Sprintf("%v", value)
	}
	if !utf8.ValidString(lit) {
		return Constant{}, &InvalidConstantError{Value: lit, Reason: "not valid UTF-8"}
	}
	return Constant{kind: symbolConst, lit: lit}, nil
}

// Const is like NewConst but panics on values NewConst rejects.
func Const(value interface{}) Constant {
	c, err := NewConst(value)
	if err != nil {
		panic(err)
	}
	return c
}

// ConstFromText reads a raw cell (e.g. from a CSV row): text in template
// number syntax becomes a numeric constant, everything else a symbol.
// Invalid UTF-8 is replaced with U+FFFD.
func ConstFromText(s string) Constant {
	if numberText.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return Constant{kind: numberConst, lit: s}
		}
	}
	return Constant{kind: symbolConst, lit: strings.ToValidUTF8(s, "\uFFFD")}
}

func (c Constant) Value() string { return c.lit }

func (c Constant) IsNumber() bool { return c.kind == numberConst }

func (c Constant) Format() pp.Doc {
	if c.kind == numberConst || symbolName.MatchString(c.lit) {
		return pp.Text(c.lit)
	}
	return pp.Text(strconv.Quote(c.lit))
}

func (c Constant) String() string { return c.Format().String() }

func (c Constant) Equal(other Term) bool {
	o, ok := other.(Constant)
	return ok && o.kind == c.kind && o.lit == c.lit
}

func (Constant) isTerm() {}

// Atom

// Atom is a relation name applied to an ordered list of terms, e.g.
// edge(X, Y). Atoms double as function terms when nested.
type Atom struct {
	relation string
	args     []Term
}

var _ Term = &Atom{}
var _ Literal = &Atom{}

// NewAtom returns relation(args...). The relation name must be non-empty.
func NewAtom(relation string, args ...Term) (*Atom, error) {
	if relation == "" {
		return nil, &EmptyRelationNameError{}
	}
	return &Atom{
		relation: relation,
		args:     termArgs(args),
	}, nil
}

// termArgs copies args, turning nested zero-arity atoms into the symbol
// constants they render as: p(f) means the same thing either way.
func termArgs(args []Term) []Term {
	out := make([]Term, len(args))
	for idx, arg := range args {
		if nested, ok := arg.(*Atom); ok && len(nested.args) == 0 {
			arg = Constant{kind: symbolConst, lit: nested.relation}
		}
		out[idx] = arg
	}
	return out
}

// MustAtom is like NewAtom but panics on an empty relation name. Useful for
// literal atoms in builders and tests.
func MustAtom(relation string, args ...Term) *Atom {
	atom, err := NewAtom(relation, args...)
	if err != nil {
		panic(err)
	}
	return atom
}

func (a *Atom) Relation() string { return a.relation }

func (a *Atom) Arity() int { return len(a.args) }

func (a *Atom) Args() []Term {
	out := make([]Term, len(a.args))
	copy(out, a.args)
	return out
}

// Predicate returns the relation/arity marker of this atom.
func (a *Atom) Predicate() Predicate {
	return Predicate{Name: a.relation, Arity: len(a.args)}
}

func (a *Atom) Format() pp.Doc {
	if len(a.args) == 0 {
		return pp.Text(a.relation)
	}
	argDocs := make([]pp.Doc, len(a.args))
	for idx, arg := range a.args {
		argDocs[idx] = arg.Format()
	}
	return pp.Seq(
		pp.Text(a.relation),
		pp.Surround("(", pp.Join(argDocs, pp.CommaSpace), ")"),
	)
}

func (a *Atom) String() string { return a.Format().String() }

func (a *Atom) Equal(other Term) bool {
	o, ok := other.(*Atom)
	if !ok || o.relation != a.relation || len(o.args) != len(a.args) {
		return false
	}
	for idx := range a.args {
		if !a.args[idx].Equal(o.args[idx]) {
			return false
		}
	}
	return true
}

func (*Atom) isTerm() {}

// Literal interface: a bare atom carries no weight.

func (a *Atom) Atom() *Atom { return a }

func (a *Atom) Weight() *WeightSpec { return nil }

func (a *Atom) EqualLiteral(other Literal) bool {
	return other.Weight() == nil && a.Equal(other.Atom())
}

// Weighted attaches a weight specification to the atom.
func (a *Atom) Weighted(w WeightSpec) *WeightedAtom {
	return &WeightedAtom{atom: a, weight: w}
}

// Dim attaches a learnable weight of the given shape, e.g. Dim(out, in).
func (a *Atom) Dim(dims ...int) *WeightedAtom {
	return a.Weighted(Shape(dims...))
}
