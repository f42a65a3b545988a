package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuleString(t *testing.T) {
	head := MustAtom("a", X)
	body := MustAtom("b", X)
	rule, err := MakeRule(head, body)
	require.NoError(t, err)
	require.Equal(t, "a(X) :- b(X).", rule.String())

	multi := MustRule(MustAtom("h", X).Dim(2, 3), MustAtom("p", Y).Dim(3, 3), MustAtom("edge", X, Y))
	require.Equal(t, "{2, 3} h(X) :- {3, 3} p(Y), edge(X, Y).", multi.String())

	require.Equal(t, "a(1).", NewFact(MustAtom("a", Const(1))).String())
	require.True(t, NewFact(MustAtom("a")).IsFact())
}

func TestEmptyBody(t *testing.T) {
	_, err := MakeRule(MustAtom("a", X))
	require.Error(t, err)
	require.IsType(t, &ConstructionError{}, err)
	require.Equal(t, "cannot construct rule with head a(X): empty body", err.Error())

	_, err = MakeRule(MustAtom("a"), []Literal{}...)
	require.IsType(t, &ConstructionError{}, err)
}

func TestExtendIsLeftFoldable(t *testing.T) {
	x := MustAtom("x", X)
	y := MustAtom("y", Y)
	z := MustAtom("z", X, Y)

	chained := MustRule(MustAtom("a", X), MustAtom("b", X)).Extend(x).Extend(y).Extend(z)
	once := MustRule(MustAtom("a", X), MustAtom("b", X)).Extend(x, y, z)
	mixed := MustRule(MustAtom("a", X), MustAtom("b", X)).Extend(x).Extend(y, z)

	require.True(t, chained.Equal(once))
	require.True(t, mixed.Equal(once))
	require.Equal(t, "a(X) :- b(X), x(X), y(Y), z(X, Y).", once.String())
}

func TestExtendReturnsReceiver(t *testing.T) {
	rule := MustRule(MustAtom("a"), MustAtom("b"))
	require.Same(t, rule, rule.Extend(MustAtom("c")))
}

func TestMetadataAttach(t *testing.T) {
	md := Metadata{Activation: ReLU}

	rule := MustRule(MustAtom("a", X), MustAtom("b", X))
	annotated, err := WithMetadata(rule, md)
	require.NoError(t, err)
	require.Equal(t, "a(X) :- b(X).", annotated.String())
	require.Equal(t, "a(X) :- b(X). [activation=relu]", annotated.Format().String())

	// Attaching again fails, equal value or not.
	_, err = WithMetadata(rule, md)
	require.IsType(t, &DuplicateMetadataError{}, err)
	_, err = WithMetadata(rule, Metadata{Aggregation: AggAvg})
	require.IsType(t, &DuplicateMetadataError{}, err)
	require.Equal(t, ReLU, rule.Metadata().Activation)

	ReplaceMetadata(rule, Metadata{Aggregation: AggAvg})
	require.Equal(t, AggAvg, rule.Metadata().Aggregation)
	require.Equal(t, ActivationUnset, rule.Metadata().Activation)
}

func TestMetadataDoesNotChangeIdentity(t *testing.T) {
	plain := MustRule(MustAtom("a", X), MustAtom("b", X))
	annotated, err := WithMetadata(MustRule(MustAtom("a", X), MustAtom("b", X)), Metadata{Activation: Sigmoid})
	require.NoError(t, err)
	require.True(t, plain.Equal(annotated))
}

func TestRuleClone(t *testing.T) {
	rule, err := WithMetadata(MustRule(MustAtom("a", X), MustAtom("b", X)), Metadata{Activation: Tanh})
	require.NoError(t, err)
	copied := rule.Clone()

	rule.Extend(MustAtom("c", X))
	ReplaceMetadata(rule, Metadata{Activation: ReLU})

	require.Equal(t, "a(X) :- b(X). [activation=tanh]", copied.Format().String())
}
