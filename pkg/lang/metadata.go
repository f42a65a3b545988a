package lang

import (
	"fmt"
	"strconv"
	"strings"

	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Aggregation says how multiple groundings of the same head are combined.
// The zero value means "unset"; the engine's default applies.
type Aggregation int

const (
	AggregationUnset Aggregation = iota
	AggSum
	AggAvg
	AggMax
	AggMin
	AggCount
	AggConcat
	AggSoftmax
)

var aggregationNames = []string{"", "sum", "avg", "max", "min", "count", "concat", "softmax"}

func (a Aggregation) String() string { return enumName(aggregationNames, int(a)) }

func ParseAggregation(s string) (Aggregation, error) {
	idx, err := enumParse(aggregationNames, "aggregation", s)
	return Aggregation(idx), err
}

// Activation is the elementwise nonlinearity applied after aggregation and
// combination.
type Activation int

const (
	ActivationUnset Activation = iota
	Identity
	Sigmoid
	Tanh
	ReLU
	LeakyReLU
	Softmax
	Signum
	Exp
	Log
)

var activationNames = []string{"", "identity", "sigmoid", "tanh", "relu", "leaky_relu", "softmax", "signum", "exp", "log"}

func (a Activation) String() string { return enumName(activationNames, int(a)) }

func ParseActivation(s string) (Activation, error) {
	idx, err := enumParse(activationNames, "activation", s)
	return Activation(idx), err
}

// Combination says how the weighted inputs within one rule body are
// combined before aggregation.
type Combination int

const (
	CombinationUnset Combination = iota
	CombSum
	CombAvg
	CombMax
	CombMin
	CombProduct
	CombElProduct
	CombConcat
	CombCrossSum
)

var combinationNames = []string{"", "sum", "avg", "max", "min", "product", "elproduct", "concat", "crosssum"}

func (c Combination) String() string { return enumName(combinationNames, int(c)) }

func ParseCombination(s string) (Combination, error) {
	idx, err := enumParse(combinationNames, "combination", s)
	return Combination(idx), err
}

func enumName(names []string, idx int) string {
	if idx <= 0 || idx >= len(names) {
		return "unset"
	}
	return names[idx]
}

func enumParse(names []string, option string, s string) (int, error) {
	lower := strings.ToLower(s)
	for idx := 1; idx < len(names); idx++ {
		if names[idx] == lower {
			return idx, nil
		}
	}
	return 0, &InvalidMetadataValueError{Option: option, Value: s}
}

// Metadata option names, in rendering order.
const (
	OptAggregation = "aggregation"
	OptActivation  = "activation"
	OptCombination = "combination"
	OptLearnable   = "learnable"
)

var knownOptions = []string{OptAggregation, OptActivation, OptCombination, OptLearnable}

// Metadata is a side-channel annotation on a rule or relation. It never
// affects the logical identity of what it is attached to.
type Metadata struct {
	Aggregation Aggregation
	Activation  Activation
	Combination Combination
	Learnable   *bool
}

// NewMetadata builds Metadata from option names to values. Values may be the
// typed enums, their lowercase names, or (for learnable) a bool or
// "true"/"false". Unrecognized option names fail immediately.
func NewMetadata(options map[string]interface{}) (Metadata, error) {
	md := Metadata{}
	for name := range options {
		if !isKnownOption(name) {
			return Metadata{}, &UnknownMetadataOptionError{Option: name}
		}
	}
	// Apply in fixed order so errors are deterministic.
	for _, name := range knownOptions {
		value, ok := options[name]
		if !ok {
			continue
		}
		if err := md.set(name, value); err != nil {
			return Metadata{}, err
		}
	}
	return md, nil
}

// MustMetadata is like NewMetadata but panics on error.
func MustMetadata(options map[string]interface{}) Metadata {
	md, err := NewMetadata(options)
	if err != nil {
		panic(err)
	}
	return md
}

func isKnownOption(name string) bool {
	for _, known := range knownOptions {
		if known == name {
			return true
		}
	}
	return false
}

func (m *Metadata) set(name string, value interface{}) error {
	invalid := &InvalidMetadataValueError{Option: name, Value: value}
	switch name {
	case OptAggregation:
		switch v := value.(type) {
		case Aggregation:
			m.Aggregation = v
		case string:
			agg, err := ParseAggregation(v)
			if err != nil {
				return err
			}
			m.Aggregation = agg
		default:
			return invalid
		}
	case OptActivation:
		switch v := value.(type) {
		case Activation:
			m.Activation = v
		case string:
			act, err := ParseActivation(v)
			if err != nil {
				return err
			}
			m.Activation = act
		default:
			return invalid
		}
	case OptCombination:
		switch v := value.(type) {
		case Combination:
			m.Combination = v
		case string:
			comb, err := ParseCombination(v)
			if err != nil {
				return err
			}
			m.Combination = comb
		default:
			return invalid
		}
	case OptLearnable:
		switch v := value.(type) {
		case bool:
			m.Learnable = &v
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return invalid
			}
			m.Learnable = &b
		default:
			return invalid
		}
	default:
		return &UnknownMetadataOptionError{Option: name}
	}
	return nil
}

// IsEmpty reports whether no option is set.
func (m Metadata) IsEmpty() bool {
	return m.Aggregation == AggregationUnset &&
		m.Activation == ActivationUnset &&
		m.Combination == CombinationUnset &&
		m.Learnable == nil
}

func (m Metadata) Equal(other Metadata) bool {
	if (m.Learnable == nil) != (other.Learnable == nil) {
		return false
	}
	if m.Learnable != nil && *m.Learnable != *other.Learnable {
		return false
	}
	return m.Aggregation == other.Aggregation &&
		m.Activation == other.Activation &&
		m.Combination == other.Combination
}

// Format renders `[aggregation=sum, activation=relu]`, omitting unset options.
func (m Metadata) Format() pp.Doc {
	var opts []pp.Doc
	if m.Aggregation != AggregationUnset {
		opts = append(opts, pp.Textf("%s=%s", OptAggregation, m.Aggregation))
	}
	if m.Activation != ActivationUnset {
		opts = append(opts, pp.Textf("%s=%s", OptActivation, m.Activation))
	}
	if m.Combination != CombinationUnset {
		opts = append(opts, pp.Textf("%s=%s", OptCombination, m.Combination))
	}
	if m.Learnable != nil {
		opts = append(opts, pp.Textf("%s=%t", OptLearnable, *m.Learnable))
	}
	return pp.Surround("[", pp.Join(opts, pp.CommaSpace), "]")
}

func (m Metadata) String() string { return m.Format().String() }

func (m Metadata) GoString() string {
	return fmt.Sprintf("lang.Metadata%s", m.String())
}
