package gnn

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
	clog "github.com/vilterp/nltemplate/pkg/log"
	"github.com/vilterp/nltemplate/pkg/template"
)

// Module is a layer spec that can be expanded into a template exactly once.
type Module struct {
	spec   Spec
	built  bool
	output string
}

// NewModule validates spec and fills in the kind's defaults. Configuration
// errors surface here, before any template is touched.
func NewModule(spec Spec) (*Module, error) {
	if spec == nil {
		return nil, errors.New("nil module spec")
	}
	normalized := spec.withDefaults()
	if err := normalized.validate(); err != nil {
		return nil, err
	}
	if name := normalized.Options().Name; name != "" && !lang.IsRelationName(name) {
		return nil, &InvalidOptionError{Kind: normalized.Kind(), Option: "name", Reason: "not a relation name: " + name}
	}
	return &Module{spec: normalized}, nil
}

// MustModule is like NewModule but panics on error.
func MustModule(spec Spec) *Module {
	m, err := NewModule(spec)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Module) Spec() Spec { return m.spec }

func (m *Module) Kind() Kind { return m.spec.Kind() }

func (m *Module) InChannels() int { return m.spec.Options().InChannels }

func (m *Module) IsBuilt() bool { return m.built }

// OutputName is the relation this module writes (or would write) at the
// given layer index.
func (m *Module) OutputName(layerIndex int) string {
	if name := m.spec.Options().Name; name != "" {
		return name
	}
	return fmt.Sprintf("l%d_%s", layerIndex, m.spec.Kind())
}

var outputName = regexp.MustCompile(`^l(\d+)_([a-z0-9_]+)$`)

// ParseOutputName is the inverse of OutputName for unnamed layers.
func ParseOutputName(name string) (int, Kind, bool) {
	match := outputName.FindStringSubmatch(name)
	if match == nil {
		return 0, "", false
	}
	for _, kind := range Kinds {
		if string(kind) == match[2] {
			index, err := strconv.Atoi(match[1])
			return index, kind, err == nil
		}
	}
	return 0, "", false
}

// Layers recovers the outputs of the unnamed layers built into t, in layer
// order, from their relation declarations.
func Layers(t *template.Template) []string {
	type found struct {
		index int
		name  string
	}
	var layers []found
	for _, def := range t.Defaults() {
		if def.Predicate.Arity != 1 {
			continue
		}
		if index, _, ok := ParseOutputName(def.Predicate.Name); ok {
			layers = append(layers, found{index: index, name: def.Predicate.Name})
		}
	}
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].index < layers[j].index })
	names := make([]string, len(layers))
	for idx, layer := range layers {
		names[idx] = layer.name
	}
	return names
}

// Build appends this layer's rules to t and returns its output relation.
//
// previous lists the output relations of earlier layers; the last one is
// the input. With no earlier layers the input is FeaturesRelation. next is
// the width expected by whatever consumes the output. The rules are added
// in one batch, so on error t is unchanged.
func (m *Module) Build(t *template.Template, layerIndex int, previous []string, next int) (string, error) {
	if m.built {
		return "", &AlreadyBuiltError{Kind: m.Kind(), Output: m.output}
	}
	if next <= 0 {
		return "", &InvalidChannelWidthError{Field: "next_channel_width", Width: next}
	}
	if layerIndex < 0 {
		return "", errors.Errorf("layer index must be non-negative; got %d", layerIndex)
	}

	input := FeaturesRelation
	if len(previous) > 0 {
		input = previous[len(previous)-1]
	}
	l := newLayer(t.Factory().Registry(), m.spec.Options(), m.OutputName(layerIndex), input, next)
	stmts := expand(m.spec, l)

	if err := t.Add(stmts...); err != nil {
		return "", errors.Wrapf(err, "building %s layer %d", m.Kind(), layerIndex)
	}
	m.built = true
	m.output = l.out

	t.Metrics().ModuleBuilt(string(m.Kind()))
	clog.Printf(
		clog.Tagged{Context: clog.WithLayer(t.Ctx(), layerIndex)},
		"built %s: %d statements, %s -> %s", m.Kind(), len(stmts), input, l.out,
	)
	return l.out, nil
}

// Stack builds modules as layers 0..N-1, feeding each one's output into the
// next, and returns the last output relation. Each layer's next width is
// the following module's in_channels; the last layer uses outChannels.
// If a layer fails, the layers before it stay in t.
func Stack(t *template.Template, outChannels int, modules ...*Module) (string, error) {
	if outChannels <= 0 {
		return "", &InvalidChannelWidthError{Field: "next_channel_width", Width: outChannels}
	}
	var previous []string
	for idx, m := range modules {
		next := outChannels
		if idx+1 < len(modules) {
			next = modules[idx+1].InChannels()
		}
		out, err := m.Build(t, idx, previous, next)
		if err != nil {
			return "", err
		}
		previous = append(previous, out)
	}
	if len(previous) == 0 {
		return FeaturesRelation, nil
	}
	return previous[len(previous)-1], nil
}
