package gnn

import (
	"math"
	"strings"

	"github.com/vilterp/nltemplate/pkg/lang"
)

// Relations every module reads from.
const (
	FeaturesRelation = "node_feature"
	EdgeRelation     = "edge"
	EdgeAttrRelation = "edge_feature"
)

type Kind string

const (
	KindGCN      Kind = "gcn"
	KindGIN      Kind = "gin"
	KindSAGE     Kind = "sage"
	KindRGCN     Kind = "rgcn"
	KindTAG      Kind = "tag"
	KindGATv2    Kind = "gatv2"
	KindSG       Kind = "sg"
	KindAPPNP    Kind = "appnp"
	KindResGated Kind = "res_gated"
)

// Kinds lists every module kind, in a stable order.
var Kinds = []Kind{KindGCN, KindGIN, KindSAGE, KindRGCN, KindTAG, KindGATv2, KindSG, KindAPPNP, KindResGated}

// Base holds the options every layer kind shares. Zero Activation and
// Aggregation select the kind's default.
type Base struct {
	InChannels   int
	Activation   lang.Activation
	Aggregation  lang.Aggregation
	Name         string
	HasEdgeAttrs bool
}

// Spec is one layer specification. The set of implementations is closed.
type Spec interface {
	Kind() Kind
	Options() Base

	withDefaults() Spec
	validate() error
}

type GCNConv struct {
	Base
}

type GINConv struct {
	Base
}

type SAGEConv struct {
	Base
}

// RGCNConv aggregates separately over each edge relation in EdgeTypes.
type RGCNConv struct {
	Base
	EdgeTypes []string
}

// TAGConv concatenates the K-hop propagated features.
type TAGConv struct {
	Base
	K int
}

type GATv2Conv struct {
	Base
}

// SGConv propagates K steps before a single projection.
type SGConv struct {
	Base
	K int
}

// APPNPConv propagates K steps, teleporting back to the input with
// probability Alpha at each step.
type APPNPConv struct {
	Base
	K     int
	Alpha float64
}

type ResGatedGraphConv struct {
	Base
}

func (s GCNConv) Kind() Kind           { return KindGCN }
func (s GINConv) Kind() Kind           { return KindGIN }
func (s SAGEConv) Kind() Kind          { return KindSAGE }
func (s RGCNConv) Kind() Kind          { return KindRGCN }
func (s TAGConv) Kind() Kind           { return KindTAG }
func (s GATv2Conv) Kind() Kind         { return KindGATv2 }
func (s SGConv) Kind() Kind            { return KindSG }
func (s APPNPConv) Kind() Kind         { return KindAPPNP }
func (s ResGatedGraphConv) Kind() Kind { return KindResGated }

func (b Base) Options() Base { return b }

func (b Base) fill(act lang.Activation, agg lang.Aggregation) Base {
	if b.Activation == lang.ActivationUnset {
		b.Activation = act
	}
	if b.Aggregation == lang.AggregationUnset {
		b.Aggregation = agg
	}
	return b
}

func (s GCNConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	return s
}

func (s GINConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	return s
}

func (s SAGEConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggAvg)
	return s
}

func (s RGCNConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	if len(s.EdgeTypes) == 0 {
		s.EdgeTypes = []string{EdgeRelation}
	} else {
		s.EdgeTypes = append([]string(nil), s.EdgeTypes...)
	}
	return s
}

func (s TAGConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	if s.K == 0 {
		s.K = 2
	}
	return s
}

func (s GATv2Conv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	return s
}

func (s SGConv) withDefaults() Spec {
	s.Base = s.fill(lang.Identity, lang.AggSum)
	if s.K == 0 {
		s.K = 1
	}
	return s
}

func (s APPNPConv) withDefaults() Spec {
	s.Base = s.fill(lang.Identity, lang.AggSum)
	if s.K == 0 {
		s.K = 10
	}
	if s.Alpha == 0 {
		s.Alpha = 0.1
	}
	return s
}

func (s ResGatedGraphConv) withDefaults() Spec {
	s.Base = s.fill(lang.ReLU, lang.AggSum)
	return s
}

func (b Base) validate() error {
	if b.InChannels <= 0 {
		return &InvalidChannelWidthError{Field: "in_channels", Width: b.InChannels}
	}
	return nil
}

func (s RGCNConv) validate() error {
	if err := s.Base.validate(); err != nil {
		return err
	}
	for _, edgeType := range s.EdgeTypes {
		if strings.TrimSpace(edgeType) == "" {
			return &InvalidOptionError{Kind: KindRGCN, Option: "edge_types", Reason: "empty relation name"}
		}
		if !lang.IsRelationName(edgeType) {
			return &InvalidOptionError{Kind: KindRGCN, Option: "edge_types", Reason: "not a relation name: " + edgeType}
		}
	}
	return nil
}

func (s TAGConv) validate() error {
	if err := s.Base.validate(); err != nil {
		return err
	}
	return validateSteps(KindTAG, s.K)
}

func (s SGConv) validate() error {
	if err := s.Base.validate(); err != nil {
		return err
	}
	return validateSteps(KindSG, s.K)
}

func (s APPNPConv) validate() error {
	if err := s.Base.validate(); err != nil {
		return err
	}
	if err := validateSteps(KindAPPNP, s.K); err != nil {
		return err
	}
	if math.IsNaN(s.Alpha) || s.Alpha <= 0 || s.Alpha >= 1 {
		return &InvalidOptionError{Kind: KindAPPNP, Option: "alpha", Reason: "must be in (0, 1)"}
	}
	return nil
}

func validateSteps(kind Kind, k int) error {
	if k <= 0 {
		return &InvalidOptionError{Kind: kind, Option: "k", Reason: "must be positive"}
	}
	return nil
}

// NewSpec returns the spec for a kind name with its default extra options.
func NewSpec(kind string, base Base) (Spec, error) {
	switch Kind(kind) {
	case KindGCN:
		return GCNConv{Base: base}, nil
	case KindGIN:
		return GINConv{Base: base}, nil
	case KindSAGE:
		return SAGEConv{Base: base}, nil
	case KindRGCN:
		return RGCNConv{Base: base}, nil
	case KindTAG:
		return TAGConv{Base: base}, nil
	case KindGATv2:
		return GATv2Conv{Base: base}, nil
	case KindSG:
		return SGConv{Base: base}, nil
	case KindAPPNP:
		return APPNPConv{Base: base}, nil
	case KindResGated:
		return ResGatedGraphConv{Base: base}, nil
	}
	return nil, &UnknownKindError{Kind: kind}
}
