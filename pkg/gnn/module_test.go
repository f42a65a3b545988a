package gnn

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vilterp/nltemplate/pkg/lang"
	"github.com/vilterp/nltemplate/pkg/parse"
	"github.com/vilterp/nltemplate/pkg/template"
)

func TestExpansion(t *testing.T) {
	testCases := []struct {
		spec     Spec
		layer    int
		previous []string
		next     int
		output   string
		rules    string
	}{
		{
			spec:   GINConv{Base: Base{InChannels: 3}},
			next:   4,
			output: "l0_gin",
			rules: `l0_gin_embed(X) :- node_feature(Y), edge(X, Y). [aggregation=sum, activation=identity]
l0_gin_embed(X) :- node_feature(X). [activation=identity]
l0_gin_embed/1 [activation=identity]
{4, 4} l0_gin(X) :- {4, 3} l0_gin_embed(X). [activation=relu]
l0_gin/1 [activation=relu]`,
		},
		{
			spec:     GCNConv{Base: Base{InChannels: 2, HasEdgeAttrs: true, Activation: lang.Sigmoid}},
			layer:    1,
			previous: []string{"l0_gin"},
			next:     5,
			output:   "l1_gcn",
			rules: `l1_gcn_msg(X) :- l0_gin(Y), edge(X, Y), edge_feature(X, Y). [aggregation=sum, combination=elproduct]
l1_gcn_msg(X) :- l0_gin(X). [activation=identity]
l1_gcn_msg/1 [activation=identity]
l1_gcn(X) :- {5, 2} l1_gcn_msg(X). [activation=sigmoid]
l1_gcn/1 [activation=sigmoid]`,
		},
		{
			spec:     SAGEConv{Base: Base{InChannels: 2, Name: "hidden"}},
			layer:    3,
			previous: []string{"a", "b"},
			next:     2,
			output:   "hidden",
			rules: `hidden_neigh(X) :- b(Y), edge(X, Y). [aggregation=avg]
hidden_neigh/1 [activation=identity]
hidden_self(X) :- b(X). [activation=identity]
hidden_self/1 [activation=identity]
hidden(X) :- {2, 2} hidden_self(X), {2, 2} hidden_neigh(X). [activation=relu]
hidden/1 [activation=relu]`,
		},
		{
			spec:   RGCNConv{Base: Base{InChannels: 1}, EdgeTypes: []string{"single", "double"}},
			next:   1,
			output: "l0_rgcn",
			rules: `l0_rgcn_msg(X) :- {1, 1} node_feature(Y), single(X, Y). [aggregation=sum]
l0_rgcn_msg(X) :- {1, 1} node_feature(Y), double(X, Y). [aggregation=sum]
l0_rgcn_msg(X) :- {1, 1} node_feature(X). [activation=identity]
l0_rgcn_msg/1 [activation=identity]
l0_rgcn(X) :- l0_rgcn_msg(X). [activation=relu]
l0_rgcn/1 [activation=relu]`,
		},
		{
			spec:   TAGConv{Base: Base{InChannels: 2}, K: 1},
			next:   3,
			output: "l0_tag",
			rules: `l0_tag_hop0(X) :- node_feature(X). [activation=identity]
l0_tag_hop0/1 [activation=identity]
l0_tag_hop1(X) :- l0_tag_hop0(Y), edge(X, Y). [aggregation=sum]
l0_tag_hop1/1 [activation=identity]
l0_tag(X) :- {3, 2} l0_tag_hop0(X), {3, 2} l0_tag_hop1(X). [activation=relu]
l0_tag/1 [activation=relu]`,
		},
		{
			spec:   SGConv{Base: Base{InChannels: 2, Aggregation: lang.AggAvg}, K: 2},
			next:   1,
			output: "l0_sg",
			rules: `l0_sg_step0(X) :- node_feature(X). [activation=identity]
l0_sg_step0/1 [activation=identity]
l0_sg_step1(X) :- l0_sg_step0(Y), edge(X, Y). [aggregation=avg]
l0_sg_step1/1 [activation=identity]
l0_sg_step2(X) :- l0_sg_step1(Y), edge(X, Y). [aggregation=avg]
l0_sg_step2/1 [activation=identity]
l0_sg(X) :- {1, 2} l0_sg_step2(X). [activation=identity]
l0_sg/1 [activation=identity]`,
		},
		{
			spec:   APPNPConv{Base: Base{InChannels: 2}, K: 1, Alpha: 0.25},
			next:   2,
			output: "l0_appnp",
			rules: `l0_appnp_step0(X) :- node_feature(X). [activation=identity]
l0_appnp_step0/1 [activation=identity]
l0_appnp_step1(X) :- <0.75> l0_appnp_step0(Y), edge(X, Y). [aggregation=sum]
l0_appnp_step1(X) :- <0.25> l0_appnp_step0(X). [activation=identity]
l0_appnp_step1/1 [activation=identity]
l0_appnp(X) :- {2, 2} l0_appnp_step1(X). [activation=identity]
l0_appnp/1 [activation=identity]`,
		},
		{
			spec:   GATv2Conv{Base: Base{InChannels: 2}},
			next:   3,
			output: "l0_gatv2",
			rules: `l0_gatv2_attn(X, Y) :- {1, 2} node_feature(X), {1, 2} node_feature(Y), edge(X, Y). [activation=leaky_relu]
l0_gatv2_attn/2 [activation=identity]
l0_gatv2_msg(X) :- l0_gatv2_attn(X, Y), {3, 2} node_feature(Y), edge(X, Y). [aggregation=sum, combination=product]
l0_gatv2_msg/1 [activation=identity]
l0_gatv2_self(X) :- node_feature(X). [activation=identity]
l0_gatv2_self/1 [activation=identity]
l0_gatv2(X) :- l0_gatv2_msg(X), {3, 2} l0_gatv2_self(X). [activation=relu]
l0_gatv2/1 [activation=relu]`,
		},
		{
			spec:   ResGatedGraphConv{Base: Base{InChannels: 1}},
			next:   1,
			output: "l0_res_gated",
			rules: `l0_res_gated_gate(X, Y) :- {1, 1} node_feature(X), {1, 1} node_feature(Y), edge(X, Y). [activation=sigmoid]
l0_res_gated_gate/2 [activation=sigmoid]
l0_res_gated_msg(X) :- l0_res_gated_gate(X, Y), {1, 1} node_feature(Y), edge(X, Y). [aggregation=sum, combination=elproduct]
l0_res_gated_msg/1 [activation=identity]
l0_res_gated_self(X) :- node_feature(X). [activation=identity]
l0_res_gated_self/1 [activation=identity]
l0_res_gated(X) :- l0_res_gated_msg(X), {1, 1} l0_res_gated_self(X). [activation=relu]
l0_res_gated/1 [activation=relu]`,
		},
	}

	for idx, testCase := range testCases {
		module, err := NewModule(testCase.spec)
		require.NoError(t, err, "case %d", idx)

		tmpl := template.New()
		out, err := module.Build(tmpl, testCase.layer, testCase.previous, testCase.next)
		require.NoError(t, err, "case %d", idx)
		require.Equal(t, testCase.output, out, "case %d", idx)
		require.Equal(t, testCase.rules, tmpl.String(), "case %d", idx)
		require.True(t, module.IsBuilt(), "case %d", idx)
	}
}

func TestEveryKindHasASpec(t *testing.T) {
	for _, kind := range Kinds {
		spec, err := NewSpec(string(kind), Base{InChannels: 2})
		require.NoError(t, err)
		require.Equal(t, kind, spec.Kind())
	}
	_, err := NewSpec("transformer", Base{InChannels: 2})
	require.EqualError(t, err, "unknown module kind: transformer")
}

func TestDeterminism(t *testing.T) {
	for _, kind := range Kinds {
		for _, edgeAttrs := range []bool{false, true} {
			base := Base{InChannels: 4, HasEdgeAttrs: edgeAttrs}
			specA, err := NewSpec(string(kind), base)
			require.NoError(t, err)
			specB, err := NewSpec(string(kind), base)
			require.NoError(t, err)

			tmplA, tmplB := template.New(), template.New()
			outA, err := MustModule(specA).Build(tmplA, 2, []string{"x"}, 3)
			require.NoError(t, err)
			outB, err := MustModule(specB).Build(tmplB, 2, []string{"x"}, 3)
			require.NoError(t, err)

			require.Equal(t, outA, outB, "kind %s", kind)
			require.Equal(t, tmplA.String(), tmplB.String(), "kind %s", kind)
			rulesA, rulesB := tmplA.Rules(), tmplB.Rules()
			require.Len(t, rulesB, len(rulesA))
			for idx := range rulesA {
				require.True(t, rulesA[idx].Equal(rulesB[idx]), "kind %s rule %d", kind, idx)
			}
		}
	}
}

func TestChainedLayersNeverCollide(t *testing.T) {
	for _, n := range []int{1, 2, 10, 18} {
		tmpl := template.New()
		headsByLayer := map[string]int{}
		var previous []string

		for layer := 0; layer < n; layer++ {
			kind := Kinds[layer%len(Kinds)]
			spec, err := NewSpec(string(kind), Base{InChannels: 3})
			require.NoError(t, err)

			before := tmpl.Len()
			out, err := MustModule(spec).Build(tmpl, layer, previous, 3)
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("l%d_%s", layer, kind), out)

			for _, stmt := range tmpl.Entries()[before:] {
				rule, ok := stmt.(*lang.Rule)
				if !ok {
					continue
				}
				head := rule.Head().Atom().Relation()
				if owner, seen := headsByLayer[head]; seen {
					require.Equal(t, layer, owner, "relation %s emitted by layers %d and %d", head, owner, layer)
				}
				headsByLayer[head] = layer
			}
			previous = append(previous, out)
		}
	}
}

func TestLayersAreWired(t *testing.T) {
	tmpl := template.New()
	out, err := Stack(tmpl, 2,
		MustModule(GCNConv{Base: Base{InChannels: 3}}),
		MustModule(SAGEConv{Base: Base{InChannels: 8}}),
		MustModule(GINConv{Base: Base{InChannels: 4}}),
	)
	require.NoError(t, err)
	require.Equal(t, "l2_gin", out)

	text := tmpl.String()
	// Each layer projects to the next layer's in_channels.
	require.Contains(t, text, "l0_gcn(X) :- {8, 3} l0_gcn_msg(X).")
	require.Contains(t, text, "l1_sage_self(X) :- l0_gcn(X).")
	require.Contains(t, text, "l1_sage(X) :- {4, 8} l1_sage_self(X), {4, 8} l1_sage_neigh(X).")
	require.Contains(t, text, "l2_gin_embed(X) :- l1_sage(Y), edge(X, Y).")
	require.Contains(t, text, "{2, 2} l2_gin(X) :- {2, 4} l2_gin_embed(X).")
}

func TestInvalidChannelWidth(t *testing.T) {
	_, err := NewModule(GINConv{Base: Base{InChannels: -1}})
	require.IsType(t, &InvalidChannelWidthError{}, err)
	require.EqualError(t, err, "in_channels must be positive; got -1")

	_, err = NewModule(GCNConv{})
	require.IsType(t, &InvalidChannelWidthError{}, err)

	module := MustModule(GCNConv{Base: Base{InChannels: 2}})
	tmpl := template.New()
	_, err = module.Build(tmpl, 0, nil, 0)
	require.IsType(t, &InvalidChannelWidthError{}, err)
	require.Equal(t, 0, tmpl.Len())
	require.False(t, module.IsBuilt())

	_, err = Stack(tmpl, -3, module)
	require.IsType(t, &InvalidChannelWidthError{}, err)
	require.Equal(t, 0, tmpl.Len())
}

func TestInvalidOptions(t *testing.T) {
	testCases := []struct {
		spec  Spec
		error string
	}{
		{RGCNConv{Base: Base{InChannels: 2}, EdgeTypes: []string{"bond", " "}}, "rgcn: invalid edge_types: empty relation name"},
		{TAGConv{Base: Base{InChannels: 2}, K: -1}, "tag: invalid k: must be positive"},
		{SGConv{Base: Base{InChannels: 2}, K: -2}, "sg: invalid k: must be positive"},
		{APPNPConv{Base: Base{InChannels: 2}, Alpha: 1.5}, "appnp: invalid alpha: must be in (0, 1)"},
		{APPNPConv{Base: Base{InChannels: 0}, Alpha: 0.5}, "in_channels must be positive; got 0"},
		{RGCNConv{Base: Base{InChannels: 2}, EdgeTypes: []string{"Bond"}}, "rgcn: invalid edge_types: not a relation name: Bond"},
		{GCNConv{Base: Base{InChannels: 2, Name: "my layer"}}, "gcn: invalid name: not a relation name: my layer"},
		{GINConv{Base: Base{InChannels: 2, Name: "Hidden"}}, "gin: invalid name: not a relation name: Hidden"},
	}
	for idx, testCase := range testCases {
		_, err := NewModule(testCase.spec)
		require.EqualError(t, err, testCase.error, "case %d", idx)
	}
}

func TestBuildTwice(t *testing.T) {
	module := MustModule(GINConv{Base: Base{InChannels: 2}})
	tmpl := template.New()
	out, err := module.Build(tmpl, 0, nil, 2)
	require.NoError(t, err)
	first := tmpl.String()

	_, err = module.Build(tmpl, 0, nil, 2)
	require.IsType(t, &AlreadyBuiltError{}, err)
	require.EqualError(t, err, fmt.Sprintf("gin module already built into relation %s", out))
	require.Equal(t, first, tmpl.String())

	// Even into a different template.
	_, err = module.Build(template.New(), 1, nil, 2)
	require.IsType(t, &AlreadyBuiltError{}, err)
}

func TestFailedLayerLeavesEarlierLayers(t *testing.T) {
	tmpl := template.New()
	_, err := Stack(tmpl, 2,
		MustModule(GCNConv{Base: Base{InChannels: 2, Name: "hidden"}}),
		MustModule(SAGEConv{Base: Base{InChannels: 2, Name: "hidden"}}),
	)
	require.Error(t, err)
	require.IsType(t, &lang.DuplicateMetadataError{}, errors.Cause(err))

	reference := template.New()
	_, err = MustModule(GCNConv{Base: Base{InChannels: 2, Name: "hidden"}}).Build(reference, 0, nil, 2)
	require.NoError(t, err)
	require.Equal(t, reference.String(), tmpl.String())
}

func TestFrozenTemplateRejectsLayer(t *testing.T) {
	tmpl := template.New()
	tmpl.Freeze()
	module := MustModule(GCNConv{Base: Base{InChannels: 2}})
	_, err := module.Build(tmpl, 0, nil, 2)
	require.IsType(t, &template.TemplateFrozenError{}, errors.Cause(err))
	require.False(t, module.IsBuilt())
}

func TestSpecIsNormalizedCopy(t *testing.T) {
	edgeTypes := []string{"a", "b"}
	module := MustModule(RGCNConv{Base: Base{InChannels: 2}, EdgeTypes: edgeTypes})
	edgeTypes[0] = "changed"

	spec := module.Spec().(RGCNConv)
	require.Equal(t, []string{"a", "b"}, spec.EdgeTypes)
	require.Equal(t, lang.ReLU, spec.Activation)
	require.Equal(t, lang.AggSum, spec.Aggregation)

	defaults := MustModule(APPNPConv{Base: Base{InChannels: 2}}).Spec().(APPNPConv)
	require.Equal(t, 10, defaults.K)
	require.Equal(t, 0.1, defaults.Alpha)
}

func TestModulesBuiltMetric(t *testing.T) {
	metrics := template.NewMetrics()
	tmpl := template.New(template.WithMetrics(metrics))
	_, err := Stack(tmpl, 2,
		MustModule(GCNConv{Base: Base{InChannels: 2}}),
		MustModule(GCNConv{Base: Base{InChannels: 2}}),
		MustModule(GINConv{Base: Base{InChannels: 2}}),
	)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(metrics.Registry, "modules_built_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestMessagesFollowEdgeDirection(t *testing.T) {
	for _, kind := range Kinds {
		spec, err := NewSpec(string(kind), Base{InChannels: 2, HasEdgeAttrs: true})
		require.NoError(t, err)
		tmpl := template.New()
		_, err = MustModule(spec).Build(tmpl, 0, nil, 2)
		require.NoError(t, err)

		edges := 0
		for _, rule := range tmpl.Rules() {
			for _, lit := range rule.Body() {
				atom := lit.Atom()
				if atom.Relation() != EdgeRelation && atom.Relation() != EdgeAttrRelation {
					continue
				}
				edges++
				require.Equal(t, []lang.Term{lang.X, lang.Y}, atom.Args(), "kind %s: %s", kind, rule)
			}
		}
		require.NotZero(t, edges, "kind %s", kind)
	}
}

func TestStackTextRoundTrip(t *testing.T) {
	store, err := template.OpenStore(filepath.Join(t.TempDir(), "templates.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	for _, kind := range Kinds {
		for _, edgeAttrs := range []bool{false, true} {
			first, err := NewSpec(string(kind), Base{InChannels: 3, HasEdgeAttrs: edgeAttrs})
			require.NoError(t, err)
			second, err := NewSpec(string(kind), Base{InChannels: 4, HasEdgeAttrs: edgeAttrs})
			require.NoError(t, err)

			tmpl := template.New()
			_, err = Stack(tmpl, 2, MustModule(first), MustModule(second))
			require.NoError(t, err)

			stmts, err := parse.ParseTemplate(tmpl.String())
			require.NoError(t, err, "kind %s", kind)
			require.Len(t, stmts, tmpl.Len(), "kind %s", kind)
			for idx, stmt := range tmpl.Entries() {
				require.Equal(t, stmt.Format().String(), stmts[idx].Format().String(), "kind %s statement %d", kind, idx)
				if rule, ok := stmt.(*lang.Rule); ok {
					require.True(t, rule.Equal(stmts[idx].(*lang.Rule)), "kind %s statement %d", kind, idx)
				}
			}

			require.NoError(t, store.Put(tmpl))
			loaded, err := store.Get(tmpl.ID())
			require.NoError(t, err, "kind %s", kind)
			require.Equal(t, tmpl.String(), loaded.String(), "kind %s", kind)
		}
	}
}

func TestLayersShareTemplateRegistry(t *testing.T) {
	tmpl := template.New()
	_, err := Stack(tmpl, 2,
		MustModule(GCNConv{Base: Base{InChannels: 3}}),
		MustModule(GINConv{Base: Base{InChannels: 4}}),
	)
	require.NoError(t, err)

	reg := tmpl.Factory().Registry()
	for _, name := range []string{FeaturesRelation, EdgeRelation, "l0_gcn", "l0_gcn_msg", "l1_gin", "l1_gin_embed"} {
		_, ok := reg.Lookup(name)
		require.True(t, ok, name)
	}
	edge, err := reg.Relation(EdgeRelation)
	require.NoError(t, err)
	again, err := tmpl.Factory().Relation(EdgeRelation)
	require.NoError(t, err)
	require.Same(t, edge, again)
}
