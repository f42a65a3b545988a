package gnn

import (
	"fmt"

	"github.com/vilterp/nltemplate/pkg/lang"
)

// layer carries what every expansion needs: names, widths and the shared
// options of the spec.
type layer struct {
	opts Base
	out  string
	in   string
	next int
	reg  *lang.Registry
}

func newLayer(reg *lang.Registry, opts Base, out string, in string, next int) *layer {
	return &layer{
		opts: opts,
		out:  out,
		in:   in,
		next: next,
		reg:  reg,
	}
}

func (l *layer) aux(suffix string) string {
	return l.out + "_" + suffix
}

func (l *layer) atom(relation string, args ...lang.Term) *lang.Atom {
	return l.reg.MustRelation(relation).Atom(args...)
}

func (l *layer) input(v lang.Term) *lang.Atom {
	return l.atom(l.in, v)
}

// projected is a body literal carrying the layer's [next, in] weight.
func (l *layer) projected(a *lang.Atom) lang.Literal {
	return a.Dim(l.next, l.opts.InChannels)
}

// edge returns the body literals connecting from -> to. Messages flow
// against the edge: X aggregates over every Y with edge(X, Y).: the edge relation,
// followed by the edge attribute term when the layer has edge attributes.
func (l *layer) edge(from, to lang.Term) []lang.Literal {
	lits := []lang.Literal{l.atom(EdgeRelation, from, to)}
	if l.opts.HasEdgeAttrs {
		lits = append(lits, l.atom(EdgeAttrRelation, from, to))
	}
	return lits
}

func (l *layer) typedEdge(relation string, from, to lang.Term) []lang.Literal {
	lits := []lang.Literal{l.atom(relation, from, to)}
	if l.opts.HasEdgeAttrs {
		lits = append(lits, l.atom(EdgeAttrRelation, from, to))
	}
	return lits
}

// message is the metadata of a neighborhood-aggregating rule. Edge
// attributes multiply into the message elementwise.
func (l *layer) message(comb lang.Combination) lang.Metadata {
	md := lang.Metadata{Aggregation: l.opts.Aggregation, Combination: comb}
	if l.opts.HasEdgeAttrs && md.Combination == lang.CombinationUnset {
		md.Combination = lang.CombElProduct
	}
	return md
}

func rule(md lang.Metadata, head lang.Literal, body ...lang.Literal) *lang.Rule {
	return lang.ReplaceMetadata(lang.MustRule(head, body...), md)
}

func concat(groups ...[]lang.Literal) []lang.Literal {
	var out []lang.Literal
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

var identity = lang.Metadata{Activation: lang.Identity}

func declare(relation string, arity int, act lang.Activation) *lang.RelationDefault {
	return lang.Predicate{Name: relation, Arity: arity}.WithMetadata(lang.Metadata{Activation: act})
}

// self emits `name(X) :- in(X).` with identity activation, plus its
// declaration.
func (l *layer) self(name string) []lang.Statement {
	return []lang.Statement{
		rule(identity, l.atom(name, lang.X), l.input(lang.X)),
		declare(name, 1, lang.Identity),
	}
}

// output emits the layer's own rule and declaration, both carrying the
// layer activation.
func (l *layer) output(head lang.Literal, body ...lang.Literal) []lang.Statement {
	return []lang.Statement{
		rule(lang.Metadata{Activation: l.opts.Activation}, head, body...),
		declare(l.out, 1, l.opts.Activation),
	}
}

func expand(spec Spec, l *layer) []lang.Statement {
	switch s := spec.(type) {
	case GCNConv:
		return l.gcn()
	case GINConv:
		return l.gin()
	case SAGEConv:
		return l.sage()
	case RGCNConv:
		return l.rgcn(s.EdgeTypes)
	case TAGConv:
		return l.tag(s.K)
	case GATv2Conv:
		return l.gatv2()
	case SGConv:
		return l.sg(s.K)
	case APPNPConv:
		return l.appnp(s.K, s.Alpha)
	case ResGatedGraphConv:
		return l.resGated()
	}
	panic(fmt.Sprintf("unhandled module spec %T", spec))
}

//	out_msg(X) :- in(Y), edge(X, Y).  [aggregation]
//	out_msg(X) :- in(X).              [identity]
//	out(X) :- {next, in} out_msg(X).  [activation]
func (l *layer) gcn() []lang.Statement {
	msg := l.aux("msg")
	stmts := []lang.Statement{
		rule(l.message(lang.CombinationUnset), l.atom(msg, lang.X), concat(
			[]lang.Literal{l.input(lang.Y)},
			l.edge(lang.X, lang.Y),
		)...),
		rule(identity, l.atom(msg, lang.X), l.input(lang.X)),
		declare(msg, 1, lang.Identity),
	}
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.projected(l.atom(msg, lang.X)),
	)...)
}

// GIN feeds the sum of self and neighborhood through a two-layer MLP.
func (l *layer) gin() []lang.Statement {
	embed := l.aux("embed")
	msgMeta := l.message(lang.CombinationUnset)
	msgMeta.Activation = lang.Identity
	stmts := []lang.Statement{
		rule(msgMeta, l.atom(embed, lang.X), concat(
			[]lang.Literal{l.input(lang.Y)},
			l.edge(lang.X, lang.Y),
		)...),
		rule(identity, l.atom(embed, lang.X), l.input(lang.X)),
		declare(embed, 1, lang.Identity),
	}
	return append(stmts, l.output(
		l.atom(l.out, lang.X).Dim(l.next, l.next),
		l.projected(l.atom(embed, lang.X)),
	)...)
}

// SAGE projects self and the aggregated neighborhood with separate weights.
func (l *layer) sage() []lang.Statement {
	neigh := l.aux("neigh")
	self := l.aux("self")
	stmts := []lang.Statement{
		rule(l.message(lang.CombinationUnset), l.atom(neigh, lang.X), concat(
			[]lang.Literal{l.input(lang.Y)},
			l.edge(lang.X, lang.Y),
		)...),
		declare(neigh, 1, lang.Identity),
	}
	stmts = append(stmts, l.self(self)...)
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.projected(l.atom(self, lang.X)),
		l.projected(l.atom(neigh, lang.X)),
	)...)
}

// RGCN has one weighted message rule per edge relation.
func (l *layer) rgcn(edgeTypes []string) []lang.Statement {
	msg := l.aux("msg")
	var stmts []lang.Statement
	for _, edgeType := range edgeTypes {
		stmts = append(stmts, rule(l.message(lang.CombinationUnset), l.atom(msg, lang.X), concat(
			[]lang.Literal{l.projected(l.input(lang.Y))},
			l.typedEdge(edgeType, lang.X, lang.Y),
		)...))
	}
	stmts = append(stmts,
		rule(identity, l.atom(msg, lang.X), l.projected(l.input(lang.X))),
		declare(msg, 1, lang.Identity),
	)
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.atom(msg, lang.X),
	)...)
}

// propagate emits hop relations prefix0..prefixK, where hop 0 is the input
// itself and hop h aggregates hop h-1 over the edges.
func (l *layer) propagate(prefix string, k int) ([]lang.Statement, []string) {
	names := []string{l.aux(fmt.Sprintf("%s0", prefix))}
	stmts := l.self(names[0])
	for hop := 1; hop <= k; hop++ {
		name := l.aux(fmt.Sprintf("%s%d", prefix, hop))
		stmts = append(stmts,
			rule(l.message(lang.CombinationUnset), l.atom(name, lang.X), concat(
				[]lang.Literal{l.atom(names[hop-1], lang.Y)},
				l.edge(lang.X, lang.Y),
			)...),
			declare(name, 1, lang.Identity),
		)
		names = append(names, name)
	}
	return stmts, names
}

// TAG projects every hop 0..K with its own weight.
func (l *layer) tag(k int) []lang.Statement {
	stmts, hops := l.propagate("hop", k)
	body := make([]lang.Literal, len(hops))
	for idx, hop := range hops {
		body[idx] = l.projected(l.atom(hop, lang.X))
	}
	return append(stmts, l.output(l.atom(l.out, lang.X), body...)...)
}

// SG propagates K steps without nonlinearity, then projects once.
func (l *layer) sg(k int) []lang.Statement {
	stmts, steps := l.propagate("step", k)
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.projected(l.atom(steps[k], lang.X)),
	)...)
}

// APPNP mixes each propagation step with the input: step h is
// (1-alpha) * sum over neighbors of step h-1, plus alpha * step 0.
func (l *layer) appnp(k int, alpha float64) []lang.Statement {
	step0 := l.aux("step0")
	stmts := l.self(step0)
	prev := step0
	for hop := 1; hop <= k; hop++ {
		name := l.aux(fmt.Sprintf("step%d", hop))
		stmts = append(stmts,
			rule(l.message(lang.CombinationUnset), l.atom(name, lang.X), concat(
				[]lang.Literal{l.atom(prev, lang.Y).Weighted(lang.FixedScalar(1 - alpha))},
				l.edge(lang.X, lang.Y),
			)...),
			rule(identity, l.atom(name, lang.X), l.atom(step0, lang.X).Weighted(lang.FixedScalar(alpha))),
			declare(name, 1, lang.Identity),
		)
		prev = name
	}
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.projected(l.atom(prev, lang.X)),
	)...)
}

// GATv2 scores each edge from both endpoints and weights neighbor messages
// by the score.
func (l *layer) gatv2() []lang.Statement {
	attn := l.aux("attn")
	msg := l.aux("msg")
	self := l.aux("self")
	in := l.opts.InChannels
	stmts := []lang.Statement{
		rule(lang.Metadata{Activation: lang.LeakyReLU}, l.atom(attn, lang.X, lang.Y), concat(
			[]lang.Literal{l.input(lang.X).Dim(1, in), l.input(lang.Y).Dim(1, in)},
			l.edge(lang.X, lang.Y),
		)...),
		declare(attn, 2, lang.Identity),
		rule(l.message(lang.CombProduct), l.atom(msg, lang.X), concat(
			[]lang.Literal{l.atom(attn, lang.X, lang.Y), l.projected(l.input(lang.Y))},
			l.edge(lang.X, lang.Y),
		)...),
		declare(msg, 1, lang.Identity),
	}
	stmts = append(stmts, l.self(self)...)
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.atom(msg, lang.X),
		l.projected(l.atom(self, lang.X)),
	)...)
}

// ResGated gates each neighbor message with a sigmoid of both endpoints.
func (l *layer) resGated() []lang.Statement {
	gate := l.aux("gate")
	msg := l.aux("msg")
	self := l.aux("self")
	stmts := []lang.Statement{
		rule(lang.Metadata{Activation: lang.Sigmoid}, l.atom(gate, lang.X, lang.Y), concat(
			[]lang.Literal{l.projected(l.input(lang.X)), l.projected(l.input(lang.Y))},
			l.edge(lang.X, lang.Y),
		)...),
		declare(gate, 2, lang.Sigmoid),
		rule(l.message(lang.CombElProduct), l.atom(msg, lang.X), concat(
			[]lang.Literal{l.atom(gate, lang.X, lang.Y), l.projected(l.input(lang.Y))},
			l.edge(lang.X, lang.Y),
		)...),
		declare(msg, 1, lang.Identity),
	}
	stmts = append(stmts, l.self(self)...)
	return append(stmts, l.output(
		l.atom(l.out, lang.X),
		l.atom(msg, lang.X),
		l.projected(l.atom(self, lang.X)),
	)...)
}
