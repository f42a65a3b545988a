package template

import (
	"context"

	"github.com/google/uuid"
	"github.com/vilterp/nltemplate/pkg/lang"
	clog "github.com/vilterp/nltemplate/pkg/log"
	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Template is the ordered, append-only collection of rules and relation
// defaults handed to the engine. It is not safe for concurrent mutation.
type Template struct {
	id       string
	entries  []lang.Statement
	defaults map[lang.Predicate]*lang.RelationDefault
	frozen   bool
	factory  *lang.Factory

	metrics *Metrics
	ctx     context.Context
}

type Option func(*Template)

func WithMetrics(m *Metrics) Option {
	return func(t *Template) {
		t.metrics = m
	}
}

// WithFactory binds the template to a factory: its relation registry and
// its metadata policy. By default each template gets a strict factory of
// its own.
func WithFactory(f *lang.Factory) Option {
	return func(t *Template) {
		t.factory = f
	}
}

// WithID overrides the generated ID; used when loading stored templates.
func WithID(id string) Option {
	return func(t *Template) {
		t.id = id
	}
}

func New(opts ...Option) *Template {
	t := &Template{
		id:       uuid.New().String(),
		defaults: map[lang.Predicate]*lang.RelationDefault{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.factory == nil {
		t.factory = lang.NewFactory(lang.AttachStrict)
	}
	t.ctx = context.WithValue(context.Background(), clog.TemplateIDKey, t.id)
	return t
}

func (t *Template) ID() string { return t.id }

func (t *Template) Ctx() context.Context { return t.ctx }

func (t *Template) Factory() *lang.Factory { return t.factory }

// Metrics returns the template's metrics sink; it may be nil.
func (t *Template) Metrics() *Metrics { return t.metrics }

// AddRule appends a rule (or fact).
func (t *Template) AddRule(rule *lang.Rule) error {
	return t.Add(rule)
}

// AddRuleWithMetadata attaches md to a copy of rule, following the
// factory's metadata policy, and appends it.
func (t *Template) AddRuleWithMetadata(rule *lang.Rule, md lang.Metadata) error {
	annotated, err := t.factory.Attach(rule.Clone(), md)
	if err != nil {
		t.metrics.ConstructionError(err)
		return err
	}
	return t.Add(annotated)
}

// AddRules appends rules in the given order.
func (t *Template) AddRules(rules ...*lang.Rule) error {
	stmts := make([]lang.Statement, len(rules))
	for idx, rule := range rules {
		stmts[idx] = rule
	}
	return t.Add(stmts...)
}

// SetDefault declares relation-level metadata.
func (t *Template) SetDefault(pred lang.Predicate, md lang.Metadata) error {
	return t.Add(pred.WithMetadata(md))
}

// Add appends statements in order. Either all of them are appended or, on
// error, none. Each statement is copied, so later changes to the caller's
// rules do not reach the template. Under AttachOverwrite a second default
// for a relation replaces the first in place.
func (t *Template) Add(stmts ...lang.Statement) error {
	if err := t.validate(stmts); err != nil {
		t.metrics.ConstructionError(err)
		return err
	}
	for _, stmt := range stmts {
		copied := lang.CloneStatement(stmt)
		def, ok := copied.(*lang.RelationDefault)
		if !ok {
			t.entries = append(t.entries, copied)
			t.metrics.ruleAdded()
			continue
		}
		if _, exists := t.defaults[def.Predicate]; exists {
			t.replaceDefault(def)
			continue
		}
		t.entries = append(t.entries, def)
		t.defaults[def.Predicate] = def
		t.metrics.defaultDeclared()
	}
	return nil
}

func (t *Template) replaceDefault(def *lang.RelationDefault) {
	for idx, stmt := range t.entries {
		if existing, ok := stmt.(*lang.RelationDefault); ok && existing.Predicate == def.Predicate {
			t.entries[idx] = def
		}
	}
	t.defaults[def.Predicate] = def
}

func (t *Template) validate(stmts []lang.Statement) error {
	if t.frozen {
		return &TemplateFrozenError{TemplateID: t.id}
	}
	seen := map[lang.Predicate]bool{}
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case nil:
			return &lang.ConstructionError{Head: "<nil>", Reason: "nil statement"}
		case *lang.RelationDefault:
			if t.factory.Policy() == lang.AttachOverwrite {
				continue
			}
			if _, ok := t.defaults[s.Predicate]; ok || seen[s.Predicate] {
				return &lang.DuplicateMetadataError{Target: s.Predicate.String()}
			}
			seen[s.Predicate] = true
		case *lang.Rule:
			if s == nil {
				return &lang.ConstructionError{Head: "<nil>", Reason: "nil rule"}
			}
		}
	}
	return nil
}

// Entries returns every statement in declaration order.
func (t *Template) Entries() []lang.Statement {
	out := make([]lang.Statement, len(t.entries))
	copy(out, t.entries)
	return out
}

// Rules returns the rules and facts in declaration order.
func (t *Template) Rules() []*lang.Rule {
	var rules []*lang.Rule
	for _, stmt := range t.entries {
		if rule, ok := stmt.(*lang.Rule); ok {
			rules = append(rules, rule.Clone())
		}
	}
	return rules
}

// Defaults returns the relation defaults in declaration order.
func (t *Template) Defaults() []*lang.RelationDefault {
	var defaults []*lang.RelationDefault
	for _, stmt := range t.entries {
		if def, ok := stmt.(*lang.RelationDefault); ok {
			copied := *def
			defaults = append(defaults, &copied)
		}
	}
	return defaults
}

func (t *Template) DefaultFor(pred lang.Predicate) (lang.Metadata, bool) {
	def, ok := t.defaults[pred]
	if !ok {
		return lang.Metadata{}, false
	}
	return def.Metadata, true
}

// Resolve returns the metadata the engine should apply to rule: its own
// options, falling back to the head relation's default per option.
func (t *Template) Resolve(rule *lang.Rule) lang.Metadata {
	var md lang.Metadata
	if own := rule.Metadata(); own != nil {
		md = *own
	}
	def, ok := t.DefaultFor(rule.Head().Atom().Predicate())
	if !ok {
		return md
	}
	if md.Aggregation == lang.AggregationUnset {
		md.Aggregation = def.Aggregation
	}
	if md.Activation == lang.ActivationUnset {
		md.Activation = def.Activation
	}
	if md.Combination == lang.CombinationUnset {
		md.Combination = def.Combination
	}
	if md.Learnable == nil {
		md.Learnable = def.Learnable
	}
	return md
}

func (t *Template) Len() int { return len(t.entries) }

// Freeze marks the template as consumed; further mutation fails.
func (t *Template) Freeze() {
	if t.frozen {
		return
	}
	t.frozen = true
	t.metrics.frozen(len(t.entries))
	clog.Printf(t, "frozen with %d statements", len(t.entries))
}

func (t *Template) IsFrozen() bool { return t.frozen }

func (t *Template) Format() pp.Doc {
	docs := make([]pp.Doc, len(t.entries))
	for idx, stmt := range t.entries {
		docs[idx] = stmt.Format()
	}
	return pp.Lines(docs)
}

func (t *Template) String() string { return t.Format().String() }

// Merge concatenates statement sequences assembled separately (e.g. on
// different goroutines) into one, preserving the order of parts.
func Merge(parts ...[]lang.Statement) []lang.Statement {
	var out []lang.Statement
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}
