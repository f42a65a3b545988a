package lang

import (
	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Statement is one line of a template: a *Rule (facts included) or a
// *RelationDefault.
type Statement interface {
	// Format renders the line in template form, metadata included.
	Format() pp.Doc
	clone() Statement
}

// CloneStatement returns a copy that shares no mutable state with s.
func CloneStatement(s Statement) Statement {
	return s.clone()
}

// Rule is `head :- body1, ..., bodyN.` with an optional metadata
// annotation. The body only grows, through Extend.
type Rule struct {
	head     Literal
	body     []Literal
	metadata *Metadata
}

var _ Statement = &Rule{}

// MakeRule forms `head :- body...`. At least one body literal is required;
// bare facts go through NewFact.
func MakeRule(head Literal, body ...Literal) (*Rule, error) {
	if head == nil {
		return nil, &ConstructionError{Head: "<nil>", Reason: "missing head"}
	}
	if len(body) == 0 {
		return nil, &ConstructionError{Head: head.String(), Reason: "empty body"}
	}
	for _, lit := range body {
		if lit == nil {
			return nil, &ConstructionError{Head: head.String(), Reason: "nil body literal"}
		}
	}
	copied := make([]Literal, len(body))
	copy(copied, body)
	return &Rule{
		head: head,
		body: copied,
	}, nil
}

// MustRule is like MakeRule but panics on error.
func MustRule(head Literal, body ...Literal) *Rule {
	rule, err := MakeRule(head, body...)
	if err != nil {
		panic(err)
	}
	return rule
}

// NewFact returns a rule with an empty body, rendered as `head.`
func NewFact(head Literal) *Rule {
	return &Rule{head: head}
}

func (r *Rule) Head() Literal { return r.head }

func (r *Rule) Body() []Literal {
	out := make([]Literal, len(r.body))
	copy(out, r.body)
	return out
}

func (r *Rule) IsFact() bool { return len(r.body) == 0 }

// Extend appends literals to the body in order and returns the receiver, so
// r.Extend(a).Extend(b) leaves the same body as r.Extend(a, b).
func (r *Rule) Extend(lits ...Literal) *Rule {
	r.body = append(r.body, lits...)
	return r
}

// Metadata returns the attached metadata, or nil.
func (r *Rule) Metadata() *Metadata {
	if r.metadata == nil {
		return nil
	}
	md := *r.metadata
	return &md
}

// WithMetadata attaches md to r and returns r. A rule carries at most one
// metadata value; a second attach fails even if the values are equal.
func WithMetadata(r *Rule, md Metadata) (*Rule, error) {
	if r.metadata != nil {
		return nil, &DuplicateMetadataError{Target: r.String()}
	}
	r.metadata = &md
	return r, nil
}

// ReplaceMetadata overwrites any metadata attached to r.
func ReplaceMetadata(r *Rule, md Metadata) *Rule {
	r.metadata = &md
	return r
}

// Equal compares head and body structurally. Metadata is not part of a
// rule's identity.
func (r *Rule) Equal(other *Rule) bool {
	if other == nil || !r.head.EqualLiteral(other.head) || len(r.body) != len(other.body) {
		return false
	}
	for idx := range r.body {
		if !r.body[idx].EqualLiteral(other.body[idx]) {
			return false
		}
	}
	return true
}

// Clause renders just the logical part: `head :- b1, b2.` or `head.`
func (r *Rule) Clause() pp.Doc {
	if len(r.body) == 0 {
		return pp.Seq(r.head.Format(), pp.Text("."))
	}
	bodyDocs := make([]pp.Doc, len(r.body))
	for idx, lit := range r.body {
		bodyDocs[idx] = lit.Format()
	}
	return pp.Seq(
		r.head.Format(),
		pp.Text(" :- "),
		pp.Join(bodyDocs, pp.CommaSpace),
		pp.Text("."),
	)
}

func (r *Rule) String() string { return r.Clause().String() }

// Format renders the clause followed by its metadata, if any.
func (r *Rule) Format() pp.Doc {
	if r.metadata == nil || r.metadata.IsEmpty() {
		return r.Clause()
	}
	return pp.Seq(r.Clause(), pp.Text(" "), r.metadata.Format())
}

func (r *Rule) clone() Statement {
	return r.Clone()
}

func (r *Rule) Clone() *Rule {
	out := &Rule{
		head: r.head,
		body: r.Body(),
	}
	out.metadata = r.Metadata()
	return out
}
