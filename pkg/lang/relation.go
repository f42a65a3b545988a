package lang

import (
	"fmt"
	"sort"
	"sync"

	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Predicate is a relation/arity marker such as `edge/2`.
type Predicate struct {
	Name  string
	Arity int
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s/%d", p.Name, p.Arity)
}

// WithMetadata declares a default for every ground atom of the relation.
func (p Predicate) WithMetadata(md Metadata) *RelationDefault {
	return &RelationDefault{Predicate: p, Metadata: md}
}

// RelationDefault applies Metadata to all atoms of a relation not otherwise
// annotated by a rule, e.g. `l0_gcn/1 [activation=relu]`.
type RelationDefault struct {
	Predicate Predicate
	Metadata  Metadata
}

var _ Statement = &RelationDefault{}

func (d *RelationDefault) Format() pp.Doc {
	return pp.Seq(pp.Text(d.Predicate.String()), pp.Text(" "), d.Metadata.Format())
}

func (d *RelationDefault) String() string { return d.Format().String() }

func (d *RelationDefault) clone() Statement {
	copied := *d
	return &copied
}

// RelationHandle is a named relation from a Registry. Handles for the same
// name are the same pointer.
type RelationHandle struct {
	name string
}

func (h *RelationHandle) Name() string { return h.name }

// Atom applies the relation to args.
func (h *RelationHandle) Atom(args ...Term) *Atom {
	return &Atom{relation: h.name, args: termArgs(args)}
}

// Arity returns the relation/arity marker for declarations.
func (h *RelationHandle) Arity(n int) Predicate {
	return Predicate{Name: h.name, Arity: n}
}

// Registry centralizes relation lookup by name. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.Mutex
	relations map[string]*RelationHandle
}

func NewRegistry() *Registry {
	return &Registry{
		relations: map[string]*RelationHandle{},
	}
}

// Relation returns the handle for name, creating it on first use.
func (r *Registry) Relation(name string) (*RelationHandle, error) {
	if name == "" {
		return nil, &EmptyRelationNameError{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if handle, ok := r.relations[name]; ok {
		return handle, nil
	}
	handle := &RelationHandle{name: name}
	r.relations[name] = handle
	return handle, nil
}

// MustRelation is like Relation but panics on an empty name.
func (r *Registry) MustRelation(name string) *RelationHandle {
	handle, err := r.Relation(name)
	if err != nil {
		panic(err)
	}
	return handle
}

// Lookup returns the handle for name without creating it.
func (r *Registry) Lookup(name string) (*RelationHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.relations[name]
	return handle, ok
}

// Names lists registered relations in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.relations))
	for name := range r.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
