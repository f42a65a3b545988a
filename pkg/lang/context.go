package lang

// MetadataPolicy decides what attaching metadata to an already annotated
// rule does.
type MetadataPolicy int

const (
	// AttachStrict fails with DuplicateMetadataError.
	AttachStrict MetadataPolicy = iota
	// AttachOverwrite silently replaces the previous metadata.
	AttachOverwrite
)

// Context gates construction of engine-bound objects. It starts
// uninitialized; Initialize moves it to ready.
type Context struct {
	ready    bool
	policy   MetadataPolicy
	registry *Registry
}

func NewContext() *Context {
	return &Context{
		registry: NewRegistry(),
	}
}

// Initialize readies the context. Calling it again is a no-op.
func (c *Context) Initialize(policy MetadataPolicy) {
	if c.ready {
		return
	}
	c.policy = policy
	c.ready = true
}

func (c *Context) IsInitialized() bool {
	return c.ready
}

// Factory returns the term/rule factory bound to this context.
func (c *Context) Factory() (*Factory, error) {
	if !c.ready {
		return nil, &NotInitializedError{Operation: "factory"}
	}
	return &Factory{ctx: c}, nil
}

// NewFactory is a shortcut for a factory over a fresh context initialized
// with policy.
func NewFactory(policy MetadataPolicy) *Factory {
	c := NewContext()
	c.Initialize(policy)
	return &Factory{ctx: c}
}

// Factory constructs terms and rules under an initialized Context.
type Factory struct {
	ctx *Context
}

func (f *Factory) Policy() MetadataPolicy {
	return f.ctx.policy
}

func (f *Factory) Relation(name string) (*RelationHandle, error) {
	return f.ctx.registry.Relation(name)
}

func (f *Factory) Registry() *Registry {
	return f.ctx.registry
}

func (f *Factory) Atom(relation string, args ...Term) (*Atom, error) {
	handle, err := f.Relation(relation)
	if err != nil {
		return nil, err
	}
	return handle.Atom(args...), nil
}

func (f *Factory) Var(name string) Variable { return Var(name) }

func (f *Factory) Const(value interface{}) Constant { return Const(value) }

func (f *Factory) Rule(head Literal, body ...Literal) (*Rule, error) {
	return MakeRule(head, body...)
}

func (f *Factory) Fact(head Literal) *Rule { return NewFact(head) }

// Attach attaches md to r following the context's MetadataPolicy.
func (f *Factory) Attach(r *Rule, md Metadata) (*Rule, error) {
	if f.ctx.policy == AttachOverwrite {
		return ReplaceMetadata(r, md), nil
	}
	return WithMetadata(r, md)
}
