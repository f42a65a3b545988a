package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/gnn"
	"github.com/vilterp/nltemplate/pkg/lang"
	clog "github.com/vilterp/nltemplate/pkg/log"
	"github.com/vilterp/nltemplate/pkg/parse"
	"github.com/vilterp/nltemplate/pkg/template"
)

const Help = `statements:
  h(X) :- b(Y), edge(X, Y). [activation=relu]   add a rule
  edge(a, b).                                    add a fact
  h/1 [aggregation=avg]                          set a relation default
commands:
  \gnn <kind> <in_channels> <next_width> [name]  append a layer
  \show                                          print the template
  \layers                                        list the layers built so far
  \freeze                                        stop accepting statements
  \save                                          write the template to the store
  \load <id>                                     replace the template with a stored one;
                                                 later layers continue after its last one
  \list                                          list stored templates
  \new                                           start a new template
  \h                                             this help`

// Session interprets statements against one template. It is used by the
// shell and by each server connection; it is not safe for concurrent use.
type Session struct {
	tmpl      *template.Template
	layers    []string
	nextLayer int
	store     *template.Store
	metrics   *template.Metrics
	ctx       context.Context

	policy  lang.MetadataPolicy
	langCtx *lang.Context
	factory *lang.Factory
	parser  *parse.Parser
}

type Option func(*Session)

// WithPolicy sets what re-annotating a rule or relation does in this
// session. The default is lang.AttachStrict.
func WithPolicy(policy lang.MetadataPolicy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// New starts a session on a fresh template. store may be nil, in which
// case \save, \load and \list fail. Every template the session touches
// shares the session's initialized lang.Context.
func New(ctx context.Context, store *template.Store, metrics *template.Metrics, opts ...Option) *Session {
	s := &Session{
		store:   store,
		metrics: metrics,
		langCtx: lang.NewContext(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.langCtx.Initialize(s.policy)
	factory, err := s.langCtx.Factory()
	if err != nil {
		// Initialize was just called.
		panic(err)
	}
	s.factory = factory
	s.parser = parse.NewParser(factory)
	s.reset(ctx, s.newTemplate())
	return s
}

func (s *Session) newTemplate() *template.Template {
	return template.New(template.WithMetrics(s.metrics), template.WithFactory(s.factory))
}

func (s *Session) reset(ctx context.Context, t *template.Template) {
	s.tmpl = t
	s.layers = gnn.Layers(t)
	s.nextLayer = 0
	if len(s.layers) > 0 {
		last, _, _ := gnn.ParseOutputName(s.layers[len(s.layers)-1])
		s.nextLayer = last + 1
	}
	s.ctx = context.WithValue(ctx, clog.TemplateIDKey, t.ID())
}

// Factory returns the factory every statement of the session is built with.
func (s *Session) Factory() *lang.Factory { return s.factory }

func (s *Session) Ctx() context.Context { return s.ctx }

func (s *Session) Template() *template.Template { return s.tmpl }

// Layers returns the output relations of the layers built so far.
func (s *Session) Layers() []string {
	return append([]string(nil), s.layers...)
}

// Result is the reply to one statement: either a short acknowledgement or
// a block of output.
type Result struct {
	Ack    string
	Output string
}

type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: \\%s (\\h for help)", e.Command)
}

type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

// Exec runs one line. Blank lines and % comments are acknowledged with an
// empty Ack.
func (s *Session) Exec(line string) (*Result, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "%") {
		return &Result{}, nil
	}
	if strings.HasPrefix(line, `\`) {
		return s.command(strings.Fields(line[1:]))
	}

	stmt, err := s.parser.ParseLine(line)
	if err != nil {
		return nil, err
	}
	if err := s.tmpl.Add(stmt); err != nil {
		return nil, err
	}
	switch stmt.(type) {
	case *lang.RelationDefault:
		return &Result{Ack: "SET DEFAULT"}, nil
	default:
		return &Result{Ack: "ADD RULE"}, nil
	}
}

func (s *Session) command(fields []string) (*Result, error) {
	if len(fields) == 0 {
		return nil, &UnknownCommandError{}
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "h", "help":
		return &Result{Output: Help}, nil
	case "show":
		return &Result{Output: s.tmpl.String()}, nil
	case "layers":
		return &Result{Output: strings.Join(s.layers, "\n")}, nil
	case "freeze":
		s.tmpl.Freeze()
		return &Result{Ack: "FROZEN"}, nil
	case "new":
		s.reset(s.ctx, s.newTemplate())
		return &Result{Ack: "NEW " + s.tmpl.ID()}, nil
	case "gnn":
		return s.gnn(args)
	case "save":
		if err := s.requireStore(); err != nil {
			return nil, err
		}
		if err := s.store.Put(s.tmpl); err != nil {
			return nil, err
		}
		return &Result{Ack: "SAVED " + s.tmpl.ID()}, nil
	case "load":
		if len(args) != 1 {
			return nil, &UsageError{Usage: `\load <id>`}
		}
		if err := s.requireStore(); err != nil {
			return nil, err
		}
		loaded, err := s.store.Get(args[0], template.WithFactory(s.factory))
		if err != nil {
			return nil, err
		}
		s.reset(s.ctx, loaded)
		return &Result{Ack: fmt.Sprintf("LOADED %d statements", loaded.Len())}, nil
	case "list":
		if err := s.requireStore(); err != nil {
			return nil, err
		}
		ids, err := s.store.List()
		if err != nil {
			return nil, err
		}
		return &Result{Output: strings.Join(ids, "\n")}, nil
	}
	return nil, &UnknownCommandError{Command: name}
}

func (s *Session) requireStore() error {
	if s.store == nil {
		return errors.New("no template store configured")
	}
	return nil
}

// gnn builds one layer on top of the layers built so far.
func (s *Session) gnn(args []string) (*Result, error) {
	usage := &UsageError{Usage: `\gnn <kind> <in_channels> <next_width> [name]`}
	if len(args) < 3 || len(args) > 4 {
		return nil, usage
	}
	in, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, usage
	}
	next, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, usage
	}
	base := gnn.Base{InChannels: in}
	if len(args) == 4 {
		base.Name = args[3]
	}

	spec, err := gnn.NewSpec(args[0], base)
	if err != nil {
		return nil, err
	}
	module, err := gnn.NewModule(spec)
	if err != nil {
		return nil, err
	}
	index := s.nextLayer
	out, err := module.Build(s.tmpl, index, s.layers, next)
	if err != nil {
		return nil, err
	}
	s.layers = append(s.layers, out)
	s.nextLayer++
	clog.Printf(s, "layer %d: %s", index, out)
	return &Result{Ack: "ADD LAYER " + out}, nil
}
