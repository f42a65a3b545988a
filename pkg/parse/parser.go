package parse

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
)

var (
	ruleLexer = lexer.Unquote(
		lexer.Must(
			lexer.Regexp(`(\s+)`+
				`|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*)`+
				`|(?P<Number>[-+]?\d*\.?\d+([eE][-+]?\d+)?)`+
				`|(?P<String>"(\\.|[^"\\])*")`+
				`|(?P<Operators>:-|[,.()\[\]{}<>/=])`,
			),
		),
		"String",
	)
	programParser = participle.MustBuild(&Program{}, ruleLexer)
	lineParser    = participle.MustBuild(&Line{}, ruleLexer)
	literalParser = participle.MustBuild(&Literal{}, ruleLexer)
	metaParser    = participle.MustBuild(&MetadataBlock{}, ruleLexer)
)

// Program is a whole template file: one statement after another.
type Program struct {
	Lines []*Line `{ @@ }`
}

// Line is a rule, a fact or a relation default:
//
//	{3, 3} h(X) :- {3, 2} p(Y), edge(Y, X). [activation=relu]
//	p(a).
//	h/1 [activation=sigmoid]
type Line struct {
	Head   *Literal   `@@`
	Arity  *string    `( "/" @Number`
	Body   []*Literal `| [ ":-" @@ { "," @@ } ] "." )`
	Meta   []*Option  `[ "[" [ @@ { "," @@ } ] "]" ]`
}

type Option struct {
	Key   string `@Ident "="`
	Value string `@Ident`
}

// MetadataBlock is a bracketed option list on its own: [activation=relu].
type MetadataBlock struct {
	Options []*Option `"[" [ @@ { "," @@ } ] "]"`
}

// Literal is an atom with an optional weight prefix. Each branch starts
// with a required token, so a missing literal is a non-match rather than a
// partial one and `{ @@ }` stops cleanly at EOF.
type Literal struct {
	Weight   *Weight `( @@`
	Weighted *Atom   `  @@`
	Bare     *Atom   `| @@ )`
}

func (l *Literal) atom() *Atom {
	if l.Weighted != nil {
		return l.Weighted
	}
	return l.Bare
}

type Weight struct {
	Shape []string `  "{" @Number { "," @Number } "}"`
	Fixed *string  `| "<" @Number ">"`
	Value *string  `| @Number`
}

type Atom struct {
	Name string  `@Ident`
	Args []*Term `[ "(" @@ { "," @@ } ")" ]`
}

type Term struct {
	Number *string `  @Number`
	String *string `| @String`
	Atom   *Atom   `| @@`
}

// Parser converts template text into statements built by one factory, so
// relations resolve through its registry and rule metadata is attached
// under its policy.
type Parser struct {
	factory *lang.Factory
}

func NewParser(factory *lang.Factory) *Parser {
	return &Parser{factory: factory}
}

var defaultParser = NewParser(lang.NewFactory(lang.AttachStrict))

// ParseTemplate parses a template file into statements, in order. Lines
// starting with % are comments.
func (p *Parser) ParseTemplate(src string) ([]lang.Statement, error) {
	program := &Program{}
	if err := programParser.ParseString(stripComments(src), program); err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	stmts := make([]lang.Statement, 0, len(program.Lines))
	for idx, line := range program.Lines {
		stmt, err := p.statement(line)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %d", idx+1)
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// ParseLine parses a single statement.
func (p *Parser) ParseLine(src string) (lang.Statement, error) {
	line := &Line{}
	if err := lineParser.ParseString(src, line); err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	return p.statement(line)
}

// ParseRule parses a single rule or fact.
func (p *Parser) ParseRule(src string) (*lang.Rule, error) {
	stmt, err := p.ParseLine(src)
	if err != nil {
		return nil, err
	}
	rule, ok := stmt.(*lang.Rule)
	if !ok {
		return nil, errors.Errorf("expected a rule; got relation default %s", src)
	}
	return rule, nil
}

// ParseLiteral parses an atom with an optional weight prefix.
func (p *Parser) ParseLiteral(src string) (lang.Literal, error) {
	lit := &Literal{}
	if err := literalParser.ParseString(src, lit); err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	return p.literal(lit)
}

// ParseTemplate parses src with a strict parser.
func ParseTemplate(src string) ([]lang.Statement, error) {
	return defaultParser.ParseTemplate(src)
}

func ParseLine(src string) (lang.Statement, error) {
	return defaultParser.ParseLine(src)
}

func ParseRule(src string) (*lang.Rule, error) {
	return defaultParser.ParseRule(src)
}

func ParseLiteral(src string) (lang.Literal, error) {
	return defaultParser.ParseLiteral(src)
}

// ParseMetadata parses a bracketed option list such as
// [aggregation=avg, activation=sigmoid].
func ParseMetadata(src string) (lang.Metadata, error) {
	block := &MetadataBlock{}
	if err := metaParser.ParseString(src, block); err != nil {
		return lang.Metadata{}, errors.Wrap(err, "parse error")
	}
	return optionsToMetadata(block.Options)
}

// ParseAtom parses an unweighted atom such as edge(X, Y).
func ParseAtom(src string) (*lang.Atom, error) {
	lit, err := ParseLiteral(src)
	if err != nil {
		return nil, err
	}
	if lit.Weight() != nil {
		return nil, errors.Errorf("expected an atom; got weighted literal %s", src)
	}
	return lit.Atom(), nil
}

func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "%") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Conversion to the term model.

func (p *Parser) statement(l *Line) (lang.Statement, error) {
	md, err := optionsToMetadata(l.Meta)
	if err != nil {
		return nil, err
	}

	if l.Arity != nil {
		name := l.Head.atom().Name
		if l.Head.Weight != nil || len(l.Head.atom().Args) > 0 {
			return nil, errors.Errorf("relation declaration %s/%s must be a bare name", name, *l.Arity)
		}
		arity, err := strconv.Atoi(*l.Arity)
		if err != nil || arity < 0 {
			return nil, errors.Errorf("invalid arity: %s", *l.Arity)
		}
		handle, err := p.factory.Relation(name)
		if err != nil {
			return nil, err
		}
		return handle.Arity(arity).WithMetadata(md), nil
	}

	head, err := p.literal(l.Head)
	if err != nil {
		return nil, err
	}
	var rule *lang.Rule
	if len(l.Body) == 0 {
		rule = p.factory.Fact(head)
	} else {
		body := make([]lang.Literal, len(l.Body))
		for idx, lit := range l.Body {
			body[idx], err = p.literal(lit)
			if err != nil {
				return nil, err
			}
		}
		rule, err = p.factory.Rule(head, body...)
		if err != nil {
			return nil, err
		}
	}
	if len(l.Meta) > 0 {
		if _, err := p.factory.Attach(rule, md); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func optionsToMetadata(opts []*Option) (lang.Metadata, error) {
	values := map[string]interface{}{}
	for _, opt := range opts {
		if _, ok := values[opt.Key]; ok {
			return lang.Metadata{}, errors.Errorf("duplicate metadata option: %s", opt.Key)
		}
		values[opt.Key] = opt.Value
	}
	return lang.NewMetadata(values)
}

func (p *Parser) literal(l *Literal) (lang.Literal, error) {
	atom, err := p.atom(l.atom())
	if err != nil {
		return nil, err
	}
	if l.Weight == nil {
		return atom, nil
	}
	weight, err := l.Weight.toLang()
	if err != nil {
		return nil, err
	}
	return atom.Weighted(weight), nil
}

func (w *Weight) toLang() (lang.WeightSpec, error) {
	switch {
	case len(w.Shape) > 0:
		dims := make([]int, len(w.Shape))
		for idx, dim := range w.Shape {
			n, err := strconv.Atoi(dim)
			if err != nil || n <= 0 {
				return lang.WeightSpec{}, errors.Errorf("invalid weight dimension: %s", dim)
			}
			dims[idx] = n
		}
		return lang.Shape(dims...), nil
	case w.Fixed != nil:
		v, err := strconv.ParseFloat(*w.Fixed, 64)
		if err != nil {
			return lang.WeightSpec{}, errors.Wrap(err, "fixed weight")
		}
		return lang.FixedScalar(v), nil
	case w.Value != nil:
		v, err := strconv.ParseFloat(*w.Value, 64)
		if err != nil {
			return lang.WeightSpec{}, errors.Wrap(err, "weight")
		}
		return lang.Scalar(v), nil
	}
	return lang.WeightSpec{}, errors.New("empty weight")
}

func (p *Parser) atom(a *Atom) (*lang.Atom, error) {
	args := make([]lang.Term, len(a.Args))
	for idx, arg := range a.Args {
		term, err := p.term(arg)
		if err != nil {
			return nil, err
		}
		args[idx] = term
	}
	return p.factory.Atom(a.Name, args...)
}

func (p *Parser) term(t *Term) (lang.Term, error) {
	switch {
	case t.Number != nil:
		return lang.ConstFromText(*t.Number), nil
	case t.String != nil:
		return lang.NewConst(*t.String)
	case t.Atom != nil:
		if len(t.Atom.Args) > 0 {
			return p.atom(t.Atom)
		}
		if lang.IsVariableName(t.Atom.Name) {
			return p.factory.Var(t.Atom.Name), nil
		}
		return lang.NewConst(t.Atom.Name)
	}
	return nil, errors.New("empty term")
}
