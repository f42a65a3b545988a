package dataset

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
	pp "github.com/vilterp/nltemplate/pkg/prettyprint"
)

// Mode says how source rows are grouped into examples.
type Mode int

const (
	// OneExample pools every fact from every source into a single example.
	OneExample Mode = iota
	// ExamplePerSource makes one example out of each source.
	ExamplePerSource
	// Zip makes example i out of row i of every source.
	Zip
)

var modeNames = []string{"one_example", "example_per_source", "zip"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

func ParseMode(s string) (Mode, error) {
	lower := strings.ToLower(s)
	for idx, name := range modeNames {
		if name == lower {
			return Mode(idx), nil
		}
	}
	return 0, errors.Errorf("unknown dataset mode: %s", s)
}

// Example is a set of ground facts (or rules) the engine evaluates together.
type Example []*lang.Rule

// Dataset is what gets handed to an engine alongside a template: examples,
// and the queries to evaluate against them. Queries[i] belongs to
// Examples[i], unless there is a single example, which all queries share.
type Dataset struct {
	Examples []Example
	Queries  []Example
	Mode     Mode
}

func New(mode Mode) *Dataset {
	return &Dataset{Mode: mode}
}

func (d *Dataset) AddExample(entries ...*lang.Rule) {
	d.Examples = append(d.Examples, cloneExample(entries))
}

func (d *Dataset) AddQuery(entries ...*lang.Rule) {
	d.Queries = append(d.Queries, cloneExample(entries))
}

func (d *Dataset) AddQueries(queries ...Example) {
	for _, query := range queries {
		d.AddQuery(query...)
	}
}

// SetQueries replaces every query.
func (d *Dataset) SetQueries(queries ...Example) {
	d.Queries = nil
	d.AddQueries(queries...)
}

// Len is the number of facts across all examples.
func (d *Dataset) Len() int {
	total := 0
	for _, example := range d.Examples {
		total += len(example)
	}
	return total
}

func (d *Dataset) Format() pp.Doc {
	var docs []pp.Doc
	for idx, example := range d.Examples {
		docs = append(docs, pp.Textf("%% example %d", idx))
		docs = append(docs, example.Format())
	}
	for idx, query := range d.Queries {
		docs = append(docs, pp.Textf("%% query %d", idx))
		docs = append(docs, query.Format())
	}
	return pp.Lines(docs)
}

func (d *Dataset) String() string { return d.Format().String() }

func (e Example) Format() pp.Doc {
	docs := make([]pp.Doc, len(e))
	for idx, rule := range e {
		docs[idx] = rule.Format()
	}
	return pp.Lines(docs)
}

func cloneExample(entries []*lang.Rule) Example {
	out := make(Example, len(entries))
	for idx, entry := range entries {
		out[idx] = entry.Clone()
	}
	return out
}
