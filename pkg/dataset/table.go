package dataset

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
	clog "github.com/vilterp/nltemplate/pkg/log"
)

// TableDataset builds a Dataset from tabular sources, one relation per
// source.
type TableDataset struct {
	Sources []*RelationSource
	Queries []Example
	Mode    Mode
}

func NewTableDataset(mode Mode, sources ...*RelationSource) *TableDataset {
	return &TableDataset{Sources: sources, Mode: mode}
}

func (t *TableDataset) AddSource(source *RelationSource) {
	t.Sources = append(t.Sources, source)
}

func (t *TableDataset) AddQuery(entries ...*lang.Rule) {
	t.Queries = append(t.Queries, Example(entries))
}

func (t *TableDataset) AddQueries(queries ...Example) {
	t.Queries = append(t.Queries, queries...)
}

func (t *TableDataset) SetQueries(queries ...Example) {
	t.Queries = queries
}

// ToDataset reads every source and groups the facts into examples
// according to Mode.
func (t *TableDataset) ToDataset(ctx context.Context) (*Dataset, error) {
	perSource := make([][]*lang.Rule, len(t.Sources))
	for idx, source := range t.Sources {
		facts, err := source.Facts(ctx)
		if err != nil {
			return nil, err
		}
		perSource[idx] = facts
	}

	ds := New(t.Mode)
	switch t.Mode {
	case OneExample:
		var all []*lang.Rule
		for _, facts := range perSource {
			all = append(all, facts...)
		}
		ds.AddExample(all...)
	case ExamplePerSource:
		for _, facts := range perSource {
			ds.AddExample(facts...)
		}
	case Zip:
		rows, err := zipLength(t.Sources, perSource)
		if err != nil {
			return nil, err
		}
		for row := 0; row < rows; row++ {
			example := make([]*lang.Rule, len(perSource))
			for idx, facts := range perSource {
				example[idx] = facts[row]
			}
			ds.AddExample(example...)
		}
	default:
		return nil, errors.Errorf("unknown dataset mode: %d", t.Mode)
	}
	ds.AddQueries(t.Queries...)

	clog.Printf(clog.Tagged{Context: ctx}, "dataset: %d sources, %d examples, %d queries (%s)",
		len(t.Sources), len(ds.Examples), len(ds.Queries), t.Mode)
	return ds, nil
}

func zipLength(sources []*RelationSource, perSource [][]*lang.Rule) (int, error) {
	if len(perSource) == 0 {
		return 0, nil
	}
	rows := len(perSource[0])
	for idx, facts := range perSource[1:] {
		if len(facts) != rows {
			return 0, errors.Errorf(
				"cannot zip sources: %s has %d rows but %s has %d",
				sources[0].Relation(), rows, sources[idx+1].Relation(), len(facts),
			)
		}
	}
	return rows, nil
}
