package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/dataset"
	"github.com/vilterp/nltemplate/pkg/lang"
	clog "github.com/vilterp/nltemplate/pkg/log"
	"github.com/vilterp/nltemplate/pkg/template"
)

// DryRun checks that a template and dataset are well formed without
// computing anything. Its loss is the fraction of queries whose relation no
// rule or fact derives, which is constant across epochs.
type DryRun struct{}

var _ Engine = DryRun{}

type dryRunEvaluator struct {
	t        *template.Template
	settings Settings
	derived  map[string]bool
}

type dryRunDataset struct {
	examples int
	facts    int
	queries  int
}

func (d *dryRunDataset) NumExamples() int { return d.examples }

type UnresolvedMetadataError struct {
	Rule  string
	Field string
}

func (e *UnresolvedMetadataError) Error() string {
	return fmt.Sprintf("rule %s: no %s set and no default to fall back to", e.Rule, e.Field)
}

func (DryRun) Build(ctx context.Context, t *template.Template, settings Settings) (Evaluator, error) {
	rules := t.Rules()
	if len(rules) == 0 {
		return nil, errors.New("template has no rules")
	}
	derived := map[string]bool{}
	for _, rule := range rules {
		derived[rule.Head().Atom().Relation()] = true
		if rule.IsFact() {
			continue
		}
		md := t.Resolve(rule)
		if md.Activation == lang.ActivationUnset && settings.DefaultActivation == "" {
			return nil, &UnresolvedMetadataError{Rule: rule.String(), Field: "activation"}
		}
	}
	clog.Printf(t, "dry run: built %d rules, %d relations", len(rules), len(derived))
	return &dryRunEvaluator{
		t:        t,
		settings: settings,
		derived:  derived,
	}, nil
}

func (e *dryRunEvaluator) BuildDataset(ctx context.Context, ds *dataset.Dataset) (PreparedDataset, error) {
	if ds == nil || len(ds.Examples) == 0 {
		return nil, errors.New("dataset has no examples")
	}
	if len(ds.Examples) > 1 && len(ds.Queries) != len(ds.Examples) {
		return nil, errors.Errorf("dataset has %d examples but %d queries", len(ds.Examples), len(ds.Queries))
	}
	prepared := &dryRunDataset{
		examples: len(ds.Examples),
		facts:    ds.Len(),
	}
	for _, query := range ds.Queries {
		prepared.queries += len(query)
	}
	return prepared, nil
}

func (e *dryRunEvaluator) loss(ds *dataset.Dataset) float64 {
	facts := map[string]bool{}
	for _, example := range ds.Examples {
		for _, fact := range example {
			facts[fact.Head().Atom().Relation()] = true
		}
	}
	total, missing := 0, 0
	for _, query := range ds.Queries {
		for _, q := range query {
			total++
			relation := q.Head().Atom().Relation()
			if !e.derived[relation] && !facts[relation] {
				missing++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(missing) / float64(total)
}

func (e *dryRunEvaluator) Train(ctx context.Context, ds *dataset.Dataset) <-chan EpochResult {
	results := make(chan EpochResult)
	go func() {
		defer close(results)
		if _, err := e.BuildDataset(ctx, ds); err != nil {
			select {
			case <-ctx.Done():
			case results <- EpochResult{Err: err}:
			}
			return
		}
		loss := e.loss(ds)
		for epoch := 1; epoch <= e.settings.Epochs; epoch++ {
			select {
			case <-ctx.Done():
				return
			case results <- EpochResult{Epoch: epoch, Loss: loss}:
			}
		}
		clog.Printf(e.t, "dry run: trained %d epochs, loss %g", e.settings.Epochs, loss)
	}()
	return results
}
