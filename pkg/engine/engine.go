package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/dataset"
	"github.com/vilterp/nltemplate/pkg/template"
)

// Engine instantiates a template into something trainable. Implementations
// live outside this module; DryRun is the in-process stand-in.
type Engine interface {
	Build(ctx context.Context, t *template.Template, settings Settings) (Evaluator, error)
}

// Evaluator is a built model.
type Evaluator interface {
	// Train runs settings.Epochs epochs over ds and sends one result per
	// epoch. The channel is closed after the last epoch, after the first
	// failed one, or when ctx is done. Each call starts a fresh run.
	Train(ctx context.Context, ds *dataset.Dataset) <-chan EpochResult
	// BuildDataset materializes ds on the engine side.
	BuildDataset(ctx context.Context, ds *dataset.Dataset) (PreparedDataset, error)
}

type EpochResult struct {
	Epoch int
	Loss  float64
	Err   error
}

// PreparedDataset is engine-owned; callers only pass it back.
type PreparedDataset interface {
	NumExamples() int
}

// Build validates settings, freezes t and hands it to e. After Build, t
// rejects further mutation whether or not the engine succeeded.
func Build(ctx context.Context, e Engine, t *template.Template, settings Settings) (Evaluator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	t.Freeze()
	evaluator, err := e.Build(ctx, t, settings)
	if err != nil {
		return nil, errors.Wrapf(err, "building template %s", t.ID())
	}
	return evaluator, nil
}

// Collect drains a Train channel, returning the results and the first error.
func Collect(results <-chan EpochResult) ([]EpochResult, error) {
	var out []EpochResult
	for result := range results {
		if result.Err != nil {
			// drain so the producer can exit
			for range results {
			}
			return out, result.Err
		}
		out = append(out, result)
	}
	return out, nil
}
