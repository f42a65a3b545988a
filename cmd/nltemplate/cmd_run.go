package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vilterp/nltemplate/pkg/dataset"
	"github.com/vilterp/nltemplate/pkg/engine"
	"github.com/vilterp/nltemplate/pkg/lang"
	"github.com/vilterp/nltemplate/pkg/parse"
	"github.com/vilterp/nltemplate/pkg/template"
)

var (
	runSettings string
	runSources  []string
	runMode     string
	runQueries  []string
	runHeader   bool
)

// parseSource reads relation=path:term_cols[:value_col], where term_cols is
// a comma-separated list of column indexes.
func parseSource(arg string, header bool) (*dataset.RelationSource, error) {
	eq := strings.Index(arg, "=")
	if eq <= 0 {
		return nil, errors.Errorf("source %q: expected relation=path:term_cols[:value_col]", arg)
	}
	relation, rest := arg[:eq], arg[eq+1:]
	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, errors.Errorf("source %q: expected relation=path:term_cols[:value_col]", arg)
	}

	var columns []int
	for _, col := range strings.Split(parts[1], ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(col))
		if err != nil {
			return nil, errors.Errorf("source %q: bad column %q", arg, col)
		}
		columns = append(columns, idx)
	}
	var opts []dataset.SourceOption
	if len(parts) == 3 {
		idx, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, errors.Errorf("source %q: bad value column %q", arg, parts[2])
		}
		opts = append(opts, dataset.WithValueColumn(idx))
	}
	src := &dataset.CSVSource{Path: parts[0], Header: header}
	return dataset.NewRelationSource(relation, src, columns, opts...)
}

func loadTemplate(path string) (*template.Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading template")
	}
	factory := newFactory()
	stmts, err := parse.NewParser(factory).ParseTemplate(string(src))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	tmpl := template.New(template.WithFactory(factory))
	if err := tmpl.Add(stmts...); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func buildTableDataset(sources []string, queries []string, mode string, header bool) (*dataset.TableDataset, error) {
	m, err := dataset.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	table := dataset.NewTableDataset(m)
	for _, arg := range sources {
		source, err := parseSource(arg, header)
		if err != nil {
			return nil, err
		}
		table.AddSource(source)
	}
	for _, query := range queries {
		lit, err := parse.ParseLiteral(query)
		if err != nil {
			return nil, errors.Wrapf(err, "query %q", query)
		}
		table.AddQuery(lang.NewFact(lit))
	}
	return table, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	settings := engine.DefaultSettings()
	if runSettings != "" {
		var err error
		settings, err = engine.LoadSettings(runSettings)
		if err != nil {
			return err
		}
	}
	tmpl, err := loadTemplate(args[0])
	if err != nil {
		return err
	}
	table, err := buildTableDataset(runSources, runQueries, runMode, runHeader)
	if err != nil {
		return err
	}
	ds, err := table.ToDataset(ctx)
	if err != nil {
		return err
	}

	evaluator, err := engine.Build(ctx, engine.DryRun{}, tmpl, settings)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for result := range evaluator.Train(ctx, ds) {
		if result.Err != nil {
			return result.Err
		}
		fmt.Fprintf(out, "epoch %d: loss %g\n", result.Epoch, result.Loss)
	}
	return nil
}
