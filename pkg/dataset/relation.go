package dataset

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
)

// RelationSource turns each row of a Source into a weighted fact
//
//	value relation(term1, ..., termN)
//
// where the terms come from TermColumns and the value from ValueColumn, or
// DefaultValue when there is no value column.
type RelationSource struct {
	relation     string
	source       Source
	termColumns  []int
	valueColumn  int
	defaultValue float64
	skipRows     int
	maxRows      int
	replaceEmpty string
}

type SourceOption func(*RelationSource)

// WithValueColumn reads each fact's value from column idx.
func WithValueColumn(idx int) SourceOption {
	return func(s *RelationSource) {
		s.valueColumn = idx
	}
}

// WithDefaultValue sets the value of facts when there is no value column.
// It defaults to 1.
func WithDefaultValue(value float64) SourceOption {
	return func(s *RelationSource) {
		s.defaultValue = value
	}
}

func SkipRows(n int) SourceOption {
	return func(s *RelationSource) {
		s.skipRows = n
	}
}

// MaxRows stops after n rows; zero means no limit.
func MaxRows(n int) SourceOption {
	return func(s *RelationSource) {
		s.maxRows = n
	}
}

// ReplaceEmpty substitutes value for empty cells. It defaults to "0".
func ReplaceEmpty(value string) SourceOption {
	return func(s *RelationSource) {
		s.replaceEmpty = value
	}
}

func NewRelationSource(relation string, source Source, termColumns []int, opts ...SourceOption) (*RelationSource, error) {
	if strings.TrimSpace(relation) == "" {
		return nil, &lang.EmptyRelationNameError{}
	}
	if len(termColumns) == 0 {
		return nil, &lang.ConstructionError{Head: relation, Reason: "relation source needs at least one term column"}
	}
	s := &RelationSource{
		relation:     relation,
		source:       source,
		termColumns:  append([]int(nil), termColumns...),
		valueColumn:  -1,
		defaultValue: 1,
		replaceEmpty: "0",
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, col := range s.termColumns {
		if col < 0 {
			return nil, errors.Errorf("%s: negative term column %d", relation, col)
		}
	}
	if s.skipRows < 0 || s.maxRows < 0 {
		return nil, errors.Errorf("%s: row limits must be non-negative", relation)
	}
	return s, nil
}

func (s *RelationSource) Relation() string { return s.relation }

// Facts reads the source and returns one fact per selected row.
func (s *RelationSource) Facts(ctx context.Context) ([]*lang.Rule, error) {
	var facts []*lang.Rule
	rowIdx := -1
	err := s.source.Rows(ctx, func(row []string) error {
		rowIdx++
		if rowIdx < s.skipRows {
			return nil
		}
		if s.maxRows > 0 && len(facts) >= s.maxRows {
			return errStop
		}
		fact, err := s.fact(row)
		if err != nil {
			return errors.Wrapf(err, "row %d", rowIdx)
		}
		facts = append(facts, fact)
		return nil
	})
	if err != nil && err != errStop {
		return nil, errors.Wrapf(err, "reading %s", s.relation)
	}
	return facts, nil
}

var errStop = errors.New("stop")

func (s *RelationSource) fact(row []string) (*lang.Rule, error) {
	terms := make([]lang.Term, len(s.termColumns))
	for idx, col := range s.termColumns {
		cell, err := s.cell(row, col)
		if err != nil {
			return nil, err
		}
		terms[idx] = lang.ConstFromText(cell)
	}
	atom, err := lang.NewAtom(s.relation, terms...)
	if err != nil {
		return nil, err
	}

	value := s.defaultValue
	if s.valueColumn >= 0 {
		cell, err := s.cell(row, s.valueColumn)
		if err != nil {
			return nil, err
		}
		value, err = strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.Errorf("value column %d: not a number: %q", s.valueColumn, cell)
		}
	}
	return lang.NewFact(atom.Weighted(lang.Scalar(value))), nil
}

func (s *RelationSource) cell(row []string, col int) (string, error) {
	if col >= len(row) {
		return "", errors.Errorf("column %d out of range (%d columns)", col, len(row))
	}
	cell := strings.TrimSpace(row[col])
	if cell == "" {
		return s.replaceEmpty, nil
	}
	return cell, nil
}
