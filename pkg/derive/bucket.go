package derive

import (
	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Threshold struct {
	Below decimal.Decimal `mapstructure:"below"`
	Label string          `mapstructure:"label"`
}

// Bucket returns the label of the first threshold the value is strictly below, or the default label.
func Bucket(value decimal.Decimal, thresholds []Threshold, def string) string {
	for _, t := range thresholds {
		if value.LessThan(t.Below) {
			return t.Label
		}
	}
	return def
}

type bucketParams struct {
	Input      string      `mapstructure:"input"`
	Thresholds []Threshold `mapstructure:"thresholds"`
	Default    string      `mapstructure:"default"`
}

type bucket struct {
	bucketParams
}

func newBucket(p bucketParams, known map[string]record.ColumnType) (*bucket, error) {
	if err := requireInputs([]string{p.Input}, known); err != nil {
		return nil, err
	}
	if len(p.Thresholds) == 0 {
		return nil, errors.New("at least one threshold is required")
	}
	for i, t := range p.Thresholds {
		if t.Label == "" {
			return nil, errors.Errorf("threshold %d has no label", i)
		}
	}

	return &bucket{bucketParams: p}, nil
}

func (b *bucket) output() record.ColumnType {
	return record.TypeString
}

func (b *bucket) apply(r record.Record) (any, error) {
	raw := r[b.Input]
	if raw == nil {
		return b.Default, nil
	}

	d, err := record.ToDecimal(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "input '%s'", b.Input)
	}

	return Bucket(d, b.Thresholds, b.Default), nil
}
