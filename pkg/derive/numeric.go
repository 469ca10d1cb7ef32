package derive

import (
	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Multiply returns the product of the values rounded half away from zero to the given number of decimals.
func Multiply(precision int32, values ...decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero.Round(precision)
	}

	product := values[0]
	for _, v := range values[1:] {
		product = product.Mul(v)
	}
	return Round(precision, product)
}

// Round rounds half away from zero to the given number of decimals.
func Round(precision int32, value decimal.Decimal) decimal.Decimal {
	return value.Round(precision)
}

type multiplyParams struct {
	Inputs    []string `mapstructure:"inputs"`
	Precision int32    `mapstructure:"precision"`
}

type multiply struct {
	inputs    []string
	precision int32
}

func newMultiply(p multiplyParams, known map[string]record.ColumnType) (*multiply, error) {
	if err := requireInputs(p.Inputs, known); err != nil {
		return nil, err
	}
	if p.Precision < 0 {
		return nil, errors.New("precision must not be negative")
	}

	return &multiply{inputs: p.Inputs, precision: p.Precision}, nil
}

func (m *multiply) output() record.ColumnType {
	return record.TypeDecimal
}

func (m *multiply) apply(r record.Record) (any, error) {
	values, ok, err := numericInputs(r, m.inputs)
	if err != nil || !ok {
		return nil, err
	}

	return Multiply(m.precision, values...), nil
}

type roundParams struct {
	Input     string `mapstructure:"input"`
	Precision int32  `mapstructure:"precision"`
}

type round struct {
	input     string
	precision int32
}

func newRound(p roundParams, known map[string]record.ColumnType) (*round, error) {
	if err := requireInputs([]string{p.Input}, known); err != nil {
		return nil, err
	}
	if p.Precision < 0 {
		return nil, errors.New("precision must not be negative")
	}

	return &round{input: p.Input, precision: p.Precision}, nil
}

func (m *round) output() record.ColumnType {
	return record.TypeDecimal
}

func (m *round) apply(r record.Record) (any, error) {
	values, ok, err := numericInputs(r, []string{m.input})
	if err != nil || !ok {
		return nil, err
	}

	return Round(m.precision, values[0]), nil
}

// numericInputs reads the inputs as decimals. It reports false when any of them is null.
func numericInputs(r record.Record, inputs []string) ([]decimal.Decimal, bool, error) {
	values := make([]decimal.Decimal, len(inputs))
	for i, in := range inputs {
		raw := r[in]
		if raw == nil {
			return nil, false, nil
		}

		d, err := record.ToDecimal(raw)
		if err != nil {
			return nil, false, errors.Wrapf(err, "input '%s'", in)
		}
		values[i] = d
	}

	return values, true, nil
}
