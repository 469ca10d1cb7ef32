package derive

import (
	"fmt"
	"reflect"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindMultiply   Kind = "multiply"
	KindRound      Kind = "round"
	KindBucket     Kind = "bucket"
	KindExpression Kind = "expression"
)

var Kinds = []Kind{KindMultiply, KindRound, KindBucket, KindExpression}

// Definition is the declaration of a single derived field as written in an entity file. Parameters depend on the kind
// and are kept inline next to the name and type.
type Definition struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Type   Kind           `yaml:"type" json:"type" validate:"required"`
	Params map[string]any `yaml:",inline" json:"-"`
}

type derivation interface {
	output() record.ColumnType
	apply(r record.Record) (any, error)
}

type compiled struct {
	name string
	derivation
}

// Set is an ordered list of compiled derivations. Later derivations see the outputs of earlier ones.
type Set struct {
	items []compiled
}

// Compile checks the declarations against the fields available on the record and prepares them for evaluation.
func Compile(defs []Definition, available []record.Field) (*Set, error) {
	known := make(map[string]record.ColumnType, len(available)+len(defs))
	for _, f := range available {
		known[f.Name] = f.Type
	}

	set := &Set{items: make([]compiled, 0, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("derived field without a name")
		}
		if _, ok := known[def.Name]; ok {
			return nil, errors.Errorf("derived field '%s' collides with an existing column", def.Name)
		}

		d, err := build(def, known)
		if err != nil {
			return nil, errors.Wrapf(err, "derived field '%s'", def.Name)
		}

		set.items = append(set.items, compiled{name: def.Name, derivation: d})
		known[def.Name] = d.output()
	}

	return set, nil
}

func build(def Definition, known map[string]record.ColumnType) (derivation, error) {
	switch def.Type {
	case KindMultiply:
		var p multiplyParams
		if err := decodeParams(def.Params, &p); err != nil {
			return nil, err
		}
		return newMultiply(p, known)
	case KindRound:
		var p roundParams
		if err := decodeParams(def.Params, &p); err != nil {
			return nil, err
		}
		return newRound(p, known)
	case KindBucket:
		var p bucketParams
		if err := decodeParams(def.Params, &p); err != nil {
			return nil, err
		}
		return newBucket(p, known)
	case KindExpression:
		var p expressionParams
		if err := decodeParams(def.Params, &p); err != nil {
			return nil, err
		}
		return newExpression(p, known)
	case "":
		return nil, errors.New("missing derivation type")
	default:
		return nil, errors.Errorf("unknown derivation type '%s'", def.Type)
	}
}

func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.DecodeHookFuncType(decimalHook),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}

	return errors.Wrap(decoder.Decode(params), "invalid parameters")
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType || from == decimalType {
		return data, nil
	}

	d, err := record.ToDecimal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid number %v", data)
	}
	return d, nil
}

// Apply evaluates every derivation on the record in declaration order, writing the outputs into it.
func (s *Set) Apply(r record.Record) error {
	if s == nil {
		return nil
	}

	for _, item := range s.items {
		v, err := item.apply(r)
		if err != nil {
			return &record.ValidationError{Field: item.name, Reason: err.Error()}
		}
		r[item.name] = v
	}

	return nil
}

// Fields lists the derived output columns.
func (s *Set) Fields() []record.Field {
	if s == nil {
		return nil
	}

	out := make([]record.Field, len(s.items))
	for i, item := range s.items {
		out[i] = record.Field{Name: item.name, Type: item.output()}
	}
	return out
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func requireInputs(inputs []string, known map[string]record.ColumnType) error {
	if len(inputs) == 0 {
		return errors.New("at least one input is required")
	}
	for _, in := range inputs {
		if _, ok := known[in]; !ok {
			return errors.Errorf("unknown input '%s'", in)
		}
	}
	return nil
}
