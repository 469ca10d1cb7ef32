package derive

import (
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type expressionParams struct {
	Expression string            `mapstructure:"expression"`
	Returns    record.ColumnType `mapstructure:"returns"`
}

type expression struct {
	program     *vm.Program
	returns     record.ColumnType
	identifiers []string
}

type identifierCollector struct {
	names []string
}

func (c *identifierCollector) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IdentifierNode); ok {
		c.names = append(c.names, n.Value)
	}
}

func newExpression(p expressionParams, known map[string]record.ColumnType) (*expression, error) {
	if p.Expression == "" {
		return nil, errors.New("expression is required")
	}
	if p.Returns == "" {
		p.Returns = record.TypeString
	}
	if !p.Returns.Valid() {
		return nil, errors.Errorf("unknown return type '%s'", p.Returns)
	}

	sample := make(map[string]any, len(known))
	for name, t := range known {
		sample[name] = zeroValue(t)
	}

	program, err := expr.Compile(p.Expression, expr.Env(sample))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile expression")
	}

	tree, err := parser.Parse(p.Expression)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse expression")
	}
	collector := &identifierCollector{}
	ast.Walk(&tree.Node, collector)

	identifiers := make([]string, 0, len(collector.names))
	for _, name := range collector.names {
		if _, ok := known[name]; ok {
			identifiers = append(identifiers, name)
		}
	}

	return &expression{program: program, returns: p.Returns, identifiers: identifiers}, nil
}

func (e *expression) output() record.ColumnType {
	return e.returns
}

func (e *expression) apply(r record.Record) (any, error) {
	for _, name := range e.identifiers {
		if r[name] == nil {
			return nil, nil
		}
	}

	env := make(map[string]any, len(r))
	for k, v := range r {
		env[k] = exprValue(v)
	}

	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, errors.Wrap(err, "failed to evaluate expression")
	}

	return record.Coerce(e.returns, out)
}

// decimals are exposed to expressions as floats; expr has no arbitrary precision arithmetic.
func exprValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return v
}

func zeroValue(t record.ColumnType) any {
	switch t {
	case record.TypeInteger:
		return int64(0)
	case record.TypeFloat, record.TypeDecimal:
		return float64(0)
	case record.TypeBoolean:
		return false
	case record.TypeTimestamp, record.TypeDate:
		return time.Time{}
	default:
		return ""
	}
}
