package derive

import (
	"github.com/bruin-data/historian/pkg/record"
	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
)

// JSONSchemaExtend documents the inline parameters of every derivation kind.
func (Definition) JSONSchemaExtend(s *jsonschema.Schema) {
	if t, ok := s.Properties.Get("type"); ok {
		t.Enum = lo.Map(Kinds, func(k Kind, _ int) any { return string(k) })
	}

	str := &jsonschema.Schema{Type: "string"}
	s.Properties.Set("input", str)
	s.Properties.Set("inputs", &jsonschema.Schema{Type: "array", Items: str})
	s.Properties.Set("precision", &jsonschema.Schema{Type: "integer", Minimum: "0"})
	s.Properties.Set("default", str)
	s.Properties.Set("expression", str)
	s.Properties.Set("returns", &jsonschema.Schema{
		Type: "string",
		Enum: lo.Map(record.ColumnTypes, func(t record.ColumnType, _ int) any { return string(t) }),
	})

	threshold := jsonschema.NewProperties()
	threshold.Set("below", &jsonschema.Schema{Type: "number"})
	threshold.Set("label", str)
	s.Properties.Set("thresholds", &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type:       "object",
			Required:   []string{"below", "label"},
			Properties: threshold,
		},
	})
}
