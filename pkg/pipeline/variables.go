package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

func varSchemaLoader() *gojsonschema.SchemaLoader {
	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	loader.Validate = true
	return loader
}

// Variables maps a variable name to its JSON schema. The schema's default is the value of the variable unless it
// is overridden for a run.
type Variables map[string]any

func (v Variables) schema() map[string]any {
	properties := map[string]any{}
	for name, def := range v {
		properties[name] = def
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func (v Variables) Validate() error {
	_, err := varSchemaLoader().Compile(gojsonschema.NewGoLoader(v.schema()))
	if err != nil {
		return fmt.Errorf("invalid variables schema: %w", err)
	}

	for name, def := range v {
		s, ok := def.(map[string]any)
		if !ok {
			return fmt.Errorf("variable '%s' must be a schema object", name)
		}
		if _, ok := s["default"]; !ok {
			return fmt.Errorf("variable '%s' must have a default value", name)
		}
	}
	return nil
}

// Value returns the default value of every variable.
func (v Variables) Value() map[string]any {
	out := make(map[string]any, len(v))
	for name, def := range v {
		if s, ok := def.(map[string]any); ok {
			out[name] = s["default"]
		}
	}
	return out
}

// Resolve applies the overrides on top of the defaults and validates the result against the variable schemas.
// Override values are parsed as JSON when possible and used as plain strings otherwise.
func (v Variables) Resolve(overrides map[string]string) (map[string]any, error) {
	values := v.Value()
	for name, raw := range overrides {
		if _, ok := v[name]; !ok {
			return nil, fmt.Errorf("unknown variable '%s'", name)
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			parsed = raw
		}
		values[name] = parsed
	}

	schema, err := varSchemaLoader().Compile(gojsonschema.NewGoLoader(v.schema()))
	if err != nil {
		return nil, fmt.Errorf("invalid variables schema: %w", err)
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(values))
	if err != nil {
		return nil, err
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		sort.Strings(msgs)
		return nil, fmt.Errorf("invalid variable values: %s", strings.Join(msgs, "; "))
	}

	return values, nil
}
