package pipeline

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

func (DefaultTrueBool) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Default: true}
}

func reflectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}

	s := r.Reflect(v)
	s.Version = ""
	return s
}

// EntitySchema is the JSON schema of an entity definition file.
func EntitySchema() *jsonschema.Schema {
	return reflectSchema(&Entity{})
}

// ProjectSchema is the JSON schema of the project file.
func ProjectSchema() *jsonschema.Schema {
	return reflectSchema(&Project{})
}

type compiledSchemas struct {
	project *gojsonschema.Schema
	entity  *gojsonschema.Schema
}

var schemas = sync.OnceValues(func() (*compiledSchemas, error) {
	project, err := compileSchema(ProjectSchema())
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile the project schema")
	}

	entity, err := compileSchema(EntitySchema())
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile the entity schema")
	}

	return &compiledSchemas{project: project, entity: entity}, nil
})

func compileSchema(s *jsonschema.Schema) (*gojsonschema.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	loader := varSchemaLoader()
	loader.AutoDetect = false
	return loader.Compile(gojsonschema.NewBytesLoader(raw))
}

// validateDocument checks a decoded YAML document against the schema and returns the violations, sorted.
func validateDocument(schema *gojsonschema.Schema, doc map[string]any) ([]string, error) {
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return msgs, nil
}

func schemaError(entity string, violations []string) *ConfigurationError {
	return &ConfigurationError{Entity: entity, Reason: "schema violation: " + strings.Join(violations, "; ")}
}
