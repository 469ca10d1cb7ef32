package path

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type YamlParseError struct {
	Path string
	Err  error
}

func (e *YamlParseError) Error() string {
	return "failed to parse yaml file " + e.Path + ": " + e.Err.Error()
}

func (e *YamlParseError) Unwrap() error {
	return e.Err
}

func ReadYaml(fs afero.Fs, path string, out interface{}) error {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", path)
	}

	if err := ConvertYamlToObject(buf, out); err != nil {
		return &YamlParseError{Path: path, Err: err}
	}

	return nil
}

// ReadYamlDocument decodes the file into a generic document, used for schema validation before the typed decode.
func ReadYamlDocument(fs afero.Fs, path string) (map[string]any, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", path)
	}

	doc := map[string]any{}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, &YamlParseError{Path: path, Err: err}
	}

	return doc, nil
}

func WriteYaml(fs afero.Fs, path string, content interface{}) error {
	buf, err := yaml.Marshal(content)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal object to yaml")
	}

	err = afero.WriteFile(fs, path, buf, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to write YAML file to %s", path)
	}

	return nil
}

func ConvertYamlToObject(buf []byte, out interface{}) error {
	err := yaml.Unmarshal(buf, out)
	if err != nil {
		return err
	}

	validate := validator.New()

	err = validate.Struct(out)
	if err != nil {
		return err
	}

	return nil
}

func FileExists(fs afero.Fs, file string) bool {
	res, err := afero.Exists(fs, file)
	return err == nil && res
}

func DirExists(fs afero.Fs, searchDir string) bool {
	res, err := afero.DirExists(fs, searchDir)
	return err == nil && res
}
