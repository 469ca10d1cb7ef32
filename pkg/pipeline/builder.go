package pipeline

import (
	"path/filepath"

	"github.com/bruin-data/historian/pkg/path"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const EntitiesDirectoryName = "entities"

var (
	ProjectFileNames   = []string{"project.yml", "project.yaml"}
	entityFileSuffixes = []string{".yml", ".yaml"}
)

type Builder struct {
	fs afero.Fs
}

func NewBuilder(fs afero.Fs) *Builder {
	return &Builder{fs: fs}
}

// CreateProjectFromPath reads the project file in the given directory and every entity definition under its
// entities directory. Documents are checked against the JSON schemas before they are decoded.
func (b *Builder) CreateProjectFromPath(root string) (*Project, error) {
	s, err := schemas()
	if err != nil {
		return nil, err
	}

	projectFile, ok := path.FirstExisting(b.fs, root, ProjectFileNames)
	if !ok {
		return nil, &ConfigurationError{Reason: "no project.yml found in '" + root + "'"}
	}

	doc, err := path.ReadYamlDocument(b.fs, projectFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read the project file at '%s'", projectFile)
	}
	violations, err := validateDocument(s.project, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to validate the project file at '%s'", projectFile)
	}
	if len(violations) > 0 {
		return nil, schemaError("", violations)
	}

	var project Project
	if err := path.ReadYaml(b.fs, projectFile, &project); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	project.DefinitionFile = projectFile

	entitiesDir := filepath.Join(root, EntitiesDirectoryName)
	if !path.DirExists(b.fs, entitiesDir) {
		return &project, nil
	}

	files, err := path.GetAllFilesRecursive(b.fs, entitiesDir, entityFileSuffixes)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list entity files in '%s'", entitiesDir)
	}

	for _, file := range files {
		entity, err := b.createEntityFromFile(s, file)
		if err != nil {
			return nil, err
		}
		project.Entities = append(project.Entities, entity)
	}

	return &project, nil
}

func (b *Builder) createEntityFromFile(s *compiledSchemas, file string) (*Entity, error) {
	doc, err := path.ReadYamlDocument(b.fs, file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read entity file '%s'", file)
	}

	name := file
	if n, ok := doc["name"].(string); ok && n != "" {
		name = n
	}

	violations, err := validateDocument(s.entity, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to validate entity file '%s'", file)
	}
	if len(violations) > 0 {
		return nil, schemaError(name, violations)
	}

	var entity Entity
	if err := path.ReadYaml(b.fs, file, &entity); err != nil {
		return nil, &ConfigurationError{Entity: name, Reason: err.Error()}
	}
	entity.DefinitionFile = file
	if entity.Layer == "" {
		entity.Layer = LayerRaw
	}

	return &entity, nil
}
