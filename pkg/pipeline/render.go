package pipeline

import (
	"path/filepath"

	"github.com/bruin-data/historian/pkg/jinja"
)

func defaultTableTemplate(namespace string) string {
	if namespace == "" {
		return "{{ name }}"
	}
	return "{{ namespace }}.{{ name }}"
}

// Render resolves the templated table names and source paths of every entity. Relative source paths are resolved
// against the directory of the project file.
func (p *Project) Render(r *jinja.Renderer) error {
	var errs ConfigurationErrors
	root := ""
	if p.DefinitionFile != "" {
		root = filepath.Dir(p.DefinitionFile)
	}

	for _, e := range p.Entities {
		er := r.CloneWith(jinja.Context{"name": e.Name, "layer": string(e.Layer)})

		tpl := e.Table
		if tpl == "" {
			tpl = defaultTableTemplate(p.Namespace)
		}
		name, err := er.RenderLine(tpl)
		if err != nil {
			errs = append(errs, configErrorf(e.Name, "failed to render the table name: %s", err))
			continue
		}
		e.tableName = name

		if e.Source.Path == "" {
			continue
		}
		src, err := er.RenderLine(e.Source.Path)
		if err != nil {
			errs = append(errs, configErrorf(e.Name, "failed to render the source path: %s", err))
			continue
		}
		if root != "" && !filepath.IsAbs(src) {
			src = filepath.Join(root, src)
		}
		e.sourcePath = src
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
