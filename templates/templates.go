package templates

import (
	"embed"
)

//go:embed all:default
var Templates embed.FS

func TemplateNames() []string {
	dirs, err := Templates.ReadDir(".")
	if err != nil {
		return []string{}
	}

	dirsNames := []string{}
	for _, dir := range dirs {
		if dir.IsDir() {
			dirsNames = append(dirsNames, dir.Name())
		}
	}
	return dirsNames
}
