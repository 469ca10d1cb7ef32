package cmd

import (
	"fmt"
	fs2 "io/fs"
	"path/filepath"
	"strings"

	"github.com/bruin-data/historian/templates"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

const (
	DefaultTemplate   = "default"
	DefaultFolderName = "historian-project"
)

func Init() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create a new project from a template",
		ArgsUsage: fmt.Sprintf(
			"[template name to be used: %s] [name of the folder where the project will be created]",
			strings.Join(templates.TemplateNames(), "|"),
		),
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			templateName := c.Args().Get(0)
			if templateName == "" {
				templateName = DefaultTemplate
			}

			folder := c.Args().Get(1)
			if folder == "" {
				folder = DefaultFolderName
				if templateName != DefaultTemplate {
					folder = templateName
				}
			}

			if err := initProject(fs, templateName, folder); err != nil {
				printError(err, "", "Failed to create the project")
				return cli.Exit("", 1)
			}

			successPrinter.Printf("Created a new project in '%s'\n", folder)
			infoPrinter.Printf("Run it with: historian run %s\n", folder)
			return nil
		},
	}
}

// initProject copies the template into a new folder. The folder must not exist and must be a plain name.
func initProject(fs afero.Fs, templateName, folder string) error {
	if _, err := templates.Templates.ReadDir(templateName); err != nil {
		return errors.Errorf("template '%s' not found", templateName)
	}

	if dir, _ := filepath.Split(folder); dir != "" {
		return errors.New("traversing up or down in the folder structure is not allowed, provide base folder name only")
	}

	exists, err := afero.Exists(fs, folder)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("the folder '%s' already exists, please choose a different name", folder)
	}

	return fs2.WalkDir(templates.Templates, templateName, func(path string, d fs2.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, err := templates.Templates.ReadFile(path)
		if err != nil {
			return err
		}

		target := filepath.Join(folder, strings.TrimPrefix(path, templateName+"/"))
		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "could not create the folder '%s'", filepath.Dir(target))
		}
		if err := afero.WriteFile(fs, target, content, 0o644); err != nil {
			return errors.Wrapf(err, "could not write the file '%s'", target)
		}
		return nil
	})
}
