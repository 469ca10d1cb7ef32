package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/config"
	"github.com/bruin-data/historian/pkg/jinja"
	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/xlab/treeprint"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func RecoverFromPanic() {
	if err := recover(); err != nil {
		log.Println("=======================================")
		log.Println("historian encountered an unexpected error, please report the issue.")
		log.Println(err)
		log.Println("=======================================")
		b := bufio.NewScanner(bytes.NewBuffer(debug.Stack()))
		for b.Scan() {
			log.Println(b.Text())
		}
		os.Exit(1)
	}
}

func printErrorJSON(err error) {
	resp := ErrorResponse{Error: "something went wrong"}
	if err != nil {
		resp.Error = err.Error()
	}

	js, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		fmt.Println(marshalErr)
		return
	}
	fmt.Println(string(js))
}

func printError(err error, output string, message string) {
	if output == "json" {
		printErrorJSON(err)
		return
	}

	var configErrs pipeline.ConfigurationErrors
	if errors.As(err, &configErrs) {
		printConfigurationErrors(message, configErrs)
		return
	}
	var configErr *pipeline.ConfigurationError
	if errors.As(err, &configErr) {
		printConfigurationErrors(message, pipeline.ConfigurationErrors{configErr})
		return
	}
	errorPrinter.Printf("%s: %v\n", message, err)
}

// printConfigurationErrors groups the problems by entity, project level problems first.
func printConfigurationErrors(message string, errs pipeline.ConfigurationErrors) {
	tree := treeprint.NewWithRoot(errorPrinter.Sprintf("%s: %d problem(s) found", message, len(errs)))

	branches := make(map[string]treeprint.Tree)
	for _, e := range errs {
		if e.Entity == "" {
			tree.AddNode(color.New(color.FgRed).Sprint(e.Reason))
			continue
		}

		branch, ok := branches[e.Entity]
		if !ok {
			branch = tree.AddBranch(color.New(color.FgYellow).Sprint(e.Entity))
			branches[e.Entity] = branch
		}
		branch.AddNode(color.New(color.FgRed).Sprint(e.Reason))
	}

	fmt.Println()
	fmt.Println(tree.String())
}

// NewRunID identifies a single invocation in the logs, HISTORIAN_RUN_ID takes precedence when set.
func NewRunID() string {
	if id := os.Getenv("HISTORIAN_RUN_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// parseVariables turns `key=value` overrides into a map. Values are kept raw and parsed by the project variables.
func parseVariables(vars []string) (map[string]string, error) {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		segments := strings.SplitN(strings.TrimSpace(v), "=", 2)
		if len(segments) != 2 || strings.TrimSpace(segments[0]) == "" {
			return nil, errors.Errorf("invalid variable override '%s', variables must be of form key=value", v)
		}
		out[strings.TrimSpace(segments[0])] = segments[1]
	}
	return out, nil
}

func projectRoot(arg string) string {
	if arg == "" {
		return "."
	}
	return filepath.Clean(arg)
}

// loadProject builds the project at the given root, renders its templates and validates it.
func loadProject(fs afero.Fs, root string, vars []string, runDate time.Time, l logger.Logger) (*pipeline.Project, error) {
	overrides, err := parseVariables(vars)
	if err != nil {
		return nil, err
	}

	project, err := pipeline.NewBuilder(fs).CreateProjectFromPath(root)
	if err != nil {
		return nil, err
	}
	l.Debugf("found %d entities in project '%s'", len(project.Entities), project.Name)

	values, err := project.Variables.Resolve(overrides)
	if err != nil {
		return nil, errors.Wrap(err, "invalid variables")
	}

	renderer := jinja.NewProjectRenderer(project.Namespace, runDate, values)
	if err := project.Render(renderer); err != nil {
		return nil, err
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}

	return project, nil
}

// selectEntities keeps the named entities in project order; no names selects every entity.
func selectEntities(project *pipeline.Project, names []string) ([]*pipeline.Entity, error) {
	if len(names) == 0 {
		return project.Entities, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if project.GetEntityByName(name) == nil {
			return nil, errors.Errorf("entity '%s' does not exist in project '%s'", name, project.Name)
		}
		wanted[name] = true
	}

	selected := make([]*pipeline.Entity, 0, len(wanted))
	for _, e := range project.Entities {
		if wanted[e.Name] {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

// loadConfig reads the connections file, defaulting to the one in the project root, after exporting the `.env`
// file next to it.
func loadConfig(fs afero.Fs, root, configFile, environment string) (*config.Config, error) {
	if configFile == "" {
		configFile = filepath.Join(root, config.DefaultFileName)
	}

	if err := config.LoadEnvFile(fs, filepath.Join(filepath.Dir(configFile), envFileName)); err != nil {
		return nil, err
	}

	cm, err := config.LoadFromFile(fs, configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the config file at '%s'", configFile)
	}

	if environment != "" {
		if err := cm.SelectEnvironment(environment); err != nil {
			return nil, err
		}
	}
	return cm, nil
}
