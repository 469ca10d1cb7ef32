package jinja

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/pkg/errors"
)

type Renderer struct {
	context   *exec.Context
	parseLock *sync.Mutex
}

func init() { //nolint: gochecknoinits
	gonja.DefaultConfig.StrictUndefined = true
}

var (
	missingVariableRegex = regexp.MustCompile(`name\s+"([^"]+)"`)
	locationRegex        = regexp.MustCompile(`\(Line: \d+ Col: \d+, near ".*?"\)`)
)

type Context map[string]any

func NewRenderer(context Context) *Renderer {
	return &Renderer{
		context:   exec.NewContext(context),
		parseLock: &sync.Mutex{},
	}
}

// NewProjectRenderer exposes the run date, the project namespace and the project variables to templates.
func NewProjectRenderer(namespace string, runDate time.Time, variables map[string]any) *Renderer {
	return NewRenderer(Context{
		"namespace":       namespace,
		"run_date":        runDate.Format("2006-01-02"),
		"run_date_nodash": runDate.Format("20060102"),
		"run_datetime":    runDate.Format("2006-01-02T15:04:05"),
		"var":             variables,
	})
}

// CloneWith returns a renderer that sees the values of this one plus the given extras.
func (r *Renderer) CloneWith(extra Context) *Renderer {
	ctx := r.context.Inherit()
	for k, v := range extra {
		ctx.Set(k, v)
	}

	return &Renderer{
		context:   ctx,
		parseLock: &sync.Mutex{},
	}
}

func (r *Renderer) parse(template string) (*exec.Template, error) {
	r.parseLock.Lock()
	defer r.parseLock.Unlock()

	tpl, err := gonja.FromString(template)
	if err != nil {
		if customError := findParserErrorType(err); customError != "" {
			return nil, errors.New(customError)
		}
		return nil, errors.Wrap(err, "failed to parse template")
	}
	return tpl, nil
}

func (r *Renderer) Render(template string) (string, error) {
	tpl, err := r.parse(template)
	if err != nil {
		return "", err
	}

	out, err := tpl.ExecuteToString(r.context)
	if err != nil {
		if customError := findRenderErrorType(err); customError != "" {
			return "", errors.New(customError)
		}
		return "", errors.Wrap(err, "failed to render template")
	}

	return strings.TrimSpace(out), nil
}

// RenderLine renders a template that must produce a single non-empty line, such as a table name or a file path.
func (r *Renderer) RenderLine(template string) (string, error) {
	out, err := r.Render(template)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("renders to an empty string")
	}
	if strings.ContainsAny(out, "\r\n") {
		return "", errors.Errorf("renders to multiple lines: %q", out)
	}
	return out, nil
}

func findRenderErrorType(err error) string {
	message := err.Error()
	errorBits := strings.Split(message, ": ")
	innermostErr := errorBits[len(errorBits)-1]

	if strings.HasPrefix(innermostErr, "filter '") && strings.HasSuffix(innermostErr, "' not found") {
		return innermostErr
	} else if strings.HasPrefix(innermostErr, "Unable to evaluate name ") {
		match := missingVariableRegex.FindStringSubmatch(innermostErr)
		if len(match) == 2 {
			return "missing variable '" + match[1] + "'"
		}

		return innermostErr
	}

	return ""
}

func findParserErrorType(err error) string {
	message := err.Error()

	if strings.Contains(message, "Unexpected EOF, expected tag elif or else or endif") {
		match := locationRegex.FindString(message)
		return "missing end of the 'if' condition at " + match + ", did you forget to add 'endif'?"
	} else if strings.Contains(message, "Unexpected EOF, expected tag else or endfor") {
		match := locationRegex.FindString(message)
		return "missing 'endfor' at " + match
	}

	return ""
}
