package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bruin-data/historian/pkg/derive"
	"github.com/bruin-data/historian/pkg/merge"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/yourbasic/graph"
)

type projectRule func(p *Project) []*ConfigurationError

type entityRule func(p *Project, e *Entity) []*ConfigurationError

var projectRules = []projectRule{
	ensureProjectSettingsAreValid,
	ensureScheduleIsValidCron,
	ensureEntityNamesAreUnique,
	ensureTableNamesAreUnique,
	ensureDependenciesExist,
	ensureNoCycles,
}

var entityRules = []entityRule{
	ensureColumnsAreValid,
	ensureBusinessKeyExists,
	ensureChangeTimestampIsValid,
	ensureSourceIsValid,
	ensureMaterializationIsValid,
	compileDerivations,
}

// Validate checks the whole project and compiles the derived fields of every entity. It reports every problem it
// finds instead of stopping at the first one.
func (p *Project) Validate() error {
	var errs ConfigurationErrors
	for _, rule := range projectRules {
		errs = append(errs, rule(p)...)
	}
	for _, e := range p.Entities {
		for _, rule := range entityRules {
			errs = append(errs, rule(p, e)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func ensureProjectSettingsAreValid(p *Project) []*ConfigurationError {
	var errs []*ConfigurationError
	if p.Name == "" {
		errs = append(errs, configErrorf("", "the project must have a name"))
	}
	if _, err := p.FarFutureTime(); err != nil {
		errs = append(errs, configErrorf("", "%s", err))
	}
	if _, err := p.Backoff(); err != nil {
		errs = append(errs, configErrorf("", "%s", err))
	}
	if p.RetryCount() < 0 {
		errs = append(errs, configErrorf("", "retries must not be negative"))
	}
	if err := p.Variables.Validate(); err != nil {
		errs = append(errs, configErrorf("", "%s", err))
	}
	return errs
}

func ensureScheduleIsValidCron(p *Project) []*ConfigurationError {
	if p.Schedule == "" {
		return nil
	}

	schedule := p.Schedule
	if schedule == "daily" || schedule == "hourly" || schedule == "weekly" || schedule == "monthly" {
		schedule = "@" + schedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return []*ConfigurationError{configErrorf("", "invalid cron schedule '%s'", p.Schedule)}
	}
	return nil
}

func ensureEntityNamesAreUnique(p *Project) []*ConfigurationError {
	var errs []*ConfigurationError
	seen := make(map[string]bool, len(p.Entities))
	for _, e := range p.Entities {
		if e.Name == "" {
			errs = append(errs, configErrorf(e.DefinitionFile, "entity must have a name"))
			continue
		}
		if seen[e.Name] {
			errs = append(errs, configErrorf(e.Name, "duplicate entity name"))
		}
		seen[e.Name] = true
	}
	return errs
}

func ensureTableNamesAreUnique(p *Project) []*ConfigurationError {
	var errs []*ConfigurationError
	owners := make(map[string]string, len(p.Entities))
	for _, e := range p.Entities {
		table := strings.ToLower(e.TableName())
		if owner, ok := owners[table]; ok {
			errs = append(errs, configErrorf(e.Name, "table '%s' is already written by entity '%s'", e.TableName(), owner))
			continue
		}
		owners[table] = e.Name
	}
	return errs
}

func ensureDependenciesExist(p *Project) []*ConfigurationError {
	var errs []*ConfigurationError
	for _, e := range p.Entities {
		for _, dep := range e.DependsOn {
			if dep == e.Name {
				errs = append(errs, configErrorf(e.Name, "entity cannot depend on itself"))
				continue
			}
			if p.GetEntityByName(dep) == nil {
				errs = append(errs, configErrorf(e.Name, "dependency '%s' does not exist", dep))
			}
		}
	}
	return errs
}

func ensureNoCycles(p *Project) []*ConfigurationError {
	index := make(map[string]int, len(p.Entities))
	for i, e := range p.Entities {
		index[e.Name] = i
	}

	g := graph.New(len(p.Entities))
	for _, e := range p.Entities {
		for _, dep := range e.Upstreams() {
			j, ok := index[dep]
			if !ok || dep == e.Name {
				continue
			}
			g.Add(index[e.Name], j)
		}
	}

	var errs []*ConfigurationError
	for _, component := range graph.StrongComponents(g) {
		if len(component) == 1 {
			continue
		}

		inCycle := make(map[string]bool, len(component))
		for _, i := range component {
			inCycle[p.Entities[i].Name] = true
		}

		context := make([]string, 0, len(component))
		for _, i := range component {
			e := p.Entities[i]
			for _, dep := range e.Upstreams() {
				if inCycle[dep] {
					context = append(context, fmt.Sprintf("%s -> %s", e.Name, dep))
				}
			}
		}

		errs = append(errs, configErrorf(p.Entities[component[0]].Name, "dependency cycle: %s", strings.Join(context, ", ")))
	}
	return errs
}

func ensureColumnsAreValid(_ *Project, e *Entity) []*ConfigurationError {
	if len(e.Columns) == 0 {
		return []*ConfigurationError{configErrorf(e.Name, "no columns declared")}
	}

	var errs []*ConfigurationError
	seen := make(map[string]bool, len(e.Columns))
	for _, c := range e.Columns {
		switch {
		case c.Name == "":
			errs = append(errs, configErrorf(e.Name, "column without a name"))
			continue
		case store.IsReserved(c.Name):
			errs = append(errs, configErrorf(e.Name, "column name '%s' is reserved", c.Name))
		case seen[c.Name]:
			errs = append(errs, configErrorf(e.Name, "duplicate column '%s'", c.Name))
		}
		seen[c.Name] = true

		if !c.Type.Valid() {
			errs = append(errs, configErrorf(e.Name, "column '%s' has unknown type '%s'", c.Name, c.Type))
		}
	}

	if !e.Layer.known() {
		errs = append(errs, configErrorf(e.Name, "unknown layer '%s'", e.Layer))
	}
	return errs
}

func ensureBusinessKeyExists(_ *Project, e *Entity) []*ConfigurationError {
	if len(e.Key()) == 0 {
		return []*ConfigurationError{configErrorf(e.Name, "missing business key, mark at least one column with primary_key: true")}
	}
	return nil
}

func ensureChangeTimestampIsValid(_ *Project, e *Entity) []*ConfigurationError {
	if e.ChangeTimestamp == "" {
		return []*ConfigurationError{configErrorf(e.Name, "missing change_timestamp column")}
	}

	c := e.GetColumnWithName(e.ChangeTimestamp)
	if c == nil {
		return []*ConfigurationError{configErrorf(e.Name, "change_timestamp column '%s' is not declared", e.ChangeTimestamp)}
	}
	if c.Type != record.TypeTimestamp && c.Type != record.TypeDate {
		return []*ConfigurationError{configErrorf(e.Name, "change_timestamp column '%s' must be a timestamp or date, '%s' given", c.Name, c.Type)}
	}

	if len(e.Key()) == 0 {
		return nil
	}
	if _, err := merge.NewMerger(e.MergeOptions()); err != nil {
		return []*ConfigurationError{configErrorf(e.Name, "%s", err)}
	}
	return nil
}

func ensureSourceIsValid(p *Project, e *Entity) []*ConfigurationError {
	src := e.Source
	switch {
	case src.Path == "" && src.Entity == "":
		return []*ConfigurationError{configErrorf(e.Name, "source must have either a path or an entity")}
	case src.Path != "" && src.Entity != "":
		return []*ConfigurationError{configErrorf(e.Name, "source cannot have both a path and an entity")}
	}

	var errs []*ConfigurationError
	if src.Entity != "" {
		switch {
		case src.Entity == e.Name:
			errs = append(errs, configErrorf(e.Name, "entity cannot read from itself"))
		case p.GetEntityByName(src.Entity) == nil:
			errs = append(errs, configErrorf(e.Name, "source entity '%s' does not exist", src.Entity))
		}
	}
	if utf8.RuneCountInString(src.Delimiter) > 1 {
		errs = append(errs, configErrorf(e.Name, "delimiter must be a single character, '%s' given", src.Delimiter))
	}
	return errs
}

func ensureMaterializationIsValid(p *Project, e *Entity) []*ConfigurationError {
	m := e.Materialization
	switch m.Type {
	case "", store.KindCurrent:
		if m.Strategy != "" || len(m.Tracked) > 0 {
			return []*ConfigurationError{configErrorf(e.Name, "strategy and tracked columns only apply to history materialization")}
		}
		return nil
	case store.KindHistory:
	default:
		return []*ConfigurationError{configErrorf(e.Name, "unknown materialization type '%s'", m.Type)}
	}

	if m.Strategy == "" {
		return []*ConfigurationError{configErrorf(e.Name, "history materialization requires a strategy, either 'scd2_by_time' or 'scd2_by_column'")}
	}

	farFuture, err := p.FarFutureTime()
	if err != nil || len(e.Key()) == 0 || e.ChangeTimestamp == "" {
		return nil
	}
	if _, err := scd2.NewEngine(e.HistoryConfig(farFuture)); err != nil {
		return []*ConfigurationError{configErrorf(e.Name, "%s", err)}
	}

	var errs []*ConfigurationError
	derived := lo.Map(e.Derived, func(d derive.Definition, _ int) string { return d.Name })
	for _, col := range m.Tracked {
		if e.GetColumnWithName(col) == nil && !lo.Contains(derived, col) {
			errs = append(errs, configErrorf(e.Name, "tracked column '%s' is not declared", col))
		}
	}
	return errs
}

func compileDerivations(_ *Project, e *Entity) []*ConfigurationError {
	for _, d := range e.Derived {
		if store.IsReserved(d.Name) {
			return []*ConfigurationError{configErrorf(e.Name, "derived field name '%s' is reserved", d.Name)}
		}
	}

	set, err := derive.Compile(e.Derived, e.Fields())
	if err != nil {
		return []*ConfigurationError{configErrorf(e.Name, "%s", err)}
	}
	e.derivations = set
	return nil
}
