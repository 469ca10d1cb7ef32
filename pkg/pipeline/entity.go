package pipeline

import (
	"time"

	"github.com/bruin-data/historian/pkg/derive"
	"github.com/bruin-data/historian/pkg/merge"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/samber/lo"
)

type Layer string

const (
	LayerRaw       Layer = "raw"
	LayerCleaned   Layer = "cleaned"
	LayerAnalytics Layer = "analytics"
)

var knownLayers = []Layer{LayerRaw, LayerCleaned, LayerAnalytics}

func (l Layer) known() bool {
	return lo.Contains(knownLayers, l)
}

type Source struct {
	Path                   string          `yaml:"path" json:"path,omitempty"`
	Entity                 string          `yaml:"entity" json:"entity,omitempty"`
	Header                 DefaultTrueBool `yaml:"header" json:"header,omitempty"`
	Delimiter              string          `yaml:"delimiter" json:"delimiter,omitempty" jsonschema:"maxLength=1"`
	TolerateColumnMismatch bool            `yaml:"tolerate_column_mismatch" json:"tolerate_column_mismatch,omitempty"`
}

type Column struct {
	Name       string            `yaml:"name" json:"name"`
	Type       record.ColumnType `yaml:"type" json:"type" jsonschema:"enum=string,enum=integer,enum=float,enum=decimal,enum=boolean,enum=timestamp,enum=date"`
	PrimaryKey bool              `yaml:"primary_key" json:"primary_key,omitempty"`
}

type Materialization struct {
	Type     store.Kind    `yaml:"type" json:"type,omitempty" jsonschema:"enum=current,enum=history"`
	Strategy scd2.Strategy `yaml:"strategy" json:"strategy,omitempty" jsonschema:"enum=scd2_by_time,enum=scd2_by_column"`
	Tracked  []string      `yaml:"tracked" json:"tracked,omitempty"`
}

type Entity struct {
	Name            string              `yaml:"name" json:"name" validate:"required"`
	Layer           Layer               `yaml:"layer" json:"layer,omitempty" jsonschema:"enum=raw,enum=cleaned,enum=analytics"`
	Table           string              `yaml:"table" json:"table,omitempty"`
	DependsOn       []string            `yaml:"depends_on" json:"depends_on,omitempty"`
	Source          Source              `yaml:"source" json:"source"`
	Columns         []Column            `yaml:"columns" json:"columns"`
	ChangeTimestamp string              `yaml:"change_timestamp" json:"change_timestamp"`
	TieBreak        merge.TieBreak      `yaml:"tie_break" json:"tie_break,omitempty" jsonschema:"enum=last,enum=first"`
	Materialization Materialization     `yaml:"materialization" json:"materialization,omitempty"`
	Derived         []derive.Definition `yaml:"derived" json:"derived,omitempty"`

	DefinitionFile string `yaml:"-" json:"-"`

	tableName   string
	sourcePath  string
	derivations *derive.Set
}

func (e *Entity) IsHistorized() bool {
	return e.Materialization.Type == store.KindHistory
}

// Key returns the business key columns in declaration order.
func (e *Entity) Key() []string {
	out := make([]string, 0, 1)
	for _, c := range e.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

func (e *Entity) Fields() []record.Field {
	return lo.Map(e.Columns, func(c Column, _ int) record.Field {
		return record.Field{Name: c.Name, Type: c.Type}
	})
}

func (e *Entity) GetColumnWithName(name string) *Column {
	for i := range e.Columns {
		if e.Columns[i].Name == name {
			return &e.Columns[i]
		}
	}
	return nil
}

// Upstreams lists the entities this one reads from or explicitly depends on.
func (e *Entity) Upstreams() []string {
	deps := append([]string{}, e.DependsOn...)
	if e.Source.Entity != "" {
		deps = append(deps, e.Source.Entity)
	}
	return lo.Uniq(deps)
}

// TableName is the rendered table name, or the default `namespace.name` style name before rendering.
func (e *Entity) TableName() string {
	if e.tableName != "" {
		return e.tableName
	}
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

// SourcePath is the rendered source path.
func (e *Entity) SourcePath() string {
	if e.sourcePath != "" {
		return e.sourcePath
	}
	return e.Source.Path
}

// Derivations returns the compiled derived fields; nil until the project is validated.
func (e *Entity) Derivations() *derive.Set {
	return e.derivations
}

func (e *Entity) StoreTable() *store.Table {
	kind := e.Materialization.Type
	if kind == "" {
		kind = store.KindCurrent
	}

	return &store.Table{
		Name:            e.TableName(),
		Kind:            kind,
		Key:             e.Key(),
		ChangeTimestamp: e.ChangeTimestamp,
		Columns:         append(e.Fields(), e.derivations.Fields()...),
	}
}

func (e *Entity) MergeOptions() merge.Options {
	return merge.Options{
		Key:             e.Key(),
		ChangeTimestamp: e.ChangeTimestamp,
		TieBreak:        e.TieBreak,
	}
}

func (e *Entity) HistoryConfig(farFuture time.Time) scd2.Config {
	return scd2.Config{
		Strategy:        e.Materialization.Strategy,
		Key:             e.Key(),
		ChangeTimestamp: e.ChangeTimestamp,
		Tracked:         e.Materialization.Tracked,
		FarFuture:       farFuture,
	}
}
