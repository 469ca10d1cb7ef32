package pipeline

import (
	"encoding/json"
	"time"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultRetries      = 3
	defaultRetryBackoff = time.Second
)

type DefaultTrueBool struct {
	Value *bool
}

func (b *DefaultTrueBool) UnmarshalJSON(data []byte) error {
	if data == nil {
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	b.Value = &v
	return nil
}

func (b DefaultTrueBool) MarshalJSON() ([]byte, error) {
	if b.Value == nil {
		return []byte("true"), nil
	}

	return json.Marshal(*b.Value)
}

func (b *DefaultTrueBool) UnmarshalYAML(value *yaml.Node) error {
	var multi *bool
	err := value.Decode(&multi)
	if err != nil {
		return err
	}
	b.Value = multi

	return nil
}

func (b *DefaultTrueBool) Bool() bool {
	if b.Value == nil {
		return true
	}

	return *b.Value
}

func (b DefaultTrueBool) MarshalYAML() (interface{}, error) {
	if b.Value == nil {
		return nil, nil
	}

	return *b.Value, nil
}

type Project struct {
	Name              string    `yaml:"name" json:"name" validate:"required"`
	Namespace         string    `yaml:"namespace" json:"namespace,omitempty"`
	FarFuture         string    `yaml:"far_future" json:"far_future,omitempty" jsonschema:"default=9999-12-31 23:59:59"`
	Retries           *int      `yaml:"retries" json:"retries,omitempty" jsonschema:"default=3,minimum=0"`
	RetryBackoff      string    `yaml:"retry_backoff" json:"retry_backoff,omitempty" jsonschema:"default=1s"`
	Schedule          string    `yaml:"schedule" json:"schedule,omitempty"`
	DefaultConnection string    `yaml:"default_connection" json:"default_connection,omitempty"`
	Variables         Variables `yaml:"variables" json:"variables,omitempty"`

	DefinitionFile string    `yaml:"-" json:"-"`
	Entities       []*Entity `yaml:"-" json:"-"`

	entitiesByName map[string]*Entity
}

func (p *Project) FarFutureTime() (time.Time, error) {
	value := p.FarFuture
	if value == "" {
		value = date.DefaultFarFuture
	}

	t, err := date.ParseTime(value)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid far_future value '%s'", value)
	}
	return t, nil
}

func (p *Project) RetryCount() int {
	if p.Retries == nil {
		return defaultRetries
	}
	return *p.Retries
}

func (p *Project) Backoff() (time.Duration, error) {
	if p.RetryBackoff == "" {
		return defaultRetryBackoff, nil
	}

	d, err := time.ParseDuration(p.RetryBackoff)
	if err != nil {
		return 0, errors.Errorf("invalid retry_backoff value '%s'", p.RetryBackoff)
	}
	if d <= 0 {
		return 0, errors.Errorf("retry_backoff must be positive, '%s' given", p.RetryBackoff)
	}
	return d, nil
}

func (p *Project) GetEntityByName(name string) *Entity {
	if p.entitiesByName == nil || len(p.entitiesByName) != len(p.Entities) {
		p.entitiesByName = make(map[string]*Entity, len(p.Entities))
		for _, e := range p.Entities {
			p.entitiesByName[e.Name] = e
		}
	}

	return p.entitiesByName[name]
}

// Layers groups the entities by layer in raw, cleaned, analytics order.
func (p *Project) Layers() ([]Layer, map[Layer][]*Entity) {
	grouped := make(map[Layer][]*Entity)
	for _, e := range p.Entities {
		grouped[e.Layer] = append(grouped[e.Layer], e)
	}

	order := make([]Layer, 0, len(grouped))
	for _, l := range knownLayers {
		if _, ok := grouped[l]; ok {
			order = append(order, l)
		}
	}

	return order, grouped
}
