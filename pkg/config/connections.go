package config

type DuckDBConnection struct {
	Name string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Path string `yaml:"path" json:"path" mapstructure:"path" validate:"required"`
}

func (c DuckDBConnection) GetName() string {
	return c.Name
}

type PostgresConnection struct {
	Name         string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Username     string `yaml:"username" json:"username" mapstructure:"username" validate:"required"`
	Password     string `yaml:"password" json:"password" mapstructure:"password"`
	Host         string `yaml:"host" json:"host" mapstructure:"host" validate:"required"`
	Port         int    `yaml:"port" json:"port" mapstructure:"port" jsonschema:"default=5432"`
	Database     string `yaml:"database" json:"database" mapstructure:"database" validate:"required"`
	Schema       string `yaml:"schema" json:"schema" mapstructure:"schema"`
	PoolMaxConns int    `yaml:"pool_max_conns" json:"pool_max_conns" mapstructure:"pool_max_conns" jsonschema:"default=10"`
	SslMode      string `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode" jsonschema:"default=disable"`
}

func (c PostgresConnection) GetName() string {
	return c.Name
}

type SnowflakeConnection struct {
	Name       string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Account    string `yaml:"account" json:"account" mapstructure:"account" validate:"required"`
	Username   string `yaml:"username" json:"username" mapstructure:"username" validate:"required"`
	Password   string `yaml:"password" json:"password,omitempty" mapstructure:"password" validate:"required_without=PrivateKey"`
	Region     string `yaml:"region" json:"region,omitempty" mapstructure:"region"`
	Role       string `yaml:"role" json:"role,omitempty" mapstructure:"role"`
	Database   string `yaml:"database" json:"database" mapstructure:"database"`
	Schema     string `yaml:"schema" json:"schema,omitempty" mapstructure:"schema"`
	Warehouse  string `yaml:"warehouse" json:"warehouse,omitempty" mapstructure:"warehouse"`
	PrivateKey string `yaml:"private_key" json:"private_key,omitempty" mapstructure:"private_key"`
}

func (c SnowflakeConnection) GetName() string {
	return c.Name
}

type MySQLConnection struct {
	Name     string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Username string `yaml:"username" json:"username" mapstructure:"username" validate:"required"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
	Host     string `yaml:"host" json:"host" mapstructure:"host" validate:"required"`
	Port     int    `yaml:"port" json:"port" mapstructure:"port" jsonschema:"default=3306"`
	Database string `yaml:"database" json:"database" mapstructure:"database" validate:"required"`
}

func (c MySQLConnection) GetName() string {
	return c.Name
}

type Connections struct {
	DuckDB    []DuckDBConnection    `yaml:"duckdb,omitempty" json:"duckdb,omitempty" mapstructure:"duckdb" validate:"dive"`
	Postgres  []PostgresConnection  `yaml:"postgres,omitempty" json:"postgres,omitempty" mapstructure:"postgres" validate:"dive"`
	Snowflake []SnowflakeConnection `yaml:"snowflake,omitempty" json:"snowflake,omitempty" mapstructure:"snowflake" validate:"dive"`
	MySQL     []MySQLConnection     `yaml:"mysql,omitempty" json:"mysql,omitempty" mapstructure:"mysql" validate:"dive"`
}

type named interface {
	GetName() string
}

func collect[T named](out map[string]any, conns []T) {
	for i := range conns {
		out[conns[i].GetName()] = &conns[i]
	}
}

// byName indexes every connection of the environment by its name.
func (c *Connections) byName() map[string]any {
	out := make(map[string]any)
	if c == nil {
		return out
	}

	collect(out, c.DuckDB)
	collect(out, c.Postgres)
	collect(out, c.Snowflake)
	collect(out, c.MySQL)
	return out
}

func (c *Connections) names() []string {
	if c == nil {
		return nil
	}

	var out []string
	add := func(n named) { out = append(out, n.GetName()) }
	for _, conn := range c.DuckDB {
		add(conn)
	}
	for _, conn := range c.Postgres {
		add(conn)
	}
	for _, conn := range c.Snowflake {
		add(conn)
	}
	for _, conn := range c.MySQL {
		add(conn)
	}
	return out
}

// ConnectionsSummaryList maps every connection name to its type.
func (c *Connections) ConnectionsSummaryList() map[string]string {
	out := make(map[string]string)
	if c == nil {
		return out
	}

	for _, conn := range c.DuckDB {
		out[conn.Name] = "duckdb"
	}
	for _, conn := range c.Postgres {
		out[conn.Name] = "postgres"
	}
	for _, conn := range c.Snowflake {
		out[conn.Name] = "snowflake"
	}
	for _, conn := range c.MySQL {
		out[conn.Name] = "mysql"
	}
	return out
}
