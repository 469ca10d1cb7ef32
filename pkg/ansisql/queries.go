package ansisql

import (
	"fmt"
	"strings"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/samber/lo"
)

// CreateSchemaQuery returns the statement provisioning the schema of the table, empty if the table name is not
// qualified.
func CreateSchemaQuery(d *Dialect, t *store.Table) string {
	schema := t.Schema()
	if schema == "" {
		return ""
	}
	if d.UpperSchema {
		schema = strings.ToUpper(schema)
	}
	return "CREATE SCHEMA IF NOT EXISTS " + schema
}

// CreateTableQuery returns the DDL of the table including the store managed columns of its kind.
func CreateTableQuery(d *Dialect, t *store.Table) (string, error) {
	columns := t.AllColumns()
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		dbType, err := d.ColumnType(c.Type)
		if err != nil {
			return "", err
		}

		def := fmt.Sprintf("  %s %s", c.Name, dbType)
		if lo.Contains(t.Key, c.Name) || c.Name == store.ColumnValidFrom {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(defs, ",\n")), nil
}

// DDL renders every statement needed to provision the table.
func DDL(d *Dialect, t *store.Table) (string, error) {
	table, err := CreateTableQuery(d, t)
	if err != nil {
		return "", err
	}

	if schema := CreateSchemaQuery(d, t); schema != "" {
		return schema + ";\n" + table + ";", nil
	}
	return table + ";", nil
}

func watermarkQuery(t *store.Table) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", t.ChangeTimestamp, t.Name)
}

func keyPredicate(t *store.Table) string {
	parts := lo.Map(t.Key, func(k string, _ int) string {
		return k + " = ?"
	})
	return strings.Join(parts, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func deleteByKeyQuery(t *store.Table) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", t.Name, keyPredicate(t))
}

func insertQuery(t *store.Table) string {
	columns := lo.Map(t.AllColumns(), func(c record.Field, _ int) string { return c.Name })
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(columns, ", "), placeholders(len(columns)))
}

func closeVersionQuery(t *store.Table) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s = ?, %s = FALSE WHERE %s AND %s = TRUE AND %s = ?",
		t.Name, store.ColumnValidUntil, store.ColumnIsCurrent, keyPredicate(t), store.ColumnIsCurrent, store.ColumnValidFrom,
	)
}

func selectQuery(t *store.Table, currentOnly bool) string {
	columns := lo.Map(t.AllColumns(), func(c record.Field, _ int) string { return c.Name })
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), t.Name)
	if t.Kind == store.KindHistory && currentOnly {
		q += fmt.Sprintf(" WHERE %s = TRUE", store.ColumnIsCurrent)
	}

	order := append([]string(nil), t.Key...)
	if t.Kind == store.KindHistory {
		order = append(order, store.ColumnValidFrom)
	}
	return q + " ORDER BY " + strings.Join(order, ", ")
}
