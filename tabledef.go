package store

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/guregu/null.v4"
)

type Column struct {
	Name       string
	DataType   string
	NotNull    bool
	Default    null.String
	PrimaryKey bool
}

type TableDef struct {
	Schema  string
	Name    string
	Columns []Column
}

func (td TableDef) ColumnNames() []string {
	return Map(td.Columns, func(val Column) string {
		return val.Name
	})
}

func (td TableDef) FullTableName() string {
	name := td.Name
	if td.Schema != "" {
		name = fmt.Sprintf("%s.%s", td.Schema, td.Name)
	}
	return name
}

func splitTableName(table string) (schema string, name string) {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}

	return "", table
}

// Columns reads the column definitions of table in ordinal order.
func (c *Conn) Columns(ctx context.Context, table string) ([]Column, error) {
	if c.db == nil {
		return nil, ErrNotOpen
	}

	var (
		cols []Column
		err  error
	)

	switch c.config.Driver {
	case DriverSqlite:
		cols, err = sqliteGetColumns(ctx, c, table)
	case DriverMySQL, DriverPgx, DriverPostgres:
		cols, err = infoSchemaGetColumns(ctx, c, table)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, c.config.Driver)
	}

	if err != nil {
		c.log().Error("column introspection failed", "table", table, "err", err)
		return nil, wrapSQLError(err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w. table %s has no columns", ErrKeynotFound, table)
	}

	return cols, nil
}

// TableDef describes table with its columns.
func (c *Conn) TableDef(ctx context.Context, table string) (TableDef, error) {
	cols, err := c.Columns(ctx, table)
	if err != nil {
		return TableDef{}, err
	}

	schema, name := splitTableName(table)
	return TableDef{Schema: schema, Name: name, Columns: cols}, nil
}

func sqliteGetColumns(ctx context.Context, c *Conn, table string) ([]Column, error) {
	qry := fmt.Sprintf("PRAGMA table_info(%s)", c.quote(table))

	type columnInfo struct {
		CID       int         `db:"cid"`
		Name      string      `db:"name"`
		Type      string      `db:"type"`
		NotNull   int         `db:"notnull"`
		DfltValue null.String `db:"dflt_value"`
		Pk        int         `db:"pk"`
	}

	var cols []columnInfo
	if err := c.db.SelectContext(ctx, &cols, qry); err != nil {
		return nil, err
	}

	return Map(cols, func(col columnInfo) Column {
		return Column{
			Name:       col.Name,
			DataType:   col.Type,
			NotNull:    col.NotNull != 0,
			Default:    col.DfltValue,
			PrimaryKey: col.Pk > 0,
		}
	}), nil
}

func infoSchemaGetColumns(ctx context.Context, c *Conn, table string) ([]Column, error) {
	schema, name := splitTableName(table)

	schemaExpr := "DATABASE()"
	pkExpr := "CASE WHEN c.column_key = 'PRI' THEN 1 ELSE 0 END"
	if c.isPostgres() {
		schemaExpr = "current_schema()"
		pkExpr = `CASE WHEN EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND k.column_name = c.column_name
			) THEN 1 ELSE 0 END`
	}

	var args []any
	if schema != "" {
		schemaExpr = "?"
		args = append(args, schema)
	}
	args = append(args, name)

	qry := fmt.Sprintf(`
		SELECT
			c.column_name AS column_name
			,c.data_type AS data_type
			,c.is_nullable AS is_nullable
			,c.column_default AS column_default
			,%s AS pk
		FROM information_schema.columns c
		WHERE c.table_schema = %s AND c.table_name = ?
		ORDER BY c.ordinal_position`, pkExpr, schemaExpr)
	qry = c.db.Rebind(qry)

	type columnInfo struct {
		Name       string      `db:"column_name"`
		DataType   string      `db:"data_type"`
		IsNullable string      `db:"is_nullable"`
		Default    null.String `db:"column_default"`
		Pk         int         `db:"pk"`
	}

	var cols []columnInfo
	if err := c.db.SelectContext(ctx, &cols, qry, args...); err != nil {
		return nil, err
	}

	return Map(cols, func(col columnInfo) Column {
		return Column{
			Name:       col.Name,
			DataType:   col.DataType,
			NotNull:    strings.EqualFold(col.IsNullable, "NO"),
			Default:    col.Default,
			PrimaryKey: col.Pk > 0,
		}
	}), nil
}
