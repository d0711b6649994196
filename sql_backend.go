package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

const idField = "id"

func (c *Conn) quote(name string) string {
	return quoteIdentifier(c.config.Driver, name)
}

func (c *Conn) isPostgres() bool {
	return c.config.Driver == DriverPgx || c.config.Driver == DriverPostgres
}

func (c *Conn) createInsertQuery(table string, fields []Field) (qry string, args []any) {
	if len(fields) == 0 {
		if c.config.Driver == DriverMySQL {
			qry = fmt.Sprintf("INSERT INTO %s () VALUES ()", c.quote(table))
		} else {
			qry = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", c.quote(table))
		}
	} else {
		columns := Map(fields, func(f Field) string {
			return c.quote(f.Name)
		})
		args = Map(fields, func(f Field) any {
			return f.Value
		})

		pl := "?" + strings.Repeat(", ?", len(fields)-1)
		qry = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.quote(table), strings.Join(columns, ", "), pl)
	}

	if c.isPostgres() {
		qry += " RETURNING " + c.quote(idField)
	}

	return qry, args
}

func (c *Conn) createUpdateQuery(table string, id string, fields []Field) (qry string, args []any) {
	sets := Map(fields, func(f Field) string {
		return fmt.Sprintf("%s = ?", c.quote(f.Name))
	})
	args = Map(fields, func(f Field) any {
		return f.Value
	})

	qry = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", c.quote(table), strings.Join(sets, ", "), c.quote(idField))
	args = append(args, id)
	return
}

func (c *Conn) createSelectQuery(sel Selection) (string, []any, error) {
	filter, args, err := parseConditionsIntoWhereClause(sel.Conditions, c.quote)
	if err != nil {
		return "", nil, err
	}

	qry := strings.Builder{}
	qry.WriteString("SELECT * FROM ")
	qry.WriteString(c.quote(sel.Table))

	if filter != "" {
		qry.WriteString(" WHERE ")
		qry.WriteString(filter)
	}

	if sorter := MakeSortClause(sel.Sorter, c.quote); sorter != "" {
		qry.WriteString(" ORDER BY ")
		qry.WriteString(sorter)
	}

	qry.WriteString(limitOffsetClause(c.config.Driver, sel.Limit, sel.Offset))

	return qry.String(), args, nil
}

// InsertRow inserts fields into table and returns the id of the new row.
// The id is the "id" field when one is given, otherwise the value generated
// by the database. It is empty when the driver cannot report it.
//
// On postgres the statement ends with RETURNING "id", so table must have an
// id column there.
func (c *Conn) InsertRow(ctx context.Context, table string, fields []Field) (string, error) {
	qry, args := c.createInsertQuery(table, fields)

	if c.isPostgres() {
		if c.db == nil {
			return "", ErrNotOpen
		}

		qry = c.db.Rebind(qry)
		c.log().Debug("exec", "query", qry, "args", args)

		var id sql.NullString
		if err := c.db.QueryRowContext(ctx, qry, args...).Scan(&id); err != nil {
			c.log().Error("query failed", "query", qry, "err", err)
			return "", wrapSQLError(err)
		}

		return id.String, nil
	}

	res, err := c.Exec(ctx, qry, args...)
	if err != nil {
		return "", err
	}

	for _, f := range fields {
		if f.Name == idField && f.Value != "" {
			return f.Value, nil
		}
	}

	lastID, err := res.LastInsertId()
	if err != nil || lastID == 0 {
		return "", nil
	}

	return strconv.FormatInt(lastID, 10), nil
}

func (c *Conn) UpdateRow(ctx context.Context, table string, id string, fields []Field) error {
	if len(fields) == 0 {
		return nil
	}

	qry, args := c.createUpdateQuery(table, id, fields)
	_, err := c.Exec(ctx, qry, args...)
	return err
}

func (c *Conn) DeleteRow(ctx context.Context, table string, id string) error {
	qry := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.quote(table), c.quote(idField))
	_, err := c.Exec(ctx, qry, id)
	return err
}

func (c *Conn) SelectRows(ctx context.Context, sel Selection) (*ResultSet, error) {
	qry, args, err := c.createSelectQuery(sel)
	if err != nil {
		c.log().Error("query failed", "table", sel.Table, "err", err)
		return nil, err
	}

	return c.Query(ctx, qry, args...)
}

func (c *Conn) RawRows(ctx context.Context, query string, args []any) (*ResultSet, error) {
	return c.Query(ctx, query, args...)
}
