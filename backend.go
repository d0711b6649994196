package store

import "context"

// Row is one materialised table row, keyed by column name.
type Row map[string]string

// Field is a column name and the text value to persist into it.
type Field struct {
	Name  string
	Value string
}

// Condition filters a selection on Field. Value may be a scalar, a slice
// (matched as IN), a FilterNull or a FilterStringContains.
type Condition struct {
	Field string
	Value any
}

// Selection describes a read against a single table.
type Selection struct {
	Table      string
	Conditions []Condition
	Sorter     []string
	Limit      int
	Offset     int64
}

// ResultSet is a fully read row set. Every value is text; NULL reads as "".
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}

	return len(rs.Rows)
}

// Backend is what a record persists through. Conn implements it with SQL,
// MongoConn with a document collection.
type Backend interface {
	InsertRow(ctx context.Context, table string, fields []Field) (id string, err error)
	UpdateRow(ctx context.Context, table string, id string, fields []Field) error
	DeleteRow(ctx context.Context, table string, id string) error
	SelectRows(ctx context.Context, sel Selection) (*ResultSet, error)
	RawRows(ctx context.Context, query string, args []any) (*ResultSet, error)
}
