package store

import (
	"context"
	"fmt"
)

// Model is a record bound to a table and a column list given up front.
// Fields set to IgnoreMarker are left out of Create and Update.
type Model struct {
	record
}

func NewModel(backend Backend, table string, columns ...string) *Model {
	return NewModelWithOptions(backend, table, columns)
}

func NewModelWithOptions(backend Backend, table string, columns []string, options ...Option) *Model {
	m := &Model{record: newRecord(backend, table, columns, options)}
	m.honourIgnore = true
	return m
}

// Ignore marks field so the next Create or Update skips it.
func (m *Model) Ignore(field string) {
	m.Set(field, IgnoreMarker)
}

// DynamicModel is a record whose table and columns are configured after
// construction. Every column is written on Create and Update. The zero value
// is ready for SetConnection.
type DynamicModel struct {
	record
}

func NewDynamicModel(options ...Option) *DynamicModel {
	return &DynamicModel{record: newRecord(nil, "", nil, options)}
}

// SetConnection binds the model to a backend and a table.
func (m *DynamicModel) SetConnection(backend Backend, table string) {
	m.backend = backend
	m.table = table
}

// SetAttributes replaces the column list and initialises every value to "".
func (m *DynamicModel) SetAttributes(columns ...string) {
	if m.attributes == nil {
		m.attributes = make(map[string]string)
	}

	m.setAttributes(columns)
}

// LoadColumns reads the table's columns from the database and uses them as
// the column list.
func (m *DynamicModel) LoadColumns(ctx context.Context) error {
	conn, ok := m.backend.(*Conn)
	if !ok {
		return m.fail("loadColumns", fmt.Errorf("column introspection needs a SQL connection. %w", ErrUnsupported))
	}

	cols, err := conn.Columns(ctx, m.table)
	if err != nil {
		return m.fail("loadColumns", err)
	}

	m.SetAttributes(Map(cols, func(col Column) string {
		return col.Name
	})...)

	return nil
}
