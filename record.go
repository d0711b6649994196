package store

import (
	"context"
	"fmt"
	"log/slog"
)

// IgnoreMarker is a value that keeps a Model field out of the next Create or
// Update. The field stays readable through Get.
const IgnoreMarker = "--NO_SAVE--"

type record struct {
	backend    Backend
	table      string
	columns    []string
	attributes map[string]string
	// honourIgnore enables IgnoreMarker handling on writes.
	honourIgnore bool
	logger       *slog.Logger
}

func newRecord(backend Backend, table string, columns []string, options []Option) record {
	opt := createOption(options)
	r := record{
		backend:    backend,
		table:      table,
		attributes: make(map[string]string),
		logger:     opt.logger,
	}
	r.setAttributes(columns)

	return r
}

func (r *record) setAttributes(columns []string) {
	r.columns = nil
	for _, col := range columns {
		if !SliceContains(r.columns, col) {
			r.columns = append(r.columns, col)
		}
		r.attributes[col] = ""
	}
}

func (r *record) Table() string {
	return r.table
}

// Columns returns a copy of the ordered column list.
func (r *record) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Attributes returns a copy of the field values.
func (r *record) Attributes() Row {
	row := make(Row, len(r.attributes))
	for k, v := range r.attributes {
		row[k] = v
	}

	return row
}

// Set assigns value to field, appending field to the column list when it is new.
func (r *record) Set(field string, value string) {
	if r.attributes == nil {
		r.attributes = make(map[string]string)
	}

	r.attributes[field] = value
	if !SliceContains(r.columns, field) {
		r.columns = append(r.columns, field)
	}
}

// Get returns the value of field, or "" when it is not set.
func (r *record) Get(field string) string {
	return r.attributes[field]
}

func (r *record) Has(field string) bool {
	_, ok := r.attributes[field]
	return ok
}

// Reset clears every value, keeping the column list.
func (r *record) Reset() {
	for _, col := range r.columns {
		r.attributes[col] = ""
	}
}

// Fill sets fields from a struct or a string keyed map. See fieldsFromValue
// for how struct fields map to columns.
func (r *record) Fill(value any) error {
	fields, err := fieldsFromValue(value)
	if err != nil {
		return r.fail("fill", err)
	}

	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}

	return nil
}

func (r *record) id() string {
	return r.attributes[idField]
}

// IsAttached reports whether the record has a persisted id.
func (r *record) IsAttached() bool {
	return r.id() != ""
}

func (r *record) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}

	return r.logger
}

func (r *record) fail(op string, err error) error {
	r.log().Error("record operation failed", "table", r.table, "op", op, "err", err)
	return err
}

func (r *record) ensureBackend(op string) error {
	if r.backend == nil {
		return r.fail(op, fmt.Errorf("record for %q has no connection. %w", r.table, ErrNotOpen))
	}

	return nil
}

func (r *record) skipOnWrite(col string) bool {
	return r.honourIgnore && r.attributes[col] == IgnoreMarker
}

func (r *record) fields(columns []string) []Field {
	return Map(columns, func(col string) Field {
		return Field{Name: col, Value: r.attributes[col]}
	})
}

// insertFields leaves out an empty id so the database can assign one.
func (r *record) insertFields() []Field {
	return r.fields(Filter(r.columns, func(col string) bool {
		if r.skipOnWrite(col) {
			return false
		}

		return col != idField || r.attributes[col] != ""
	}))
}

func (r *record) updateFields() []Field {
	return r.fields(Filter(r.columns, func(col string) bool {
		return col != idField && !r.skipOnWrite(col)
	}))
}

// Find loads the row whose id equals id. It reports false, leaving the
// record untouched, when no such row exists.
func (r *record) Find(ctx context.Context, id any) (bool, error) {
	if err := r.ensureBackend("find"); err != nil {
		return false, err
	}

	rs, err := r.backend.SelectRows(ctx, Selection{
		Table:      r.table,
		Conditions: []Condition{{Field: idField, Value: id}},
		Limit:      1,
	})
	if err != nil {
		return false, r.fail("find", err)
	}

	if rs.Len() == 0 {
		return false, nil
	}

	if len(r.columns) == 0 {
		r.setAttributes(rs.Columns)
	}

	for col, val := range r.bindRow(rs.Columns, rs.Rows[0]) {
		r.attributes[col] = val
	}

	return true, nil
}

// Create inserts the record. An empty id is left to the database, and the
// id it reports is stored back so the record becomes attached.
func (r *record) Create(ctx context.Context) error {
	if err := r.ensureBackend("create"); err != nil {
		return err
	}

	id, err := r.backend.InsertRow(ctx, r.table, r.insertFields())
	if err != nil {
		return r.fail("create", err)
	}

	if id != "" {
		r.Set(idField, id)
	}

	return nil
}

// Update writes every column except id back to the row addressed by id.
func (r *record) Update(ctx context.Context) error {
	if !r.IsAttached() {
		return r.fail("update", fmt.Errorf("cannot update %s. %w", r.table, ErrMissingID))
	}

	if err := r.ensureBackend("update"); err != nil {
		return err
	}

	if err := r.backend.UpdateRow(ctx, r.table, r.id(), r.updateFields()); err != nil {
		return r.fail("update", err)
	}

	return nil
}

// Remove deletes the row addressed by id.
func (r *record) Remove(ctx context.Context) error {
	if !r.IsAttached() {
		return r.fail("remove", fmt.Errorf("cannot remove from %s. %w", r.table, ErrMissingID))
	}

	if err := r.ensureBackend("remove"); err != nil {
		return err
	}

	if err := r.backend.DeleteRow(ctx, r.table, r.id()); err != nil {
		return r.fail("remove", err)
	}

	return nil
}

// Save creates the record when it has no id and updates it otherwise.
func (r *record) Save(ctx context.Context) error {
	if !r.IsAttached() {
		return r.Create(ctx)
	}

	return r.Update(ctx)
}

// GetAll reads every row of the table.
func (r *record) GetAll(ctx context.Context, options ...QueryOption) ([]Row, error) {
	opt := createQueryOption(options)
	return r.selectRows(ctx, "getAll", Selection{
		Table:  r.table,
		Sorter: opt.Sorter,
		Limit:  opt.Limit,
		Offset: opt.Offset,
	})
}

func (r *record) selectRows(ctx context.Context, op string, sel Selection) ([]Row, error) {
	if err := r.ensureBackend(op); err != nil {
		return nil, err
	}

	rs, err := r.backend.SelectRows(ctx, sel)
	if err != nil {
		return nil, r.fail(op, err)
	}

	rows := make([]Row, 0, rs.Len())
	for _, values := range rs.Rows {
		rows = append(rows, r.bindRow(rs.Columns, values))
	}

	return rows, nil
}

// bindRow maps result values onto the record's columns by name. With no
// columns defined every result column is bound.
func (r *record) bindRow(columns []string, values []string) Row {
	row := make(Row, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			break
		}

		if len(r.columns) > 0 && !SliceContains(r.columns, col) {
			continue
		}

		row[col] = values[i]
	}

	return row
}

// Where starts a query filtered on field.
func (r *record) Where(field string, value any) *Query {
	return &Query{
		record:     r,
		conditions: []Condition{{Field: field, Value: value}},
	}
}

// Raw starts a query that runs query as is. Values belong in args.
func (r *record) Raw(query string, args ...any) *Query {
	return &Query{
		record: r,
		raw:    query,
		args:   args,
		isRaw:  true,
	}
}
