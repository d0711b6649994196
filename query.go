package store

import "context"

// Query is a filtered or raw read built from a record with Where or Raw.
// Filtered queries bind result columns the way the record's GetAll does;
// raw queries return every result column.
type Query struct {
	record     *record
	conditions []Condition
	sorter     []string
	limit      int
	offset     int64

	raw   string
	args  []any
	isRaw bool
}

// Where adds another condition, combined with AND. It has no effect on a
// raw query.
func (q *Query) Where(field string, value any) *Query {
	q.conditions = append(q.conditions, Condition{Field: field, Value: value})
	return q
}

// OrderBy sorts by fields, "-name" descending and "name" or "+name" ascending.
func (q *Query) OrderBy(sorter ...string) *Query {
	q.sorter = append(q.sorter, sorter...)
	return q
}

func (q *Query) Limit(limit int) *Query {
	q.limit = limit
	return q
}

func (q *Query) Offset(offset int64) *Query {
	q.offset = offset
	return q
}

func (q *Query) selection(limit int) Selection {
	return Selection{
		Table:      q.record.table,
		Conditions: q.conditions,
		Sorter:     q.sorter,
		Limit:      limit,
		Offset:     q.offset,
	}
}

// GetAll runs the query and returns every matching row.
func (q *Query) GetAll(ctx context.Context) ([]Row, error) {
	if q.isRaw {
		return q.rawRows(ctx)
	}

	return q.record.selectRows(ctx, "where", q.selection(q.limit))
}

// First returns the first matching row. ok is false when nothing matched.
func (q *Query) First(ctx context.Context) (row Row, ok bool, err error) {
	var rows []Row
	if q.isRaw {
		rows, err = q.rawRows(ctx)
	} else {
		rows, err = q.record.selectRows(ctx, "first", q.selection(1))
	}

	if err != nil || len(rows) == 0 {
		return nil, false, err
	}

	return rows[0], true, nil
}

func (q *Query) rawRows(ctx context.Context) ([]Row, error) {
	r := q.record
	if err := r.ensureBackend("raw"); err != nil {
		return nil, err
	}

	rs, err := r.backend.RawRows(ctx, q.raw, q.args)
	if err != nil {
		return nil, r.fail("raw", err)
	}

	rows := make([]Row, 0, rs.Len())
	for _, values := range rs.Rows {
		row := make(Row, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
