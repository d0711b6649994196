package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

func quoteIdentifier(driver string, name string) string {
	q := `"`
	if driver == DriverMySQL {
		q = "`"
	}

	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}

	return strings.Join(parts, ".")
}

func MakeSortClause(sorter []string, quote func(string) string) string {
	if len(sorter) == 0 {
		return ""
	}

	var srt []string
	for _, s := range sorter {
		if s == "" {
			continue
		}

		op := ""
		field := s
		if s[:1] == "-" || s[:1] == "+" {
			op = s[:1]
			field = s[1:]
		}

		if op == "-" {
			op = "DESC"
		} else {
			op = "ASC"
		}

		if quote != nil {
			field = quote(field)
		}

		srt = append(srt, fmt.Sprintf("%s %s", field, op))
	}

	return strings.Join(srt, ",")
}

type FilterNull interface {
	IsNull() bool
}

type filterNull bool

func (fn filterNull) IsNull() bool {
	return bool(fn)
}

// FilterNullFrom matches rows where the field IS NULL (true) or IS NOT NULL (false).
func FilterNullFrom(isNull bool) FilterNull {
	return filterNull(isNull)
}

// FilterStringContains matches rows where the field contains a substring.
// On SQL backends a custom implementation's Contains is used as the raw LIKE
// pattern.
type FilterStringContains interface {
	Contains() string
}

type filterStringContains string

func (fs filterStringContains) Contains() string {
	return fmt.Sprintf("%%%s%%", fs)
}

// FilterStringContainsFrom matches rows where the field contains str
// literally. % and _ in str are not wildcards.
func FilterStringContainsFrom(str string) FilterStringContains {
	return filterStringContains(str)
}

// likeEscapeChar must not be a backslash: MySQL reads it as a string escape.
const likeEscapeChar = "!"

var likeEscaper = strings.NewReplacer(
	likeEscapeChar, likeEscapeChar+likeEscapeChar,
	"%", likeEscapeChar+"%",
	"_", likeEscapeChar+"_",
)

func parseConditionsIntoWhereClause(conditions []Condition, quote func(string) string) (whereClause string, args []any, err error) {
	where := ""
	for _, cond := range conditions {
		k := quote(cond.Field)
		val := cond.Value

		if fnull, ok := val.(FilterNull); ok {
			if len(where) > 0 {
				where += " AND "
			}
			isNot := ""
			if !fnull.IsNull() {
				isNot = "NOT "
			}
			where += fmt.Sprintf("%s IS %sNULL", k, isNot)
			continue
		}

		if fcontain, ok := val.(FilterStringContains); ok {
			if len(where) > 0 {
				where += " AND "
			}
			pattern := fcontain.Contains()
			if fs, ok := fcontain.(filterStringContains); ok {
				pattern = "%" + likeEscaper.Replace(string(fs)) + "%"
			}
			where += fmt.Sprintf("%s LIKE ? ESCAPE '%s'", k, likeEscapeChar)
			args = append(args, pattern)
			continue
		}

		vval := reflect.ValueOf(val)
		if vval.Kind() != reflect.Slice || vval.Type().Elem().Kind() == reflect.Uint8 {
			if len(where) > 0 {
				where += " AND "
			}
			where += k + " = ?"
			args = append(args, val)
			continue
		}

		f, arg, err := parameterizedFilterCriteriaSlice(k, val)
		if err != nil {
			return "", nil, fmt.Errorf("invalid filter on %s. %w", cond.Field, err)
		}

		if len(where) > 0 {
			where += " AND "
		}

		where += f
		args = append(args, arg)
	}

	if where == "" {
		return "", nil, nil
	}

	return sqlx.In(where, args...)
}

func parameterizedFilterCriteriaSlice(fieldname string, values any) (string, any, error) {
	where := fieldname
	vtype := reflect.TypeOf(values)
	if vtype.Kind() == reflect.Ptr {
		vtype = vtype.Elem()
	}

	if vtype.Kind() != reflect.Slice {
		return "", nil, fmt.Errorf("expecting slice as values, got %s", vtype.Kind().String())
	}

	s := reflect.ValueOf(values)
	if s.Len() == 0 {
		return "", nil, fmt.Errorf("cannot use empty slice to parameterized")
	}

	var value any
	if s.Len() > 1 {
		where += " IN (?)"
		value = values
	} else {
		where += " = ?"
		value = s.Index(0).Interface()
	}

	return where, value, nil
}

// limitOffsetClause renders paging. MySQL and SQLite reject OFFSET without
// LIMIT, so an unbounded LIMIT is written for them.
func limitOffsetClause(driver string, limit int, offset int64) string {
	if limit < 0 {
		limit = 0
	}

	qry := strings.Builder{}

	if limit > 0 {
		qry.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	} else if offset > 0 {
		switch driver {
		case DriverMySQL:
			qry.WriteString(" LIMIT 18446744073709551615")
		case DriverSqlite:
			qry.WriteString(" LIMIT -1")
		}
	}

	if offset > 0 {
		qry.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}

	return qry.String()
}
