package store

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

func Map[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func SliceContains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}

	return false
}

func Filter[T any](slice []T, filterFunc func(val T) bool) []T {
	var newSlice []T
	for i, val := range slice {
		if filterFunc(val) {
			newSlice = append(newSlice, slice[i])
		}
	}

	return newSlice
}

// parseDBTag reads a `db:"name,auto"` style tag. A name of "-" means the
// field is not a column.
func parseDBTag(value string) (name string, isAuto bool) {
	tagArr := strings.Split(value, ",")
	name = strings.TrimSpace(tagArr[0])
	for _, opt := range tagArr[1:] {
		varr := strings.Split(strings.TrimSpace(opt), "=")
		if !strings.EqualFold(strings.TrimSpace(varr[0]), "auto") {
			continue
		}

		isAuto = true
		if len(varr) > 1 && strings.EqualFold(strings.TrimSpace(varr[1]), "false") {
			isAuto = false
		}
	}

	return
}

// fieldsFromValue turns a struct or a string keyed map into ordered fields.
// Struct columns come from the db tag, or the snake cased field name when
// the tag is absent. Auto columns and nil values are skipped.
func fieldsFromValue(value any) ([]Field, error) {
	dataVal := reflect.ValueOf(value)
	if dataVal.Kind() == reflect.Ptr {
		if dataVal.IsNil() {
			return nil, fmt.Errorf("value is a nil pointer")
		}
		dataVal = dataVal.Elem()
	}

	var fields []Field
	switch dataVal.Kind() {
	case reflect.Map:
		if dataVal.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("value as map should have string key")
		}

		keys := Map(dataVal.MapKeys(), func(k reflect.Value) string {
			return k.String()
		})
		sort.Strings(keys)

		for _, k := range keys {
			text, ok, err := valueToText(dataVal.MapIndex(reflect.ValueOf(k).Convert(dataVal.Type().Key())).Interface())
			if err != nil {
				return nil, fmt.Errorf("failed to get value of %s. %w", k, err)
			}

			if ok {
				fields = append(fields, Field{Name: k, Value: text})
			}
		}
	case reflect.Struct:
		valType := dataVal.Type()
		for i := 0; i < valType.NumField(); i++ {
			field := valType.Field(i)
			if !field.IsExported() || field.Name == "DBTable" {
				continue
			}

			col, isAuto := parseDBTag(field.Tag.Get("db"))
			if col == "-" || isAuto {
				continue
			}

			if col == "" {
				col = strcase.ToSnake(field.Name)
			}

			text, ok, err := valueToText(dataVal.Field(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("failed to get value of %s. %w", field.Name, err)
			}

			if ok {
				fields = append(fields, Field{Name: col, Value: text})
			}
		}
	default:
		return nil, fmt.Errorf("value must be a struct or a map, got %s", dataVal.Kind())
	}

	return fields, nil
}

func valueToText(val any) (string, bool, error) {
	if v, ok := val.(driver.Valuer); ok {
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "", false, nil
		}

		buffVal, err := v.Value()
		if err != nil {
			return "", false, err
		}

		val = buffVal
	}

	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "", false, nil
		}
		rv = rv.Elem()
		val = rv.Interface()
	}

	switch v := val.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	case time.Time:
		return v.Format("2006-01-02 15:04:05"), true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}
