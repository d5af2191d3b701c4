package postgres

import (
	"reflect"
	"sync"
)

// column is one "db"-tagged field, addressed by its index path so fields
// promoted from embedded structs resolve without recursion.
type column struct {
	name  string
	index []int
}

// columnCache maps reflect.Type to []column.
var columnCache sync.Map

// columnsOf returns the tagged fields of struct type t in declaration order,
// embedded fields first at the position they are declared.
func columnsOf(t reflect.Type) []column {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	if t.Kind() == reflect.Struct {
		cols = appendColumns(nil, t, nil)
	}
	columnCache.Store(t, cols)
	return cols
}

func appendColumns(cols []column, t reflect.Type, prefix []int) []column {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = appendColumns(cols, f.Type, path)
			continue
		}
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, column{name: tag, index: path})
	}
	return cols
}

// ExtractDBColumns lists the "db" column names of T, including those of
// embedded structs such as entity.Document. Called once per repository.
//
//	columns := ExtractDBColumns[opname.Opname]()
//	// ["id", "version", "created_at", ..., "code", "notes", "opname_date", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeOf((*T)(nil)).Elem())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap converts a struct (or pointer to one) to a column map keyed by
// "db" tags. Returns nil for anything else.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}
