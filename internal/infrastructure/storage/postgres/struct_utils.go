package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the column names declared by db tags on T,
// walking embedded structs. Called once per repository at construction,
// so the reflection cost does not matter.
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOfType(reflect.TypeOf(zero))
}

func columnsOfType(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, columnsOfType(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
	}
	return cols
}

// taggedField is a pre-resolved db-tagged struct field.
type taggedField struct {
	index int
	dbTag string
}

// structLayout caches which fields of a type carry db tags so StructToMap
// reflects over each type once.
type structLayout struct {
	fields   []taggedField
	embedded []int
}

var layoutCache sync.Map // map[reflect.Type]*structLayout

func layoutOf(t reflect.Type) *structLayout {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := layoutCache.Load(t); ok {
		return cached.(*structLayout)
	}

	layout := &structLayout{}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)

			if field.Anonymous {
				layout.embedded = append(layout.embedded, i)
				continue
			}

			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			layout.fields = append(layout.fields, taggedField{index: i, dbTag: tag})
		}
	}

	layoutCache.Store(t, layout)
	return layout
}

// StructToMap flattens a struct into column/value pairs using db tags.
// Embedded structs contribute their own tagged fields.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	layout := layoutOf(rv.Type())
	res := make(map[string]any, len(layout.fields))

	for _, f := range layout.fields {
		res[f.dbTag] = rv.Field(f.index).Interface()
	}
	for _, idx := range layout.embedded {
		for k, v := range StructToMap(rv.Field(idx).Interface()) {
			res[k] = v
		}
	}
	return res
}
