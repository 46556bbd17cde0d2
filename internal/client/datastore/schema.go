package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"sort"
	"strings"
)

// SchemaHashOf hashes the JSON shape of T: field names and kinds, nested
// types included. Two types that encode to the same document layout hash
// equally.
func SchemaHashOf[T any]() string {
	return SchemaHash(reflect.TypeOf((*T)(nil)).Elem())
}

func SchemaHash(t reflect.Type) string {
	var b strings.Builder
	describe(&b, t, map[reflect.Type]bool{})
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func describe(b *strings.Builder, t reflect.Type, visiting map[reflect.Type]bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		if visiting[t] {
			b.WriteString("@" + t.String())
			return
		}
		visiting[t] = true
		defer delete(visiting, t)

		type field struct {
			name string
			typ  reflect.Type
		}
		var fields []field
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			fields = append(fields, field{name: name, typ: f.Type})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })

		b.WriteString("{")
		for _, f := range fields {
			b.WriteString(f.name)
			b.WriteString(":")
			describe(b, f.typ, visiting)
			b.WriteString(";")
		}
		b.WriteString("}")
	case reflect.Slice, reflect.Array:
		b.WriteString("[")
		describe(b, t.Elem(), visiting)
		b.WriteString("]")
	case reflect.Map:
		b.WriteString("map<")
		describe(b, t.Elem(), visiting)
		b.WriteString(">")
	default:
		b.WriteString(t.Kind().String())
	}
}
