// Package openapi renders OpenAPI documents describing projected records.
package openapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	records "github.com/goliatone/go-records"
)

// Generator builds OpenAPI documents from projected records.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a Generator with the provided options.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate returns an OpenAPI document whose record component covers every
// key found in recs and whose operation responds with an array of records.
func (g *Generator) Generate(recs []records.Record) (map[string]any, error) {
	schema, err := RecordSchema(recs)
	if err != nil {
		return nil, err
	}
	return newDocumentBuilder(g.config, schema).build()
}

// RecordSchema returns an object schema for recs. Keys present in every
// record are listed under required. Values of conflicting types become a
// oneOf of the distinct schemas; a null value marks the property nullable.
func RecordSchema(recs []records.Record) (map[string]any, error) {
	var merged map[string]any
	counts := map[string]int{}
	for i, record := range recs {
		schema, err := buildSchema(reflect.ValueOf(map[string]any(record)))
		if err != nil {
			return nil, fmt.Errorf("openapi: record %d: %w", i, err)
		}
		for key := range record {
			counts[key]++
		}
		if merged == nil {
			merged = schema
			continue
		}
		merged = mergeSchema(merged, schema)
	}
	if merged == nil {
		merged = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	required := make([]string, 0, len(counts))
	for key, count := range counts {
		if count == len(recs) {
			required = append(required, key)
		}
	}
	sort.Strings(required)
	if len(required) > 0 {
		merged["required"] = required
	}
	return merged, nil
}

func buildSchema(rv reflect.Value) (map[string]any, error) {
	if !rv.IsValid() {
		return nullSchema(), nil
	}

	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nullSchema(), nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nullSchema(), nil
		}
		return buildSchema(rv.Elem())
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			return map[string]any{
				"type":   "string",
				"format": "date-time",
			}, nil
		}
		return schemaForStruct(rv)
	case reflect.Map:
		return schemaForMap(rv)
	case reflect.Slice, reflect.Array:
		return schemaForSlice(rv)
	default:
		return map[string]any{
			"type":   "string",
			"format": fmt.Sprintf("go:%s", rv.Type().String()),
		}, nil
	}
}

func nullSchema() map[string]any {
	return map[string]any{"nullable": true}
}

func schemaForMap(rv reflect.Value) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("openapi: map key type %s unsupported", rv.Type().Key())
	}

	properties := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		child, err := buildSchema(iter.Value())
		if err != nil {
			return nil, err
		}
		properties[iter.Key().String()] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func schemaForStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		child, err := buildSchema(rv.Field(i))
		if err != nil {
			return nil, err
		}
		properties[name] = child
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func schemaForSlice(rv reflect.Value) (map[string]any, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return map[string]any{
			"type":   "string",
			"format": "byte",
		}, nil
	}

	items := map[string]any{}
	for i := 0; i < rv.Len(); i++ {
		child, err := buildSchema(rv.Index(i))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			items = child
			continue
		}
		items = mergeSchema(items, child)
	}
	return map[string]any{
		"type":  "array",
		"items": items,
	}, nil
}

// mergeSchema combines two schemas observed for the same location.
func mergeSchema(a, b map[string]any) map[string]any {
	switch {
	case isNullOnly(a):
		return markNullable(b)
	case isNullOnly(b):
		return markNullable(a)
	}

	typeA, _ := a["type"].(string)
	typeB, _ := b["type"].(string)
	if typeA == "object" && typeB == "object" {
		out := map[string]any{"type": "object"}
		props := map[string]any{}
		for key, value := range properties(a) {
			props[key] = value
		}
		for key, value := range properties(b) {
			if existing, ok := props[key].(map[string]any); ok {
				props[key] = mergeSchema(existing, value.(map[string]any))
				continue
			}
			props[key] = value
		}
		out["properties"] = props
		if nullable(a) || nullable(b) {
			out["nullable"] = true
		}
		return out
	}
	if typeA == "array" && typeB == "array" {
		itemsA, _ := a["items"].(map[string]any)
		itemsB, _ := b["items"].(map[string]any)
		var items map[string]any
		switch {
		case len(itemsA) == 0:
			items = itemsB
		case len(itemsB) == 0:
			items = itemsA
		default:
			items = mergeSchema(itemsA, itemsB)
		}
		out := map[string]any{"type": "array", "items": items}
		if nullable(a) || nullable(b) {
			out["nullable"] = true
		}
		return out
	}
	if reflect.DeepEqual(stripNullable(a), stripNullable(b)) {
		if nullable(b) {
			return markNullable(a)
		}
		return a
	}
	return oneOf(a, b)
}

func oneOf(a, b map[string]any) map[string]any {
	var variants []any
	isNullable := false
	for _, schema := range []map[string]any{a, b} {
		if nullable(schema) {
			isNullable = true
		}
		if list, ok := schema["oneOf"].([]any); ok {
			for _, item := range list {
				variants = appendVariant(variants, item.(map[string]any))
			}
			continue
		}
		variants = appendVariant(variants, stripNullable(schema))
	}
	out := map[string]any{"oneOf": variants}
	if isNullable {
		out["nullable"] = true
	}
	return out
}

func appendVariant(variants []any, schema map[string]any) []any {
	for _, existing := range variants {
		if reflect.DeepEqual(existing, schema) {
			return variants
		}
	}
	return append(variants, schema)
}

func properties(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	return props
}

func isNullOnly(schema map[string]any) bool {
	return len(schema) == 1 && nullable(schema)
}

func nullable(schema map[string]any) bool {
	value, _ := schema["nullable"].(bool)
	return value
}

func markNullable(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for key, value := range schema {
		out[key] = value
	}
	out["nullable"] = true
	return out
}

func stripNullable(schema map[string]any) map[string]any {
	if !nullable(schema) {
		return schema
	}
	out := make(map[string]any, len(schema))
	for key, value := range schema {
		if key != "nullable" {
			out[key] = value
		}
	}
	return out
}
