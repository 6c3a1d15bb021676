package records

import (
	"fmt"
	"sort"
	"strings"
)

// MixedType is reported for paths whose values differ in type across records.
const MixedType = "mixed"

// FieldDescriptor describes a path and the inferred type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Describe returns the union of field paths found in records, sorted by path.
// Nested maps are flattened into dotted paths. A nil value only contributes
// its type when no record carries a concrete value for the path.
func Describe(records []Record) []FieldDescriptor {
	types := map[string]string{}
	for _, record := range records {
		for _, field := range deriveFieldDescriptors(map[string]any(record), "") {
			current, seen := types[field.Path]
			switch {
			case !seen || current == "nil":
				types[field.Path] = field.Type
			case field.Type == "nil" || current == field.Type:
			default:
				types[field.Path] = MixedType
			}
		}
	}

	out := make([]FieldDescriptor, 0, len(types))
	for path, typ := range types {
		out = append(out, FieldDescriptor{Path: path, Type: typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	switch typed := value.(type) {
	case Record:
		return deriveFieldDescriptors(map[string]any(typed), prefix)
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "map[string]any"}}
		}
		var fields []FieldDescriptor
		for key, nested := range typed {
			fields = append(fields, deriveFieldDescriptors(nested, joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: typeName(typed)}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
