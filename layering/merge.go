// Package layering deep-copies and merges decoded record values. Values are
// walked with reflection so plain maps, slices and structs all work.
package layering

import "reflect"

// MergeLayers composes values ordered from strongest to weakest. Stronger
// layers keep their explicit settings; nil pointers, nil interfaces and nil
// maps or slices are filled from weaker layers, and maps merge key by key.
// The result shares no maps, slices or pointers with the inputs.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := cloneValue(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeValue(reflect.ValueOf(layers[i]), merged)
	}
	return asType[T](merged)
}

// Clone returns a deep copy of value.
func Clone[T any](value T) T {
	return asType[T](cloneValue(reflect.ValueOf(value)))
}

// CloneAny deep-copies a dynamically typed value, keeping nil as nil.
func CloneAny(value any) any {
	if value == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(value)).Interface()
}

func asType[T any](value reflect.Value) T {
	var zero T
	if !value.IsValid() {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if value.Type() == target {
		return value.Interface().(T)
	}
	if target.Kind() == reflect.Interface {
		if value.Type().Implements(target) {
			return value.Interface().(T)
		}
		return zero
	}
	if !value.Type().ConvertibleTo(target) {
		return zero
	}
	out := reflect.New(target).Elem()
	out.Set(value.Convert(target))
	return out.Interface().(T)
}

func mergeValue(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(mergeValue(strong.Elem(), weakElem))
		return out
	case reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() {
			weakElem = weak
			if weak.Kind() == reflect.Interface {
				if weak.IsNil() {
					weakElem = reflect.Value{}
				} else {
					weakElem = weak.Elem()
				}
			}
		}
		return mergeValue(strong.Elem(), weakElem)
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		out.Set(strong)
		var weakStruct reflect.Value
		if weak.IsValid() && weak.Type() == strong.Type() {
			weakStruct = weak
		}
		for i := 0; i < strong.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if weakStruct.IsValid() {
				weakField = weakStruct.Field(i)
			}
			field.Set(assignable(mergeValue(strong.Field(i), weakField), field.Type()))
		}
		return out
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		weakMap := unwrapInterface(weak)
		if weakMap.IsValid() && weakMap.Kind() == reflect.Map && !weakMap.IsNil() &&
			weakMap.Type().Key() == strong.Type().Key() {
			iter := weakMap.MapRange()
			for iter.Next() {
				out.SetMapIndex(iter.Key(), assignable(cloneValue(iter.Value()), strong.Type().Elem()))
			}
		}
		iter := strong.MapRange()
		for iter.Next() {
			key := iter.Key()
			existing := out.MapIndex(key)
			merged := mergeValue(iter.Value(), existing)
			out.SetMapIndex(key, assignable(merged, strong.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	default:
		return cloneValue(strong)
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return assignable(cloneValue(v.Elem()), v.Type())
	case reflect.Struct:
		// Unexported fields (time.Time and friends) are copied shallowly.
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}

func unwrapInterface(v reflect.Value) reflect.Value {
	if v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		return v.Elem()
	}
	return v
}

// assignable adapts v so it can be stored in a slot of type target.
func assignable(v reflect.Value, target reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(target)
	}
	if v.Type().AssignableTo(target) {
		return v
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target)
	}
	return reflect.Zero(target)
}
