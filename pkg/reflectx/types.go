package reflectx

import "reflect"

// TypeFor returns the reflect.Type of R. Unlike reflect.TypeOf on a zero value
// it also works for interface types.
func TypeFor[R any]() reflect.Type {
	return reflect.TypeOf((*R)(nil)).Elem()
}

// Implements reports whether value implements the interface R.
func Implements[R any](value reflect.Type) bool {
	if value == nil {
		return false
	}
	iface := TypeFor[R]()
	if iface.Kind() != reflect.Interface {
		return value == iface
	}
	return value.Implements(iface)
}

// ResultImplements reports whether any result of fn implements R. fn may be a
// function value or a function reflect.Type.
func ResultImplements[R any](fn any) bool {
	var fnType reflect.Type
	switch v := fn.(type) {
	case nil:
		return false
	case reflect.Type:
		fnType = v
	default:
		fnType = reflect.TypeOf(fn)
	}
	if fnType.Kind() != reflect.Func {
		return false
	}
	for i := range fnType.NumOut() {
		if Implements[R](fnType.Out(i)) {
			return true
		}
	}
	return false
}

// IsNil reports whether v is nil or a nil pointer, map, slice, func, chan or
// interface stored in an interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return val.IsNil()
	}
	return false
}
