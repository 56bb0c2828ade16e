package callback

import "reflect"

// layout classifies a type by where the garbage collector expects pointers.
type layout uint8

const (
	plain layout = iota // no pointers
	refs                // every word is a pointer
	mixed
)

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func layoutOf(t reflect.Type) layout {
	if !hasPointers(t) {
		return plain
	}
	if n, ok := pointerWords(t); ok && n*wordSize == t.Size() {
		return refs
	}
	return mixed
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.String, reflect.Slice:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// pointerWords counts the words of t when t is built only from pointer
// shaped parts. Padding makes the count fall short of t.Size().
func pointerWords(t reflect.Type) (uintptr, bool) {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface:
		return t.Size() / wordSize, true
	case reflect.Array:
		n, ok := pointerWords(t.Elem())
		return n * uintptr(t.Len()), ok
	case reflect.Struct:
		var sum uintptr
		for i := 0; i < t.NumField(); i++ {
			n, ok := pointerWords(t.Field(i).Type)
			if !ok {
				return 0, false
			}
			sum += n
		}
		return sum, true
	}
	return 0, false
}
