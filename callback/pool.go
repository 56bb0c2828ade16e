package callback

import (
	"reflect"
	"unsafe"

	"cbhelper-go/errcode"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// Slot capacities in bytes.
const (
	Size8  = 8
	Size16 = 16
	Size32 = 32
	Size64 = 64
)

// Slot storage. Each size has a region of pointer words and a region of plain
// words of the same capacity. A value made only of pointers goes in the first,
// a value without pointers in the second, so the garbage collector never sees
// an integer in a pointer word or misses a pointer in a plain one.
type (
	Bytes8 struct {
		refs [Size8 / wordSize]unsafe.Pointer
		vals [Size8 / wordSize]uintptr
	}
	Bytes16 struct {
		refs [Size16 / wordSize]unsafe.Pointer
		vals [Size16 / wordSize]uintptr
	}
	Bytes32 struct {
		refs [Size32 / wordSize]unsafe.Pointer
		vals [Size32 / wordSize]uintptr
	}
	Bytes64 struct {
		refs [Size64 / wordSize]unsafe.Pointer
		vals [Size64 / wordSize]uintptr
	}
)

// Storage is the set of slot storage types.
type Storage interface {
	Bytes8 | Bytes16 | Bytes32 | Bytes64
}

// Slot is one fixed-size storage unit. The zero value is an empty slot.
type Slot[A any, S Storage] struct {
	cb  Callback[A] // occupant, points into mem
	mem S
}

// region returns the start of the part of mem that holds values of layout l.
func (s *Slot[A, S]) region(l layout) unsafe.Pointer {
	base := unsafe.Pointer(&s.mem)
	if l == plain {
		return unsafe.Add(base, unsafe.Sizeof(s.mem)/2)
	}
	return base
}

// Pool is a fixed-capacity arena of slots. It never allocates: the slots
// belong to the caller, typically as a package-level array or a field of a
// driver struct.
//
// Slot management is the caller's job. A slot accepts exactly one
// registration for the life of the program.
type Pool[A any, S Storage] []Slot[A, S]

// Len reports the number of slots.
func (p Pool[A, S]) Len() int { return len(p) }

// SlotSize reports the capacity of each slot in bytes.
func (p Pool[A, S]) SlotSize() uintptr {
	var s S
	return unsafe.Sizeof(s) / 2
}

// Occupied reports whether slot holds a callback. Out-of-range slots are
// never occupied.
func (p Pool[A, S]) Occupied(slot int) bool {
	return slot >= 0 && slot < len(p) && p[slot].cb != nil
}

// Callback returns the callback stored in slot, or nil.
func (p Pool[A, S]) Callback(slot int) Callback[A] {
	if slot < 0 || slot >= len(p) {
		return nil
	}
	return p[slot].cb
}

// Func stores a function taking the callback argument.
func (p Pool[A, S]) Func(slot int, fn func(A)) (Callback[A], error) {
	if fn == nil {
		return nil, errcode.NotCallable
	}
	return store[A, S](p, slot, funcCallback[A]{fn: fn})
}

// Thunk stores a function taking no arguments.
func (p Pool[A, S]) Thunk(slot int, fn func()) (Callback[A], error) {
	if fn == nil {
		return nil, errcode.NotCallable
	}
	return store[A, S](p, slot, thunk[A]{fn: fn})
}

// Functor stores v by value. *T must implement Callback[A], so a value that
// cannot be invoked is rejected by the compiler.
func Functor[A any, S Storage, T any, PT interface {
	*T
	Callback[A]
}](p Pool[A, S], slot int, v T) (Callback[A], error) {
	return store[A, S](p, slot, v)
}

// Make stores any supported callable: a func(A), a func(), a functor whose
// pointer implements Callback[A], or a non-nil pointer or interface that
// implements Callback[A] itself. Anything else yields errcode.NotCallable.
//
// A functor must be made either only of pointers (pointers, maps, channels,
// funcs, interfaces) or of no pointers at all; one that mixes the two, such
// as a pointer next to an int or a string, yields errcode.MixedLayout.
//
// On success the returned Callback lives in the slot. On failure the result
// is nil and the pool is left untouched.
func Make[A any, S Storage, T any](p Pool[A, S], slot int, c T) (Callback[A], error) {
	switch f := any(c).(type) {
	case func(A):
		return p.Func(slot, f)
	case func():
		return p.Thunk(slot, f)
	}
	return store[A, S](p, slot, c)
}

// Fits reports whether a value of type T is small enough for a slot of type S.
func Fits[T any, S Storage]() bool {
	var (
		v T
		s S
	)
	return unsafe.Sizeof(v) <= unsafe.Sizeof(s)/2 && unsafe.Alignof(v) <= wordSize
}

// store constructs v in place inside the slot's storage.
func store[A any, S Storage, T any](p Pool[A, S], slot int, v T) (Callback[A], error) {
	if slot < 0 || slot >= len(p) {
		return nil, errcode.SlotOutOfRange
	}
	if !Fits[T, S]() {
		return nil, errcode.SlotTooSmall
	}
	byRef := false
	if _, ok := any((*T)(nil)).(Callback[A]); !ok {
		if !implementsItself[A](v) {
			return nil, errcode.NotCallable
		}
		byRef = true
	}
	l := layoutOf(typeOf[T]())
	if l == mixed {
		return nil, errcode.MixedLayout
	}
	s := &p[slot]
	if s.cb != nil {
		return nil, errcode.SlotInUse
	}
	ptr := (*T)(s.region(l))
	*ptr = v
	var cb Callback[A]
	if byRef {
		cb = any(*ptr).(Callback[A])
	} else {
		cb = any(ptr).(Callback[A])
	}
	s.cb = cb
	return cb, nil
}

// implementsItself reports whether v, a pointer or interface, implements
// Callback[A] and is not nil.
func implementsItself[A any, T any](v T) bool {
	if _, ok := any(v).(Callback[A]); !ok {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() != reflect.Pointer || !rv.IsNil()
}
