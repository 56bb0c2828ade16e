// Package callback stores type-erased callables in fixed-size, caller-owned
// slots so they can be triggered from interrupt handlers without allocating.
//
// A Pool is a view over statically allocated slots. Registering a callable
// constructs its wrapper in place inside a slot and returns a Callback that
// points into that slot:
//
//	var slots [4]callback.Slot[callback.Void, callback.Bytes16]
//	pool := callback.Pool[callback.Void, callback.Bytes16](slots[:])
//	cb, err := pool.Thunk(0, func() { ticks++ })
//
// Closures are made of pointer words and always fit. Functors are stored by value
// and are checked against the slot size when registered. When the functor
// type is concrete, the same check can be made at compile time:
//
//	const _ = callback.Size16 - unsafe.Sizeof(myFunctor{})
//
// which fails to build when myFunctor is larger than the slot.
//
// A functor is either made only of pointers or holds no pointers at all, so
// each slot word is scanned by the garbage collector as what it really is.
// Keep integers and pointers in separate functors, or reach the integers
// through a pointer.
//
// Slots are write-once: there is no way to release a slot after it has been
// registered.
package callback

// Callback is the common handle through which every stored callable is
// triggered. Invoke must not block, allocate or panic when called from an
// interrupt handler.
type Callback[A any] interface {
	Invoke(args A)
}

// Void is the argument type of callbacks that take no arguments.
type Void = struct{}

// funcCallback wraps a function value taking A.
type funcCallback[A any] struct {
	fn func(A)
}

func (f *funcCallback[A]) Invoke(args A) { f.fn(args) }

// thunk wraps a function value taking no arguments; the invocation argument
// is dropped.
type thunk[A any] struct {
	fn func()
}

func (f *thunk[A]) Invoke(A) { f.fn() }

// Func adapts a plain function to Callback. The returned value is heap
// allocated when it escapes; use a Pool to keep callbacks in static storage.
type Func[A any] func(A)

func (f Func[A]) Invoke(args A) { f(args) }
