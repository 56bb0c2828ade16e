package callback

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbhelper-go/errcode"
)

var freeCalls int

func freeFunction() { freeCalls++ }

// adder keeps its running total inside the slot.
type adder struct {
	total  int
	amount int
}

func (a *adder) Invoke(Void) { a.total += a.amount }

// sink reaches its state through pointers only.
type sink struct {
	total *int
	hits  chan<- struct{}
}

func (s *sink) Invoke(Void) {
	*s.total++
	select {
	case s.hits <- struct{}{}:
	default:
	}
}

// scaler takes an argument.
type scaler struct {
	factor int
	last   int
}

func (s *scaler) Invoke(v int) { s.last = v * s.factor }

// handle carries an integer that may look like a heap address.
type handle struct {
	addr uintptr
	hits uint32
}

func (h *handle) Invoke(Void) { h.hits++ }

// sharedHandle mixes an integer with a pointer.
type sharedHandle struct {
	addr uintptr
	hits *int
}

func (h *sharedHandle) Invoke(Void) { *h.hits++ }

// wide does not fit a 16-byte slot.
type wide struct {
	a, b, c, d, e uint64
}

func (*wide) Invoke(Void) {}

type notCallable struct{ x int }

func newVoidPool(n int) Pool[Void, Bytes16] {
	return Pool[Void, Bytes16](make([]Slot[Void, Bytes16], n))
}

func slotIsZero[A any, S Storage](s *Slot[A, S]) bool {
	if s.cb != nil {
		return false
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s.mem)), unsafe.Sizeof(s.mem))
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// within reports whether ptr points into the storage of s.
func within[A any, S Storage](s *Slot[A, S], ptr unsafe.Pointer) bool {
	base := uintptr(unsafe.Pointer(&s.mem))
	p := uintptr(ptr)
	return p >= base && p < base+unsafe.Sizeof(s.mem)
}

func TestMakeEveryCallableKind(t *testing.T) {
	p := newVoidPool(6)

	// free function
	freeCalls = 0
	cb, err := Make(p, 0, freeFunction)
	require.NoError(t, err)
	require.NotNil(t, cb)
	cb.Invoke(Void{})
	assert.Equal(t, 1, freeCalls)

	// capture-less closure
	cb, err = Make(p, 1, func() { freeCalls += 10 })
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 11, freeCalls)

	// capturing closure
	counter := 0
	step := 3
	cb, err = Make(p, 2, func() { counter += step })
	require.NoError(t, err)
	cb.Invoke(Void{})
	cb.Invoke(Void{})
	assert.Equal(t, 6, counter)

	// functor without pointers, stored by value
	cb, err = Make(p, 3, adder{amount: 7})
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 7, cb.(*adder).total)

	// functor of pointers, stored by value
	total := 0
	cb, err = Make(p, 4, sink{total: &total})
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 1, total)

	// func(A) with A = Void
	hits := 0
	cb, err = Make(p, 5, func(Void) { hits++ })
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 1, hits)

	for i := 0; i < p.Len(); i++ {
		assert.True(t, p.Occupied(i), "slot %d", i)
	}
}

func TestCallbackLivesInSlot(t *testing.T) {
	p := newVoidPool(3)
	cb, err := Functor(p, 1, adder{amount: 2})
	require.NoError(t, err)

	// The interface points into the slot storage, not at a heap copy.
	a, ok := cb.(*adder)
	require.True(t, ok)
	assert.True(t, within(&p[1], unsafe.Pointer(a)))
	assert.Equal(t, cb, p.Callback(1))
	assert.Nil(t, p.Callback(0))

	total := 0
	cb, err = Functor(p, 2, sink{total: &total})
	require.NoError(t, err)
	s, ok := cb.(*sink)
	require.True(t, ok)
	assert.Equal(t, unsafe.Pointer(&p[2].mem), unsafe.Pointer(s))
}

func TestMakeWithArgument(t *testing.T) {
	p := Pool[int, Bytes32](make([]Slot[int, Bytes32], 3))

	var seen []int
	cb, err := p.Func(0, func(v int) { seen = append(seen, v) })
	require.NoError(t, err)
	cb.Invoke(4)

	cb2, err := Functor(p, 1, scaler{factor: 10})
	require.NoError(t, err)
	cb2.Invoke(4)
	cb2.Invoke(5)

	plain := 0
	cb3, err := p.Thunk(2, func() { plain++ })
	require.NoError(t, err)
	cb3.Invoke(99)

	assert.Equal(t, []int{4}, seen)
	assert.Equal(t, 50, cb2.(*scaler).last)
	assert.Equal(t, 1, plain)
}

func TestFuncAdapterAsFunctor(t *testing.T) {
	p := Pool[int, Bytes8](make([]Slot[int, Bytes8], 1))
	got := 0
	cb, err := Make(p, 0, Func[int](func(v int) { got = v }))
	require.NoError(t, err)
	cb.Invoke(42)
	assert.Equal(t, 42, got)
}

func TestMakeAcceptsPointerToFunctor(t *testing.T) {
	p := newVoidPool(3)

	a := &adder{amount: 4}
	cb, err := Make(p, 0, a)
	require.NoError(t, err)
	cb.Invoke(Void{})
	cb.Invoke(Void{})
	assert.Equal(t, 8, a.total)
	assert.Same(t, a, cb.(*adder))

	// A Callback held in an interface is stored as is.
	var iface Callback[Void] = &adder{amount: 1}
	cb, err = Make(p, 1, iface)
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 1, iface.(*adder).total)

	var none *adder
	cb, err = Make(p, 2, none)
	assert.Nil(t, cb)
	assert.Equal(t, errcode.NotCallable, err)
	var nilIface Callback[Void]
	_, err = Make(p, 2, nilIface)
	assert.Equal(t, errcode.NotCallable, err)
	assert.True(t, slotIsZero(&p[2]))
}

func TestMixedLayoutRejected(t *testing.T) {
	p := newVoidPool(1)
	hits := 0

	cb, err := Make(p, 0, sharedHandle{addr: 1, hits: &hits})
	assert.Nil(t, cb)
	assert.Equal(t, errcode.MixedLayout, err)

	type named struct {
		name  string
		total *int
	}
	assert.Equal(t, mixed, layoutOf(typeOf[named]()))
	assert.Equal(t, refs, layoutOf(typeOf[sink]()))
	assert.Equal(t, plain, layoutOf(typeOf[handle]()))
	assert.Equal(t, plain, layoutOf(typeOf[struct{}]()))
	assert.Equal(t, refs, layoutOf(typeOf[[2]*int]()))
	assert.Equal(t, mixed, layoutOf(typeOf[[]int]()))

	assert.True(t, slotIsZero(&p[0]))
}

func TestAddressLikeIntegerSurvivesCollection(t *testing.T) {
	// An address inside a heap span that has since been freed.
	buf := make([]byte, 1<<20)
	addr := uintptr(unsafe.Pointer(&buf[0])) + 4096
	runtime.KeepAlive(buf)
	runtime.GC()

	p := Pool[Void, Bytes16](new([2]Slot[Void, Bytes16])[:])
	cb, err := Functor(p, 0, handle{addr: addr})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		runtime.GC()
		cb.Invoke(Void{})
	}
	h := cb.(*handle)
	assert.Equal(t, addr, h.addr)
	assert.Equal(t, uint32(3), h.hits)
}

func TestOversizedFunctorRejected(t *testing.T) {
	p := newVoidPool(2)

	assert.False(t, Fits[wide, Bytes16]())
	assert.True(t, Fits[wide, Bytes64]())

	cb, err := Make(p, 0, wide{})
	assert.Nil(t, cb)
	assert.Equal(t, errcode.SlotTooSmall, err)
	assert.True(t, slotIsZero(&p[0]))

	big := Pool[Void, Bytes64](make([]Slot[Void, Bytes64], 1))
	cb, err = Functor(big, 0, wide{a: 1})
	require.NoError(t, err)
	assert.NotNil(t, cb)
}

func TestSlotOutOfRange(t *testing.T) {
	p := newVoidPool(3)
	for _, slot := range []int{-1, 3, 100} {
		cb, err := p.Thunk(slot, freeFunction)
		assert.Nil(t, cb)
		assert.Equal(t, errcode.SlotOutOfRange, err)
	}
	for i := range p {
		assert.True(t, slotIsZero(&p[i]), "slot %d written", i)
	}
	assert.False(t, p.Occupied(3))
}

func TestSlotsAreWriteOnce(t *testing.T) {
	p := newVoidPool(1)
	first := 0
	_, err := p.Thunk(0, func() { first++ })
	require.NoError(t, err)

	cb, err := p.Thunk(0, func() { first += 100 })
	assert.Nil(t, cb)
	assert.Equal(t, errcode.SlotInUse, err)

	p.Callback(0).Invoke(Void{})
	assert.Equal(t, 1, first)
}

func TestNotCallable(t *testing.T) {
	p := newVoidPool(1)

	cb, err := Make(p, 0, notCallable{x: 1})
	assert.Nil(t, cb)
	assert.Equal(t, errcode.NotCallable, err)

	_, err = p.Thunk(0, nil)
	assert.Equal(t, errcode.NotCallable, err)
	_, err = p.Func(0, nil)
	assert.Equal(t, errcode.NotCallable, err)

	assert.True(t, slotIsZero(&p[0]))
}

func TestDistinctSlotsDoNotCorruptEachOther(t *testing.T) {
	p := newVoidPool(2)

	cbA, err := Functor(p, 0, adder{amount: 1})
	require.NoError(t, err)
	cbB, err := Functor(p, 1, adder{amount: 1000})
	require.NoError(t, err)

	cbA.Invoke(Void{})
	p.Callback(1).Invoke(Void{})
	cbA.Invoke(Void{})

	assert.Equal(t, 2, cbA.(*adder).total)
	assert.Equal(t, 1000, cbB.(*adder).total)
}

func TestFreeFunctionTouchesOnlyItsSlot(t *testing.T) {
	p := newVoidPool(4)
	freeCalls = 0

	cb, err := Make(p, 2, freeFunction)
	require.NoError(t, err)
	cb.Invoke(Void{})
	assert.Equal(t, 1, freeCalls)

	for _, i := range []int{0, 1, 3} {
		assert.True(t, slotIsZero(&p[i]), "slot %d written", i)
	}
}

func TestSlotSize(t *testing.T) {
	assert.Equal(t, uintptr(Size8), newPoolSize[Bytes8]())
	assert.Equal(t, uintptr(Size16), newPoolSize[Bytes16]())
	assert.Equal(t, uintptr(Size32), newPoolSize[Bytes32]())
	assert.Equal(t, uintptr(Size64), newPoolSize[Bytes64]())
	assert.True(t, Fits[func(), Bytes8]())
	assert.True(t, Fits[struct{}, Bytes8]())
}

func newPoolSize[S Storage]() uintptr {
	return Pool[Void, S](nil).SlotSize()
}

func TestInvokeDoesNotAllocate(t *testing.T) {
	p := newVoidPool(3)
	cb, err := Functor(p, 0, adder{amount: 1})
	require.NoError(t, err)
	ticks := 0
	cb2, err := p.Thunk(1, func() { ticks++ })
	require.NoError(t, err)
	total := 0
	cb3, err := Functor(p, 2, sink{total: &total})
	require.NoError(t, err)

	allocs := testing.AllocsPerRun(100, func() {
		cb.Invoke(Void{})
		cb2.Invoke(Void{})
		cb3.Invoke(Void{})
	})
	assert.Zero(t, allocs)
}
