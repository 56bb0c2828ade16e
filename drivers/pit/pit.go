// Package pit drives the periodic interrupt timer of the i.MX RT1062
// (Teensy 4.x). A Timer binds one callable to one PIT channel; on every
// expiry the interrupt handler clears the channel flag and invokes the
// callable from the Timer's own callback slots, without allocating.
//
// MCU builds (tag mimxrt1062) program the real peripheral. Every other build
// runs against Sim, a register-accurate stand-in driven by Tick and Advance.
package pit

import (
	"time"

	"cbhelper-go/callback"
	"cbhelper-go/errcode"
	"cbhelper-go/x/timex"
)

const (
	NumChannels = 4
	ClockHz     = 24_000_000 // PIT clock, 24 MHz oscillator

	// Slots is the number of callback slots owned by each Timer.
	Slots = 5

	timerSlot = 0 // the slot holding the channel callback
)

// SlotStorage is the storage of one Timer callback slot.
type SlotStorage = callback.Bytes16

// SlotSize is the largest functor a Timer slot holds, in bytes.
const SlotSize = callback.Size16

// Callback is the handle invoked on each expiry.
type Callback = callback.Callback[callback.Void]

// Timer owns one PIT channel and the storage for its callback.
// A Timer must not be copied once armed.
type Timer struct {
	ch    int
	slots [Slots]callback.Slot[callback.Void, SlotStorage]
}

// New returns a Timer for PIT channel ch. The channel is validated by Begin.
func New(ch int) Timer { return Timer{ch: ch} }

// Channel returns the PIT channel of t.
func (t *Timer) Channel() int { return t.ch }

func (t *Timer) pool() callback.Pool[callback.Void, SlotStorage] {
	return t.slots[:]
}

// Begin arms the channel to call fn every period.
func (t *Timer) Begin(fn func(), period time.Duration) error {
	return Arm(t, fn, period)
}

// Arm arms t's channel to invoke c every period. c may be a func(), a
// func(callback.Void), a functor whose pointer implements Callback, or a
// pointer to one. It is stored in the Timer, not on the heap. Functors follow
// the layout rule of callback.Make.
//
// A channel can be armed once. Arm returns errcode.InvalidChannel,
// errcode.InvalidPeriod, errcode.ChannelArmed or a callback registration
// error, and touches no hardware when it fails.
func Arm[T any](t *Timer, c T, period time.Duration) error {
	ch := t.ch
	if ch < 0 || ch >= NumChannels {
		return errcode.InvalidChannel
	}
	reload, ok := timex.Reload(period, ClockHz)
	if !ok {
		return errcode.InvalidPeriod
	}
	if armed[ch] != nil {
		return errcode.ChannelArmed
	}
	cb, err := callback.Make(t.pool(), timerSlot, c)
	if err != nil {
		return err
	}
	setup()
	start(ch, cb, reload)
	return nil
}
