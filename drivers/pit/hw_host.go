//go:build !mimxrt1062

package pit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"cbhelper-go/x/timex"
)

// maxRefire bounds how often Sim re-enters the vector for one expiry whose
// flag the handler failed to clear.
const maxRefire = 8

// simReg models one 32-bit peripheral register. Writes to a write-one-to-
// clear register clear the bits written as one. SetBits and ClearBits are
// read-modify-write, as with volatile.Register32.
type simReg struct {
	v      atomic.Uint32
	w1c    bool
	writes atomic.Uint32
}

func (r *simReg) Get() uint32 { return r.v.Load() }

func (r *simReg) Set(value uint32) {
	r.writes.Add(1)
	if !r.w1c {
		r.v.Store(value)
		return
	}
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old&^value) {
			return
		}
	}
}

func (r *simReg) SetBits(value uint32)      { r.Set(r.Get() | value) }
func (r *simReg) ClearBits(value uint32)    { r.Set(r.Get() &^ value) }
func (r *simReg) HasBits(value uint32) bool { return r.Get()&value != 0 }

// raise sets bits from the hardware side.
func (r *simReg) raise(value uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old|value) {
			return
		}
	}
}

type simChannel struct {
	LDVAL, CVAL, TCTRL, TFLG simReg

	running   bool
	remaining uint64 // cycles to the next expiry
}

// Sim is the host stand-in for the PIT module, its clock gate, the NVIC
// line and the CPU taking the interrupt. Expiries run the installed vector
// synchronously on the goroutine calling Tick or Advance.
type Sim struct {
	mu sync.Mutex // serialises Tick and Advance

	CCGR1 simReg
	MCR   simReg
	ch    [NumChannels]simChannel

	vector  func()
	nvic    bool
	setups  int
	refires int

	barriers atomic.Uint32
	pending  *queue.Queue // expiries awaiting delivery, in time order
}

func newSim() *Sim {
	s := &Sim{pending: queue.New()}
	s.MCR.v.Store(mcrMDIS) // module disabled out of reset
	for i := range s.ch {
		s.ch[i].TFLG.w1c = true
	}
	return s
}

var sim = newSim()

var hw = sim.hardware()

// Hardware returns the simulated PIT used by this build.
func Hardware() *Sim { return sim }

func (s *Sim) hardware() hardware {
	h := hardware{CCGR1: &s.CCGR1, MCR: &s.MCR}
	for i := range s.ch {
		c := &s.ch[i]
		h.Ch[i] = channelRegs{LDVAL: &c.LDVAL, CVAL: &c.CVAL, TCTRL: &c.TCTRL, TFLG: &c.TFLG}
	}
	return h
}

func installVector() {
	sim.vector = serviceChannels
	sim.nvic = true
	sim.setups++
}

func dataBarrier() { sim.barriers.Add(1) }

// reset returns the simulated hardware to its power-on state.
func (s *Sim) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CCGR1.v.Store(0)
	s.CCGR1.writes.Store(0)
	s.MCR.v.Store(mcrMDIS)
	s.MCR.writes.Store(0)
	for i := range s.ch {
		c := &s.ch[i]
		for _, r := range []*simReg{&c.LDVAL, &c.CVAL, &c.TCTRL, &c.TFLG} {
			r.v.Store(0)
			r.writes.Store(0)
		}
		c.running = false
		c.remaining = 0
	}
	s.vector = nil
	s.nvic = false
	s.setups = 0
	s.refires = 0
	s.barriers.Store(0)
	for s.pending.Length() > 0 {
		s.pending.Remove()
	}
}

func (s *Sim) powered() bool {
	return s.CCGR1.HasBits(ccgr1PITOn) && !s.MCR.HasBits(mcrMDIS)
}

func (s *Sim) counting(c *simChannel) bool {
	return s.powered() && c.TCTRL.HasBits(tctrlTEN)
}

// Tick makes channel ch expire now. It reports whether the interrupt
// vector ran.
func (s *Sim) Tick(ch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expire(ch)
}

// Advance lets simulated time pass. Every expiry of every counting channel
// inside d is delivered in time order. It returns the number of expiries
// that ran the vector.
func (s *Sim) Advance(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycles, ok := timex.Cycles(d, ClockHz)
	if !ok {
		return 0
	}
	for i := range s.ch {
		c := &s.ch[i]
		switch {
		case !s.counting(c):
			c.running = false
		case !c.running:
			c.running = true
			c.remaining = uint64(c.LDVAL.Get()) + 1
		}
	}

	for {
		next := -1
		var at uint64
		for i := range s.ch {
			c := &s.ch[i]
			if c.running && c.remaining <= cycles && (next < 0 || c.remaining < at) {
				next, at = i, c.remaining
			}
		}
		if next < 0 {
			break
		}
		s.pending.Add(next)
		s.ch[next].remaining += uint64(s.ch[next].LDVAL.Get()) + 1
	}
	for i := range s.ch {
		c := &s.ch[i]
		if c.running {
			c.remaining -= cycles
			c.CVAL.v.Store(uint32(c.remaining - 1))
		}
	}

	n := 0
	for s.pending.Length() > 0 {
		if s.expire(s.pending.Remove().(int)) {
			n++
		}
	}
	return n
}

func (s *Sim) expire(ch int) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	c := &s.ch[ch]
	if !s.counting(c) {
		return false
	}
	c.CVAL.v.Store(c.LDVAL.Get())
	c.TFLG.raise(tflgTIF)

	ran := false
	for i := 0; i < maxRefire && s.irqLive(c); i++ {
		if i > 0 {
			s.refires++
		}
		s.vector()
		ran = true
	}
	return ran
}

func (s *Sim) irqLive(c *simChannel) bool {
	return s.nvic && s.vector != nil && c.TCTRL.HasBits(tctrlTIE) && c.TFLG.HasBits(tflgTIF)
}

// Pending reports the TIF flag of channel ch.
func (s *Sim) Pending(ch int) bool { return s.ch[ch].TFLG.HasBits(tflgTIF) }

// Reload returns the LDVAL register of channel ch.
func (s *Sim) Reload(ch int) uint32 { return s.ch[ch].LDVAL.Get() }

// Control returns the TCTRL register of channel ch.
func (s *Sim) Control(ch int) uint32 { return s.ch[ch].TCTRL.Get() }

// Enabled reports whether channel ch counts and raises interrupts.
func (s *Sim) Enabled(ch int) bool {
	return s.ch[ch].TCTRL.Get()&(tctrlTEN|tctrlTIE) == tctrlTEN|tctrlTIE
}

// Powered reports whether the PIT clock is gated on and the module enabled.
func (s *Sim) Powered() bool { return s.powered() }

// SetupCount reports how many times the one-time setup installed the vector.
func (s *Sim) SetupCount() int { return s.setups }

// ModuleWrites reports the number of writes to the clock gate and MCR.
func (s *Sim) ModuleWrites() (ccgr1, mcr uint32) {
	return s.CCGR1.writes.Load(), s.MCR.writes.Load()
}

// Barriers reports how many data barriers the handler issued.
func (s *Sim) Barriers() int { return int(s.barriers.Load()) }

// Refires reports vector re-entries caused by a flag left set.
func (s *Sim) Refires() int { return s.refires }
