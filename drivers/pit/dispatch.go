package pit

import "cbhelper-go/callback"

// Process-wide interrupt state. The PIT vector is a bare function with no
// context argument, so the handler finds its callbacks here. Each entry is
// written once by Arm, before that channel's interrupt is enabled, and is
// only read by the handler afterwards.
var (
	armed       [NumChannels]Callback
	initialized bool
)

// Armed reports whether a callback is bound to channel ch.
func Armed(ch int) bool {
	return ch >= 0 && ch < NumChannels && armed[ch] != nil
}

// setup runs the module-wide hardware bring-up exactly once: clock gate,
// module enable, vector installation and NVIC enable.
func setup() {
	if initialized {
		return
	}
	hw.CCGR1.SetBits(ccgr1PITOn)
	hw.MCR.Set(mcrFRZ)
	installVector()
	initialized = true
}

// start publishes cb for channel ch and then lets the channel count and
// interrupt.
func start(ch int, cb Callback, reload uint32) {
	armed[ch] = cb
	c := &hw.Ch[ch]
	c.LDVAL.Set(reload)
	c.TCTRL.Set(tctrlTEN | tctrlTIE)
}

// HandleInterrupt services every pending channel. Builds tagged
// pit_sharedirq call it from whichever handler owns the PIT IRQ; channels
// with no callback armed here are left to that handler.
func HandleInterrupt() { serviceChannels() }

// serviceChannels is the body of the PIT interrupt handler. Each pending
// flag is cleared before its callback runs; the trailing barrier makes sure
// the clears have reached the peripheral before the handler returns,
// otherwise the same expiry is taken twice.
func serviceChannels() {
	for ch := range hw.Ch {
		c := &hw.Ch[ch]
		cb := armed[ch]
		if cb == nil || !c.TFLG.HasBits(tflgTIF) {
			continue
		}
		c.TFLG.Set(tflgTIF)
		cb.Invoke(callback.Void{})
	}
	dataBarrier()
}
