//go:build mimxrt1062 && !pit_sharedirq

package pit

import "runtime/interrupt"

// installVector binds the driver to the PIT IRQ and enables it in the NVIC.
func installVector() {
	intr := interrupt.New(irqPIT, handleInterrupt)
	intr.Enable()
}

func handleInterrupt(interrupt.Interrupt) { serviceChannels() }
