//go:build mimxrt1062 && pit_sharedirq

package pit

// With pit_sharedirq the PIT IRQ belongs to another handler, for example a
// runtime that keeps its own PIT channel. That handler enables the line and
// calls HandleInterrupt; the driver only programs its channels.
func installVector() {}
