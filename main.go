//go:build mimxrt1062

// Blink the Teensy 4.x LED from a PIT channel 0 interrupt.
package main

import (
	"machine"
	"sync/atomic"
	"time"

	"cbhelper-go/drivers/pit"
)

const (
	period        = 500 * time.Microsecond
	ticksPerBlink = 1000
)

var timer = pit.New(0)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	var ticks atomic.Uint32
	err := timer.Begin(func() {
		if ticks.Add(1)%ticksPerBlink == 0 {
			led.Set(!led.Get())
		}
	}, period)
	if err != nil {
		println("Error: pit begin:", err.Error())
		return
	}

	for {
		time.Sleep(time.Second)
		println("Info:", ticks.Load(), "ticks")
	}
}
