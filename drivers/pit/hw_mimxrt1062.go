//go:build mimxrt1062

package pit

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

const (
	pitBase   = 0x40084000
	ccgr1Addr = 0x400FC06C
	irqPIT    = 122
)

type pitChannel struct {
	LDVAL volatile.Register32
	CVAL  volatile.Register32
	TCTRL volatile.Register32
	TFLG  volatile.Register32
}

// pitBlock is the PIT register map.
type pitBlock struct {
	MCR     volatile.Register32 // 0x000
	_       [0xDC]byte
	LTMR64H volatile.Register32 // 0x0E0
	LTMR64L volatile.Register32 // 0x0E4
	_       [0x18]byte
	TIMER   [NumChannels]pitChannel // 0x100
}

var (
	pitRegs = (*pitBlock)(unsafe.Pointer(uintptr(pitBase)))
	ccgr1   = (*volatile.Register32)(unsafe.Pointer(uintptr(ccgr1Addr)))
)

var hw = hardware{
	CCGR1: ccgr1,
	MCR:   &pitRegs.MCR,
	Ch: [NumChannels]channelRegs{
		bindChannel(&pitRegs.TIMER[0]),
		bindChannel(&pitRegs.TIMER[1]),
		bindChannel(&pitRegs.TIMER[2]),
		bindChannel(&pitRegs.TIMER[3]),
	},
}

func bindChannel(c *pitChannel) channelRegs {
	return channelRegs{LDVAL: &c.LDVAL, CVAL: &c.CVAL, TCTRL: &c.TCTRL, TFLG: &c.TFLG}
}

func dataBarrier() { arm.Asm("dsb") }
