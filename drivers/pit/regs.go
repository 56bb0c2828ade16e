package pit

// Register is the 32-bit register surface the driver needs. TinyGo's
// *volatile.Register32 satisfies it on MCU builds.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
}

// Register bits (i.MX RT1060 reference manual, chapters 14 and 53).
const (
	// CCM_CCGR1 CG6: PIT clock gate, on in all modes.
	ccgr1PITOn uint32 = 0x3 << 12

	// PIT_MCR
	mcrFRZ  uint32 = 1 << 0 // timers stop in debug mode
	mcrMDIS uint32 = 1 << 1 // module disable

	// PIT_TCTRLn
	tctrlTEN uint32 = 1 << 0 // timer enable
	tctrlTIE uint32 = 1 << 1 // timer interrupt enable

	// PIT_TFLGn, write one to clear
	tflgTIF uint32 = 1 << 0
)

type channelRegs struct {
	LDVAL Register // reload value
	CVAL  Register // current countdown value
	TCTRL Register
	TFLG  Register
}

// hardware is the register view of the PIT module and its clock gate.
type hardware struct {
	CCGR1 Register
	MCR   Register
	Ch    [NumChannels]channelRegs
}
