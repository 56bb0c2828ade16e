package timex

import (
	"math/bits"
	"time"
)

// PeriodFromHz returns the period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) time.Duration {
	if freqHz == 0 {
		freqHz = 1
	}
	return time.Duration(uint64(time.Second) / uint64(freqHz))
}

// Cycles converts d into whole cycles of a clockHz clock, rounding down.
// ok is false for negative durations or when the result overflows uint64.
func Cycles(d time.Duration, clockHz uint32) (n uint64, ok bool) {
	if d < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(d), uint64(clockHz))
	if hi >= uint64(time.Second) {
		return 0, false
	}
	n, _ = bits.Div64(hi, lo, uint64(time.Second))
	return n, true
}

// Reload returns the countdown reload value for a timer that expires every
// period on a clockHz clock. A down-counter loaded with N expires after N+1
// cycles, so the result is cycles-1. ok is false when period is shorter than
// one cycle or longer than 2^32 cycles.
func Reload(period time.Duration, clockHz uint32) (reload uint32, ok bool) {
	n, ok := Cycles(period, clockHz)
	if !ok || n == 0 || n > 1<<32 {
		return 0, false
	}
	return uint32(n - 1), true
}

// Duration converts a cycle count back into time on a clockHz clock.
func Duration(cycles uint64, clockHz uint32) time.Duration {
	if clockHz == 0 {
		return 0
	}
	hi, lo := bits.Mul64(cycles, uint64(time.Second))
	if hi >= uint64(clockHz) {
		return time.Duration(1<<63 - 1)
	}
	q, _ := bits.Div64(hi, lo, uint64(clockHz))
	if q > 1<<63-1 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(q)
}
