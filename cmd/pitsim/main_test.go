//go:build unix && !mimxrt1062

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cbhelper-go/drivers/pit"
	"cbhelper-go/errcode"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-device", "teensy41", "-period", "250us", "-every", "8", "-speed", "0"})
	require.NoError(t, err)
	assert.Equal(t, "teensy41", o.device)
	assert.Equal(t, 250*time.Microsecond, o.period)
	assert.Equal(t, uint(8), o.every)
	assert.Zero(t, o.speed)
	assert.Equal(t, 2*time.Second, o.duration)

	_, err = parseFlags([]string{"-hz", "99999999999"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestRunSimulation(t *testing.T) {
	o := options{device: "sim", hz: 2000, every: 100, duration: 100 * time.Millisecond}
	require.NoError(t, run(context.Background(), zap.NewNop(), o))

	sim := pit.Hardware()
	// 2 kHz on two channels for 100 ms.
	assert.Equal(t, 400, sim.Barriers())
	assert.Zero(t, sim.Refires())
	assert.True(t, pit.Armed(0))
	assert.True(t, pit.Armed(1))
}

func TestRunUnknownDevice(t *testing.T) {
	err := run(context.Background(), zap.NewNop(), options{device: "nope", duration: time.Millisecond})
	assert.Equal(t, errcode.UnknownDevice, errcode.Of(err))
	assert.Contains(t, err.Error(), "publish config")
}
