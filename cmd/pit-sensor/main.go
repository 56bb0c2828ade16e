//go:build mimxrt1062

// Command pit-sensor samples an SHTC3 on every heartbeat derived from PIT
// interrupts (Teensy 4.x, SHTC3 on I2C0).
package main

import (
	"context"
	"machine"
	"time"

	"tinygo.org/x/drivers/shtc3"

	"cbhelper-go/bus"
	"cbhelper-go/drivers/pit"
	"cbhelper-go/services/config"
	"cbhelper-go/services/heartbeat"
)

const device = "teensy41"

// The timer holds the heartbeat notifier; it lives for the whole program.
var timer pit.Timer

func main() {
	time.Sleep(2 * time.Second)
	println("boot")

	ctx := context.Background()
	b := bus.NewBus(8)
	conn := b.NewConnection("main")

	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, device)
	if err := <-config.NewConfigService().Start(cfgCtx, conn); err != nil {
		return
	}
	cfg, err := config.Load(device)
	if err != nil {
		println("Error: config:", err.Error())
		return
	}
	pitCfg, err := config.DecodePIT(cfg[config.KeyPIT])
	if err != nil {
		println("Error: pit config:", err.Error())
		return
	}
	hbCfg, err := config.DecodeHeartbeat(cfg[config.KeyHeartbeat])
	if err != nil {
		println("Error: heartbeat config:", err.Error())
		return
	}

	hb := heartbeat.New(hbCfg.Every, 64)
	beats := conn.Subscribe(heartbeat.TopicBeat)
	_ = hb.Start(ctx, conn)

	timer = pit.New(pitCfg.Channel)
	if err := pit.Arm(&timer, hb.Notifier(), pitCfg.Period); err != nil {
		println("Error: pit arm:", err.Error())
		return
	}
	println("Info: pit channel", pitCfg.Channel, "armed, beat every", hbCfg.Every, "ticks")

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		println("Error: i2c0:", err.Error())
		return
	}
	sensor := shtc3.New(i2c)

	for m := range beats.Channel() {
		beat, ok := m.Payload.(heartbeat.Beat)
		if !ok {
			continue
		}
		_ = sensor.WakeUp()
		tmc, rhx100, err := sensor.ReadTemperatureHumidity()
		_ = sensor.Sleep()
		if err != nil {
			println("Error: shtc3:", err.Error())
			continue
		}
		println("Info: beat", beat.Seq, "temp_mC", tmc, "rh_x100", rhx100, "drops", beat.Drops)
	}
}
