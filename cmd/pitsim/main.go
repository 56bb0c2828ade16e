//go:build unix && !mimxrt1062

// Command pitsim runs the PIT driver, the heartbeat service and the config
// service against the simulated timer on the host.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"cbhelper-go/bus"
	"cbhelper-go/callback"
	"cbhelper-go/drivers/pit"
	"cbhelper-go/errcode"
	"cbhelper-go/services/config"
	"cbhelper-go/services/heartbeat"
	"cbhelper-go/x/timex"
)

// ---------- Configuration ----------

const (
	simStep      = 10 * time.Millisecond // simulated time per Advance
	beatQueueLen = 256
	busQueueLen  = 32
)

type options struct {
	device   string
	period   time.Duration
	hz       uint
	every    uint
	duration time.Duration
	speed    float64
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("pitsim", flag.ContinueOnError)
	fs.StringVar(&o.device, "device", "sim", "embedded config to load")
	fs.DurationVar(&o.period, "period", 0, "timer period, overrides config")
	fs.UintVar(&o.hz, "hz", 0, "timer frequency, overrides config and -period")
	fs.UintVar(&o.every, "every", 0, "ticks per heartbeat, overrides config")
	fs.DurationVar(&o.duration, "duration", 2*time.Second, "simulated time to run")
	fs.Float64Var(&o.speed, "speed", 1, "simulated seconds per wall second, 0 for as fast as possible")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.hz > 1<<32-1 {
		return o, errors.Errorf("-hz %d out of range", o.hz)
	}
	return o, nil
}

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal("flags", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := run(ctx, log, opts); err != nil {
		log.Fatal("pitsim failed", zap.String("code", string(errcode.Of(err))), zap.Error(err))
	}
}

func run(ctx context.Context, log *zap.Logger, o options) error {
	b := bus.NewBus(busQueueLen)
	conn := b.NewConnection("pitsim")

	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, o.device)
	if err := <-config.NewConfigService().Start(cfgCtx, conn); err != nil {
		return errors.Wrap(err, "publish config")
	}
	cfg, err := config.Load(o.device)
	if err != nil {
		return errors.Wrapf(err, "load config %q", o.device)
	}
	pitCfg, err := config.DecodePIT(cfg[config.KeyPIT])
	if err != nil {
		return errors.Wrap(err, "decode pit config")
	}
	hbCfg, err := config.DecodeHeartbeat(cfg[config.KeyHeartbeat])
	if err != nil {
		return errors.Wrap(err, "decode heartbeat config")
	}

	switch {
	case o.hz > 0:
		pitCfg.Period = timex.PeriodFromHz(uint32(o.hz))
	case o.period > 0:
		pitCfg.Period = o.period
	}
	if o.every > 0 {
		conn.Publish(conn.NewMessage(config.Topic(config.KeyHeartbeat), map[string]any{"every": float64(o.every)}, true))
		hbCfg.Every = uint32(o.every)
	}

	hb := heartbeat.New(hbCfg.Every, beatQueueLen)
	beats := conn.Subscribe(heartbeat.TopicBeat)
	if err := hb.Start(ctx, conn); err != nil {
		return errors.Wrap(err, "start heartbeat")
	}

	tm := pit.New(pitCfg.Channel)
	if err := pit.Arm(&tm, hb.Notifier(), pitCfg.Period); err != nil {
		return errors.Wrapf(err, "arm channel %d", pitCfg.Channel)
	}

	// A plain function on a neighbouring channel counts raw ticks.
	var raw uint64
	aux := pit.New((pitCfg.Channel + 1) % pit.NumChannels)
	countRaw := callback.Func[callback.Void](func(callback.Void) { raw++ })
	if err := pit.Arm(&aux, countRaw, pitCfg.Period); err != nil {
		return errors.Wrapf(err, "arm channel %d", aux.Channel())
	}

	log.Info("armed",
		zap.String("device", o.device),
		zap.Int("channel", tm.Channel()),
		zap.Int("aux_channel", aux.Channel()),
		zap.Duration("period", pitCfg.Period),
		zap.Uint32("every", hbCfg.Every),
		zap.Duration("duration", o.duration),
	)

	go func() {
		for m := range beats.Channel() {
			if beat, ok := m.Payload.(heartbeat.Beat); ok {
				log.Info("heartbeat",
					zap.Uint32("seq", beat.Seq),
					zap.Uint64("ticks", beat.Ticks),
					zap.Uint32("drops", beat.Drops),
				)
			}
		}
	}()

	sim := pit.Hardware()
	var expiries int
	for elapsed := time.Duration(0); elapsed < o.duration; elapsed += simStep {
		expiries += sim.Advance(simStep)
		if o.speed <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			log.Warn("interrupted", zap.Duration("simulated", elapsed))
			return nil
		case <-time.After(time.Duration(float64(simStep) / o.speed)):
		}
	}

	// Give the service loop a moment to drain queued ticks.
	time.Sleep(50 * time.Millisecond)

	log.Info("done",
		zap.Int("expiries", expiries),
		zap.Uint64("aux_ticks", raw),
		zap.Uint32("drops", hb.Drops()),
		zap.Int("barriers", sim.Barriers()),
		zap.Int("refires", sim.Refires()),
	)
	return nil
}
