package config

import (
	"context"
	"encoding/json"
	"time"

	"cbhelper-go/bus"
	"cbhelper-go/errcode"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID

	KeyPIT       = "pit"
	KeyHeartbeat = "heartbeat"

	opDecodePIT       = "config.DecodePIT"
	opDecodeHeartbeat = "config.DecodeHeartbeat"
)

// Defaults applied when a section or field is absent.
const (
	DefaultChannel = 0
	DefaultPeriod  = 500 * time.Microsecond
	DefaultEvery   = 2000
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Topic returns the retained topic carrying a config section.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

// Load returns the decoded embedded config of a device.
func Load(device string) (map[string]any, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errcode.New(errcode.UnknownDevice, "config.Load", device)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errcode.Wrap(errcode.InvalidPayload, "config.Load", err)
	}
	if m == nil {
		return nil, errcode.New(errcode.InvalidPayload, "config.Load", "not a JSON object")
	}
	return m, nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errcode.New(errcode.InvalidParams, "config.Start", "missing device ID in context")
	}
	m, err := Load(device)
	if err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(Topic(k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine. Failures are reported
// on the returned channel, which is closed when publishing is done.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := s.publishConfig(ctx, conn); err != nil {
			println("Error:", s.Name, err.Error())
			done <- err
		}
	}()
	return done
}

// -----------------------------------------------------------------------------
// Typed sections
// -----------------------------------------------------------------------------

// PIT selects the timer channel and its period.
type PIT struct {
	Channel int
	Period  time.Duration
}

// Heartbeat sets how many timer ticks make one heartbeat.
type Heartbeat struct {
	Every uint32
}

// DecodePIT converts a "pit" payload. A nil payload yields the defaults.
func DecodePIT(payload any) (PIT, error) {
	p := PIT{Channel: DefaultChannel, Period: DefaultPeriod}
	if payload == nil {
		return p, nil
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return p, errcode.New(errcode.InvalidParams, opDecodePIT, "not an object")
	}
	if v, ok := m["channel"]; ok {
		n, ok := wholeNumber(v)
		if !ok || n < 0 {
			return p, errcode.New(errcode.InvalidParams, opDecodePIT, "channel")
		}
		p.Channel = int(n)
	}
	if v, ok := m["period_us"]; ok {
		n, ok := wholeNumber(v)
		if !ok || n <= 0 {
			return p, errcode.New(errcode.InvalidParams, opDecodePIT, "period_us")
		}
		p.Period = time.Duration(n) * time.Microsecond
	}
	return p, nil
}

// DecodeHeartbeat converts a "heartbeat" payload. A nil payload yields the
// defaults.
func DecodeHeartbeat(payload any) (Heartbeat, error) {
	h := Heartbeat{Every: DefaultEvery}
	if payload == nil {
		return h, nil
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return h, errcode.New(errcode.InvalidParams, opDecodeHeartbeat, "not an object")
	}
	if v, ok := m["every"]; ok {
		n, ok := wholeNumber(v)
		if !ok || n <= 0 || n > 1<<32-1 {
			return h, errcode.New(errcode.InvalidParams, opDecodeHeartbeat, "every")
		}
		h.Every = uint32(n)
	}
	return h, nil
}

// wholeNumber accepts JSON numbers (float64) and Go integers.
func wholeNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
