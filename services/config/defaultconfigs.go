package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgTeensy41 = `{
  "pit": {
      "channel": 0,
      "period_us": 500
  },
  "heartbeat": {
      "every": 2000
  }
}`

const cfgSim = `{
  "pit": {
      "channel": 0,
      "period_us": 1000
  },
  "heartbeat": {
      "every": 250
  }
}`

var embeddedConfigs = map[string][]byte{
	"teensy41": []byte(cfgTeensy41),
	"sim":      []byte(cfgSim),
}
