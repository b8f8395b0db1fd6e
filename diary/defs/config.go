package defs

import (
	"time"

	"go.uber.org/zap"
)

const DefaultDB = "glyko"

// Intervals.
const (
	DefaultWindow   = -3 * 24 * time.Hour
	ImportInterval  = 5 * time.Minute
	FetchInterval   = 1 * time.Minute
	TimeoutInterval = 2 * time.Second
)

type Config struct {
	Export     ExportConfig     `yaml:"export"`
	Nightscout NightscoutConfig `yaml:"nightscout"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Glucose    GlucoseConfig    `yaml:"glucose"`
	Server     ServerConfig     `yaml:"server"`
	Timezone   string           `yaml:"timezone"`
	Logger     *zap.Logger      `yaml:"_,omitempty"`
}

type ExportConfig struct {
	Path      string `yaml:"path"`
	CachePath string `yaml:"cachePath"`
}

type NightscoutConfig struct {
	URL       string `yaml:"url"`
	APISecret string `yaml:"apiSecret"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GlucoseConfig carries the target range boundaries in mmol/L. Policy
// selects the zone scheme, "three_zone" (default) or "two_zone".
type GlucoseConfig struct {
	Low    float64 `yaml:"low"`
	High   float64 `yaml:"high"`
	Policy string  `yaml:"policy"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}
