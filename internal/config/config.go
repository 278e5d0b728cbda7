// Package config loads the group controller configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall daemon configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Spaces    SpacesConfig    `yaml:"spaces"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Loop      LoopConfig      `yaml:"loop"`
	Transport TransportConfig `yaml:"transport"`
	HTTP      HTTPConfig      `yaml:"http"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

// NodeConfig identifies the node and its GPIO chip.
type NodeConfig struct {
	ID   string `yaml:"id" validate:"required,max=64,excludesall=/#+"`
	Chip string `yaml:"chip" validate:"required"`
}

// SpacesConfig holds the occupancy and reservation tunables.
type SpacesConfig struct {
	DistanceLimitCM int            `yaml:"distance_limit_cm" validate:"min=1,max=500"`
	MaxReservation  time.Duration  `yaml:"max_reservation" validate:"gt=0"`
	MinDetection    time.Duration  `yaml:"min_detection" validate:"gte=0"`
	EchoTimeout     time.Duration  `yaml:"echo_timeout" validate:"gt=0"`
	Sensors         []SensorConfig `yaml:"sensors" validate:"min=1,max=256,unique=Pin,dive"`
}

// SensorConfig is the wiring of one space's sensor. EchoPin is only set
// for 4-pin sensors with a separate echo line.
type SensorConfig struct {
	Pin     int  `yaml:"pin" validate:"gte=0"`
	EchoPin *int `yaml:"echo_pin,omitempty" validate:"omitempty,gte=0"`
}

// Echo returns the echo line, which is the trigger line for 3-pin sensors.
func (s SensorConfig) Echo() int {
	if s.EchoPin == nil {
		return s.Pin
	}
	return *s.EchoPin
}

// IndicatorConfig holds the lamp pins.
type IndicatorConfig struct {
	Enabled   bool `yaml:"enabled"`
	YellowPin int  `yaml:"yellow_pin" validate:"gte=0"`
	GreenPin  int  `yaml:"green_pin" validate:"gte=0,nefield=YellowPin"`
}

// LoopConfig holds the control loop timing.
type LoopConfig struct {
	Poll      time.Duration `yaml:"poll" validate:"gt=0"`
	Heartbeat time.Duration `yaml:"heartbeat" validate:"gte=0"`
}

// TransportConfig selects and tunes the link to the central unit.
type TransportConfig struct {
	Kind            string        `yaml:"kind" validate:"oneof=mqtt none"`
	Broker          string        `yaml:"broker" validate:"required_if=Kind mqtt"`
	ClientID        string        `yaml:"client_id"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" validate:"gt=0"`
	InboundBuffer   int           `yaml:"inbound_buffer" validate:"min=1"`
	Retry           RetryConfig   `yaml:"retry"`
}

// RetryConfig is the outbound retry policy. MaxAttempts 0 retries forever.
// A non-zero Backoff needs a MaxBackoff at least as large.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" validate:"gte=0"`
	Backoff       time.Duration `yaml:"backoff" validate:"gte=0"`
	MaxBackoff    time.Duration `yaml:"max_backoff" validate:"required_with=Backoff,gtefield=Backoff"`
	MinInterval   time.Duration `yaml:"min_interval" validate:"gte=0"`
	StallLogEvery int           `yaml:"stall_log_every" validate:"gte=0"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr      string        `yaml:"addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	RateLimit float64       `yaml:"rate_limit" validate:"gte=0"` // requests/s per client, 0 = off
}

// JournalConfig configures the event journal. An empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration of a 3-space node.
func Default() *Config {
	return &Config{
		Node: NodeConfig{ID: "gc-01", Chip: "gpiochip0"},
		Spaces: SpacesConfig{
			DistanceLimitCM: 20,
			MaxReservation:  60 * time.Second,
			MinDetection:    4 * time.Second,
			EchoTimeout:     30 * time.Millisecond,
			Sensors:         []SensorConfig{{Pin: 3}, {Pin: 4}, {Pin: 5}},
		},
		Indicator: IndicatorConfig{Enabled: true, YellowPin: 12, GreenPin: 13},
		Loop:      LoopConfig{Poll: 100 * time.Millisecond, Heartbeat: 15 * time.Minute},
		Transport: TransportConfig{
			Kind:            "mqtt",
			Broker:          "tcp://localhost:1883",
			DeliveryTimeout: 3 * time.Second,
			InboundBuffer:   64,
			Retry:           RetryConfig{StallLogEvery: 10},
		},
		HTTP: HTTPConfig{Addr: ":80", CacheTTL: time.Second, RateLimit: 20},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Environment overrides.
const (
	EnvNodeID   = "GC_NODE_ID"
	EnvBroker   = "GC_BROKER"
	EnvHTTPAddr = "GC_HTTP_ADDR"
	EnvLogLevel = "GC_LOG_LEVEL"
	EnvJournal  = "GC_JOURNAL"
)

// Load reads the configuration from path on top of the defaults. An empty
// path uses the defaults alone. A .env file in the working directory, if
// present, is loaded before environment overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvNodeID); ok {
		cfg.Node.ID = v
	}
	if v, ok := os.LookupEnv(EnvBroker); ok {
		cfg.Transport.Broker = v
	}
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvJournal); ok {
		cfg.Journal.Path = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field constraint and joins the failures into one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Pins returns the trigger pin of every space in index order.
func (c *Config) Pins() []int {
	pins := make([]int, len(c.Spaces.Sensors))
	for i, s := range c.Spaces.Sensors {
		pins[i] = s.Pin
	}
	return pins
}
