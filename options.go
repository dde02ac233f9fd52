package bridge

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joeshaw/envdecode"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// config holds resolved adapter settings.
type config struct {
	base          string
	bodySizeLimit int64
	logger        *slog.Logger
	noDrainWait   bool
	writeLimiter  *rate.Limiter
}

// Option configures the inbound and outbound adapters.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{logger: discardLogger}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithBase sets the URL prefix used to absolutize reconstructed request
// paths (e.g. "https://example.com"). A trailing slash is ignored.
func WithBase(base string) Option {
	return func(c *config) {
		c.base = base
	}
}

// WithBodySizeLimit caps the request body size in bytes. Zero means no cap
// beyond the declared content length.
func WithBodySizeLimit(n int64) Option {
	return func(c *config) {
		c.bodySizeLimit = n
	}
}

// WithLogger sets the logger used by the adapters. Defaults to a logger
// that discards all records.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithoutDrainWait disables waiting for the sink's drain notification after
// a blocked write. For deployment targets whose transport never signals
// drain; trades bounded buffering for forward progress.
func WithoutDrainWait() Option {
	return func(c *config) {
		c.noDrainWait = true
	}
}

// WithWriteLimiter paces outbound body writes against a byte-rate limiter.
func WithWriteLimiter(l *rate.Limiter) Option {
	return func(c *config) {
		c.writeLimiter = l
	}
}

// Config is the externally-loadable bridge configuration. Fields map to
// environment variables via env tags and to YAML keys via yaml tags.
type Config struct {
	// Base is the URL prefix for reconstructed request URLs.
	Base string `env:"BRIDGE_BASE,default=http://localhost" yaml:"base"`

	// BodySizeLimit caps request body size in bytes. Zero disables the cap.
	BodySizeLimit int64 `env:"BRIDGE_BODY_SIZE_LIMIT,default=0" yaml:"body_size_limit"`

	// NoDrainWait marks deployments whose response transport does not
	// signal drain.
	NoDrainWait bool `env:"BRIDGE_NO_DRAIN_WAIT,default=false" yaml:"no_drain_wait"`

	// WriteRate paces outbound body writes, in bytes per second. Zero
	// disables pacing.
	WriteRate float64 `env:"BRIDGE_WRITE_RATE,default=0" yaml:"write_rate"`

	// WriteBurst is the pacing burst size in bytes. Zero defaults to one
	// second's worth of WriteRate.
	WriteBurst int `env:"BRIDGE_WRITE_BURST,default=0" yaml:"write_burst"`
}

// ConfigFromEnv loads Config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Options expands the Config into adapter options.
func (c Config) Options() []Option {
	opts := []Option{WithBase(c.Base)}
	if c.BodySizeLimit > 0 {
		opts = append(opts, WithBodySizeLimit(c.BodySizeLimit))
	}
	if c.NoDrainWait {
		opts = append(opts, WithoutDrainWait())
	}
	if c.WriteRate > 0 {
		burst := c.WriteBurst
		if burst <= 0 {
			burst = int(c.WriteRate)
		}
		opts = append(opts, WithWriteLimiter(rate.NewLimiter(rate.Limit(c.WriteRate), burst)))
	}
	return opts
}
