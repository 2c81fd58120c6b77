package connpool

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPGURL overrides the store URL from a config file when set.
const EnvPGURL = "CONNPOOL_PG_URL"

// fileConfig is the on-disk shape of a pool configuration file.
type fileConfig struct {
	Pool  poolFileConfig  `toml:"pool"`
	Store storeFileConfig `toml:"store"`
}

// duration lets config files write human-readable values like "250ms" or
// "2m"; go-toml decodes TOML strings through encoding.TextUnmarshaler but
// not into time.Duration directly.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = duration(parsed)
	return nil
}

type poolFileConfig struct {
	// MinSize is a pointer so an explicit min_size = 0 is distinguishable
	// from an unset field.
	MinSize             *int     `toml:"min_size"`
	MaxSize             int      `toml:"max_size"`
	AcquireTimeout      duration `toml:"acquire_timeout"`
	IdleTimeout         duration `toml:"idle_timeout"`
	HealthCheckInterval duration `toml:"health_check_interval"`
	ReapInterval        duration `toml:"reap_interval"`
}

type storeFileConfig struct {
	// URL is the PostgreSQL connection string the pool's Factory will dial.
	URL string `toml:"url"`

	// SingleConnection switches the pool into serverless mode.
	SingleConnection bool `toml:"single_connection"`
}

// LoadConfigFile reads a TOML configuration file and returns a Config with
// file values layered over DefaultConfig. When the file names a store URL (or
// the CONNPOOL_PG_URL environment variable is set), the returned config
// carries a PostgreSQL factory for it; otherwise the caller must set Factory
// before use.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if fc.Pool.MinSize != nil {
		cfg.MinSize = *fc.Pool.MinSize
	}
	if fc.Pool.MaxSize != 0 {
		cfg.MaxSize = fc.Pool.MaxSize
	}
	if fc.Pool.AcquireTimeout != 0 {
		cfg.AcquireTimeout = time.Duration(fc.Pool.AcquireTimeout)
	}
	if fc.Pool.IdleTimeout != 0 {
		cfg.IdleTimeout = time.Duration(fc.Pool.IdleTimeout)
	}
	if fc.Pool.HealthCheckInterval != 0 {
		cfg.HealthCheckInterval = time.Duration(fc.Pool.HealthCheckInterval)
	}
	if fc.Pool.ReapInterval != 0 {
		cfg.ReapInterval = time.Duration(fc.Pool.ReapInterval)
	}
	cfg.SingleConnection = fc.Store.SingleConnection

	url := fc.Store.URL
	if env := os.Getenv(EnvPGURL); env != "" {
		url = env
	}
	if url != "" {
		cfg.Factory = NewPGFactory(url)
	}

	return cfg, nil
}
