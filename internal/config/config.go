package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Barresider/FlareSolverr/internal/model"
	"github.com/Barresider/FlareSolverr/internal/port"
)

// Defaults applied before any file or environment override.
const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 8191
	DefaultLogLevel   = "info"
	DefaultCDPPortMin = 41000
	DefaultCDPPortMax = 41100
)

// Config is the fully resolved service configuration.
type Config struct {
	// Host is the address the HTTP API binds to.
	Host string

	// Port is the TCP port the HTTP API listens on.
	Port int

	// LogLevel is the zerolog level name (trace, debug, info, warn, error).
	LogLevel string

	// Headless runs browsers without a visible window. On by default;
	// turning it off is only useful for local debugging of the process
	// driver.
	Headless bool

	// CDPRange is the inclusive debug-port range sessions draw from.
	CDPRange port.Range

	// BrowserPath overrides browser executable auto-detection for the
	// process driver.
	BrowserPath string

	// Driver selects how browsers are run: a host process or a container
	// per session.
	Driver model.Driver

	// BrowserImage is the container image used by the docker driver.
	BrowserImage string

	// SessionTTL recreates sessions older than this on access. Zero
	// disables lifetime-based recreation.
	SessionTTL time.Duration
}

// fileConfig mirrors Config with optional fields so a config file can
// override any subset of settings. JSON tags cover .json/.jsonc files,
// YAML tags cover .yaml/.yml.
type fileConfig struct {
	Host              *string `json:"host,omitempty" yaml:"host,omitempty"`
	Port              *int    `json:"port,omitempty" yaml:"port,omitempty"`
	LogLevel          *string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Headless          *bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
	CDPPortMin        *int    `json:"cdpPortMin,omitempty" yaml:"cdpPortMin,omitempty"`
	CDPPortMax        *int    `json:"cdpPortMax,omitempty" yaml:"cdpPortMax,omitempty"`
	BrowserPath       *string `json:"browserPath,omitempty" yaml:"browserPath,omitempty"`
	Driver            *string `json:"driver,omitempty" yaml:"driver,omitempty"`
	BrowserImage      *string `json:"browserImage,omitempty" yaml:"browserImage,omitempty"`
	SessionTTLMinutes *int    `json:"sessionTtlMinutes,omitempty" yaml:"sessionTtlMinutes,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		Headless: true,
		CDPRange: port.Range{Lower: DefaultCDPPortMin, Upper: DefaultCDPPortMax},
		Driver:   model.DriverProcess,
	}
}

// Load resolves the configuration: defaults, then the config file at path
// (skipped when path is empty), then environment variables. The result is
// validated before being returned; validation failures are CLIErrors with
// ExitConfigError.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyFile overlays settings from a JSONC or YAML config file.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("failed to parse config file %s", path),
				err,
			)
		}
	default:
		// Strip JSONC comments (// and /* */) and trailing commas before
		// parsing, so hand-maintained config files can carry comments.
		if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
			return model.WrapCLIError(
				model.ExitConfigError,
				fmt.Sprintf("failed to parse config file %s", path),
				err,
			)
		}
	}

	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.Headless != nil {
		cfg.Headless = *fc.Headless
	}
	if fc.CDPPortMin != nil {
		cfg.CDPRange.Lower = *fc.CDPPortMin
	}
	if fc.CDPPortMax != nil {
		cfg.CDPRange.Upper = *fc.CDPPortMax
	}
	if fc.BrowserPath != nil {
		cfg.BrowserPath = *fc.BrowserPath
	}
	if fc.Driver != nil {
		d, err := model.ParseDriver(*fc.Driver)
		if err != nil {
			return model.WrapCLIError(model.ExitConfigError, "invalid driver in config file", err)
		}
		cfg.Driver = d
	}
	if fc.BrowserImage != nil {
		cfg.BrowserImage = *fc.BrowserImage
	}
	if fc.SessionTTLMinutes != nil {
		cfg.SessionTTL = time.Duration(*fc.SessionTTLMinutes) * time.Minute
	}

	return nil
}

// applyEnv overlays settings from environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("BROWSER_PATH"); v != "" {
		cfg.BrowserPath = v
	}
	if v := os.Getenv("BROWSER_IMAGE"); v != "" {
		cfg.BrowserImage = v
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := envInt("PORT", v)
		if err != nil {
			return err
		}
		cfg.Port = p
	}

	if v := os.Getenv("HEADLESS"); v != "" {
		b, err := envBool("HEADLESS", v)
		if err != nil {
			return err
		}
		cfg.Headless = b
	}

	if v := os.Getenv("DOCKER_MODE"); v != "" {
		b, err := envBool("DOCKER_MODE", v)
		if err != nil {
			return err
		}
		if b {
			cfg.Driver = model.DriverDocker
		} else {
			cfg.Driver = model.DriverProcess
		}
	}

	if v := os.Getenv("CDP_PORT_MIN"); v != "" {
		p, err := envInt("CDP_PORT_MIN", v)
		if err != nil {
			return err
		}
		cfg.CDPRange.Lower = p
	}
	if v := os.Getenv("CDP_PORT_MAX"); v != "" {
		p, err := envInt("CDP_PORT_MAX", v)
		if err != nil {
			return err
		}
		cfg.CDPRange.Upper = p
	}

	// Legacy single-port pin: CDP_PORT=n collapses the range to [n, n],
	// so exactly one session can run at a time on that fixed port. Takes
	// precedence over CDP_PORT_MIN/CDP_PORT_MAX.
	if v := os.Getenv("CDP_PORT"); v != "" {
		p, err := envInt("CDP_PORT", v)
		if err != nil {
			return err
		}
		cfg.CDPRange = port.Range{Lower: p, Upper: p}
	}

	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		m, err := envInt("SESSION_TTL_MINUTES", v)
		if err != nil {
			return err
		}
		cfg.SessionTTL = time.Duration(m) * time.Minute
	}

	return nil
}

// Validate checks the resolved configuration for internal consistency.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return model.NewCLIError(
			model.ExitConfigError,
			fmt.Sprintf("listen port out of range: %d", c.Port),
		)
	}

	if err := c.CDPRange.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid debug-port range", err)
	}

	if !c.Driver.IsValid() {
		return model.NewCLIError(
			model.ExitConfigError,
			fmt.Sprintf("unknown browser driver: %s", c.Driver),
		)
	}

	if c.SessionTTL < 0 {
		return model.NewCLIError(model.ExitConfigError, "session ttl must not be negative")
	}

	return nil
}

func envInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("%s must be an integer, got %q", name, value),
			err,
		)
	}
	return n, nil
}

func envBool(name, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, model.WrapCLIError(
			model.ExitConfigError,
			fmt.Sprintf("%s must be a boolean, got %q", name, value),
			err,
		)
	}
	return b, nil
}
