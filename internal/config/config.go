package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "10m" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProximityConfig holds the unlock/lock decision parameters.
type ProximityConfig struct {
	// ThresholdFeet is the distance at or inside which the door unlocks.
	ThresholdFeet float64 `yaml:"threshold_feet"`
	// HysteresisMarginFeet is added to the threshold before a distance
	// reading may lock the door again, preventing chatter at the boundary.
	HysteresisMarginFeet float64 `yaml:"hysteresis_margin_feet"`
	// MinDwell is how long a beacon must stay within the threshold before
	// the door unlocks. Debounces single-sample flicker.
	MinDwell Duration `yaml:"min_dwell"`
	// AutoUnlockTimeout is the sliding deadline after which an unlocked
	// door relocks even if no far reading ever arrives.
	AutoUnlockTimeout Duration `yaml:"auto_unlock_timeout"`
	// FailSafeMode forces the door locked whenever scanning is degraded
	// or the actuator misbehaves.
	FailSafeMode bool `yaml:"fail_safe_mode"`
}

// CalibrationConfig holds the path-loss model parameters. Values come from
// the calibrate subcommand run at a known distance.
type CalibrationConfig struct {
	RSSIAtCalibration int     `yaml:"rssi_at_calibration"`       // dBm at the calibration distance
	DistanceFeet      float64 `yaml:"calibration_distance_feet"` // 3.28 ft = 1 m
	PathLossExponent  float64 `yaml:"path_loss_exponent"`        // ~2.0 free space, up to ~4.0 indoors
}

// ScannerConfig holds BLE scanning parameters.
type ScannerConfig struct {
	// Adapter names the BLE radio. Only the platform default (hci0 on
	// Linux) is supported; anything else fails validation rather than
	// being silently ignored.
	Adapter        string   `yaml:"adapter"`
	ScanInterval   Duration `yaml:"scan_interval"`   // decision cycle period
	SilenceWindow  Duration `yaml:"silence_window"`  // beacon considered gone after this
	SmoothingAlpha float64  `yaml:"smoothing_alpha"` // EMA weight for new samples
}

// APIConfig configures the HTTP accessory-hub actuator mode.
type APIConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	SwitchID string `yaml:"switch_id"`
}

// HAPConfig configures the local HomeKit bridge actuator mode.
type HAPConfig struct {
	Name     string `yaml:"name"`
	Pin      string `yaml:"pin"`
	Port     int    `yaml:"port"`
	StateDir string `yaml:"state_dir"`
}

// BreakerConfig configures the circuit breaker around actuator calls.
type BreakerConfig struct {
	MaxFailures uint32   `yaml:"max_failures"`
	Timeout     Duration `yaml:"timeout"`
	Interval    Duration `yaml:"interval"`
}

// ActuatorConfig selects and configures the door actuator.
type ActuatorConfig struct {
	// Mode is "hap" (local HomeKit bridge), "api" (existing hub HTTP API)
	// or "none" (log-only dry run).
	Mode    string        `yaml:"mode"`
	Timeout Duration      `yaml:"timeout"` // per-command deadline
	API     APIConfig     `yaml:"api"`
	HAP     HAPConfig     `yaml:"hap"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// LoggerConfig holds log output settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// Config is the top-level application configuration.
type Config struct {
	Proximity      ProximityConfig   `yaml:"proximity"`
	Calibration    CalibrationConfig `yaml:"calibration"`
	Scanner        ScannerConfig     `yaml:"scanner"`
	Actuator       ActuatorConfig    `yaml:"actuator"`
	Logger         LoggerConfig      `yaml:"logger"`
	StatusInterval Duration          `yaml:"status_interval"`
}

// Default returns the configuration defaults. Calibration defaults assume
// an AirTag measured at 1 m; run the calibrate subcommand to refine them.
func Default() Config {
	return Config{
		Proximity: ProximityConfig{
			ThresholdFeet:        3.0,
			HysteresisMarginFeet: 1.0,
			MinDwell:             Duration(4 * time.Second),
			AutoUnlockTimeout:    Duration(10 * time.Minute),
			FailSafeMode:         true,
		},
		Calibration: CalibrationConfig{
			RSSIAtCalibration: -59,
			DistanceFeet:      3.28,
			PathLossExponent:  2.0,
		},
		Scanner: ScannerConfig{
			Adapter:        "hci0",
			ScanInterval:   Duration(2 * time.Second),
			SilenceWindow:  Duration(30 * time.Second),
			SmoothingAlpha: 0.3,
		},
		Actuator: ActuatorConfig{
			Mode:    "hap",
			Timeout: Duration(10 * time.Second),
			HAP: HAPConfig{
				Name:     "Doggy Door Lock",
				Pin:      "123-45-678",
				Port:     51827,
				StateDir: "./data/hap",
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     Duration(30 * time.Second),
				Interval:    Duration(60 * time.Second),
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		StatusInterval: Duration(5 * time.Minute),
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// DOGGYDOOR_* environment overrides, then validates it. A missing file is
// only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is safe to run with. The process
// must not start with an undefined threshold or timeout.
func (c *Config) Validate() error {
	var errs []error

	if c.Proximity.ThresholdFeet <= 0 {
		errs = append(errs, errors.New("proximity.threshold_feet must be positive"))
	}
	if c.Proximity.HysteresisMarginFeet < 0 {
		errs = append(errs, errors.New("proximity.hysteresis_margin_feet must not be negative"))
	}
	if c.Proximity.MinDwell < 0 {
		errs = append(errs, errors.New("proximity.min_dwell must not be negative"))
	}
	if c.Proximity.AutoUnlockTimeout <= 0 {
		errs = append(errs, errors.New("proximity.auto_unlock_timeout must be positive"))
	}
	if c.Calibration.DistanceFeet <= 0 {
		errs = append(errs, errors.New("calibration.calibration_distance_feet must be positive"))
	}
	if c.Calibration.RSSIAtCalibration >= 0 {
		errs = append(errs, errors.New("calibration.rssi_at_calibration must be negative dBm"))
	}
	if c.Calibration.PathLossExponent <= 0 {
		errs = append(errs, errors.New("calibration.path_loss_exponent must be positive"))
	}
	if c.Scanner.Adapter != "" && c.Scanner.Adapter != "hci0" {
		errs = append(errs, fmt.Errorf("scanner.adapter: only the default adapter (hci0) is supported, got %q", c.Scanner.Adapter))
	}
	if c.Scanner.ScanInterval <= 0 {
		errs = append(errs, errors.New("scanner.scan_interval must be positive"))
	}
	if c.Scanner.SilenceWindow <= 0 {
		errs = append(errs, errors.New("scanner.silence_window must be positive"))
	}
	if c.Scanner.SmoothingAlpha <= 0 || c.Scanner.SmoothingAlpha > 1 {
		errs = append(errs, errors.New("scanner.smoothing_alpha must be in (0, 1]"))
	}
	if c.Actuator.Timeout <= 0 {
		errs = append(errs, errors.New("actuator.timeout must be positive"))
	}

	switch c.Actuator.Mode {
	case "hap":
		if c.Actuator.HAP.Pin == "" {
			errs = append(errs, errors.New("actuator.hap.pin is required in hap mode"))
		}
	case "api":
		if c.Actuator.API.URL == "" {
			errs = append(errs, errors.New("actuator.api.url is required in api mode"))
		}
		if c.Actuator.API.SwitchID == "" {
			errs = append(errs, errors.New("actuator.api.switch_id is required in api mode"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("actuator.mode must be hap, api or none, got %q", c.Actuator.Mode))
	}

	return errors.Join(errs...)
}

// applyEnv overrides fields from DOGGYDOOR_* environment variables.
func (c *Config) applyEnv() error {
	var errs []error

	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setFloat("DOGGYDOOR_PROXIMITY_THRESHOLD_FEET", &c.Proximity.ThresholdFeet)
	setFloat("DOGGYDOOR_HYSTERESIS_MARGIN_FEET", &c.Proximity.HysteresisMarginFeet)
	setDuration("DOGGYDOOR_MIN_DWELL", &c.Proximity.MinDwell)
	setDuration("DOGGYDOOR_AUTO_UNLOCK_TIMEOUT", &c.Proximity.AutoUnlockTimeout)
	setBool("DOGGYDOOR_FAIL_SAFE_MODE", &c.Proximity.FailSafeMode)

	setInt("DOGGYDOOR_RSSI_AT_CALIBRATION", &c.Calibration.RSSIAtCalibration)
	setFloat("DOGGYDOOR_CALIBRATION_DISTANCE_FEET", &c.Calibration.DistanceFeet)
	setFloat("DOGGYDOOR_PATH_LOSS_EXPONENT", &c.Calibration.PathLossExponent)

	setString("DOGGYDOOR_BLUETOOTH_ADAPTER", &c.Scanner.Adapter)
	setDuration("DOGGYDOOR_SCAN_INTERVAL", &c.Scanner.ScanInterval)
	setDuration("DOGGYDOOR_SILENCE_WINDOW", &c.Scanner.SilenceWindow)
	setFloat("DOGGYDOOR_SMOOTHING_ALPHA", &c.Scanner.SmoothingAlpha)

	setString("DOGGYDOOR_ACTUATOR_MODE", &c.Actuator.Mode)
	setDuration("DOGGYDOOR_ACTUATOR_TIMEOUT", &c.Actuator.Timeout)
	setString("DOGGYDOOR_API_URL", &c.Actuator.API.URL)
	setString("DOGGYDOOR_API_TOKEN", &c.Actuator.API.Token)
	setString("DOGGYDOOR_API_SWITCH_ID", &c.Actuator.API.SwitchID)
	setString("DOGGYDOOR_HAP_NAME", &c.Actuator.HAP.Name)
	setString("DOGGYDOOR_HAP_PIN", &c.Actuator.HAP.Pin)
	setInt("DOGGYDOOR_HAP_PORT", &c.Actuator.HAP.Port)
	setString("DOGGYDOOR_HAP_STATE_DIR", &c.Actuator.HAP.StateDir)

	setString("DOGGYDOOR_LOG_LEVEL", &c.Logger.Level)
	setString("DOGGYDOOR_LOG_FORMAT", &c.Logger.Format)
	setString("DOGGYDOOR_LOG_OUTPUT", &c.Logger.Output)

	return errors.Join(errs...)
}
