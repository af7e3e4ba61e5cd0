package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"gpsd-agent/internal/console"
)

// Duration accepts Go duration strings ("10s") in YAML, which yaml.v3
// does not do for time.Duration itself. Bare integers are nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(n)
	return nil
}

type Config struct {
	// SupportedModels lists device-tree model substrings whose hardware
	// UART wiring is known to work. Not a definitive list; models are
	// added as they are tested, since the required dt overlay is not
	// uniform across Raspberry Pi models.
	SupportedModels []string `yaml:"supported_models"`

	// UARTDevice is the hardware UART the GPS falls back to, ACMDevice
	// the preferred USB CDC device.
	UARTDevice string `yaml:"uart_device"`
	ACMDevice  string `yaml:"acm_device"`

	// UARTOverlay is the dt overlay that routes the primary UART to the
	// header pins (disable-bt on most models).
	UARTOverlay string `yaml:"uart_overlay"`

	// ExitDelay is applied before terminating after a failure, so a
	// process supervisor does not spin us in a tight restart loop.
	ExitDelay Duration `yaml:"exit_delay"`

	Console ConsoleConfig `yaml:"console"`
	GPSD    GPSDConfig    `yaml:"gpsd"`
	PPS     PPSConfig     `yaml:"pps"`
	Balena  BalenaConfig  `yaml:"balena"`
}

type ConsoleConfig struct {
	Unit   string   `yaml:"unit"`
	Baud   int      `yaml:"baud"`
	Settle Duration `yaml:"settle"`
}

type GPSDConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type PPSConfig struct {
	Enable bool `yaml:"enable"`
	Pin    int  `yaml:"pin"`
}

// BalenaConfig is filled from the balena-injected environment; only the
// API URL is reasonable to pin in a file. The key never is.
type BalenaConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"-"`
	DeviceUUID string `yaml:"-"`
	AppID      string `yaml:"-"`
}

// Load reads the optional YAML file at path, merges the environment on
// top, and applies defaults and validation. A missing file is fine;
// container deployments are usually environment-only.
func Load(path string) (Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults + environment only.
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if len(cfg.SupportedModels) == 0 {
		cfg.SupportedModels = []string{"Raspberry Pi 3"}
	}
	if cfg.UARTDevice == "" {
		cfg.UARTDevice = "/dev/ttyAMA0"
	}
	if cfg.ACMDevice == "" {
		cfg.ACMDevice = "/dev/ttyACM0"
	}
	if cfg.UARTOverlay == "" {
		cfg.UARTOverlay = "disable-bt"
	}
	if cfg.ExitDelay <= 0 {
		cfg.ExitDelay = Duration(10 * time.Second)
	}

	if cfg.Console.Unit == "" {
		cfg.Console.Unit = "serial-getty@serial0.service"
	}
	if cfg.Console.Baud == 0 {
		cfg.Console.Baud = 9600
	}
	if cfg.Console.Settle <= 0 {
		cfg.Console.Settle = Duration(1 * time.Second)
	}
	if !console.SupportedBaud(cfg.Console.Baud) {
		return Config{}, fmt.Errorf("config: unsupported baud %d", cfg.Console.Baud)
	}

	if cfg.GPSD.Command == "" {
		cfg.GPSD.Command = "gpsd"
	}
	if len(cfg.GPSD.Args) == 0 {
		cfg.GPSD.Args = []string{"-Nn", "-G"}
	}

	if cfg.PPS.Enable && cfg.PPS.Pin <= 0 {
		return Config{}, fmt.Errorf("config: pps.pin is required when pps.enable is true")
	}

	if cfg.Balena.APIURL == "" {
		cfg.Balena.APIURL = "https://api.balena-cloud.com"
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BALENA_API_URL"); v != "" {
		cfg.Balena.APIURL = v
	}
	if v := os.Getenv("BALENA_API_KEY"); v != "" {
		cfg.Balena.APIKey = v
	}
	if v := os.Getenv("BALENA_DEVICE_UUID"); v != "" {
		cfg.Balena.DeviceUUID = v
	}
	if v := os.Getenv("BALENA_APP_ID"); v != "" {
		cfg.Balena.AppID = v
	}
	if v := os.Getenv("GPS_CUSTOM_BAUD"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: GPS_CUSTOM_BAUD %q: %w", v, err)
		}
		cfg.Console.Baud = baud
	}
	return nil
}
