package launcher

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the contract between the launcher and the page under test.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Page string `yaml:"page"`

	OutputID      string `yaml:"output_id"`      // DOM id of the log element
	DoneMarker    string `yaml:"done_marker"`    // substring that ends the wait
	FailureMarker string `yaml:"failure_marker"` // substring that forces failure
	ExitVar       string `yaml:"exit_var"`       // page-global holding the status

	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	Headless bool `yaml:"headless"`
	// RemoteBrowser is the browserName requested from a remote WebDriver.
	RemoteBrowser string `yaml:"remote_browser"`
}

// DefaultConfig returns the values the udTest page is built against.
func DefaultConfig() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          8000,
		Page:          "udTest.html",
		OutputID:      "output",
		DoneMarker:    " tests.",
		FailureMarker: "[  FAILED  ]",
		ExitVar:       "EXITSTATUS",
		Timeout:       30 * time.Second,
		PollInterval:  500 * time.Millisecond,
		Headless:      true,
		RemoteBrowser: "chrome",
	}
}

// LoadConfig reads a YAML file and overlays it on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or out-of-range field, joined into one
// error.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Page == "" {
		errs = append(errs, errors.New("page is required"))
	}
	if c.OutputID == "" {
		errs = append(errs, errors.New("output_id is required"))
	}
	if c.DoneMarker == "" {
		errs = append(errs, errors.New("done_marker is required"))
	}
	if c.ExitVar == "" {
		errs = append(errs, errors.New("exit_var is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.PollInterval < 0 {
		errs = append(errs, errors.New("poll_interval must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// URL returns the address of the page under test.
func (c Config) URL() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/" + c.Page
}
