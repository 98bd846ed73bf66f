package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTranslateEndpoint = "https://translate.googleapis.com/translate_a/single"
	DefaultOCREndpoint       = "https://api.ocr.space/parse/imageurl"
	DefaultTelegramBaseURL   = "https://api.telegram.org"
	DefaultSweeperCron       = "*/10 * * * *"
)

// Addr returns host:port for HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset tunable with its built-in value.
func (c *Config) ApplyDefaults() {
	if c.Server.DBPath == "" {
		c.Server.DBPath = "./.database"
	}
	if c.Server.Engine == "" {
		c.Server.Engine = "nethttp"
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = 8
	}
	if c.Server.QueueCapacity <= 0 {
		c.Server.QueueCapacity = 1024
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(10 * time.Second)
	}
	if c.Server.MaxBodySize == 0 {
		c.Server.MaxBodySize = 1 << 20
	}

	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = DefaultTelegramBaseURL
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = "webhook"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = Duration(30 * time.Second)
	}
	if c.Telegram.RequestTimeout == 0 {
		c.Telegram.RequestTimeout = Duration(15 * time.Second)
	}
	if c.Telegram.MaxFileSize == 0 {
		c.Telegram.MaxFileSize = 20 << 20
	}
	if c.Telegram.RateLimit.RPS <= 0 {
		c.Telegram.RateLimit.RPS = 1
	}
	if c.Telegram.RateLimit.Burst <= 0 {
		c.Telegram.RateLimit.Burst = 20
	}

	if c.Translate.Endpoint == "" {
		c.Translate.Endpoint = DefaultTranslateEndpoint
	}
	if c.Translate.Timeout == 0 {
		c.Translate.Timeout = Duration(8 * time.Second)
	}
	if c.Translate.PrimaryLang == "" {
		c.Translate.PrimaryLang = "vi"
	}

	if c.OCR.Endpoint == "" {
		c.OCR.Endpoint = DefaultOCREndpoint
	}
	if c.OCR.APIKey == "" {
		c.OCR.APIKey = "helloworld"
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = Duration(20 * time.Second)
	}

	if c.Collect.StartCommand == "" {
		c.Collect.StartCommand = "/report_start"
	}
	if c.Collect.FinalizeCommand == "" {
		c.Collect.FinalizeCommand = "/report_done"
	}
	if c.Collect.CancelCommand == "" {
		c.Collect.CancelCommand = "/report_cancel"
	}
	if c.Collect.DefaultName == "" {
		c.Collect.DefaultName = "report"
	}
	if c.Collect.SessionTTL == 0 {
		c.Collect.SessionTTL = Duration(6 * time.Hour)
	}
	if c.Collect.MaxItems <= 0 {
		c.Collect.MaxItems = 200
	}

	if c.Artifact.RenderTimeout == 0 {
		c.Artifact.RenderTimeout = Duration(time.Minute)
	}
	if c.Artifact.PageSize == "" {
		c.Artifact.PageSize = "A4"
	}

	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = 50
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Locale == "" {
		c.Logging.Locale = "vi"
	}

	if c.Sweeper.Cron == "" {
		c.Sweeper.Cron = DefaultSweeperCron
	}
}

// Validate reports every problem that would prevent startup.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	switch c.Telegram.Mode {
	case "webhook", "poll":
	default:
		errs = append(errs, fmt.Errorf("telegram.mode must be webhook or poll, got %q", c.Telegram.Mode))
	}
	switch c.Server.Engine {
	case "nethttp", "fasthttp":
	default:
		errs = append(errs, fmt.Errorf("server.engine must be nethttp or fasthttp, got %q", c.Server.Engine))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("server.workers must be positive"))
	}
	if c.Sweeper.Enabled && !gronx.IsValid(c.Sweeper.Cron) {
		errs = append(errs, fmt.Errorf("sweeper.cron is invalid: %q", c.Sweeper.Cron))
	}
	if !strings.HasPrefix(c.Collect.StartCommand, "/") || !strings.HasPrefix(c.Collect.FinalizeCommand, "/") {
		errs = append(errs, errors.New("collect commands must start with '/'"))
	}
	return errors.Join(errs...)
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable `TRANSRELAY_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("TRANSRELAY_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
