package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Translate TranslateConfig `yaml:"translate"`
	OCR       OCRConfig       `yaml:"ocr"`
	Collect   CollectConfig   `yaml:"collect"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

// ServerConfig holds http listener and worker settings.
type ServerConfig struct {
	Address       string    `yaml:"address"`
	Port          int       `yaml:"port"`
	DBPath        string    `yaml:"db_path"`
	Engine        string    `yaml:"engine"` // nethttp | fasthttp
	Workers       int       `yaml:"workers"`
	QueueCapacity int       `yaml:"queue_capacity"`
	ReadTimeout   Duration  `yaml:"read_timeout"`
	WriteTimeout  Duration  `yaml:"write_timeout"`
	MaxBodySize   SizeBytes `yaml:"max_body_size"`
}

// TelegramConfig holds Bot API access settings.
type TelegramConfig struct {
	Token          string    `yaml:"token"`
	BaseURL        string    `yaml:"base_url"`
	Mode           string    `yaml:"mode"` // webhook | poll
	WebhookURL     string    `yaml:"webhook_url"`
	WebhookSecret  string    `yaml:"webhook_secret"`
	PollTimeout    Duration  `yaml:"poll_timeout"`
	RequestTimeout Duration  `yaml:"request_timeout"`
	MaxFileSize    SizeBytes `yaml:"max_file_size"`
	RateLimit      RateLimit `yaml:"rate_limit"`
}

// TranslateConfig configures the translation provider.
type TranslateConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Timeout     Duration `yaml:"timeout"`
	PrimaryLang string   `yaml:"primary_lang"`
}

// OCRConfig configures the optional caption-less photo OCR.
type OCRConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
}

// CollectConfig holds the report collection commands and limits.
type CollectConfig struct {
	StartCommand    string   `yaml:"start_command"`
	FinalizeCommand string   `yaml:"finalize_command"`
	CancelCommand   string   `yaml:"cancel_command"`
	DefaultName     string   `yaml:"default_name"`
	SessionTTL      Duration `yaml:"session_ttl"`
	MaxItems        int      `yaml:"max_items"`
}

// ArtifactConfig configures report rendering.
type ArtifactConfig struct {
	RenderTimeout Duration `yaml:"render_timeout"`
	PageSize      string   `yaml:"page_size"`
	Title         string   `yaml:"title"`
	// FontPath points at a UTF-8 TrueType font; without one, text outside
	// cp1252 is transliterated.
	FontPath string `yaml:"font_path"`
}

// SecurityConfig holds inbound request limits.
type SecurityConfig struct {
	RateLimit   RateLimit `yaml:"rate_limit"`
	IPWhitelist []string  `yaml:"ip_whitelist"`
}

// RateLimit is a token bucket definition.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
	Locale string `yaml:"locale"`
}

// SweeperConfig holds configuration for the idle session sweeper.
type SweeperConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	v, err := ParseSize(raw)
	if err != nil {
		return fmt.Errorf("invalid size value: %q", node.Value)
	}
	*s = v
	return nil
}

// ParseSize parses "20MB", "512KiB" or a plain byte count.
func ParseSize(raw string) (SizeBytes, error) {
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return SizeBytes(i), nil
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	v, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration value: %q", node.Value)
	}
	*d = v
	return nil
}

// ParseDuration accepts time.ParseDuration syntax or numeric seconds.
func ParseDuration(raw string) (Duration, error) {
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return Duration(time.Duration(f * float64(time.Second))), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
