package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EnvResult reports which environment overrides were applied.
type EnvResult struct {
	Keys    []string
	EnvUsed bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", "env" or "defaults"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	return ParseConfigFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseConfigFlagSet is ParseConfigFlags over an explicit flag set.
func ParseConfigFlagSet(fs *flag.FlagSet, args []string) Flags {
	addrPtr := fs.String("addr", ":8080", "HTTP listen address")
	dbPtr := fs.String("db", "./.database", "Pebble DB path")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	_ = fs.Parse(args)
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads TRANSRELAY_* variables onto cfg. Unset variables
// leave the corresponding field untouched.
func ParseConfigEnvs(cfg *Config) EnvResult {
	var res EnvResult
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			res.Keys = append(res.Keys, key)
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
				res.Keys = append(res.Keys, key)
			}
		}
	}
	float := func(key string, dst *float64) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
				res.Keys = append(res.Keys, key)
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			default:
				*dst = false
			}
			res.Keys = append(res.Keys, key)
		}
	}
	dur := func(key string, dst *Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if d, err := ParseDuration(v); err == nil {
				*dst = d
				res.Keys = append(res.Keys, key)
			}
		}
	}
	size := func(key string, dst *SizeBytes) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if s, err := ParseSize(v); err == nil {
				*dst = s
				res.Keys = append(res.Keys, key)
			}
		}
	}

	if v := os.Getenv("TRANSRELAY_SERVER_ADDR"); v != "" {
		res.Keys = append(res.Keys, "TRANSRELAY_SERVER_ADDR")
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	integer("TRANSRELAY_SERVER_PORT", &cfg.Server.Port)
	str("TRANSRELAY_DB_PATH", &cfg.Server.DBPath)
	str("TRANSRELAY_SERVER_ENGINE", &cfg.Server.Engine)
	integer("TRANSRELAY_WORKERS", &cfg.Server.Workers)
	integer("TRANSRELAY_QUEUE_CAPACITY", &cfg.Server.QueueCapacity)
	size("TRANSRELAY_MAX_BODY_SIZE", &cfg.Server.MaxBodySize)

	str("TRANSRELAY_TELEGRAM_TOKEN", &cfg.Telegram.Token)
	str("TRANSRELAY_TELEGRAM_BASE_URL", &cfg.Telegram.BaseURL)
	str("TRANSRELAY_TELEGRAM_MODE", &cfg.Telegram.Mode)
	str("TRANSRELAY_WEBHOOK_URL", &cfg.Telegram.WebhookURL)
	str("TRANSRELAY_WEBHOOK_SECRET", &cfg.Telegram.WebhookSecret)
	dur("TRANSRELAY_TELEGRAM_TIMEOUT", &cfg.Telegram.RequestTimeout)
	size("TRANSRELAY_MAX_FILE_SIZE", &cfg.Telegram.MaxFileSize)

	str("TRANSRELAY_TRANSLATE_ENDPOINT", &cfg.Translate.Endpoint)
	dur("TRANSRELAY_TRANSLATE_TIMEOUT", &cfg.Translate.Timeout)
	str("TRANSRELAY_PRIMARY_LANG", &cfg.Translate.PrimaryLang)

	boolean("TRANSRELAY_OCR_ENABLED", &cfg.OCR.Enabled)
	str("TRANSRELAY_OCR_API_KEY", &cfg.OCR.APIKey)

	str("TRANSRELAY_REPORT_NAME", &cfg.Collect.DefaultName)
	dur("TRANSRELAY_SESSION_TTL", &cfg.Collect.SessionTTL)
	str("TRANSRELAY_ARTIFACT_FONT", &cfg.Artifact.FontPath)

	float("TRANSRELAY_RATE_RPS", &cfg.Security.RateLimit.RPS)
	integer("TRANSRELAY_RATE_BURST", &cfg.Security.RateLimit.Burst)
	if v := os.Getenv("TRANSRELAY_IP_WHITELIST"); v != "" {
		res.Keys = append(res.Keys, "TRANSRELAY_IP_WHITELIST")
		cfg.Security.IPWhitelist = parseList(v)
	}

	str("TRANSRELAY_LOG_LEVEL", &cfg.Logging.Level)
	str("TRANSRELAY_LOG_FORMAT", &cfg.Logging.Format)
	str("TRANSRELAY_LOCALE", &cfg.Logging.Locale)

	boolean("TRANSRELAY_SWEEPER_ENABLED", &cfg.Sweeper.Enabled)
	str("TRANSRELAY_SWEEPER_CRON", &cfg.Sweeper.Cron)

	res.EnvUsed = len(res.Keys) > 0
	return res
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// LoadEffectiveConfig layers the sources: the config file is the base,
// environment variables override it, and explicitly set --addr/--db flags
// win over both. An explicit --config must point at an existing file.
// Defaults are applied last.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] && !fileExists {
		return res, fmt.Errorf("config file %s not found", flags.Config)
	}

	cfg := &Config{}
	res.Source = "defaults"
	if fileExists && fileCfg != nil {
		*cfg = *fileCfg
		res.Source = "config"
	}
	if env := ParseConfigEnvs(cfg); env.EnvUsed && !fileExists {
		res.Source = "env"
	}
	if flags.Set["addr"] {
		if h, _, err := net.SplitHostPort(flags.Addr); err == nil {
			cfg.Server.Address = h
			cfg.Server.Port = parsePortFromAddr(flags.Addr)
		}
		res.Source = "flags"
	}
	if flags.Set["db"] {
		cfg.Server.DBPath = flags.DB
		res.Source = "flags"
	}
	cfg.ApplyDefaults()

	res.Config = cfg
	res.Addr = cfg.Addr()
	res.DBPath = cfg.Server.DBPath
	return res, nil
}

// parsePortFromAddr extracts port integer from host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
