package banner

import (
	"fmt"
	"io"
	"os"

	"transrelay/pkg/artifact"
	"transrelay/pkg/config"
)

const banner = `
████████╗██████╗  █████╗ ███╗   ██╗███████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
╚══██╔══╝██╔══██╗██╔══██╗████╗  ██║██╔════╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
   ██║   ██████╔╝███████║██╔██╗ ██║███████╗██████╔╝█████╗  ██║     ███████║ ╚████╔╝
   ██║   ██╔══██╗██╔══██║██║╚██╗██║╚════██║██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
   ██║   ██║  ██║██║  ██║██║ ╚████║███████║██║  ██║███████╗███████╗██║  ██║   ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝╚══════╝╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the banner and a startup summary to stdout.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	Fprint(os.Stdout, eff, version)
}

// Fprint writes the banner and startup summary to w.
func Fprint(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "defaults"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		fmt.Fprintln(w, "\n== Logs: =================================================")
		return
	}
	fmt.Fprintf(w, "Mode:     %s (%s engine)\n", cfg.Telegram.Mode, cfg.Server.Engine)
	fmt.Fprintf(w, "Primary:  %s\n", cfg.Translate.PrimaryLang)

	fmt.Fprintln(w, "\n== Endpoints ==================================================")
	if cfg.Telegram.Mode == "webhook" {
		fmt.Fprintln(w, "POST /telegram/webhook - Bot API update delivery")
	}
	fmt.Fprintln(w, "GET  /healthz, /readyz, /metrics")
	fmt.Fprintln(w, "GET  /docs/ - API docs")

	fmt.Fprintln(w, "\n== Production? =================================================")
	if cfg.Telegram.Mode == "webhook" {
		if cfg.Telegram.WebhookSecret != "" {
			fmt.Fprintln(w, "- Webhook secret: OK")
		} else {
			fmt.Fprintln(w, "- Webhook secret: MISSING (anyone can post updates)")
		}
		if cfg.Telegram.WebhookURL != "" {
			fmt.Fprintf(w, "- Webhook URL: %s\n", cfg.Telegram.WebhookURL)
		} else {
			fmt.Fprintln(w, "- Webhook URL: not set (register it with setWebhook yourself)")
		}
	}
	if n := len(cfg.Security.IPWhitelist); n > 0 {
		fmt.Fprintf(w, "- IP whitelist: %d entries\n", n)
	} else {
		fmt.Fprintln(w, "- IP whitelist: open")
	}
	if cfg.OCR.Enabled {
		fmt.Fprintln(w, "- OCR: enabled")
	} else {
		fmt.Fprintln(w, "- OCR: disabled")
	}
	if cfg.Sweeper.Enabled {
		fmt.Fprintf(w, "- Sweeper: enabled (cron=%s, ttl=%s)\n", cfg.Sweeper.Cron, cfg.Collect.SessionTTL.Duration())
	} else {
		fmt.Fprintln(w, "- Sweeper: disabled")
	}
	switch {
	case cfg.Artifact.FontPath != "":
		fmt.Fprintf(w, "- Report font: %s\n", cfg.Artifact.FontPath)
	case artifact.NeedsUnicodeFont(cfg.Logging.Locale, cfg.Translate.PrimaryLang):
		fmt.Fprintf(w, "- Report font: MISSING (%s/%s text is lossy in reports; set artifact.font_path)\n",
			cfg.Logging.Locale, cfg.Translate.PrimaryLang)
	default:
		fmt.Fprintln(w, "- Report font: built-in")
	}

	fmt.Fprintln(w, "\n== Logs: =================================================")
}
