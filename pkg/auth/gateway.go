package auth

import (
	"crypto/subtle"
	"net"
	"net/http"

	"transrelay/pkg/httpx"
	"transrelay/pkg/logger"
	"transrelay/pkg/utils"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// SecConfig drives the webhook gate.
type SecConfig struct {
	RPS           float64
	Burst         int
	IPWhitelist   []string
	WebhookSecret string
}

// Gate decides whether an inbound update delivery is accepted.
type Gate struct {
	cfg      SecConfig
	limiters *Limiters
}

func NewGate(cfg SecConfig) *Gate {
	return &Gate{cfg: cfg, limiters: NewLimiters(cfg.RPS, cfg.Burst)}
}

// Check returns 0 when the request may proceed, otherwise the status code
// and message to reject it with. The checks run whitelist, secret, rate.
func (g *Gate) Check(remoteAddr, secret string) (int, string) {
	ip := clientIP(remoteAddr)
	if len(g.cfg.IPWhitelist) > 0 && !ipWhitelisted(ip, g.cfg.IPWhitelist) {
		logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip)
		return http.StatusForbidden, "forbidden"
	}
	if g.cfg.WebhookSecret != "" && !secretMatches(secret, g.cfg.WebhookSecret) {
		logger.Warn("request_unauthorized", "remote", remoteAddr)
		return http.StatusUnauthorized, "unauthorized"
	}
	if !g.limiters.Allow(ip) {
		logger.Warn("rate_limited", "ip", ip)
		return http.StatusTooManyRequests, "rate limit exceeded"
	}
	return 0, ""
}

// Guard wraps an engine-neutral handler with the gate.
func (g *Gate) Guard(next httpx.HandlerFunc) httpx.HandlerFunc {
	return func(w httpx.ResponseWriter, r *httpx.Request) {
		if status, msg := g.Check(r.RemoteAddr, r.Header.Get(SecretHeader)); status != 0 {
			utils.JSONError(w, status, msg)
			return
		}
		logger.Debug("request_allowed", "method", r.Method, "path", r.Path)
		next(w, r)
	}
}

// WebhookMiddleware is Guard for plain net/http handlers.
func WebhookMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	g := NewGate(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status, msg := g.Check(r.RemoteAddr, r.Header.Get(SecretHeader)); status != 0 {
				utils.JSONError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}
