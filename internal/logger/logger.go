// Package logger configures the shared logrus logger and provides the
// redaction helpers every component must route URLs and secrets through
// before logging.
package logger

import (
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logger with the given level ("debug"/"info"/"warn"/"error",
// defaulting to info) and format ("json" or "text").
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.ToLower(strings.TrimSpace(format)) == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// secretKeywords marks field names whose values must never reach a log line.
var secretKeywords = []string{
	"token", "secret", "password", "key", "authorization", "webhook",
}

// RedactURL reduces a URL to scheme://host[:port]/path, dropping query
// strings and userinfo. Unparseable input is fully redacted.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" && u.Scheme != "" {
		return "[redacted]"
	}
	if u.Scheme == "" {
		// Path-only value: strip any query portion.
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Redact returns a copy of fields with values of secret-named keys replaced.
func Redact(fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if isSecretKey(k) {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range secretKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
