// Package config handles application configuration via environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"peppolsync/internal/platform/logger"

	"github.com/c2h5oh/datasize"
)

// Conf is a namespaced view over environment variables (e.g., "PEPPOL_", "LOG_")
// Use New() for global access, or Prefix("PEPPOL_") for module scopes
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("PEPPOL_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// key composes the fully-qualified env var name
func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) lookup(key string) string { return strings.TrimSpace(os.Getenv(c.key(key))) }

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	v := c.lookup(key)
	if v == "" {
		return def
	}
	return v
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayBytes returns a byte count from a plain integer or a human size ("2MB", "512kb");
// def if missing/empty; logs and returns def if invalid
func (c Conf) MayBytes(key string, def int64) int64 {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	n, err := ParseBytes(s)
	if err == nil {
		return n
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int64("default", def).Msg("invalid byte size; using default")
	return def
}

// ParseBytes parses "1500000", "2MB" or "512 kb" into a byte count
// Units are case-insensitive binary multiples (1KB == 1024 bytes)
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(strings.ToUpper(strings.ReplaceAll(s, " ", "")))); err != nil {
		return 0, err
	}
	return int64(bs.Bytes()), nil
}

