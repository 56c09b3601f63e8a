// Package stats counts accepted records per group key and per secondary key
package stats

import "peppolsync/internal/services/split/domain"

// Collector is a plain in-memory counter set owned by one run
type Collector struct {
	counts map[string]int
}

// New returns an empty Collector
func New() *Collector { return &Collector{counts: make(map[string]int)} }

// CountryHit increments country_<key>
func (c *Collector) CountryHit(key string) { c.counts[domain.CountryPrefix+key]++ }

// DateHit increments date_<key>
func (c *Collector) DateHit(key string) { c.counts[domain.DatePrefix+key]++ }

// Snapshot returns a copy that later hits do not affect
func (c *Collector) Snapshot() domain.Snapshot { return domain.NewSnapshot(c.counts) }
