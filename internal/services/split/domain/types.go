// Package domain holds the types shared by the split engine parts
package domain

import (
	"sort"
	"strings"
	"time"
)

// Counter key prefixes of the run statistics
const (
	CountryPrefix = "country_"
	DatePrefix    = "date_"
)

// SkipReason says why a fragment was not written
type SkipReason int

const (
	// SkipNone means the fragment was accepted
	SkipNone SkipReason = iota
	// SkipMalformed is a fragment that is not well-formed XML
	SkipMalformed
	// SkipMissingKey is a record without a country code
	SkipMissingKey
	// SkipInvalidKey is a country code that cannot be used as a directory name
	SkipInvalidKey
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipMalformed:
		return "malformed"
	case SkipMissingKey:
		return "missing_key"
	case SkipInvalidKey:
		return "invalid_key"
	default:
		return "unknown"
	}
}

// Outcome is the classification of one fragment
type Outcome struct {
	Seq       int
	Key       string // group key (country)
	Secondary string // date or fallback key
	Record    string // rendered record, ready to append
	Skip      SkipReason
	Err       error // parse failure behind SkipMalformed
}

// Accepted reports whether the fragment should be counted and written
func (o Outcome) Accepted() bool { return o.Skip == SkipNone }

// Result summarizes a split run
type Result struct {
	RecordsProcessed int // fragments produced by the extractor
	RecordsWritten   int
	FilesCreated     int
	Skipped          map[SkipReason]int
	BytesRead        int64
	Elapsed          time.Duration
	Stats            Snapshot
}

// SkippedTotal sums the skipped fragments over every reason
func (r Result) SkippedTotal() int {
	n := 0
	for _, v := range r.Skipped {
		n += v
	}
	return n
}

// Snapshot is a read-only copy of the run counters
type Snapshot struct {
	counts map[string]int
}

// NewSnapshot copies counts into a Snapshot
func NewSnapshot(counts map[string]int) Snapshot {
	cp := make(map[string]int, len(counts))
	for k, v := range counts {
		cp[k] = v
	}
	return Snapshot{counts: cp}
}

// Get returns the counter stored under the full key ("country_BE")
func (s Snapshot) Get(key string) int { return s.counts[key] }

// Country returns the number of records counted for a country
func (s Snapshot) Country(code string) int { return s.counts[CountryPrefix+code] }

// Date returns the number of records counted for a secondary key
func (s Snapshot) Date(key string) int { return s.counts[DatePrefix+key] }

// Len returns the number of counters
func (s Snapshot) Len() int { return len(s.counts) }

// Map returns a copy of every counter
func (s Snapshot) Map() map[string]int {
	cp := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		cp[k] = v
	}
	return cp
}

// Countries returns the counted country codes, sorted
func (s Snapshot) Countries() []string { return s.suffixes(CountryPrefix) }

// Dates returns the counted secondary keys, sorted
func (s Snapshot) Dates() []string { return s.suffixes(DatePrefix) }

// Total sums the counters with the given prefix
func (s Snapshot) Total(prefix string) int {
	n := 0
	for k, v := range s.counts {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n
}

func (s Snapshot) suffixes(prefix string) []string {
	var out []string
	for k := range s.counts {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(out)
	return out
}
