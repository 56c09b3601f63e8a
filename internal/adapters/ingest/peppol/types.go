package peppol

import "time"

// Delimiters of one business-card record in the export
const (
	RecordStart = "<businesscard>"
	RecordEnd   = "</businesscard>"
)

// DefaultChunkSize is how many bytes the Reader pulls from the stream per read
const DefaultChunkSize = 1 << 20

// Fragment is the exact byte span of one record, from its start delimiter through its end
// delimiter. Bytes may carry the whitespace that separated it from the previous record
type Fragment struct {
	Seq   int // 1-based position in the stream
	Bytes []byte
}

// Len returns the fragment size in bytes
func (f Fragment) Len() int { return len(f.Bytes) }

// Head returns at most n bytes of the fragment for log context
func (f Fragment) Head(n int) string { return truncateUTF8(f.Bytes, n) }

// Download describes the local copy of the export after a fetch
type Download struct {
	Path     string
	Bytes    int64
	CacheHit bool
	Elapsed  time.Duration
}
