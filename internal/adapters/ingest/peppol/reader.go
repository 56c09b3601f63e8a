package peppol

import (
	"bytes"
	"io"

	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"
)

const sampleHeaderMax = 512 // max bytes of the header to log

// Reader streams record fragments out of the export without parsing it as a whole.
// It is forward-only: every fragment is produced exactly once
type Reader struct {
	src        io.Reader
	start, end []byte
	chunk      []byte

	buf  []byte
	off  int // first unconsumed byte in buf
	scan int // where the next delimiter search resumes; never below off

	header     []byte
	headerDone bool
	found      bool

	eof     bool
	err     error
	records int
	bytes   int64
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithChunkSize sets how many bytes are requested per read; values <= 0 keep the default
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// WithDelimiters overrides the record start and end delimiters
func WithDelimiters(start, end string) ReaderOption {
	return func(r *Reader) {
		if start != "" && end != "" {
			r.start, r.end = []byte(start), []byte(end)
		}
	}
}

// NewReader creates a Reader over r. The caller keeps ownership of r
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{
		src:   r,
		start: []byte(RecordStart),
		end:   []byte(RecordEnd),
	}
	for _, o := range opts {
		o(rd)
	}
	if rd.chunk == nil {
		rd.chunk = make([]byte, DefaultChunkSize)
	}
	return rd
}

// Header returns everything before the first start delimiter. found is false when the
// stream holds no record at all
func (rd *Reader) Header() (header []byte, found bool, err error) {
	if err := rd.locateHeader(); err != nil {
		return nil, false, err
	}
	return rd.header, rd.found, nil
}

// Next returns the next fragment; returns io.EOF when no complete fragment remains
func (rd *Reader) Next() (Fragment, error) {
	if rd.err != nil {
		return Fragment{}, rd.err
	}
	if err := rd.locateHeader(); err != nil {
		return Fragment{}, err
	}
	if !rd.found {
		rd.err = io.EOF
		return Fragment{}, io.EOF
	}
	for {
		if i := bytes.Index(rd.buf[rd.scan:], rd.end); i >= 0 {
			stop := rd.scan + i + len(rd.end)
			b := make([]byte, stop-rd.off)
			copy(b, rd.buf[rd.off:stop])
			rd.off, rd.scan = stop, stop
			rd.records++
			return Fragment{Seq: rd.records, Bytes: b}, nil
		}
		if rd.eof {
			rd.err = io.EOF
			return Fragment{}, io.EOF
		}
		// the delimiter may straddle the chunk boundary
		rd.scan = max(rd.off, len(rd.buf)-len(rd.end)+1)
		if err := rd.fill(); err != nil {
			return Fragment{}, err
		}
	}
}

// Dangling reports whether the stream ended inside a record, i.e. a start delimiter was
// left without its end delimiter. Only meaningful after Next returned io.EOF
func (rd *Reader) Dangling() bool {
	return rd.eof && bytes.Contains(rd.buf[rd.off:], rd.start)
}

// Stats returns the number of fragments produced and total bytes read from the stream
func (rd *Reader) Stats() (records int, bytesRead int64) {
	return rd.records, rd.bytes
}

func (rd *Reader) locateHeader() error {
	if rd.headerDone {
		return nil
	}
	for {
		if i := bytes.Index(rd.buf[rd.scan:], rd.start); i >= 0 {
			i += rd.scan
			rd.header = append([]byte(nil), rd.buf[:i]...)
			rd.off, rd.scan = i, i
			rd.found, rd.headerDone = true, true

			l := logger.Named("peppol")
			l.Debug().
				Int("header_bytes", len(rd.header)).
				Str("sample_header", truncateUTF8(rd.header, sampleHeaderMax)).
				Msg("peppol: header located")
			return nil
		}
		if rd.eof {
			rd.off, rd.scan = len(rd.buf), len(rd.buf)
			rd.headerDone = true
			return nil
		}
		rd.scan = max(0, len(rd.buf)-len(rd.start)+1)
		if err := rd.fill(); err != nil {
			return err
		}
	}
}

// fill appends one chunk to buf, compacting consumed bytes first
func (rd *Reader) fill() error {
	if rd.off > 0 && rd.off >= len(rd.buf)/2 {
		n := copy(rd.buf, rd.buf[rd.off:])
		rd.buf = rd.buf[:n]
		rd.scan -= rd.off
		rd.off = 0
	}
	for {
		n, err := rd.src.Read(rd.chunk)
		if n > 0 {
			rd.buf = append(rd.buf, rd.chunk[:n]...)
			rd.bytes += int64(n)
		}
		if err == io.EOF {
			rd.eof = true
			return nil
		}
		if err != nil {
			rd.err = perr.StreamIOf(err, "peppol: read export")
			return rd.err
		}
		if n > 0 {
			return nil
		}
	}
}

// truncateUTF8 returns a string made from b, truncated to at most max bytes,
// backing up to a UTF-8 boundary if needed, and appending an ellipsis if truncated
func truncateUTF8(b []byte, max int) string {
	if max <= 0 || len(b) <= max {
		return string(b)
	}
	i := max
	// back up to the start of a rune (0b10xxxxxx indicates continuation byte)
	for i > 0 && (b[i]&0xC0) == 0x80 {
		i--
	}
	if i <= 0 {
		i = max
	}
	return string(b[:i]) + "..."
}
