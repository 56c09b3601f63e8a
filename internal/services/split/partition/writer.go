// Package partition writes records into per-group container files that rotate by size
//
// Files live at <root>/<key>/business-cards.<NNNNNN>.xml. A file is opened in append
// mode; the header is written only when the file is empty, and the closing tag only
// when the file is closed, either on rotation or by Close
package partition

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"

	"github.com/hashicorp/go-multierror"
)

const (
	// ClosingTag terminates every container file
	ClosingTag = "\n</root>\n"
	// FilePattern is the name of the nth file of a group
	FilePattern = "business-cards.%06d.xml"

	bufSize = 64 << 10
)

// Writer owns every open output file of a run. It is not safe for concurrent use
type Writer struct {
	root     string
	strategy Strategy
	log      *logger.Logger

	active  map[string]*activeFile
	seq     map[string]int
	created int
	closed  bool
}

type activeFile struct {
	info Info
	path string
	f    *os.File
	w    *bufio.Writer
}

// Option configures a Writer
type Option func(*Writer)

// WithStrategy replaces the size based rotation strategy
func WithStrategy(s Strategy) Option {
	return func(w *Writer) {
		if s != nil {
			w.strategy = s
		}
	}
}

// WithLogger sets the logger for open and rotate events
func WithLogger(l *logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a Writer rooted at root that rotates files once they exceed maxBytes
func New(root string, maxBytes int64, opts ...Option) *Writer {
	w := &Writer{
		root:     root,
		strategy: SizeStrategy{MaxBytes: maxBytes},
		active:   make(map[string]*activeFile),
		seq:      make(map[string]int),
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		w.log = logger.Named("partition")
	}
	return w
}

// Path returns the file path for a group and sequence number
func (w *Writer) Path(key string, seq int) string {
	return filepath.Join(w.root, key, fmt.Sprintf(FilePattern, seq))
}

// FilesCreated returns how many files received a header during this run
func (w *Writer) FilesCreated() int { return w.created }

// Open returns the number of files currently open
func (w *Writer) Open() int { return len(w.active) }

// Append writes "\n" + record to the current file of key, rotating first when the
// strategy says the file is full. header is used only for a fresh empty file
func (w *Writer) Append(key string, header []byte, record string) error {
	if w.closed {
		return perr.New(perr.ErrorCodeInvalidArgument, "partition: append after close")
	}
	af, ok := w.active[key]
	if ok && w.strategy.ShouldRotate(af.info) {
		if err := w.rotate(af); err != nil {
			return err
		}
		ok = false
	}
	if !ok {
		var err error
		if af, err = w.open(key, header); err != nil {
			return err
		}
	}

	n, err := af.w.WriteString("\n")
	if err == nil {
		var m int
		m, err = af.w.WriteString(record)
		n += m
	}
	af.info.Size += int64(n)
	if err != nil {
		return perr.Filesystemf(err, "partition: write %s", af.path)
	}
	af.info.Appended++
	return nil
}

// Close closes every open file, in key order, writing the closing tag to each
// Every file is attempted; failures are combined. Calling Close again is a no-op
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	keys := make([]string, 0, len(w.active))
	for k := range w.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs *multierror.Error
	for _, k := range keys {
		if err := w.finish(w.active[k]); err != nil {
			errs = multierror.Append(errs, err)
		}
		delete(w.active, k)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return perr.Filesystemf(err, "partition: close %d file(s)", errs.Len())
	}
	return nil
}

func (w *Writer) rotate(af *activeFile) error {
	key := af.info.Key
	delete(w.active, key)
	if err := w.finish(af); err != nil {
		return err
	}
	w.seq[key]++
	w.log.Debug().
		Str("key", key).
		Str("closed", af.path).
		Int64("size", af.info.Size).
		Int("next_seq", w.seq[key]).
		Msg("partition: rotated")
	return nil
}

func (w *Writer) open(key string, header []byte) (*activeFile, error) {
	seq := w.seq[key]
	if seq == 0 {
		seq = 1
		w.seq[key] = seq
	}
	path := w.Path(key, seq)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, perr.Filesystemf(err, "partition: mkdir %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, perr.Filesystemf(err, "partition: open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, perr.Filesystemf(err, "partition: stat %s", path)
	}

	af := &activeFile{
		info: Info{Key: key, Seq: seq, Size: fi.Size()},
		path: path,
		f:    f,
		w:    bufio.NewWriterSize(f, bufSize),
	}
	if fi.Size() == 0 {
		n, err := af.w.Write(HeaderBlock(header))
		af.info.Size += int64(n)
		if err != nil {
			_ = f.Close()
			return nil, perr.Filesystemf(err, "partition: write header %s", path)
		}
		w.created++
	}
	w.active[key] = af
	w.log.Debug().Str("key", key).Str("path", path).Int64("existing", fi.Size()).Msg("partition: opened")
	return af, nil
}

// finish writes the closing tag, flushes and closes the file
func (w *Writer) finish(af *activeFile) error {
	var errs *multierror.Error
	n, err := af.w.WriteString(ClosingTag)
	af.info.Size += int64(n)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := af.w.Flush(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := af.f.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return perr.WrapIf(errs.ErrorOrNil(), perr.ErrorCodeFilesystem, "partition: finish "+af.path)
}

// HeaderBlock returns header with every "><" split onto two lines
func HeaderBlock(header []byte) []byte {
	return bytes.ReplaceAll(header, []byte("><"), []byte(">\n<"))
}
