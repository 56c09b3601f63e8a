// Package service runs the streaming split: extract fragments, classify them,
// count them and append them to their group's current file
package service

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/core/businesscard"
	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"
	"peppolsync/internal/services/split/domain"
	"peppolsync/internal/services/split/partition"
	"peppolsync/internal/services/split/stats"
)

const logHeadBytes = 200 // bytes of a skipped fragment kept in the log

// Config holds the split settings
type Config struct {
	OutputRoot    string
	MaxBytes      int64
	ChunkSize     int // read size; <=0 -> peppol.DefaultChunkSize
	ProgressEvery int // log every N fragments; <=0 disables
}

// Service implements domain.SplitterPort
type Service struct {
	Cfg Config

	// seams for tests
	openInput func(string) (io.ReadCloser, error)
	newWriter func(root string, maxBytes int64, l *logger.Logger) domain.PartitionWriter
	newStats  func() domain.StatsRecorder
}

// New constructs the split service
func New(cfg Config) *Service {
	return &Service{
		Cfg:       cfg,
		openInput: func(p string) (io.ReadCloser, error) { return os.Open(p) },
		newWriter: func(root string, maxBytes int64, l *logger.Logger) domain.PartitionWriter {
			return partition.New(root, maxBytes, partition.WithLogger(l))
		},
		newStats: func() domain.StatsRecorder { return stats.New() },
	}
}

// Split partitions the export at inputPath into Cfg.OutputRoot
// Only stream and filesystem failures are returned; every open output file is
// closed before Split returns, also when ctx is cancelled
func (s *Service) Split(ctx context.Context, inputPath string) (res domain.Result, retErr error) {
	log := logger.C(ctx).With().Str("component", "split").Logger()
	start := time.Now()
	res.Skipped = map[domain.SkipReason]int{}

	in, err := s.openInput(inputPath)
	if err != nil {
		return res, perr.StreamIOf(err, "split: open %s", inputPath)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("path", inputPath).Msg("split: close input")
		}
	}()

	rd := peppol.NewReader(in, peppol.WithChunkSize(s.Cfg.ChunkSize))
	header, found, err := rd.Header()
	if err != nil {
		return res, err
	}
	if !found {
		log.Warn().Str("path", inputPath).Msg("split: no record start tag found, nothing to do")
		res.Stats = domain.NewSnapshot(nil)
		return res, nil
	}

	pw := s.newWriter(s.Cfg.OutputRoot, s.Cfg.MaxBytes, &log)
	sc := s.newStats()
	defer func() {
		if cerr := pw.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("split: closing output files")
			if retErr == nil {
				retErr = cerr
			}
		}
		res.FilesCreated = pw.FilesCreated()
		res.Stats = sc.Snapshot()
		res.Elapsed = time.Since(start)
		_, res.BytesRead = rd.Stats()
	}()

	log.Info().
		Str("input", inputPath).
		Str("output", s.Cfg.OutputRoot).
		Int64("max_bytes", s.Cfg.MaxBytes).
		Msg("split: started")

	for {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("records", res.RecordsProcessed).Msg("split: interrupted")
			return res, perr.Interrupted(err)
		}
		frag, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		res.RecordsProcessed++
		if s.Cfg.ProgressEvery > 0 && res.RecordsProcessed%s.Cfg.ProgressEvery == 0 {
			el := time.Since(start)
			log.Info().
				Int("records", res.RecordsProcessed).
				Dur("elapsed", el).
				Float64("cards_per_s", rate(res.RecordsProcessed, el)).
				Msg("split: progress")
		}

		out := Classify(frag)
		if out.Err != nil && perr.CodeOf(out.Err).Fatal() {
			return res, out.Err
		}
		if !out.Accepted() {
			res.Skipped[out.Skip]++
			ev := log.Warn()
			if out.Skip == domain.SkipMissingKey {
				ev = log.Debug()
			}
			ev.Int("seq", out.Seq).
				Str("reason", out.Skip.String()).
				Str("key", out.Key).
				Err(out.Err).
				Str("fragment", frag.Head(logHeadBytes)).
				Msg("split: record skipped")
			continue
		}

		sc.CountryHit(out.Key)
		sc.DateHit(out.Secondary)
		if err := pw.Append(out.Key, header, out.Record); err != nil {
			return res, err
		}
		res.RecordsWritten++
	}

	if rd.Dangling() {
		log.Warn().Msg("split: export ends inside a record; partial record dropped")
	}
	el := time.Since(start)
	log.Info().
		Int("records", res.RecordsProcessed).
		Int("written", res.RecordsWritten).
		Int("skipped", res.SkippedTotal()).
		Dur("elapsed", el).
		Float64("cards_per_s", rate(res.RecordsProcessed, el)).
		Msg("split: finished")
	return res, nil
}

// Classify parses one fragment and derives its keys and rendering
func Classify(frag peppol.Fragment) domain.Outcome {
	out := domain.Outcome{Seq: frag.Seq}
	card, err := businesscard.Parse(frag.Bytes)
	if err != nil {
		out.Skip, out.Err = domain.SkipMalformed, err
		return out
	}
	key, ok := card.CountryCode()
	if !ok {
		out.Skip = domain.SkipMissingKey
		out.Err = perr.WithField(perr.New(perr.ErrorCodeMissingGroupKey, "no entity countrycode"), "countrycode")
		return out
	}
	out.Key = key
	if !SafeKey(key) {
		out.Skip = domain.SkipInvalidKey
		out.Err = perr.WithField(perr.Newf(perr.ErrorCodeMissingGroupKey, "countrycode %q is not a usable directory name", key), "countrycode")
		return out
	}
	rec, err := card.Pretty()
	if err != nil {
		out.Skip, out.Err = domain.SkipMalformed, err
		return out
	}
	out.Secondary = card.SecondaryKey()
	out.Record = rec
	return out
}

// SafeKey reports whether key can be used as a single directory name
func SafeKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
