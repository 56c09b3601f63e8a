// Package service runs one full sync: clean, fetch, split, summarize, report
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/platform/logger"
	"peppolsync/internal/services/housekeeping"
	"peppolsync/internal/services/report"
	splitdom "peppolsync/internal/services/split/domain"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Config holds the directories a sync works on
type Config struct {
	OutputDir string
	TmpDir    string
	MaxBytes  int64 // shown in the run banner only; the splitter owns the limit
}

// RunOptions are the per-run switches
type RunOptions struct {
	Force   bool // download even when a cached export exists
	Cleanup bool // remove previous *.xml extracts first
	KeepTmp bool // keep the downloaded export afterwards
}

// Summary describes a finished (or failed) sync
type Summary struct {
	RunID      string
	Cleaned    int
	Download   peppol.Download
	Split      splitdom.Result
	ReportPath string
	TmpRemoved int
}

// Runner is the port other components drive a sync through
type Runner interface {
	Run(ctx context.Context, o RunOptions) (Summary, error)
}

// Service implements the sync orchestration
type Service struct {
	Cfg   Config
	Fetch peppol.Fetcher
	Split splitdom.SplitterPort
	Out   io.Writer // terminal summary

	now func() time.Time
}

// New constructs the sync service; out may be nil to drop the terminal summary
func New(cfg Config, f peppol.Fetcher, sp splitdom.SplitterPort, out io.Writer) *Service {
	if f == nil || sp == nil {
		panic("syncer.Service requires a fetcher and a splitter")
	}
	if out == nil {
		out = io.Discard
	}
	return &Service{Cfg: cfg, Fetch: f, Split: sp, Out: out, now: time.Now}
}

// Run performs a sync. The tmp directory is cleaned on every exit path unless KeepTmp
func (s *Service) Run(ctx context.Context, o RunOptions) (sum Summary, retErr error) {
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRun(ctx, uuid.NewString())
	}
	sum.RunID = logger.RunID(ctx)
	log := logger.C(ctx).With().Str("component", "syncer").Logger()

	defer func() {
		if o.KeepTmp {
			return
		}
		n, err := housekeeping.CleanTmp(s.Cfg.TmpDir)
		sum.TmpRemoved = n
		if err != nil {
			log.Warn().Err(err).Str("dir", s.Cfg.TmpDir).Msg("syncer: could not clean tmp")
			return
		}
		if n > 0 {
			log.Info().Int("files", n).Str("dir", s.Cfg.TmpDir).Msg("syncer: cleaned tmp")
		}
	}()

	log.Info().
		Bool("force", o.Force).
		Bool("cleanup", o.Cleanup).
		Int64("max_bytes", s.Cfg.MaxBytes).
		Msg("syncer: starting sync")

	if o.Cleanup {
		n, err := housekeeping.CleanExtracts(s.Cfg.OutputDir)
		if err != nil {
			return sum, err
		}
		sum.Cleaned = n
		log.Info().Int("files", n).Str("dir", s.Cfg.OutputDir).Msg("syncer: removed previous extracts")
	}

	dl, err := s.Fetch.Fetch(ctx, o.Force)
	if err != nil {
		log.Error().Err(err).Msg("syncer: download failed")
		return sum, err
	}
	sum.Download = dl
	log.Info().
		Str("file", filepath.Base(dl.Path)).
		Float64("size_mb", float64(dl.Bytes)/(1024*1024)).
		Bool("cache_hit", dl.CacheHit).
		Msg("syncer: processing export")

	res, err := s.Split.Split(ctx, dl.Path)
	sum.Split = res
	if err != nil {
		log.Error().Err(err).Int("records", res.RecordsProcessed).Msg("syncer: split failed")
		return sum, err
	}
	s.printSummary(res)

	path, err := report.Write(res.Stats, s.Cfg.OutputDir, s.now())
	if err != nil {
		return sum, err
	}
	sum.ReportPath = path
	log.Info().
		Int("records", res.RecordsProcessed).
		Int("countries", len(res.Stats.Countries())).
		Int("files_created", res.FilesCreated).
		Str("report", path).
		Msg("syncer: sync complete")
	return sum, nil
}

func (s *Service) printSummary(res splitdom.Result) {
	p := message.NewPrinter(language.English)
	p.Fprintf(s.Out, "\nSummary:\n")
	p.Fprintf(s.Out, "   Total business cards: %d\n", res.RecordsProcessed)
	if n := res.SkippedTotal(); n > 0 {
		p.Fprintf(s.Out, "   Skipped: %d\n", n)
	}
	p.Fprintf(s.Out, "   Countries found: %d\n", len(res.Stats.Countries()))
	p.Fprintf(s.Out, "   Output files created: %d\n", res.FilesCreated)
	fmt.Fprintf(s.Out, "   Output directory: %s/\n", s.Cfg.OutputDir)
}
