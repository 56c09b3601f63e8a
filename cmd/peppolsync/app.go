package main

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/modkit"
	modkitmod "peppolsync/internal/modkit/module"
	"peppolsync/internal/platform/config"
	"peppolsync/internal/platform/config/raw"
	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"
	"peppolsync/internal/platform/validate"
	splitmod "peppolsync/internal/services/split/module"
	syncmod "peppolsync/internal/services/syncer/module"
	"peppolsync/internal/services/syncer/service"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LogFileName is the per-run log written next to the extracts by sync
const LogFileName = "peppol_sync.log"

// cliOptions are the persistent flags after parsing
type cliOptions struct {
	Verbose   bool
	TmpDir    string `flag:"tmp" validate:"required"`
	OutputDir string `flag:"out" validate:"required"`
	Max       string
	MaxBytes  int64 `flag:"max" validate:"gt=0"`
	Force     bool
	NoCleanup bool
	KeepTmp   bool
	Count     int `flag:"count" validate:"gt=0"`
}

// app carries what the subcommands share once PersistentPreRunE ran
type app struct {
	opts    cliOptions
	runID   string
	log     *logger.Logger
	logFile *os.File
	syncer  *syncmod.Module
	runner  service.Runner
	fetcher peppol.Fetcher
}

// defaults reads flag defaults from env through the logging-free raw view
func defaults() cliOptions {
	rc := raw.New().Prefix("PEPPOL_")
	return cliOptions{
		TmpDir:    rc.Get("TMP_DIR", "tmp"),
		OutputDir: rc.Get("OUTPUT_DIR", "extracts"),
		Max:       rc.Get("MAX_BYTES", strconv.Itoa(splitmod.DefaultMaxBytes)),
		Count:     rc.GetInt("HUGE_COUNT", 10),
	}
}

func setEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

// setup validates the flags, surfaces them to the modules through env, starts the
// root logger (with the run log file for sync) and builds the modules
func (a *app) setup(cmd *cobra.Command) error {
	n, err := config.ParseBytes(a.opts.Max)
	if err != nil {
		return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "max must be a byte size like 2000000 or 2MB, got %q", a.opts.Max), "max")
	}
	a.opts.MaxBytes = n
	if err := validate.Struct(a.opts); err != nil {
		return err
	}

	setEnv("PEPPOL_TMP_DIR", a.opts.TmpDir)
	setEnv("PEPPOL_OUTPUT_DIR", a.opts.OutputDir)
	setEnv("PEPPOL_MAX_BYTES", strconv.FormatInt(a.opts.MaxBytes, 10))
	if a.opts.Verbose {
		setEnv("LOG_LEVEL", "debug")
	}

	a.runID = uuid.NewString()
	lo := logger.FromEnv()
	lo.Service = "peppolsync"
	lo.Writer = cmd.ErrOrStderr()
	lo.StaticFields = map[string]string{"run_id": a.runID}
	if cmd.Name() == "sync" {
		if err := os.MkdirAll(a.opts.OutputDir, 0o755); err != nil {
			return perr.Filesystemf(err, "create %s", a.opts.OutputDir)
		}
		f, err := os.Create(filepath.Join(a.opts.OutputDir, LogFileName))
		if err != nil {
			return perr.Filesystemf(err, "open run log")
		}
		a.logFile = f
		lo.Sinks = append(lo.Sinks, f)
	}
	logger.Init(lo)
	a.log = logger.Get()

	ev := a.log.Info().Str("command", cmd.Name())
	if u, err := user.Current(); err == nil {
		ev = ev.Str("user", u.Username)
	}
	if h, err := os.Hostname(); err == nil {
		ev = ev.Str("host", h)
	}
	if wd, err := os.Getwd(); err == nil {
		ev = ev.Str("cwd", wd)
	}
	ev.Str("max", datasize.ByteSize(a.opts.MaxBytes).HR()).Msg("peppolsync: starting")

	deps := modkit.Deps{Log: a.log, Cfg: config.New()}
	modkitmod.Reset()
	mods, err := modkit.BuildAll(deps,
		splitmod.Builder(),
		syncmod.Builder(cmd.OutOrStdout()),
	)
	if err != nil {
		return err
	}
	a.log.Debug().Strs("modules", modkitmod.Names()).Msg("peppolsync: modules ready")
	for _, m := range mods {
		if sm, ok := m.(*syncmod.Module); ok {
			a.syncer = sm
		}
	}
	if a.syncer == nil {
		return perr.InvalidArgf("module %q was not built", syncmod.Name)
	}
	a.runner = modkitmod.MustPortsOf[service.Runner](a.syncer)
	a.fetcher = modkitmod.MustPortsOf[peppol.Fetcher](a.syncer)
	return nil
}

func (a *app) close() {
	if a.logFile == nil {
		return
	}
	if err := a.logFile.Close(); err != nil && a.log != nil {
		a.log.Warn().Err(err).Msg("peppolsync: close run log")
	}
	a.logFile = nil
}
