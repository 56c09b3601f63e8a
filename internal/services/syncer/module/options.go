package module

import (
	"time"

	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/platform/config"
	"peppolsync/internal/platform/validate"
	splitmod "peppolsync/internal/services/split/module"
)

// Options holds configuration options for the sync orchestrator
type Options struct {
	OutputDir   string        `flag:"out" validate:"required"`
	TmpDir      string        `flag:"tmp" validate:"required"`
	ExportURL   string        `flag:"url" validate:"required,url"`
	HTTPTimeout time.Duration `flag:"timeout" validate:"min=0"`
	MaxBytes    int64         `flag:"max" validate:"gt=0"`
}

// FromConfig reads the sync options from config with PEPPOL_ prefix
func FromConfig(cfg config.Conf) Options {
	pc := cfg.Prefix("PEPPOL_")
	return Options{
		OutputDir:   pc.MayString("OUTPUT_DIR", "extracts"),
		TmpDir:      pc.MayString("TMP_DIR", "tmp"),
		ExportURL:   pc.MayString("EXPORT_URL", peppol.DefaultExportURL),
		HTTPTimeout: pc.MayDuration("HTTP_TIMEOUT", 0),
		MaxBytes:    pc.MayBytes("MAX_BYTES", splitmod.DefaultMaxBytes),
	}
}

// Validate checks the options
func (o Options) Validate() error { return validate.Struct(o) }
