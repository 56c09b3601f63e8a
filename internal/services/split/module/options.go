package module

import (
	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/platform/config"
	"peppolsync/internal/platform/validate"
)

// DefaultMaxBytes is the size past which a group's file is rotated
const DefaultMaxBytes = 2_000_000

// Options holds configuration options for the split service
type Options struct {
	OutputDir     string `flag:"out" validate:"required"`
	MaxBytes      int64  `flag:"max" validate:"gt=0"`
	ChunkBytes    int64  `flag:"chunk" validate:"min=64,max=268435456"`
	ProgressEvery int    `flag:"progress" validate:"min=0"`
}

// FromConfig reads the split options from config with PEPPOL_ prefix
func FromConfig(cfg config.Conf) Options {
	pc := cfg.Prefix("PEPPOL_")
	return Options{
		OutputDir:     pc.MayString("OUTPUT_DIR", "extracts"),
		MaxBytes:      pc.MayBytes("MAX_BYTES", DefaultMaxBytes),
		ChunkBytes:    pc.MayBytes("CHUNK_BYTES", peppol.DefaultChunkSize),
		ProgressEvery: pc.MayInt("PROGRESS_EVERY", 100_000),
	}
}

// Validate checks the options
func (o Options) Validate() error { return validate.Struct(o) }
