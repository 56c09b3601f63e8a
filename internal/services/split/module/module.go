// Package module provides the split module implementation
package module

import (
	"peppolsync/internal/modkit"
	"peppolsync/internal/services/split/domain"
	"peppolsync/internal/services/split/service"
)

// Name is the registry name of the split module
const Name = "split"

// Ports defines the split module ports
type Ports struct {
	Splitter domain.SplitterPort
}

// Module implements the split module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the split module from config in deps.Cfg, with overrides applied
// after reading config. Options are validated
func New(deps modkit.Deps, overrides ...func(*Options)) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	for _, o := range overrides {
		o(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	svc := service.New(service.Config{
		OutputRoot:    opts.OutputDir,
		MaxBytes:      opts.MaxBytes,
		ChunkSize:     int(opts.ChunkBytes),
		ProgressEvery: opts.ProgressEvery,
	})

	m := &Module{deps: deps, opts: opts}
	m.ports = Ports{Splitter: svc}
	deps.Logger(Name).Debug().
		Str("out", opts.OutputDir).
		Int64("max_bytes", opts.MaxBytes).
		Int64("chunk_bytes", opts.ChunkBytes).
		Msg("split: module ready")
	return m, nil
}

// Builder adapts New to modkit.BuildAll
func Builder(overrides ...func(*Options)) modkit.Builder {
	return func(d modkit.Deps) (modkit.Module, error) { return New(d, overrides...) }
}

// Name returns the module name
func (m *Module) Name() string { return Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }
