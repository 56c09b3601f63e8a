// Package module provides the sync module implementation
package module

import (
	"io"

	"peppolsync/internal/adapters/ingest/peppol"
	"peppolsync/internal/modkit"
	modkitmod "peppolsync/internal/modkit/module"
	perr "peppolsync/internal/platform/errors"
	splitdom "peppolsync/internal/services/split/domain"
	splitmod "peppolsync/internal/services/split/module"
	"peppolsync/internal/services/syncer/service"
)

// Name is the registry name of the sync module
const Name = "syncer"

// Ports defines the sync module ports
type Ports struct {
	Runner  service.Runner
	Fetcher peppol.Fetcher
}

// Module implements the sync module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the sync module. The split module must already be registered;
// out receives the terminal summary and may be nil
func New(deps modkit.Deps, out io.Writer, overrides ...func(*Options)) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	for _, o := range overrides {
		o(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sp, ok := modkitmod.Lookup[splitdom.SplitterPort](splitmod.Name)
	if !ok {
		return nil, perr.InvalidArgf("syncer: module %q is not registered", splitmod.Name)
	}

	f := peppol.NewCachedFetcher(opts.TmpDir,
		peppol.WithURL(opts.ExportURL),
		peppol.WithTimeout(opts.HTTPTimeout),
		peppol.WithLogger(deps.Logger("fetch")),
	)
	svc := service.New(service.Config{
		OutputDir: opts.OutputDir,
		TmpDir:    opts.TmpDir,
		MaxBytes:  opts.MaxBytes,
	}, f, sp, out)

	m := &Module{deps: deps, opts: opts, ports: Ports{Runner: svc, Fetcher: f}}
	deps.Logger(Name).Debug().
		Str("tmp", opts.TmpDir).
		Str("url", opts.ExportURL).
		Dur("timeout", opts.HTTPTimeout).
		Msg("syncer: module ready")
	return m, nil
}

// Builder adapts New to modkit.BuildAll
func Builder(out io.Writer, overrides ...func(*Options)) modkit.Builder {
	return func(d modkit.Deps) (modkit.Module, error) { return New(d, out, overrides...) }
}

// Name returns the module name
func (m *Module) Name() string { return Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }
