package modkit

import "peppolsync/internal/modkit/module"

// Module is the common surface for modules that expose ports
type Module = module.Module

// Builder constructs a Module from shared deps
// modules typically expose New(deps Deps) and may delegate to this pattern
type Builder func(Deps) (Module, error)

// BuildAll builds modules in order and registers each module's ports under its name
// stops at the first builder error
func BuildAll(deps Deps, builders ...Builder) ([]Module, error) {
	out := make([]Module, 0, len(builders))
	for _, b := range builders {
		m, err := b(deps)
		if err != nil {
			return out, err
		}
		module.Register(m.Name(), m.Ports())
		out = append(out, m)
	}
	return out, nil
}
