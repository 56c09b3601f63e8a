package modkit

import (
	"errors"
	"testing"

	"peppolsync/internal/modkit/module"
)

// stub module that satisfies Module
type stub struct {
	name  string
	ports any
}

func (s *stub) Ports() any   { return s.ports }
func (s *stub) Name() string { return s.name }

// compile-time assertion: stub implements Module
var _ Module = (*stub)(nil)

func TestBuildAll_RegistersPorts(t *testing.T) {
	module.Reset()
	t.Cleanup(module.Reset)

	mods, err := BuildAll(Deps{},
		func(Deps) (Module, error) { return &stub{name: "a", ports: 1}, nil },
		func(Deps) (Module, error) { return &stub{name: "b", ports: "two"}, nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("built %d modules, want 2", len(mods))
	}
	if v, ok := module.PortsAs[int]("a"); !ok || v != 1 {
		t.Fatalf("ports of a = %v,%v", v, ok)
	}
	if v, ok := module.PortsAs[string]("b"); !ok || v != "two" {
		t.Fatalf("ports of b = %v,%v", v, ok)
	}
}

func TestBuildAll_StopsAtError(t *testing.T) {
	module.Reset()
	t.Cleanup(module.Reset)

	boom := errors.New("boom")
	calls := 0
	mods, err := BuildAll(Deps{},
		func(Deps) (Module, error) { calls++; return &stub{name: "a"}, nil },
		func(Deps) (Module, error) { calls++; return nil, boom },
		func(Deps) (Module, error) { calls++; return &stub{name: "c"}, nil },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 2 || len(mods) != 1 {
		t.Fatalf("calls=%d mods=%d", calls, len(mods))
	}
}
