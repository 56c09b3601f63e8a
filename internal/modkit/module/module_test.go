package module

import "testing"

// stubModule is a minimal test double that satisfies Module
type stubModule struct {
	ports any
}

// Ports returns the configured ports value
func (s *stubModule) Ports() any   { return s.ports }
func (s *stubModule) Name() string { return "stub" }

// compile time assertion that stubModule implements Module
var _ Module = (*stubModule)(nil)

func HasPorts(m Module) bool {
	if m == nil {
		return false
	}
	return m.Ports() != nil
}

func TestModule_HasPorts(t *testing.T) {
	if HasPorts(nil) {
		t.Fatalf("nil module has no ports")
	}
	if HasPorts(&stubModule{}) {
		t.Fatalf("nil ports should report false")
	}
	if !HasPorts(&stubModule{ports: struct{}{}}) {
		t.Fatalf("expected ports")
	}
}
