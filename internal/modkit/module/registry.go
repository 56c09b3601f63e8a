package module

import (
	"sort"
	"sync"
)

// process-wide port sets keyed by module name, filled by modkit.BuildAll
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores the port set of a module; a later call for the same name wins
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Names lists the registered modules, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reset clears the registry; the CLI calls it before each build
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	reg = map[string]any{}
}
