package module

import (
	"strings"
	"testing"
)

// counterPort is a tiny port our Ports() payloads can implement
type counterPort interface {
	Count() int
}

type counterImpl struct{ n int }

func (c counterImpl) Count() int { return c.n }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string   { return m.name }
func (m fakeModule) Ports() PortSet { return m.ports }

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type bundle struct {
		Counter counterPort
		Label   string
	}
	type hidden struct {
		counter counterPort
	}

	cases := []struct {
		name   string
		ports  any
		want   int
		wantOK bool
	}{
		{"nil ports", nil, 0, false},
		{"direct", counterPort(counterImpl{n: 42}), 42, true},
		{"exported field", bundle{Counter: counterImpl{n: 7}, Label: "split"}, 7, true},
		{"unexported field ignored", hidden{counter: counterImpl{n: 1}}, 0, false},
		{"non struct", 12, 0, false},
	}
	for _, c := range cases {
		got, ok := PortsOf[counterPort](fakeModule{name: c.name, ports: c.ports})
		if ok != c.wantOK {
			t.Fatalf("%s: ok = %v, want %v", c.name, ok, c.wantOK)
		}
		if ok && got.Count() != c.want {
			t.Fatalf("%s: Count = %d, want %d", c.name, got.Count(), c.want)
		}
	}
}

func TestMustPortsOf(t *testing.T) {
	t.Parallel()

	m := fakeModule{name: "split", ports: counterPort(counterImpl{n: 99})}
	if got := MustPortsOf[counterPort](m); got.Count() != 99 {
		t.Fatalf("Count = %d, want 99", got.Count())
	}

	defer func() {
		msg, _ := recover().(string)
		if !strings.Contains(msg, "report") || !strings.Contains(msg, "requested port not found") {
			t.Fatalf("panic message should name the module, got %q", msg)
		}
	}()
	_ = MustPortsOf[counterPort](fakeModule{name: "report"})
}
