package version

import "testing"

func TestInfo_Defaults(t *testing.T) {
	b := Info()
	if b.Version != "dev" || b.Commit != "none" || b.Date != "unknown" {
		t.Fatalf("unexpected defaults: %+v", b)
	}
	if got := b.String(); got != "dev (none, unknown)" {
		t.Fatalf("String = %q", got)
	}
}
