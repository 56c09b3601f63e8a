package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kit "peppolsync/internal/platform/testkit"
	"peppolsync/internal/services/split/domain"
)

var when = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func snapshot() domain.Snapshot {
	return domain.NewSnapshot(map[string]int{
		"country_BE":      2,
		"country_NL":      1,
		"country_XX":      4, // counted but no directory
		"date_2021-03-04": 1,
		"date_2021-11-30": 1,
		"date_2000-AJAXC": 1,
	})
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	kit.WriteFile(t, root, "BE/business-cards.000001.xml", strings.Repeat("a", 1024))
	kit.WriteFile(t, root, "BE/business-cards.000002.xml", strings.Repeat("b", 1024))
	kit.WriteFile(t, root, "BE/notes.txt", "ignored")
	kit.WriteFile(t, root, "NL/business-cards.000001.xml", "x")

	r, err := Build(snapshot(), root, when)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.Countries) != 2 || r.Countries[0].Country != "BE" || r.Countries[1].Country != "NL" {
		t.Fatalf("countries = %+v", r.Countries)
	}
	be := r.Countries[0]
	if be.Files != 2 || be.Cards != 2 || be.Bytes != 2048 {
		t.Fatalf("BE row = %+v", be)
	}
	if r.Total.Files != 3 || r.Total.Cards != 3 || r.Total.Bytes != 2049 {
		t.Fatalf("total = %+v", r.Total)
	}
	want := []YearRow{{"2000", 1}, {"2021", 2}}
	if len(r.Years) != len(want) || r.Years[0] != want[0] || r.Years[1] != want[1] {
		t.Fatalf("years = %+v", r.Years)
	}
}

func TestRender(t *testing.T) {
	r := Report{
		Generated: when,
		Countries: []CountryRow{{Country: "BE", Files: 2, Cards: 10, Bytes: 3 << 20}},
		Total:     CountryRow{Country: "Total", Files: 2, Cards: 10, Bytes: 3 << 20},
		Years:     []YearRow{{"2021", 10}},
	}
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	kit.MustContain(t, out, "# PEPPOL Sync Report\n\nGenerated on: 2025-03-04 05:06:07\n")
	kit.MustContain(t, out, "| Country | Files | Cards | Size (MB) |\n|---|---:|---:|---:|\n")
	kit.MustContain(t, out, "| BE | 2 | 10 | 3.00 |\n")
	kit.MustContain(t, out, "| **Total** | **2** | **10** | **3.00** |\n")
	kit.MustContain(t, out, "| 2021 | 10 |\n")
}

func TestRender_NoYears(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Report{Generated: when}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "by year") {
		t.Fatalf("year table should be omitted")
	}
	kit.MustContain(t, buf.String(), "| **Total** | **0** | **0** | **0.00** |")
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	kit.WriteFile(t, root, "BE/business-cards.000001.xml", "x")

	path, err := Write(snapshot(), root, when)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(root, FileName) {
		t.Fatalf("path = %s", path)
	}
	kit.MustContain(t, kit.ReadFile(t, path), "| BE | 1 | 2 | 0.00 |")
}
