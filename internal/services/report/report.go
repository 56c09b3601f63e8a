// Package report renders the markdown summary of a split run
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/services/split/domain"
)

// FileName is the report written at the output root
const FileName = "report.md"

// CountryRow is one line of the country table
type CountryRow struct {
	Country string
	Files   int
	Cards   int
	Bytes   int64
}

// YearRow is one line of the year table
type YearRow struct {
	Year  string
	Cards int
}

// Report is the data behind report.md
type Report struct {
	Generated time.Time
	Countries []CountryRow
	Years     []YearRow
	Total     CountryRow
}

// Build collects per-country file counts and sizes under root for every counted
// country that has a directory, and aggregates the secondary keys by year
func Build(snap domain.Snapshot, root string, now time.Time) (Report, error) {
	r := Report{Generated: now, Total: CountryRow{Country: "Total"}}
	for _, c := range snap.Countries() {
		dir := filepath.Join(root, c)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
		if err != nil {
			return Report{}, perr.Filesystemf(err, "report: list %s", dir)
		}
		row := CountryRow{Country: c, Files: len(files), Cards: snap.Country(c)}
		for _, f := range files {
			fi, err := os.Stat(f)
			if err != nil {
				return Report{}, perr.Filesystemf(err, "report: stat %s", f)
			}
			row.Bytes += fi.Size()
		}
		r.Countries = append(r.Countries, row)
		r.Total.Files += row.Files
		r.Total.Cards += row.Cards
		r.Total.Bytes += row.Bytes
	}
	r.Years = years(snap)
	return r, nil
}

// years folds date keys ("2021-03-04", "2000-AJAXC") into their leading year
func years(snap domain.Snapshot) []YearRow {
	by := map[string]int{}
	for _, d := range snap.Dates() {
		y := d
		if len(y) >= 4 {
			y = y[:4]
		}
		by[y] += snap.Date(d)
	}
	out := make([]YearRow, 0, len(by))
	for y, n := range by {
		out = append(out, YearRow{Year: y, Cards: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Render writes r as markdown
func Render(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# PEPPOL Sync Report\n\n")
	fmt.Fprintf(bw, "Generated on: %s\n\n", r.Generated.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(bw, "| Country | Files | Cards | Size (MB) |\n")
	fmt.Fprintf(bw, "|---|---:|---:|---:|\n")
	for _, c := range r.Countries {
		fmt.Fprintf(bw, "| %s | %d | %d | %.2f |\n", c.Country, c.Files, c.Cards, mb(c.Bytes))
	}
	fmt.Fprintf(bw, "| **Total** | **%d** | **%d** | **%.2f** |\n", r.Total.Files, r.Total.Cards, mb(r.Total.Bytes))

	if len(r.Years) > 0 {
		fmt.Fprintf(bw, "\n## Registrations by year\n\n")
		fmt.Fprintf(bw, "| Year | Cards |\n")
		fmt.Fprintf(bw, "|---|---:|\n")
		for _, y := range r.Years {
			fmt.Fprintf(bw, "| %s | %d |\n", y.Year, y.Cards)
		}
	}
	return bw.Flush()
}

// Write builds the report for root and stores it as root/report.md
func Write(snap domain.Snapshot, root string, now time.Time) (string, error) {
	r, err := Build(snap, root, now)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", perr.Filesystemf(err, "report: mkdir %s", root)
	}
	path := filepath.Join(root, FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", perr.Filesystemf(err, "report: create %s", path)
	}
	if err := Render(f, r); err != nil {
		_ = f.Close()
		return "", perr.Filesystemf(err, "report: write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", perr.Filesystemf(err, "report: close %s", path)
	}
	return path, nil
}

func mb(n int64) float64 { return float64(n) / (1024 * 1024) }
