package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"peppolsync/internal/adapters/ingest/peppol"
	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"
	kit "peppolsync/internal/platform/testkit"
	"peppolsync/internal/services/split/domain"
	"peppolsync/internal/services/split/stats"

	"github.com/stretchr/testify/require"
)

const exportHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><root xmlns="http://www.peppol.eu/schema/pd/businesscard-generic/201907/" version="2">`

func card(country, name, regdate string) string {
	var b strings.Builder
	b.WriteString("\n  <businesscard>")
	b.WriteString(`<participant scheme="iso6523-actorid-upis" value="0000:x"/>`)
	if country == "" {
		b.WriteString("<entity>")
	} else {
		fmt.Fprintf(&b, `<entity countrycode="%s">`, country)
	}
	if name != "" {
		fmt.Fprintf(&b, `<name name="%s"/>`, name)
	}
	if regdate != "" {
		fmt.Fprintf(&b, "<regdate>%s</regdate>", regdate)
	}
	b.WriteString("</entity></businesscard>")
	return b.String()
}

func export(cards ...string) string {
	return exportHeader + strings.Join(cards, "") + "\n</root>\n"
}

func writeExport(t *testing.T, body string) string {
	t.Helper()
	return kit.WriteFile(t, t.TempDir(), "export.xml", body)
}

func newSvc(out string, max int64) *Service {
	return New(Config{OutputRoot: out, MaxBytes: max, ChunkSize: 64})
}

// wellFormed decodes the whole file with the strict decoder
func wellFormed(t *testing.T, path string) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader([]byte(kit.ReadFile(t, path))))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err, "not well-formed: %s", path)
	}
}

func TestSplit_EndToEnd(t *testing.T) {
	in := writeExport(t, export(
		card("BE", "Ajax Corp!!", "2021-03-04"),
		card("BE", "Bolt", ""),
		card("NL", "Ajax Corp!!", ""),
	))
	out := t.TempDir()

	res, err := newSvc(out, 2_000_000).Split(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 3, res.RecordsProcessed)
	require.Equal(t, 3, res.RecordsWritten)
	require.Equal(t, 2, res.FilesCreated)
	require.Zero(t, res.SkippedTotal())

	require.Equal(t, 2, res.Stats.Country("BE"))
	require.Equal(t, 1, res.Stats.Country("NL"))
	require.Equal(t, 1, res.Stats.Date("2021-03-04"))
	require.Equal(t, 1, res.Stats.Date("2000-BOLT"))
	require.Equal(t, 1, res.Stats.Date("2000-AJAXC"))

	be := filepath.Join(out, "BE", "business-cards.000001.xml")
	nl := filepath.Join(out, "NL", "business-cards.000001.xml")
	require.Equal(t, []string{be}, kit.ListFiles(t, out, "BE/*.xml"))
	require.Equal(t, []string{nl}, kit.ListFiles(t, out, "NL/*.xml"))

	body := kit.ReadFile(t, be)
	require.True(t, strings.HasPrefix(body, "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"yes\"?>\n<root "))
	require.Equal(t, 2, strings.Count(body, "<businesscard>"))
	require.Contains(t, body, "\n    <businesscard>\n      <participant")
	require.True(t, strings.HasSuffix(body, "\n    </businesscard>\n</root>\n"))
	wellFormed(t, be)
	wellFormed(t, nl)
}

func TestSplit_MalformedFragmentSkipped(t *testing.T) {
	in := writeExport(t, export(
		card("BE", "A", "2021-01-01"),
		"\n  <businesscard><entity countrycode=\"BE\"><name name=\"broken\"></entity></businesscard>",
		card("BE", "C", "2021-01-02"),
	))
	out := t.TempDir()

	res, err := newSvc(out, 2_000_000).Split(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 3, res.RecordsProcessed)
	require.Equal(t, 2, res.RecordsWritten)
	require.Equal(t, 1, res.Skipped[domain.SkipMalformed])
	require.Equal(t, 2, res.Stats.Country("BE"))

	body := kit.ReadFile(t, filepath.Join(out, "BE", "business-cards.000001.xml"))
	require.NotContains(t, body, "broken")
	require.Equal(t, 2, strings.Count(body, "<businesscard>"))
}

func TestSplit_MissingAndInvalidKeysNotWrittenNorCounted(t *testing.T) {
	in := writeExport(t, export(
		card("", "NoCountry", "2021-01-01"),
		card("../evil", "Evil", "2021-01-01"),
		card("DE", "Ok", "2021-01-01"),
	))
	out := t.TempDir()

	res, err := newSvc(out, 2_000_000).Split(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 3, res.RecordsProcessed)
	require.Equal(t, 1, res.RecordsWritten)
	require.Equal(t, 1, res.Skipped[domain.SkipMissingKey])
	require.Equal(t, 1, res.Skipped[domain.SkipInvalidKey])
	require.Equal(t, []string{"DE"}, res.Stats.Countries())
	require.Equal(t, 1, res.Stats.Date("2021-01-01"))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "DE", entries[0].Name())
}

func TestSplit_RotationContiguousAndBounded(t *testing.T) {
	var cards []string
	for i := range 60 {
		cards = append(cards, card("FR", fmt.Sprintf("Company %d", i), "2020-05-05"))
	}
	in := writeExport(t, export(cards...))
	out := t.TempDir()
	const max = 1500

	res, err := newSvc(out, max).Split(context.Background(), in)
	require.NoError(t, err)

	files := kit.ListFiles(t, out, "FR/*.xml")
	require.Greater(t, len(files), 2)
	require.Equal(t, len(files), res.FilesCreated)

	total := 0
	for i, f := range files {
		require.Equal(t, filepath.Join(out, "FR", fmt.Sprintf("business-cards.%06d.xml", i+1)), f)
		wellFormed(t, f)
		body := kit.ReadFile(t, f)
		n := strings.Count(body, "<businesscard>")
		require.Positive(t, n)
		total += n

		// without its last record and closing tag, a file is within the limit
		last := strings.LastIndex(body, "\n    <businesscard>")
		require.LessOrEqual(t, last, max, "file %s grew past the limit before its last record", f)
	}
	require.Equal(t, 60, total)
}

func TestSplit_CounterSumsMatchWritten(t *testing.T) {
	in := writeExport(t, export(
		card("BE", "a", "2021-01-01"),
		card("NL", "b", ""),
		card("", "c", ""),
		card("LU", "", ""),
		card("BE", "d", "2022-02-02T10:00"),
	))
	res, err := newSvc(t.TempDir(), 2_000_000).Split(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, res.RecordsWritten, res.Stats.Total(domain.CountryPrefix))
	require.Equal(t, res.RecordsWritten, res.Stats.Total(domain.DatePrefix))
	require.Equal(t, res.RecordsProcessed, res.RecordsWritten+res.SkippedTotal())
	require.Equal(t, 1, res.Stats.Date("2000-UNKNOWN"))
	require.Equal(t, 1, res.Stats.Date("2022-02-02"))
}

func TestSplit_Idempotent(t *testing.T) {
	var cards []string
	for i := range 25 {
		cards = append(cards, card([]string{"BE", "NL", "DE"}[i%3], fmt.Sprintf("Firm%d", i), ""))
	}
	in := writeExport(t, export(cards...))

	outA, outB := t.TempDir(), t.TempDir()
	resA, err := newSvc(outA, 800).Split(context.Background(), in)
	require.NoError(t, err)
	resB, err := New(Config{OutputRoot: outB, MaxBytes: 800, ChunkSize: 7}).Split(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, resA.FilesCreated, resB.FilesCreated)
	require.Equal(t, resA.Stats.Map(), resB.Stats.Map())

	filesA := kit.ListFiles(t, outA, "*/*.xml")
	filesB := kit.ListFiles(t, outB, "*/*.xml")
	require.Len(t, filesB, len(filesA))
	for i := range filesA {
		relA, _ := filepath.Rel(outA, filesA[i])
		relB, _ := filepath.Rel(outB, filesB[i])
		require.Equal(t, relA, relB)
		require.Equal(t, kit.ReadFile(t, filesA[i]), kit.ReadFile(t, filesB[i]))
	}
}

func TestSplit_NoRecords(t *testing.T) {
	in := writeExport(t, `<?xml version="1.0"?><root></root>`)
	out := t.TempDir()
	res, err := newSvc(out, 100).Split(context.Background(), in)
	require.NoError(t, err)
	require.Zero(t, res.RecordsProcessed)
	require.Zero(t, res.FilesCreated)
	require.Zero(t, res.Stats.Len())
	entries, _ := os.ReadDir(out)
	require.Empty(t, entries)
}

func TestSplit_DanglingRecordDropped(t *testing.T) {
	body := exportHeader + card("BE", "a", "") + "\n  <businesscard><entity countrycode=\"BE\">"
	res, err := newSvc(t.TempDir(), 2_000_000).Split(context.Background(), writeExport(t, body))
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsProcessed)
	require.Equal(t, 1, res.RecordsWritten)
}

func TestSplit_MissingInput(t *testing.T) {
	_, err := newSvc(t.TempDir(), 100).Split(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	require.True(t, perr.IsCode(err, perr.ErrorCodeStreamIO), "got %v", err)
}

type cancelOnHit struct {
	domain.StatsRecorder
	cancel context.CancelFunc
}

func (c cancelOnHit) CountryHit(key string) {
	c.StatsRecorder.CountryHit(key)
	c.cancel()
}

func TestSplit_InterruptClosesFiles(t *testing.T) {
	in := writeExport(t, export(card("BE", "a", ""), card("BE", "b", ""), card("NL", "c", "")))
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newSvc(out, 2_000_000)
	kit.Swap(t, &svc.newStats, func() domain.StatsRecorder {
		return cancelOnHit{StatsRecorder: stats.New(), cancel: cancel}
	})

	res, err := svc.Split(ctx, in)
	require.Equal(t, perr.ExitInterrupted, perr.ExitCode(err))
	require.Equal(t, 1, res.RecordsWritten)
	require.Equal(t, 1, res.FilesCreated)

	f := filepath.Join(out, "BE", "business-cards.000001.xml")
	require.True(t, strings.HasSuffix(kit.ReadFile(t, f), "\n</root>\n"))
	wellFormed(t, f)
}

type failAfter struct {
	r io.Reader
	n int
}

func (f *failAfter) Read(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("device gone")
	}
	if len(p) > f.n {
		p = p[:f.n]
	}
	n, err := f.r.Read(p)
	f.n -= n
	return n, err
}

func (f *failAfter) Close() error { return nil }

func TestSplit_StreamErrorIsFatalAndFilesClosed(t *testing.T) {
	body := export(card("BE", "a", ""), card("BE", "b", ""), card("BE", "c", ""))
	out := t.TempDir()
	svc := newSvc(out, 2_000_000)
	cut := strings.Index(body, "<businesscard>") + len(card("BE", "a", "")) + 20
	kit.Swap(t, &svc.openInput, func(string) (io.ReadCloser, error) {
		return &failAfter{r: strings.NewReader(body), n: cut}, nil
	})

	res, err := svc.Split(context.Background(), "ignored")
	require.True(t, perr.IsCode(err, perr.ErrorCodeStreamIO), "got %v", err)
	require.Equal(t, perr.ExitFailure, perr.ExitCode(err))
	require.Equal(t, 1, res.RecordsWritten)
	wellFormed(t, filepath.Join(out, "BE", "business-cards.000001.xml"))
}

func TestSplit_FilesystemErrorIsFatal(t *testing.T) {
	out := t.TempDir()
	kit.WriteFile(t, out, "BE", "blocks the directory")
	in := writeExport(t, export(card("BE", "a", "")))

	_, err := newSvc(out, 2_000_000).Split(context.Background(), in)
	require.True(t, perr.IsCode(err, perr.ErrorCodeFilesystem), "got %v", err)
}

func TestClassify(t *testing.T) {
	out := Classify(peppol.Fragment{Seq: 7, Bytes: []byte(card("BE", "Ajax Corp!!", ""))})
	require.True(t, out.Accepted())
	require.Equal(t, 7, out.Seq)
	require.Equal(t, "BE", out.Key)
	require.Equal(t, "2000-AJAXC", out.Secondary)
	require.True(t, strings.HasPrefix(out.Record, "    <businesscard>"))

	bad := Classify(peppol.Fragment{Seq: 8, Bytes: []byte("<businesscard><x></businesscard>")})
	require.Equal(t, domain.SkipMalformed, bad.Skip)
	require.True(t, perr.IsCode(bad.Err, perr.ErrorCodeRecordParse))
}

func TestClassify_KeyProblemsAreRecoverable(t *testing.T) {
	missing := Classify(peppol.Fragment{Seq: 1, Bytes: []byte(`<businesscard><entity><name name="n"/></entity></businesscard>`)})
	require.Equal(t, domain.SkipMissingKey, missing.Skip)
	require.True(t, perr.IsCode(missing.Err, perr.ErrorCodeMissingGroupKey))
	require.False(t, perr.CodeOf(missing.Err).Fatal())

	unsafe := Classify(peppol.Fragment{Seq: 2, Bytes: []byte(card("../x", "n", ""))})
	require.Equal(t, domain.SkipInvalidKey, unsafe.Skip)
	require.Equal(t, "../x", unsafe.Key)
	require.True(t, perr.IsCode(unsafe.Err, perr.ErrorCodeMissingGroupKey))
	fe, ok := perr.As(unsafe.Err)
	require.True(t, ok)
	require.Equal(t, "countrycode", fe.Field())
	require.False(t, perr.CodeOf(unsafe.Err).Fatal())
}

func TestSafeKey(t *testing.T) {
	for _, k := range []string{"BE", "nl", "XK-1", "A_B"} {
		require.True(t, SafeKey(k), k)
	}
	for _, k := range []string{"", "..", "a/b", `a\b`, "B E", "É"} {
		require.False(t, SafeKey(k), k)
	}
}

func TestMain(m *testing.M) {
	logger.Init(logger.Options{Level: "error", Format: "json", Writer: io.Discard})
	os.Exit(m.Run())
}
