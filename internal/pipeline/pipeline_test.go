package pipeline_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/udbhav-44/3GPP-downloader/internal/convert"
	"github.com/udbhav-44/3GPP-downloader/internal/pipeline"
	"github.com/udbhav-44/3GPP-downloader/internal/remote"
)

type fakeFetcher struct {
	files   map[string][]byte
	fetched []string
	failOn  string
}

func (f *fakeFetcher) Size(e remote.Entry) (int64, error) {
	b, ok := f.files[e.Name]
	if !ok {
		return -1, errors.New("no such file")
	}
	return int64(len(b)), nil
}

func (f *fakeFetcher) Retrieve(e remote.Entry, w io.Writer) (int64, error) {
	f.fetched = append(f.fetched, e.Name)
	if e.Name == f.failOn {
		_, _ = w.Write([]byte("PK"))
		return 2, errors.New("connection reset")
	}
	n, err := w.Write(f.files[e.Name])
	return int64(n), err
}

type fakeConverter struct {
	inputs []string
	outDir string
	fail   bool
}

func (c *fakeConverter) Convert(_ context.Context, input, outDir string) error {
	c.inputs = append(c.inputs, input)
	c.outDir = outDir
	if c.fail {
		return errors.New("office suite not installed")
	}
	return os.WriteFile(convert.OutputPath(input, outDir), []byte("%PDF-1.4\n"), 0o644)
}

func zipWith(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write member: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

var entry = remote.Entry{Series: "33", Document: "117", Name: "33117-g10.zip"}

func TestProcessDownloadOnly(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"33117-g10.doc": "doc"})}}
	p := pipeline.New(pipeline.Options{OutputDir: out}, fetcher, &fakeConverter{}, quietLogger())

	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.State != pipeline.StateDone {
		t.Fatalf("expected done, got %s", res.State)
	}
	if _, err := os.Stat(filepath.Join(out, entry.Name)); err != nil {
		t.Fatalf("zip should be downloaded: %v", err)
	}
	if len(res.Extracted) != 0 {
		t.Fatalf("nothing should be extracted: %v", res.Extracted)
	}
}

func TestProcessSecondRunSkips(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"33117-g10.doc": "doc"})}}
	p := pipeline.New(pipeline.Options{OutputDir: out, Extract: true}, fetcher, &fakeConverter{}, quietLogger())

	if _, err := p.Process(context.Background(), entry); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.State != pipeline.StateSkipped {
		t.Fatalf("expected skipped, got %s", res.State)
	}
	if len(fetcher.fetched) != 1 {
		t.Fatalf("expected a single download, got %v", fetcher.fetched)
	}
}

func TestProcessSkipsWhenOnlyPDFRemains(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "33117-g10.pdf"), []byte("pdf"), 0o644); err != nil {
		t.Fatalf("seed pdf: %v", err)
	}
	fetcher := &fakeFetcher{files: map[string][]byte{}}
	p := pipeline.New(pipeline.Options{OutputDir: out}, fetcher, &fakeConverter{}, quietLogger())
	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.State != pipeline.StateSkipped || len(fetcher.fetched) != 0 {
		t.Fatalf("expected skip without download, got %s %v", res.State, fetcher.fetched)
	}
}

func TestProcessExtractPurgesZip(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	archive := zipWith(t, map[string]string{
		"33117-g10.docx": "spec",
		"cover.txt":      "ignored",
		"annex/a.doc":    "annex",
	})
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: archive}}
	p := pipeline.New(pipeline.Options{OutputDir: out, Extract: true, Purge: true}, fetcher, &fakeConverter{}, quietLogger())

	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Extracted) != 2 {
		t.Fatalf("expected two extracted documents, got %v", res.Extracted)
	}
	if _, err := os.Stat(filepath.Join(out, entry.Name)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("zip should be purged, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "annex", "a.doc")); err != nil {
		t.Fatalf("nested member should keep its directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "cover.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("non document member should not be extracted")
	}
}

func TestProcessPDFConvertsAndPurges(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"33117-g10.doc": "spec"})}}
	conv := &fakeConverter{}
	p := pipeline.New(pipeline.Options{OutputDir: out, PDF: true, Purge: true}, fetcher, conv, quietLogger())

	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	doc := filepath.Join(out, "33117-g10.doc")
	if !reflect.DeepEqual(conv.inputs, []string{doc}) || conv.outDir != out {
		t.Fatalf("unexpected converter call: %v into %s", conv.inputs, conv.outDir)
	}
	if !reflect.DeepEqual(res.Converted, []string{filepath.Join(out, "33117-g10.pdf")}) {
		t.Fatalf("unexpected converted paths: %v", res.Converted)
	}
	for _, gone := range []string{doc, filepath.Join(out, entry.Name)} {
		if _, err := os.Stat(gone); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s should be purged", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "33117-g10.pdf")); err != nil {
		t.Fatalf("pdf should remain: %v", err)
	}
}

func TestProcessKeepsDocumentWhenConverterCannotStart(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"33117-g10.doc": "spec"})}}
	p := pipeline.New(pipeline.Options{OutputDir: out, PDF: true, Purge: true}, fetcher, &fakeConverter{fail: true}, quietLogger())

	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("conversion failures should not abort: %v", err)
	}
	if len(res.Converted) != 0 {
		t.Fatalf("nothing should be converted: %v", res.Converted)
	}
	if _, err := os.Stat(filepath.Join(out, "33117-g10.doc")); err != nil {
		t.Fatalf("document should be kept: %v", err)
	}
}

func TestProcessRejectsEscapingMember(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"../evil.doc": "x"})}}
	p := pipeline.New(pipeline.Options{OutputDir: out, Extract: true}, fetcher, &fakeConverter{}, quietLogger())

	if _, err := p.Process(context.Background(), entry); !errors.Is(err, pipeline.ErrUnsafeMember) {
		t.Fatalf("expected unsafe member error, got %v", err)
	}
}

func TestProcessDownloadFailureRemovesPartialFile(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: []byte("whatever")}, failOn: entry.Name}
	p := pipeline.New(pipeline.Options{OutputDir: out}, fetcher, &fakeConverter{}, quietLogger())

	if _, err := p.Process(context.Background(), entry); err == nil {
		t.Fatalf("expected download error")
	}
	exists, err := pipeline.ArtifactExists(out, entry.Name)
	if err != nil {
		t.Fatalf("artifact check: %v", err)
	}
	if exists {
		t.Fatalf("partial download should not count as an artifact")
	}
}

func TestArtifactExistsIsPrefixMatch(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	if exists, err := pipeline.ArtifactExists(filepath.Join(out, "missing"), entry.Name); err != nil || exists {
		t.Fatalf("missing directory: exists=%v err=%v", exists, err)
	}
	if err := os.WriteFile(filepath.Join(out, "33117-g10-annex.doc"), nil, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if exists, _ := pipeline.ArtifactExists(out, entry.Name); !exists {
		t.Fatalf("file sharing the stem should count as an artifact")
	}
	if exists, _ := pipeline.ArtifactExists(out, "33117-g20.zip"); exists {
		t.Fatalf("different stem should not match")
	}
}

func TestProcessDownloadFailureClearsProgressLine(t *testing.T) {
	t.Parallel()
	var progress bytes.Buffer
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: []byte("whatever")}, failOn: entry.Name}
	p := pipeline.New(pipeline.Options{OutputDir: t.TempDir(), Progress: &progress}, fetcher, &fakeConverter{}, quietLogger())

	if _, err := p.Process(context.Background(), entry); err == nil {
		t.Fatalf("expected download error")
	}
	if out := progress.String(); out != "" && !strings.HasSuffix(out, "\r") && !strings.HasSuffix(out, "\n") {
		t.Fatalf("progress line left open: %q", out)
	}
}

func TestProcessWarnsOnUnreadablePDF(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	out := t.TempDir()
	fetcher := &fakeFetcher{files: map[string][]byte{entry.Name: zipWith(t, map[string]string{"33117-g10.doc": "spec"})}}
	p := pipeline.New(pipeline.Options{OutputDir: out, PDF: true}, fetcher, &fakeConverter{}, log.New(&logs, "", 0))

	res, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Converted) != 1 {
		t.Fatalf("conversion should still be reported: %v", res.Converted)
	}
	if !strings.Contains(logs.String(), "WARNING: 33117-g10.doc converted but 33117-g10.pdf is not a readable pdf") {
		t.Fatalf("expected unreadable pdf warning, got %q", logs.String())
	}
}
