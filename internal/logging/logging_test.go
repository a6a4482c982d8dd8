package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/udbhav-44/3GPP-downloader/internal/logging"
)

func TestOpenWritesToFallback(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink, err := logging.Open("", &buf, time.Now())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sink.Close()
	sink.Logger.Printf("hello")
	if !strings.Contains(buf.String(), "["+sink.RunID+"] ") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}

func TestOpenWritesDailyFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "logs")
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	sink, err := logging.Open(dir, nil, day)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sink.Logger.Printf("downloaded")
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := filepath.Join(dir, "specdl-2024-03-09.log")
	if sink.Path != want {
		t.Fatalf("path = %s, want %s", sink.Path, want)
	}
	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "downloaded") {
		t.Fatalf("log file missing line: %q", b)
	}
}
