// Package pipeline downloads, extracts and converts one archive file at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/udbhav-44/3GPP-downloader/internal/convert"
	"github.com/udbhav-44/3GPP-downloader/internal/remote"
)

// DefaultDocMarker selects the archive members worth extracting. It also
// matches .docx.
const DefaultDocMarker = ".doc"

// State is the terminal state of a processed file.
type State int

const (
	StateSkipped State = iota
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSkipped:
		return "skipped"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Fetcher retrieves archive files. remote.Session satisfies it.
type Fetcher interface {
	Size(e remote.Entry) (int64, error)
	Retrieve(e remote.Entry, w io.Writer) (int64, error)
}

// Options control which stages run.
type Options struct {
	OutputDir string
	Extract   bool
	PDF       bool
	Purge     bool
	DocMarker string
	// Progress receives a progress bar per download when set.
	Progress io.Writer
}

// Result describes what happened to one file.
type Result struct {
	Entry     remote.Entry
	State     State
	ZipPath   string
	Extracted []string
	Converted []string
}

type Pipeline struct {
	opts      Options
	fetcher   Fetcher
	converter convert.Converter
	logger    *log.Logger
}

func New(opts Options, fetcher Fetcher, converter convert.Converter, logger *log.Logger) *Pipeline {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.DocMarker == "" {
		opts.DocMarker = DefaultDocMarker
	}
	return &Pipeline{opts: opts, fetcher: fetcher, converter: converter, logger: logger}
}

// Process runs every enabled stage for e. Download and extraction errors
// are returned; conversion problems are only logged.
func (p *Pipeline) Process(ctx context.Context, e remote.Entry) (Result, error) {
	res := Result{Entry: e}

	exists, err := ArtifactExists(p.opts.OutputDir, e.Name)
	if err != nil {
		return res, err
	}
	if exists {
		p.logger.Printf("Artifact of %s exists. Skipping...", e.Name)
		res.State = StateSkipped
		return res, nil
	}

	zipPath, err := p.download(e)
	if err != nil {
		return res, err
	}
	res.ZipPath = zipPath

	if p.opts.Extract || p.opts.PDF {
		extracted, err := p.extract(zipPath)
		if err != nil {
			return res, err
		}
		res.Extracted = extracted
	}

	if p.opts.PDF {
		res.Converted = p.toPDF(ctx, res.Extracted)
	}

	res.State = StateDone
	return res, nil
}

// ArtifactExists reports whether anything in dir starts with the stem of
// zipName. A downloaded archive, an extracted document and a converted PDF
// all count.
func ArtifactExists(dir, zipName string) (bool, error) {
	stem := strings.TrimSuffix(zipName, filepath.Ext(zipName))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("scan output directory: %w", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), stem) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Pipeline) download(e remote.Entry) (string, error) {
	localPath := filepath.Join(p.opts.OutputDir, e.Name)

	remoteSize, err := p.fetcher.Size(e)
	if err != nil {
		p.logger.Printf("WARNING: Cannot retrieve remote file size for %s: %v", e.Name, err)
		remoteSize = -1
	}

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}

	var w io.Writer = file
	var bar *progressbar.ProgressBar
	if p.opts.Progress != nil {
		bar = progressbar.NewOptions64(remoteSize,
			progressbar.OptionSetWriter(p.opts.Progress),
			progressbar.OptionSetDescription(e.Name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(p.opts.Progress)
			}),
		)
		w = io.MultiWriter(file, bar)
	}

	n, err := p.fetcher.Retrieve(e, w)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", localPath, closeErr)
	}
	if err == nil && remoteSize > 0 && n != remoteSize {
		err = fmt.Errorf("download size mismatch for %s: expected %d bytes, got %d bytes", e.Name, remoteSize, n)
	}
	if err != nil {
		if bar != nil {
			// Leave the line free for the error message.
			_ = bar.Clear()
		}
		// A partial archive would pass the artifact check on the next run.
		_ = os.Remove(localPath)
		return "", err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	p.logger.Printf("%s downloaded", e.Name)
	return localPath, nil
}
