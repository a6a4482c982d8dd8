// Package downloader walks the archive for a resolved request and feeds
// every selected file through the pipeline.
package downloader

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ztrue/tracerr"

	"github.com/udbhav-44/3GPP-downloader/internal/convert"
	"github.com/udbhav-44/3GPP-downloader/internal/filter"
	"github.com/udbhav-44/3GPP-downloader/internal/pipeline"
	"github.com/udbhav-44/3GPP-downloader/internal/remote"
	"github.com/udbhav-44/3GPP-downloader/internal/selector"
)

// Dialer opens a new archive session. One session is used per series.
type Dialer func(ctx context.Context) (remote.Session, error)

type Options struct {
	DocMarker string
	Progress  io.Writer
}

// Summary counts what a run did.
type Summary struct {
	Downloaded int
	Skipped    int
	Results    []pipeline.Result
}

type Downloader struct {
	dial      Dialer
	converter convert.Converter
	opts      Options
	logger    *log.Logger
}

func New(dial Dialer, converter convert.Converter, opts Options, logger *log.Logger) *Downloader {
	return &Downloader{dial: dial, converter: converter, opts: opts, logger: logger}
}

// Run processes the series of req in order. The first error aborts the
// run and is returned with a stack trace attached.
func (d *Downloader) Run(ctx context.Context, req *filter.Request) (Summary, error) {
	var sum Summary

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return sum, tracerr.Wrap(fmt.Errorf("create output directory %s: %w", req.OutputDir, err))
	}

	for _, series := range req.Series() {
		sess, err := d.dial(ctx)
		if err != nil {
			return sum, tracerr.Wrap(fmt.Errorf("series %s: %w", series, err))
		}

		err = d.runSeries(ctx, sess, series, req, &sum)
		if closeErr := sess.Close(); closeErr != nil {
			d.logger.Printf("Error closing FTP connection: %v", closeErr)
		}
		if err != nil {
			return sum, tracerr.Wrap(fmt.Errorf("series %s: %w", series, err))
		}
	}

	d.logger.Printf("Download completed. %d file(s) downloaded, %d skipped.", sum.Downloaded, sum.Skipped)
	return sum, nil
}

func (d *Downloader) runSeries(ctx context.Context, sess remote.Session, series string, req *filter.Request, sum *Summary) error {
	p := pipeline.New(pipeline.Options{
		OutputDir: req.OutputDir,
		Extract:   req.Extract,
		PDF:       req.PDF,
		Purge:     req.Purge,
		DocMarker: d.opts.DocMarker,
		Progress:  d.opts.Progress,
	}, sess, d.converter, d.logger)

	if req.AllDocuments(series) {
		d.logger.Printf("Processing series %s (all documents)", series)
	} else {
		d.logger.Printf("Processing series %s (documents %s)", series, strings.Join(req.Documents(series), ", "))
	}

	dirs, err := sess.ListSeries(series)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		parts := strings.Split(dir, ".")
		if len(parts) < 2 {
			d.logger.Printf("Ignoring unexpected entry %s in series %s", dir, series)
			continue
		}
		document := parts[1]
		if !req.Wants(series, document) {
			continue
		}

		files, err := sess.ListDocumentFiles(series, document)
		if err != nil {
			return err
		}

		for _, name := range selector.Select(files, req.MajorVersions, req.Latest) {
			res, err := p.Process(ctx, remote.Entry{Series: series, Document: document, Name: name})
			if err != nil {
				return err
			}
			sum.Results = append(sum.Results, res)
			if res.State == pipeline.StateSkipped {
				sum.Skipped++
			} else {
				sum.Downloaded++
			}
		}
	}
	return nil
}
