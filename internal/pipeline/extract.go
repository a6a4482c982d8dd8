package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/udbhav-44/3GPP-downloader/internal/convert"
)

// ErrUnsafeMember is returned for archive members that would land outside
// the output directory.
var ErrUnsafeMember = errors.New("archive member escapes output directory")

// extract unpacks the document members of zipPath into the output
// directory. A missing archive is logged and yields no documents.
func (p *Pipeline) extract(zipPath string) ([]string, error) {
	if _, err := os.Stat(zipPath); errors.Is(err, os.ErrNotExist) {
		p.logger.Printf("Error: %s does not exist.", zipPath)
		return nil, nil
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", zipPath, err)
	}

	var extracted []string
	for _, member := range zr.File {
		if member.FileInfo().IsDir() || !strings.Contains(member.Name, p.opts.DocMarker) {
			continue
		}
		target, err := p.extractMember(member)
		if err != nil {
			zr.Close()
			return nil, err
		}
		extracted = append(extracted, target)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("close archive %s: %w", zipPath, err)
	}

	if p.opts.Purge {
		if err := removeIfExists(zipPath); err != nil {
			return extracted, err
		}
	}
	return extracted, nil
}

func (p *Pipeline) extractMember(member *zip.File) (string, error) {
	target := filepath.Join(p.opts.OutputDir, filepath.FromSlash(member.Name))
	rel, err := filepath.Rel(p.opts.OutputDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(member.Name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeMember, member.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", member.Name, err)
	}

	src, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("extract %s: %w", member.Name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return target, nil
}

// toPDF turns the extracted documents into PDFs and returns the PDF paths.
func (p *Pipeline) toPDF(ctx context.Context, documents []string) []string {
	var converted []string
	for _, doc := range documents {
		if !strings.Contains(filepath.Base(doc), p.opts.DocMarker) {
			continue
		}
		if err := p.converter.Convert(ctx, doc, p.opts.OutputDir); err != nil {
			p.logger.Printf("Error converting %s: %v", filepath.Base(doc), err)
			continue
		}

		out := convert.OutputPath(doc, p.opts.OutputDir)
		// The converter's exit status is not checked, so read the result back.
		switch pages, err := convert.PageCount(out); {
		case err != nil:
			p.logger.Printf("WARNING: %s converted but %s is not a readable pdf: %v", filepath.Base(doc), filepath.Base(out), err)
		case pages == 0:
			p.logger.Printf("WARNING: %s converted to an empty pdf", filepath.Base(doc))
		default:
			p.logger.Printf("%s converted to pdf (%d pages)", filepath.Base(doc), pages)
		}
		converted = append(converted, out)

		if p.opts.Purge {
			if err := removeIfExists(doc); err != nil {
				p.logger.Printf("Error purging %s: %v", doc, err)
			}
		}
	}
	return converted
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("purge %s: %w", path, err)
	}
	return nil
}
