// Package convert turns extracted specification documents into PDF files
// with an external office suite.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"rsc.io/pdf"
)

// DefaultBinary is the LibreOffice command line entry point.
const DefaultBinary = "soffice"

// Converter converts a document into a PDF placed in outDir.
type Converter interface {
	Convert(ctx context.Context, input, outDir string) error
}

// Soffice runs a headless LibreOffice conversion per document.
type Soffice struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
}

func NewSoffice(binary string, stdout, stderr io.Writer) *Soffice {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Soffice{Binary: binary, Stdout: stdout, Stderr: stderr}
}

// Args returns the arguments passed to the converter binary.
func (s *Soffice) Args(input, outDir string) []string {
	return []string{"--headless", "--convert-to", "pdf:writer_pdf_Export", "--outdir", outDir, input}
}

// Convert runs the conversion. The exit status of the office suite is not
// inspected; only a failure to start it is reported.
func (s *Soffice) Convert(ctx context.Context, input, outDir string) error {
	cmd := exec.CommandContext(ctx, s.Binary, s.Args(input, outDir)...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return fmt.Errorf("run %s: %w", s.Binary, err)
}

// OutputPath returns where the converter writes the PDF of input.
func OutputPath(input, outDir string) string {
	base := filepath.Base(input)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}

// PageCount reads the number of pages of a PDF file.
func PageCount(path string) (n int, err error) {
	defer func() {
		// rsc.io/pdf panics on some malformed cross reference tables.
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat pdf %s: %w", path, err)
	}
	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return 0, fmt.Errorf("parse pdf %s: %w", path, err)
	}
	return r.NumPage(), nil
}
