package ingest

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const pdfTool = "pdftotext"

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFInstallInstructions tells the user how to enable PDF input.
func PDFInstallInstructions() string {
	return "PDF input needs pdftotext from poppler: brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
}

// extractPDF returns the text layer of a PDF. Without pdftotext the file is
// reported as unsupported.
func (r *Reader) extractPDF(ctx context.Context, path string) (string, error) {
	if _, err := r.lookPath(pdfTool); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnsupported, filepath.Base(path), ErrPDFToolNotFound)
	}

	out, err := r.runner.Run(ctx, pdfTool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("ingest: pdftotext failed for %s: %w", filepath.Base(path), err)
	}
	// pdftotext separates pages with form feeds.
	text := strings.ReplaceAll(decode(out), "\f", "\n\n")
	return strings.TrimSpace(text), nil
}
