// Package convert turns uploaded DOCX files into PDF using LibreOffice in
// headless mode.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrDependencyMissing indicates LibreOffice is not installed.
var ErrDependencyMissing = errors.New("conversion dependency missing")

// Service shells out to soffice for DOCX to PDF conversion.
type Service struct {
	timeout time.Duration
}

// New creates a conversion service. timeout bounds a single soffice run.
func New(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Service{timeout: timeout}
}

// DocxToPDF converts the DOCX bytes and returns PDF bytes. The conversion
// runs through a scratch directory because soffice only writes to files.
func (s *Service) DocxToPDF(ctx context.Context, docx []byte) ([]byte, error) {
	if _, err := exec.LookPath("soffice"); err != nil {
		return nil, fmt.Errorf("%w: soffice not installed", ErrDependencyMissing)
	}

	workDir, err := os.MkdirTemp("", "redink-convert-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.docx")
	if err := os.WriteFile(inputPath, docx, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "soffice",
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soffice timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soffice failed: %s", strings.TrimSpace(string(output)))
	}

	// soffice writes the PDF next to the input with the extension swapped.
	pdf, err := os.ReadFile(filepath.Join(workDir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("read converted pdf: %w", err)
	}
	return pdf, nil
}
