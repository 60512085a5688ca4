// Package pdfmeta embeds document metadata into PDF files via the
// exiftool command line tool.
package pdfmeta

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/doctagger/doctagger/internal/models"
)

const defaultTimeout = 30 * time.Second

// Writer embeds metadata fields into an existing PDF in place.
type Writer interface {
	Write(ctx context.Context, path string, meta *models.DocumentMetadata) error

	// Available reports whether the underlying binary can be invoked.
	Available() bool
}

type exiftoolWriter struct {
	binary  string
	timeout time.Duration
}

// New returns a Writer backed by exiftool.
func New() Writer {
	return &exiftoolWriter{binary: "exiftool", timeout: defaultTimeout}
}

func (w *exiftoolWriter) Write(ctx context.Context, path string, meta *models.DocumentMetadata) error {
	if meta == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	args := []string{"-overwrite_original"}
	if meta.Title != "" {
		args = append(args, fmt.Sprintf("-Title=%s", meta.Title))
	}
	if meta.Author != "" {
		args = append(args, fmt.Sprintf("-Author=%s", meta.Author))
	}
	if meta.Subject != "" {
		args = append(args, fmt.Sprintf("-Subject=%s", meta.Subject))
	}
	if len(meta.Keywords) > 0 {
		args = append(args, fmt.Sprintf("-Keywords=%s", strings.Join(meta.Keywords, "; ")))
	}
	if meta.Creator != "" {
		args = append(args, fmt.Sprintf("-Creator=%s", meta.Creator))
	}
	if meta.Producer != "" {
		args = append(args, fmt.Sprintf("-Producer=%s", meta.Producer))
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, w.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("metadata write timed out after %s: %w", w.timeout, ctx.Err())
		}
		return fmt.Errorf("exiftool failed: %w: %s", err, stderr.String())
	}
	return nil
}

func (w *exiftoolWriter) Available() bool {
	_, err := exec.LookPath(w.binary)
	return err == nil
}
