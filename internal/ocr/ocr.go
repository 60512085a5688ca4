// Package ocr shells out to ocrmypdf to add a text layer to scanned
// documents.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/doctagger/doctagger/pkg/logger"
)

// exit code ocrmypdf uses when the input already has a text layer and
// --skip-text was not forced
const exitAlreadyHasText = 6

const defaultTimeout = 5 * time.Minute

// Engine runs OCR over a PDF, writing the result to a new file.
type Engine interface {
	// Run OCRs input into output. When the input already carries a
	// text layer the input is copied through unchanged.
	Run(ctx context.Context, input, output string) error

	// Available reports whether the underlying binary can be invoked.
	Available() bool
}

// Options configure the ocrmypdf invocation.
type Options struct {
	Language string
	Deskew   bool
	ForceOCR bool
	Optimize int
	Timeout  time.Duration
	Binary   string
}

type ocrmypdf struct {
	opts Options
	log  logger.Logger
}

// New returns an Engine backed by the ocrmypdf command line tool.
func New(opts Options, log logger.Logger) Engine {
	if opts.Binary == "" {
		opts.Binary = "ocrmypdf"
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &ocrmypdf{opts: opts, log: log}
}

func (o *ocrmypdf) Run(ctx context.Context, input, output string) error {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	args := o.args(input, output)
	cmd := exec.CommandContext(ctx, o.opts.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		o.log.Info("ocr completed",
			logger.String("input", input),
			logger.Duration("elapsed", time.Since(start)))
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ocr timed out after %s: %w", o.opts.Timeout, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitAlreadyHasText {
		o.log.Debug("document already has a text layer, copying through",
			logger.String("input", input))
		return copyFile(input, output)
	}

	return fmt.Errorf("ocrmypdf failed: %w: %s", err, stderr.String())
}

func (o *ocrmypdf) args(input, output string) []string {
	args := []string{"-l", o.opts.Language}
	if o.opts.ForceOCR {
		args = append(args, "--force-ocr")
	} else {
		args = append(args, "--skip-text")
	}
	if o.opts.Deskew {
		args = append(args, "--deskew")
	}
	if o.opts.Optimize > 0 {
		args = append(args, "--optimize", strconv.Itoa(o.opts.Optimize))
	}
	return append(args, input, output)
}

func (o *ocrmypdf) Available() bool {
	_, err := exec.LookPath(o.opts.Binary)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
