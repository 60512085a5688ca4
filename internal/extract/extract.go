// Package extract pulls plain text out of PDF files for downstream
// classification.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// probePages bounds how much of a document is inspected when
	// deciding whether it already carries a text layer.
	probePages = 3

	// probeMinChars is the minimum amount of extracted text that
	// counts as a real text layer rather than OCR noise.
	probeMinChars = 50

	// DefaultMaxChars caps the text handed to the language model.
	DefaultMaxChars = 8000
)

// Extractor reads text from PDF documents.
type Extractor interface {
	// Text returns up to maxChars of plain text from the document.
	Text(path string, maxChars int) (string, error)

	// HasText reports whether the document already carries a text
	// layer, based on a cheap probe of its first pages.
	HasText(path string) (bool, error)

	// Info reads the document information dictionary, returning the
	// subset of fields that are present.
	Info(path string) (map[string]string, error)
}

type pdfExtractor struct{}

// New returns the default PDF text extractor.
func New() Extractor {
	return &pdfExtractor{}
}

func (e *pdfExtractor) Text(path string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page should not sink the document
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
		if sb.Len() >= maxChars {
			break
		}
	}

	return truncate(strings.TrimSpace(sb.String()), maxChars), nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func (e *pdfExtractor) Info(path string) (map[string]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return out, nil
	}
	for _, key := range []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer"} {
		if v := info.Key(key); v.Kind() == pdf.String {
			if s := strings.TrimSpace(v.Text()); s != "" {
				out[key] = s
			}
		}
	}
	return out, nil
}

func (e *pdfExtractor) HasText(path string) (bool, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	chars := 0
	pages := r.NumPage()
	if pages > probePages {
		pages = probePages
	}
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		chars += len(strings.TrimSpace(text))
		if chars > probeMinChars {
			return true, nil
		}
	}
	return false, nil
}
