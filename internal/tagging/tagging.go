// Package tagging classifies document text with a language model and
// parses the response into a structured result.
package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/doctagger/doctagger/internal/models"
)

// Tagger produces a structured tagging result for document text.
type Tagger interface {
	Tag(ctx context.Context, text string, opts TagOptions) (*models.TaggingResult, error)

	// Available reports whether the backing model endpoint responds.
	Available(ctx context.Context) bool
}

// TagOptions tune a single tagging call.
type TagOptions struct {
	Filename     string
	CustomPrompt string
	Categories   []string
}

// rawResult tolerates the loose typing models produce, in particular
// confidence arriving as a string or being absent entirely.
type rawResult struct {
	Title        string      `json:"title"`
	DocumentType string      `json:"document_type"`
	Tags         []string    `json:"tags"`
	Summary      string      `json:"summary"`
	Date         string      `json:"date"`
	Entities     []string    `json:"entities"`
	Confidence   interface{} `json:"confidence"`
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// ParseResponse extracts the tagging JSON from a model response. It
// strips markdown code fences, locates the outermost JSON object and
// repairs trailing commas before decoding.
func ParseResponse(response string) (*models.TaggingResult, error) {
	payload := extractJSON(response)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	payload = trailingComma.ReplaceAllString(payload, "$1")

	var raw rawResult
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	return &models.TaggingResult{
		Title:        strings.TrimSpace(raw.Title),
		DocumentType: strings.TrimSpace(raw.DocumentType),
		Tags:         raw.Tags,
		Summary:      strings.TrimSpace(raw.Summary),
		Date:         strings.TrimSpace(raw.Date),
		Entities:     raw.Entities,
		Confidence:   coerceConfidence(raw.Confidence),
	}, nil
}

// extractJSON returns the outermost {...} block of the response, after
// discarding any markdown fence wrapping.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func coerceConfidence(v interface{}) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			return f
		}
	}
	return 0
}

// NewTagger builds a provider from its name. Supported providers are
// "ollama" and "openai".
func NewTagger(cfg Config) (Tagger, error) {
	switch cfg.Provider {
	case "ollama":
		return newOllama(cfg), nil
	case "openai":
		return newOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
