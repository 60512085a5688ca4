// Package normalize cleans up model output before it is written into
// PDF metadata, sidecar files and archive paths.
package normalize

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/doctagger/doctagger/internal/models"
)

const (
	DefaultMaxTags     = 10
	DefaultMaxTitleLen = 120
	fallbackFilename   = "untitled"
	fallbackDocType    = "other"
)

var (
	tagInvalid      = regexp.MustCompile(`[^a-z0-9-]`)
	tagHyphenRuns   = regexp.MustCompile(`-{2,}`)
	fileInvalid     = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
	fileUnderscores = regexp.MustCompile(`_{2,}`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// Tag normalizes a single tag: lowercase, spaces to hyphens, only
// [a-z0-9-] kept, hyphen runs collapsed, leading/trailing hyphens
// trimmed. Returns "" when nothing survives.
func Tag(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "-")
	s = tagInvalid.ReplaceAllString(s, "")
	s = tagHyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Tags normalizes a list of tags, deduplicates them preserving first
// occurrence order, and truncates to maxTags. maxTags <= 0 uses the
// default limit.
func Tags(raw []string, maxTags int) []string {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := Tag(r)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// Filename produces a filesystem-safe name. Characters outside
// [a-zA-Z0-9-_.] become underscores, underscore runs collapse, and a
// name that loses everything falls back to "untitled". The extension
// of the original name is preserved, defaulting to ".pdf".
func Filename(raw string) string {
	ext := strings.ToLower(filepath.Ext(raw))
	if ext == "" {
		ext = ".pdf"
	}
	base := strings.TrimSuffix(raw, filepath.Ext(raw))
	base = fileInvalid.ReplaceAllString(base, "_")
	base = fileUnderscores.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_.")
	if base == "" {
		base = fallbackFilename
	}
	return base + ext
}

// Title collapses internal whitespace and truncates long titles at a
// word boundary, appending "..." when truncated. maxLen <= 0 uses the
// default limit.
func Title(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxTitleLen
	}
	s := whitespaceRuns.ReplaceAllString(strings.TrimSpace(raw), " ")
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// DocumentType lowercases the type and maps empty values to "other".
func DocumentType(raw string) string {
	s := Tag(raw)
	if s == "" {
		return fallbackDocType
	}
	return s
}

// Apply normalizes a tagging result in place: title, document type and
// tags, clamping confidence into [0, 1].
func Apply(t *models.TaggingResult, maxTags int) {
	if t == nil {
		return
	}
	t.Title = Title(t.Title, 0)
	t.DocumentType = DocumentType(t.DocumentType)
	t.Tags = Tags(t.Tags, maxTags)
	if t.Confidence < 0 {
		t.Confidence = 0
	}
	if t.Confidence > 1 {
		t.Confidence = 1
	}
}
