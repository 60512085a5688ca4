package tagging

import (
	"fmt"
	"strings"
)

const defaultPrompt = `You are a document classification assistant. Analyze the document text below and respond with a single JSON object, no prose, in exactly this shape:
{
  "title": "concise descriptive title",
  "document_type": "%s",
  "tags": ["lowercase", "keyword", "tags"],
  "summary": "one or two sentence summary",
  "date": "YYYY-MM-DD or empty string if no date is evident",
  "entities": ["people", "organizations", "places mentioned"],
  "confidence": 0.0
}
Set confidence to your certainty between 0 and 1.`

var defaultCategories = []string{
	"invoice", "receipt", "contract", "letter", "report",
	"statement", "form", "manual", "certificate", "other",
}

// BuildPrompt assembles the tagging prompt for the given document text.
// A custom prompt overrides the built-in instructions entirely; the
// document text and filename are always appended.
func BuildPrompt(text string, opts TagOptions) string {
	var sb strings.Builder

	if opts.CustomPrompt != "" {
		sb.WriteString(opts.CustomPrompt)
	} else {
		categories := opts.Categories
		if len(categories) == 0 {
			categories = defaultCategories
		}
		sb.WriteString(fmt.Sprintf(defaultPrompt, strings.Join(categories, "|")))
	}

	sb.WriteString("\n\n")
	if opts.Filename != "" {
		sb.WriteString(fmt.Sprintf("Filename: %s\n\n", opts.Filename))
	}
	sb.WriteString("Document text:\n")
	sb.WriteString(text)
	return sb.String()
}
