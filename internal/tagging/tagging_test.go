package tagging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponsePlainJSON(t *testing.T) {
	resp := `{"title":"Invoice March","document_type":"invoice","tags":["invoice","march"],"summary":"An invoice.","date":"2024-03-02","entities":["Acme Corp"],"confidence":0.85}`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Invoice March", got.Title)
	assert.Equal(t, "invoice", got.DocumentType)
	assert.Equal(t, []string{"invoice", "march"}, got.Tags)
	assert.Equal(t, "2024-03-02", got.Date)
	assert.Equal(t, []string{"Acme Corp"}, got.Entities)
	assert.Equal(t, 0.85, got.Confidence)
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	resp := "```json\n{\"title\":\"T\",\"document_type\":\"letter\",\"tags\":[],\"confidence\":0.5}\n```"

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, "letter", got.DocumentType)
}

func TestParseResponseSurroundingProse(t *testing.T) {
	resp := `Here is the classification you asked for:
{"title":"Contract","document_type":"contract","tags":["legal"],"confidence":0.7}
Let me know if you need anything else.`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Contract", got.Title)
}

func TestParseResponseRepairsTrailingCommas(t *testing.T) {
	resp := `{"title":"X","document_type":"report","tags":["a","b",],"confidence":0.6,}`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, 0.6, got.Confidence)
}

func TestParseResponseStringConfidence(t *testing.T) {
	resp := `{"title":"X","document_type":"report","tags":[],"confidence":"0.75"}`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Confidence)
}

func TestParseResponseUnusableConfidence(t *testing.T) {
	resp := `{"title":"X","document_type":"report","tags":[],"confidence":"very high"}`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestParseResponseMissingConfidence(t *testing.T) {
	resp := `{"title":"X","document_type":"report","tags":[]}`

	got, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestParseResponseNoJSON(t *testing.T) {
	_, err := ParseResponse("I could not classify this document.")
	assert.Error(t, err)
}

func TestBuildPromptDefault(t *testing.T) {
	p := BuildPrompt("some document text", TagOptions{Filename: "doc.pdf"})

	assert.Contains(t, p, "JSON")
	assert.Contains(t, p, "Filename: doc.pdf")
	assert.Contains(t, p, "some document text")
	assert.Contains(t, p, "invoice|receipt")
}

func TestBuildPromptCustomCategories(t *testing.T) {
	p := BuildPrompt("text", TagOptions{Categories: []string{"payslip", "tax"}})
	assert.Contains(t, p, "payslip|tax")
	assert.NotContains(t, p, "invoice|receipt")
}

func TestBuildPromptCustomOverride(t *testing.T) {
	p := BuildPrompt("text", TagOptions{CustomPrompt: "Classify strictly as legal or other."})
	assert.True(t, strings.HasPrefix(p, "Classify strictly"))
	assert.Contains(t, p, "Document text:\ntext")
}

func TestNewTaggerUnknownProvider(t *testing.T) {
	_, err := NewTagger(Config{Provider: "bedrock"})
	assert.Error(t, err)
}
