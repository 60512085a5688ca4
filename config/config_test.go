package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := load()

	assert.Equal(t, "./inbox", cfg.Folders.Inbox)
	assert.Equal(t, "./archive", cfg.Folders.Archive)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.False(t, cfg.OCR.ForceOCR)
	assert.True(t, cfg.OCR.SkipIfExists)
	assert.Equal(t, 5*time.Minute, cfg.OCR.Timeout)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Tags.MaxTags)
	assert.Equal(t, "{year}/{month}/{document_type}", cfg.Archive.Structure)
	assert.True(t, cfg.Archive.SidecarEnabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "memory", cfg.Registry.Backend)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("INBOX_FOLDER", "/data/in")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("OCR_FORCE", "true")
	t.Setenv("OCR_SKIP_IF_EXISTS", "false")
	t.Setenv("OCR_TIMEOUT", "90")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("TAGS_MAX_TAGS", "5")
	t.Setenv("TAGS_CUSTOM_CATEGORIES", "payslip, tax , ")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SIDECAR_ENABLED", "false")

	cfg := load()

	assert.Equal(t, "/data/in", cfg.Folders.Inbox)
	assert.False(t, cfg.OCR.Enabled)
	assert.True(t, cfg.OCR.ForceOCR)
	assert.False(t, cfg.OCR.SkipIfExists)
	assert.Equal(t, 90*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 5, cfg.Tags.MaxTags)
	assert.Equal(t, []string{"payslip", "tax"}, cfg.Tags.CustomCategories)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Archive.SidecarEnabled)
}

func TestLoadDurationSuffix(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "45s")
	cfg := load()
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("TAGS_MIN_CONFIDENCE", "high")

	cfg := load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.Tags.MinConfidence)
}
