package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctagger/doctagger/api/handlers"
	"github.com/doctagger/doctagger/api/routes"
	"github.com/doctagger/doctagger/api/ws"
	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/batch"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/pipeline"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/internal/tagging"
	"github.com/doctagger/doctagger/internal/watcher"
	"github.com/doctagger/doctagger/pkg/logger"
	"github.com/doctagger/doctagger/pkg/registry"
)

type stubOCR struct{}

func (stubOCR) Run(ctx context.Context, input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

func (stubOCR) Available() bool { return true }

type stubExtractor struct{}

func (stubExtractor) Text(path string, maxChars int) (string, error) {
	return "stub document text", nil
}

func (stubExtractor) HasText(path string) (bool, error) { return true, nil }

func (stubExtractor) Info(path string) (map[string]string, error) { return map[string]string{}, nil }

type stubTagger struct{}

func (stubTagger) Tag(ctx context.Context, text string, opts tagging.TagOptions) (*models.TaggingResult, error) {
	return &models.TaggingResult{
		Title:        "Stub Document",
		DocumentType: "report",
		Tags:         []string{"stub"},
		Date:         "2024-05-01",
		Confidence:   0.9,
	}, nil
}

func (stubTagger) Available(ctx context.Context) bool { return true }

type stubMetaWriter struct{}

func (stubMetaWriter) Write(ctx context.Context, path string, meta *models.DocumentMetadata) error {
	return nil
}

func (stubMetaWriter) Available() bool { return true }

type testEnv struct {
	router  *gin.Engine
	inbox   string
	archDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	inbox := t.TempDir()
	archDir := t.TempDir()
	log := logger.NewTestLogger()

	arch := archive.New(archDir, "{year}/{month}/{document_type}")
	pipe := pipeline.New(
		pipeline.Config{
			TempDir:         t.TempDir(),
			OCREnabled:      true,
			OCRSkipIfExists: true,
			MaxTags:         10,
			SidecarEnabled:  true,
		},
		stubOCR{}, stubExtractor{}, stubTagger{}, stubMetaWriter{},
		arch,
		log,
	)

	coord := batch.New(
		batch.Config{InboxDir: inbox, Parallel: 2, Archive: arch},
		func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
			return pipe.Process(ctx, path, pipeline.Options{ForceReprocess: force})
		},
		log,
	)

	hub := ws.NewHub(log)
	svc := document.NewService(
		document.ServiceConfig{
			InboxDir:    inbox,
			ArchiveDir:  archDir,
			LLMProvider: "ollama",
			LLMModel:    "llama3.1",
		},
		pipe, coord,
		watcher.New(inbox, func(ctx context.Context, path string) {}, log),
		registry.NewMemory(),
		stubTagger{}, stubOCR{}, hub, log,
	)
	t.Cleanup(func() { svc.Close() })

	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(svc, hub, log), nil)

	return &testEnv{router: r, inbox: inbox, archDir: archDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartPDF(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 stub"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSystemStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.True(t, status.LLMAvailable)
	assert.True(t, status.OCRAvailable)
	assert.False(t, status.WatcherRunning)
}

func TestUploadAndPoll(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartPDF(t, "file", "report.pdf")
	w := env.do(t, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code)

	var upload models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	require.NotEmpty(t, upload.RequestID)

	deadline := time.Now().Add(5 * time.Second)
	var status models.ProcessingStatusResponse
	for time.Now().Before(deadline) {
		w = env.do(t, http.MethodGet, "/api/process/"+upload.RequestID, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		if status.Status.Terminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	require.Equal(t, models.StatusCompleted, status.Status)
	require.NotNil(t, status.Result)
	assert.Equal(t, "Stub Document", status.Result.Tagging.Title)
	assert.Contains(t, status.Result.ArchivePath, env.archDir)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartPDF(t, "file", "notes.txt")
	w := env.do(t, http.MethodPost, "/api/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusUnknownRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/process/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInboxFilesAndBatchControl(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.inbox, "a.pdf"), []byte("pdf"), 0o644))

	w := env.do(t, http.MethodGet, "/api/inbox/files", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	// pausing with nothing running conflicts
	w = env.do(t, http.MethodPost, "/api/inbox/batch/pause", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/inbox/batch/start", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = env.do(t, http.MethodGet, "/api/inbox/batch/progress", nil, "")
		var p models.BatchProgress
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		if !p.Status.Active() {
			assert.Equal(t, models.BatchCompleted, p.Status)
			assert.Equal(t, 1, p.Processed)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch did not finish in time")
}

func TestPromptCRUD(t *testing.T) {
	env := newTestEnv(t)

	payload := bytes.NewBufferString(`{"name":"legal","prompt":"Classify as legal documents only."}`)
	w := env.do(t, http.MethodPost, "/api/prompts", payload, "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.CustomPrompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = env.do(t, http.MethodGet, "/api/prompts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	payload = bytes.NewBufferString(`{"name":"legal-v2","prompt":"Updated."}`)
	w = env.do(t, http.MethodPut, "/api/prompts/"+created.ID, payload, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.CustomPrompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "legal-v2", updated.Name)

	w = env.do(t, http.MethodDelete, "/api/prompts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/prompts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"one.pdf", "two.pdf"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 stub " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := env.do(t, http.MethodPost, "/api/batch/upload", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp models.BatchUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.BatchID)
	assert.Len(t, resp.Accepted, 2)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = env.do(t, http.MethodGet, "/api/batch/"+resp.BatchID, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var bs models.BatchStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bs))
		if bs.Status == "completed" {
			assert.Equal(t, 2, bs.Completed)
			assert.Equal(t, 0, bs.Failed)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch upload did not finish in time")
}
