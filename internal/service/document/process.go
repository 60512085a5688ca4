package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/normalize"
	"github.com/doctagger/doctagger/internal/observability/metrics"
	"github.com/doctagger/doctagger/internal/pipeline"
	"github.com/doctagger/doctagger/pkg/logger"
	"github.com/doctagger/doctagger/pkg/registry"
)

// ErrRequestNotFound is returned when no status exists for an ID.
var ErrRequestNotFound = errors.New("request not found")

// ProcessUpload stores an uploaded PDF in the inbox and schedules it
// for processing, returning immediately with a request ID the caller
// can poll.
func (s *Service) ProcessUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, opts pipeline.Options) (*models.UploadResponse, error) {
	if err := s.validateUpload(header); err != nil {
		return nil, err
	}

	path, err := s.saveToInbox(file, header.Filename)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	s.setRecord(ctx, registry.Record{
		ID:      requestID,
		Kind:    registry.KindRequest,
		Status:  string(models.StatusPending),
		Message: fmt.Sprintf("queued %s", filepath.Base(path)),
	})

	go s.dispatch(requestID, path, opts)

	s.logger.Info("upload accepted",
		logger.String("request_id", requestID),
		logger.String("filename", header.Filename))

	return &models.UploadResponse{
		RequestID: requestID,
		Filename:  filepath.Base(path),
		Status:    string(models.StatusPending),
	}, nil
}

// ProcessBatchUpload accepts multiple files at once. Invalid files are
// rejected individually without failing the batch.
func (s *Service) ProcessBatchUpload(ctx context.Context, files []*multipart.FileHeader, opts pipeline.Options) (*models.BatchUploadResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in batch")
	}

	batchID := uuid.New().String()
	resp := &models.BatchUploadResponse{BatchID: batchID}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				mu.Lock()
				resp.Rejected = append(resp.Rejected, models.BatchFileStatus{
					Filename: header.Filename,
					Status:   models.StatusFailed,
					Error:    err.Error(),
				})
				mu.Unlock()
				return nil
			}
			defer file.Close()

			accepted, err := s.ProcessUpload(ctx, file, header, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Rejected = append(resp.Rejected, models.BatchFileStatus{
					Filename: header.Filename,
					Status:   models.StatusFailed,
					Error:    err.Error(),
				})
				return nil
			}
			resp.Accepted = append(resp.Accepted, *accepted)
			s.mu.Lock()
			s.batches[batchID] = append(s.batches[batchID], accepted.RequestID)
			s.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return resp, nil
}

// ProcessPath runs a file already on disk through the pipeline under a
// fresh request ID. Used by the watcher and the CLI.
func (s *Service) ProcessPath(ctx context.Context, path string, opts pipeline.Options) string {
	requestID := uuid.New().String()
	s.setRecord(ctx, registry.Record{
		ID:      requestID,
		Kind:    registry.KindRequest,
		Status:  string(models.StatusPending),
		Message: fmt.Sprintf("queued %s", filepath.Base(path)),
	})
	go s.dispatch(requestID, path, opts)
	return requestID
}

// ProcessSync runs a file through the pipeline and waits for the
// result.
func (s *Service) ProcessSync(ctx context.Context, path string, opts pipeline.Options) (*models.ProcessingResult, error) {
	return s.pipeline.Process(ctx, path, opts)
}

// dispatch runs one request through the pipeline under the concurrency
// limit, recording stage progress along the way.
func (s *Service) dispatch(requestID, path string, opts pipeline.Options) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx := context.Background()

	opts.OnStage = func(stage pipeline.Stage) {
		rec := registry.Record{
			ID:      requestID,
			Kind:    registry.KindRequest,
			Status:  string(models.StatusProcessing),
			Message: string(stage),
		}
		s.setRecord(ctx, rec)
		s.notifier.Broadcast(models.ProcessingStatusResponse{
			RequestID: requestID,
			Status:    models.StatusProcessing,
			Message:   string(stage),
			UpdatedAt: rec.UpdatedAt,
		})
	}

	result, err := s.pipeline.Process(ctx, path, opts)
	if err != nil {
		result = &models.ProcessingResult{
			Status:       models.StatusFailed,
			OriginalPath: path,
			Error:        err.Error(),
		}
	}

	metrics.DocumentsProcessed.WithLabelValues(string(result.Status)).Inc()
	metrics.ProcessingDuration.Observe(result.ProcessingTime)
	if result.OCRApplied {
		metrics.OCRRuns.Inc()
	}
	if result.Status == models.StatusFailed {
		// stage errors render as "<stage>: <cause>"
		if i := strings.Index(result.Error, ":"); i > 0 {
			metrics.StageFailures.WithLabelValues(result.Error[:i]).Inc()
		}
	}

	rec := registry.Record{
		ID:      requestID,
		Kind:    registry.KindRequest,
		Status:  string(result.Status),
		Message: result.Error,
		Result:  result,
	}
	s.setRecord(ctx, rec)
	s.notifier.Broadcast(models.ProcessingStatusResponse{
		RequestID: requestID,
		Status:    result.Status,
		Message:   result.Error,
		Result:    result,
		UpdatedAt: rec.UpdatedAt,
	})
}

// GetStatus returns the polling view of one request.
func (s *Service) GetStatus(ctx context.Context, requestID string) (*models.ProcessingStatusResponse, error) {
	rec, err := s.registry.Get(ctx, registry.KindRequest, requestID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &models.ProcessingStatusResponse{
		RequestID: rec.ID,
		Status:    models.ProcessingStatus(rec.Status),
		Message:   rec.Message,
		Result:    rec.Result,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// GetBatch aggregates the per-request statuses of an upload batch.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*models.BatchStatusResponse, error) {
	s.mu.Lock()
	ids, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrRequestNotFound
	}

	resp := &models.BatchStatusResponse{
		BatchID: batchID,
		Total:   len(ids),
	}
	for _, id := range ids {
		st, err := s.GetStatus(ctx, id)
		if err != nil {
			continue
		}
		fs := models.BatchFileStatus{
			RequestID: id,
			Status:    st.Status,
		}
		if st.Result != nil {
			fs.Filename = filepath.Base(st.Result.OriginalPath)
			fs.Error = st.Result.Error
		}
		resp.Files = append(resp.Files, fs)
		switch st.Status {
		case models.StatusCompleted, models.StatusSkipped:
			resp.Completed++
		case models.StatusFailed:
			resp.Failed++
		}
	}

	switch {
	case resp.Completed+resp.Failed == resp.Total:
		resp.Status = "completed"
	default:
		resp.Status = "processing"
	}
	return resp, nil
}

func (s *Service) validateUpload(header *multipart.FileHeader) error {
	if header.Size > s.cfg.MaxFileSize {
		return fmt.Errorf("file size exceeds maximum of %d bytes", s.cfg.MaxFileSize)
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(header.Filename))
	}
	return nil
}

// saveToInbox writes the upload into the inbox, resolving filename
// collisions with numeric suffixes.
func (s *Service) saveToInbox(file multipart.File, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.InboxDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create inbox: %w", err)
	}

	name := normalize.Filename(filepath.Base(filename))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(s.cfg.InboxDir, candidate)
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := io.Copy(out, file); err != nil {
			out.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to save upload: %w", err)
		}
		if err := out.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to finalize upload: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("could not find free name for %s", name)
}
