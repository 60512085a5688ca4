// Package registry tracks the status of processing requests and batch
// runs across backends.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/pkg/logger"
)

// ErrNotFound is returned when no record exists for an ID.
var ErrNotFound = errors.New("record not found")

// Kind separates single-request records from batch records.
type Kind string

const (
	KindRequest Kind = "request"
	KindBatch   Kind = "batch"
)

// Record is one registry entry.
type Record struct {
	ID        string                   `json:"id"`
	Kind      Kind                     `json:"kind"`
	Status    string                   `json:"status"`
	Message   string                   `json:"message,omitempty"`
	Result    *models.ProcessingResult `json:"result,omitempty"`
	Batch     *models.BatchProgress    `json:"batch,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Registry stores and retrieves status records.
type Registry interface {
	Set(ctx context.Context, rec Record) error
	Get(ctx context.Context, kind Kind, id string) (Record, error)
	List(ctx context.Context, kind Kind, limit int) ([]Record, error)
	Close() error
}

// Backend identifies a registry implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// RedisOptions configure the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRegistry creates a registry for the named backend.
func NewRegistry(backend Backend, redisOpts RedisOptions, log logger.Logger) (Registry, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(redisOpts, log)
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", backend)
	}
}
