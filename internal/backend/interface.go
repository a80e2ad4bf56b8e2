package backend

import (
	"context"

	"finboard/internal/amqp"
	"finboard/internal/datastore"
)

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	}
	return false
}

func (bt BackendType) String() string {
	return string(bt)
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is what the application runs on.
type BackendResult struct {
	Store datastore.Store
	// Events is nil when change events are disabled or the broker is down.
	Events *amqp.Client
	// Ready reports whether the store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
}
