package backend

import (
	"context"

	"estatecrm/internal/crm"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result is an opened store together with its cleanup.
type Result struct {
	Store   crm.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Demo data is written only into an empty store.
	SeedDemoData bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
