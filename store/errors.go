package store

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrMisconfigured is returned when a file backend has no production
	// path configured.
	ErrMisconfigured = errors.New("store: production path is not configured")

	// ErrBackendNotFound is returned when the configured backend kind is
	// neither built in nor registered.
	ErrBackendNotFound = errors.New("store: backend not found")

	// ErrProductionMissing is returned when the production document is read
	// before it was ever committed. It matches fs.ErrNotExist.
	ErrProductionMissing = fmt.Errorf("store: production document has not been committed: %w", fs.ErrNotExist)
)
