package store

import (
	"errors"
	"strings"
)

// Error taxonomy surfaced to callers. Hook and CLI layers decide whether
// to degrade to a no-op; this layer always reports accurately.
var (
	// ErrInvalidInput marks empty content or a malformed filter.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a get/delete on an unknown memory id.
	ErrNotFound = errors.New("memory not found")

	// ErrBusy marks lock or timeout contention. Store callers may retry
	// blindly: ids are deterministic and writes are upserts.
	ErrBusy = errors.New("store busy")

	// ErrStoreInconsistency marks a dual write where the embedding index
	// succeeded but the metadata store failed (or vice versa). Retrying
	// the same store call repairs it.
	ErrStoreInconsistency = errors.New("store inconsistency")

	// ErrBackendUnavailable marks disk or index engine failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// mapSQLiteErr folds driver-level contention into ErrBusy so callers get
// a typed error instead of a driver string.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return errors.Join(ErrBusy, err)
	}
	return err
}
