package fieldreports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrReportNotFound   = errors.New("report not found")
	ErrNoPhoto          = errors.New("report has no photo")
	ErrPhotoUnavailable = errors.New("photo storage is not configured")
	ErrPhotoRequired    = errors.New("photo is required")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// MediaError wraps a photo pipeline failure.
type MediaError struct {
	Err error
}

func (e *MediaError) Error() string { return "photo rejected: " + e.Err.Error() }
func (e *MediaError) Unwrap() error { return e.Err }

// RepositoryError wraps a storage failure.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return fmt.Sprintf("repository %s: %v", e.Op, e.Err) }
func (e *RepositoryError) Unwrap() error { return e.Err }

// ExportError wraps aggregate.ErrNothingToExport or aggregate.ErrExportCooldown.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string { return "export: " + e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }
