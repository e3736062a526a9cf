package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("field report not found")
	ErrRecordTooLarge = errors.New("record exceeds storage size limit")
	ErrUnknownPhoto   = errors.New("unknown photo kind")
)

// DefaultMaxRecordBytes — потолок размера одной записи (как у document store).
const DefaultMaxRecordBytes = 1048576

// Location — координаты точки, где был сделан отчёт
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns "lat,lng".
func (l Location) String() string {
	return fmt.Sprintf("%v,%v", l.Lat, l.Lng)
}

// Photo is either a RemotePhoto or an InlinePhoto. The variant is chosen once, when
// the report is written; readers must switch on the concrete type.
type Photo interface {
	photoKind() string
}

// RemotePhoto points at an object in blob storage. URL is set when the object is
// publicly reachable; ObjectKey is set when reads need a presigned URL.
type RemotePhoto struct {
	URL       string
	ObjectKey string
}

// InlinePhoto keeps the encoded image inside the record as a base64 data URI.
// In list results DataURI is empty: the payload is only loaded by GetFieldReport.
type InlinePhoto struct {
	DataURI string
}

// WithoutPayload returns a copy of r without the inline photo bytes.
func WithoutPayload(r FieldReport) FieldReport {
	if _, ok := r.Photo.(InlinePhoto); ok {
		r.Photo = InlinePhoto{}
	}
	return r
}

func (RemotePhoto) photoKind() string { return PhotoKindRemote }
func (InlinePhoto) photoKind() string { return PhotoKindInline }

const (
	PhotoKindRemote = "remote"
	PhotoKindInline = "inline"
)

// PhotoRecord — плоское представление Photo для БД и кэша
type PhotoRecord struct {
	Kind      string `json:"kind"`
	URL       string `json:"url,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	DataURI   string `json:"data_uri,omitempty"`
}

// EncodePhoto flattens p. A nil photo yields an empty record.
func EncodePhoto(p Photo) PhotoRecord {
	switch v := p.(type) {
	case RemotePhoto:
		return PhotoRecord{Kind: PhotoKindRemote, URL: v.URL, ObjectKey: v.ObjectKey}
	case InlinePhoto:
		return PhotoRecord{Kind: PhotoKindInline, DataURI: v.DataURI}
	default:
		return PhotoRecord{}
	}
}

// Decode restores the tagged union. An empty kind means no photo.
func (r PhotoRecord) Decode() (Photo, error) {
	switch r.Kind {
	case PhotoKindRemote:
		return RemotePhoto{URL: r.URL, ObjectKey: r.ObjectKey}, nil
	case PhotoKindInline:
		return InlinePhoto{DataURI: r.DataURI}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhoto, r.Kind)
	}
}

// FieldReport — отчёт о выезде сотрудника
type FieldReport struct {
	ID        uuid.UUID
	UserName  string
	Purpose   string
	Vehicle   string
	TimeOut   time.Time
	TimeIn    time.Time
	Location  *Location
	Notes     string
	Photo     Photo
	CreatedAt time.Time
}

// RecordSize approximates the stored size of a report: text fields plus the inline
// photo payload, which dominates.
func RecordSize(r *FieldReport) int {
	size := len(r.UserName) + len(r.Purpose) + len(r.Vehicle) + len(r.Notes) + 128
	if inline, ok := r.Photo.(InlinePhoto); ok {
		size += len(inline.DataURI)
	}
	return size
}

// FieldReportsStorage — интерфейс хранилища отчётов
type FieldReportsStorage interface {
	// CreateFieldReport сохраняет отчёт, назначая ID и CreatedAt
	CreateFieldReport(ctx context.Context, report *FieldReport) error

	// GetFieldReport возвращает отчёт по ID
	GetFieldReport(ctx context.Context, id uuid.UUID) (*FieldReport, error)

	// ListFieldReports возвращает все отчёты, новые первыми.
	// Inline фото приходят без payload (см. WithoutPayload)
	ListFieldReports(ctx context.Context) ([]FieldReport, error)

	// Close закрывает соединение (для Postgres)
	Close() error
}
