package postgres

import (
	"context"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const fieldReportColumns = `id, user_name, purpose, vehicle, time_out, time_in, lat, lng, notes,
		photo_kind, photo_url, photo_object_key, photo_data_uri, created_at`

// listColumns не тянет photo_data_uri: до 1 MiB на строку, а списку он не нужен
const listColumns = `id, user_name, purpose, vehicle, time_out, time_in, lat, lng, notes,
		photo_kind, photo_url, photo_object_key, NULL::text AS photo_data_uri, created_at`

// CreateFieldReport вставляет отчёт и возвращает created_at из БД
func (p *PostgresStorage) CreateFieldReport(ctx context.Context, report *storage.FieldReport) error {
	if p.maxRecordBytes > 0 && storage.RecordSize(report) > p.maxRecordBytes {
		return storage.ErrRecordTooLarge
	}

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	var lat, lng *float64
	if report.Location != nil {
		lat, lng = &report.Location.Lat, &report.Location.Lng
	}
	photo := storage.EncodePhoto(report.Photo)

	query := `
		INSERT INTO field_reports (id, user_name, purpose, vehicle, time_out, time_in, lat, lng, notes,
			photo_kind, photo_url, photo_object_key, photo_data_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING created_at
	`

	err := p.pool.QueryRow(ctx, query,
		report.ID,
		report.UserName,
		report.Purpose,
		report.Vehicle,
		report.TimeOut,
		report.TimeIn,
		lat,
		lng,
		report.Notes,
		photo.Kind,
		photo.URL,
		photo.ObjectKey,
		photo.DataURI,
	).Scan(&report.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert field report")
	}

	return nil
}

// GetFieldReport возвращает отчёт по ID
func (p *PostgresStorage) GetFieldReport(ctx context.Context, id uuid.UUID) (*storage.FieldReport, error) {
	query := `SELECT ` + fieldReportColumns + ` FROM field_reports WHERE id = $1`

	report, err := scanFieldReport(p.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get field report %s", id)
	}

	return report, nil
}

// ListFieldReports возвращает все отчёты, новые первыми
func (p *PostgresStorage) ListFieldReports(ctx context.Context) ([]storage.FieldReport, error) {
	query := `SELECT ` + listColumns + ` FROM field_reports ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list field reports")
	}
	defer rows.Close()

	reports := []storage.FieldReport{}
	for rows.Next() {
		report, err := scanFieldReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan field report")
		}
		reports = append(reports, *report)
	}

	return reports, errors.Wrap(rows.Err(), "iterate field reports")
}

func scanFieldReport(row pgx.Row) (*storage.FieldReport, error) {
	var (
		r        storage.FieldReport
		lat, lng *float64
		notes    *string
		photo    storage.PhotoRecord
		url      *string
		key      *string
		dataURI  *string
	)

	err := row.Scan(
		&r.ID,
		&r.UserName,
		&r.Purpose,
		&r.Vehicle,
		&r.TimeOut,
		&r.TimeIn,
		&lat,
		&lng,
		&notes,
		&photo.Kind,
		&url,
		&key,
		&dataURI,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		r.Location = &storage.Location{Lat: *lat, Lng: *lng}
	}
	if notes != nil {
		r.Notes = *notes
	}
	photo.URL = deref(url)
	photo.ObjectKey = deref(key)
	photo.DataURI = deref(dataURI)

	// Неизвестный вид фото не должен ронять весь список — запись останется без фото
	if r.Photo, err = photo.Decode(); err != nil {
		r.Photo = nil
	}

	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
