package fieldreports

import (
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/aggregate"
	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
)

// SubmitRequest — поля формы отчёта о выезде
type SubmitRequest struct {
	UserName  string   `json:"user_name" validate:"required,max=100"`
	Purpose   string   `json:"purpose" validate:"required,max=200"`
	Vehicle   string   `json:"vehicle" validate:"required,max=100"`
	TimeOut   string   `json:"time_out" validate:"required"`
	TimeIn    string   `json:"time_in" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Notes     string   `json:"notes" validate:"max=2000"`
}

// Upload is an image file as received from the client.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
	Size        int64
}

// PhotoContent is either raw bytes or a URL to redirect to.
type PhotoContent struct {
	Data        []byte
	ContentType string
	RedirectURL string
}

// ReportDTO — отчёт в ответе API. Фото отдаётся отдельным эндпоинтом.
type ReportDTO struct {
	ID        uuid.UUID         `json:"id"`
	UserName  string            `json:"user_name"`
	Purpose   string            `json:"purpose"`
	Vehicle   string            `json:"vehicle"`
	TimeOut   time.Time         `json:"time_out"`
	TimeIn    time.Time         `json:"time_in"`
	Duration  string            `json:"duration"`
	Location  *storage.Location `json:"location,omitempty"`
	MapsURL   string            `json:"maps_url,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	PhotoKind string            `json:"photo_kind,omitempty"`
	PhotoURL  string            `json:"photo_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type ReportsResponse struct {
	Reports []ReportDTO `json:"reports"`
	Count   int         `json:"count"`
	Stale   bool        `json:"stale"`
}

type AnalyticsResponse struct {
	Summary aggregate.Summary `json:"summary"`
	Skipped int               `json:"skipped"`
	Stale   bool              `json:"stale"`
}

type PreviewResponse struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Quality        float64 `json:"quality"`
	SizeBytes      int     `json:"size_bytes"`
	OriginalSize   int64   `json:"original_size"`
	PreviewDataURI string  `json:"preview_data_uri"`
}

// MapPoint — точка отчёта на карте
type MapPoint struct {
	ID       uuid.UUID `json:"id"`
	UserName string    `json:"user_name"`
	Purpose  string    `json:"purpose"`
	Vehicle  string    `json:"vehicle"`
	TimeOut  time.Time `json:"time_out"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	MapsURL  string    `json:"maps_url"`
}

// MapTrail lists points in departure order plus their encoded polyline.
type MapTrail struct {
	Points   []MapPoint `json:"points"`
	Polyline string     `json:"polyline"`
	Count    int        `json:"count"`
	Stale    bool       `json:"stale"`
}

func toDTO(r *storage.FieldReport) ReportDTO {
	dto := ReportDTO{
		ID:        r.ID,
		UserName:  r.UserName,
		Purpose:   r.Purpose,
		Vehicle:   r.Vehicle,
		TimeOut:   r.TimeOut,
		TimeIn:    r.TimeIn,
		Duration:  aggregate.FormatDuration(r.TimeIn.Sub(r.TimeOut).Minutes()),
		Location:  r.Location,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}
	if r.Location != nil {
		dto.MapsURL = MapsURL(*r.Location)
	}
	if r.Photo != nil {
		dto.PhotoKind = storage.EncodePhoto(r.Photo).Kind
		dto.PhotoURL = "/v1/reports/" + r.ID.String() + "/photo"
	}
	return dto
}

func toDTOs(reports []storage.FieldReport) []ReportDTO {
	out := make([]ReportDTO, len(reports))
	for i := range reports {
		out[i] = toDTO(&reports[i])
	}
	return out
}
