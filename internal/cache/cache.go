// Package cache keeps the last successfully fetched report list so the dashboard
// can keep rendering while the repository is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
)

const DefaultTTL = 24 * time.Hour

type ReportCache interface {
	Save(ctx context.Context, reports []storage.FieldReport) error
	// Load returns ok=false when nothing is cached.
	Load(ctx context.Context) (reports []storage.FieldReport, ok bool, err error)
}

// Memory — кэш в памяти процесса (по умолчанию)
type Memory struct {
	mu      sync.RWMutex
	reports []storage.FieldReport
	savedAt time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Save(_ context.Context, reports []storage.FieldReport) error {
	cp := make([]storage.FieldReport, len(reports))
	copy(cp, reports)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = cp
	m.savedAt = m.now()
	return nil
}

func (m *Memory) Load(_ context.Context) ([]storage.FieldReport, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reports == nil || m.now().Sub(m.savedAt) > m.ttl {
		return nil, false, nil
	}
	cp := make([]storage.FieldReport, len(m.reports))
	copy(cp, m.reports)
	return cp, true, nil
}

type cachedReport struct {
	ID        uuid.UUID           `json:"id"`
	UserName  string              `json:"user_name"`
	Purpose   string              `json:"purpose"`
	Vehicle   string              `json:"vehicle"`
	TimeOut   time.Time           `json:"time_out"`
	TimeIn    time.Time           `json:"time_in"`
	Location  *storage.Location   `json:"location,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	Photo     storage.PhotoRecord `json:"photo"`
	CreatedAt time.Time           `json:"created_at"`
}

func encodeReports(reports []storage.FieldReport) ([]byte, error) {
	out := make([]cachedReport, len(reports))
	for i, r := range reports {
		out[i] = cachedReport{
			ID:        r.ID,
			UserName:  r.UserName,
			Purpose:   r.Purpose,
			Vehicle:   r.Vehicle,
			TimeOut:   r.TimeOut,
			TimeIn:    r.TimeIn,
			Location:  r.Location,
			Notes:     r.Notes,
			Photo:     storage.EncodePhoto(r.Photo),
			CreatedAt: r.CreatedAt,
		}
	}
	return json.Marshal(out)
}

func decodeReports(data []byte) ([]storage.FieldReport, error) {
	var in []cachedReport
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := make([]storage.FieldReport, 0, len(in))
	for _, c := range in {
		photo, err := c.Photo.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, storage.FieldReport{
			ID:        c.ID,
			UserName:  c.UserName,
			Purpose:   c.Purpose,
			Vehicle:   c.Vehicle,
			TimeOut:   c.TimeOut,
			TimeIn:    c.TimeIn,
			Location:  c.Location,
			Notes:     c.Notes,
			Photo:     photo,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}
