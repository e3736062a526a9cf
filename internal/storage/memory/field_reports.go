package memory

import (
	"context"
	"sort"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
)

// CreateFieldReport сохраняет отчёт
func (m *MemoryStorage) CreateFieldReport(ctx context.Context, report *storage.FieldReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}

	if m.maxRecordBytes > 0 && storage.RecordSize(report) > m.maxRecordBytes {
		return storage.ErrRecordTooLarge
	}

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = m.now()

	stored := *report
	m.reports[report.ID] = &stored
	m.order = append(m.order, report.ID)
	return nil
}

// GetFieldReport возвращает отчёт по ID
func (m *MemoryStorage) GetFieldReport(ctx context.Context, id uuid.UUID) (*storage.FieldReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	report, exists := m.reports[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := *report
	return &out, nil
}

// ListFieldReports возвращает отчёты, новые первыми
func (m *MemoryStorage) ListFieldReports(ctx context.Context) ([]storage.FieldReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	list := make([]storage.FieldReport, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		list = append(list, storage.WithoutPayload(*m.reports[m.order[i]]))
	}

	// Сортируем по created_at DESC; при равенстве остаётся обратный порядок вставки
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	return list, nil
}
