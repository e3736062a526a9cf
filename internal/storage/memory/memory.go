package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/storage"
	"github.com/google/uuid"
)

// ErrUnavailable is returned by a storage whose failure hook is armed.
var ErrUnavailable = errors.New("memory storage unavailable")

// MemoryStorage — in-memory реализация FieldReportsStorage
type MemoryStorage struct {
	mu             sync.RWMutex
	reports        map[uuid.UUID]*storage.FieldReport
	order          []uuid.UUID // порядок вставки
	maxRecordBytes int
	failWith       error
	now            func() time.Time
}

// New создаёт пустое хранилище с лимитом записи по умолчанию
func New() *MemoryStorage {
	return NewWithLimit(storage.DefaultMaxRecordBytes)
}

// NewWithLimit создаёт хранилище с заданным лимитом размера записи (<=0 — без лимита)
func NewWithLimit(maxRecordBytes int) *MemoryStorage {
	return &MemoryStorage{
		reports:        make(map[uuid.UUID]*storage.FieldReport),
		maxRecordBytes: maxRecordBytes,
		now:            time.Now,
	}
}

// FailWith makes every subsequent call return err until it is called with nil.
func (m *MemoryStorage) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryStorage) Close() error {
	return nil
}
