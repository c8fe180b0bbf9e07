package repo

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
)

// MemoryTaskStore — in-memory хранилище задач.
//
// Используется в тестах и при STORAGE_DRIVER=memory. Мьютекс защищает
// только внутренние структуры: атомарности между вызовами нет.
// Наружу всегда отдаются копии.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// NewMemoryTaskStore создаёт пустое хранилище.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Create сохраняет новую задачу.
func (m *MemoryTaskStore) Create(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; ok {
		return ErrAlreadyExists
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// FindByID возвращает задачу по ID.
func (m *MemoryTaskStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return task.Clone(), nil
}

// FindByIDs возвращает найденные задачи в порядке ids.
func (m *MemoryTaskStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Task
	for _, id := range ids {
		if task, ok := m.tasks[id]; ok {
			out = append(out, *task.Clone())
		}
	}
	return out, nil
}

// FindDependents возвращает задачи, зависящие от id.
func (m *MemoryTaskStore) FindDependents(_ context.Context, id uuid.UUID) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Task
	for _, task := range m.tasks {
		if task.DependsOn(id) {
			out = append(out, *task.Clone())
		}
	}
	return out, nil
}

// List фильтрует, сортирует и режет на страницы.
func (m *MemoryTaskStore) List(_ context.Context, filter domain.TaskFilter) ([]domain.Task, int, error) {
	filter.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	m.mu.RLock()
	var matched []domain.Task
	for _, task := range m.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.MinPriority != nil && task.Priority < *filter.MinPriority {
			continue
		}
		if filter.AssignedTo != nil && task.AssignedTo != *filter.AssignedTo {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		matched = append(matched, *task.Clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Task) int {
		c := compareBy(filter.SortBy, &a, &b)
		if filter.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	total := len(matched)
	start := min(max(filter.Offset(), 0), total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

// Update перезаписывает задачу.
func (m *MemoryTaskStore) Update(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// Delete удаляет задачу.
func (m *MemoryTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// ListActive возвращает незавершённые задачи с ID больше after, по возрастанию ID.
func (m *MemoryTaskStore) ListActive(_ context.Context, after uuid.UUID, limit int) ([]domain.Task, error) {
	m.mu.RLock()
	var out []domain.Task
	for _, task := range m.tasks {
		if task.Status == domain.TaskStatusCompleted || bytes.Compare(task.ID[:], after[:]) <= 0 {
			continue
		}
		out = append(out, *task.Clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Task) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdatePriority сохраняет приоритет задачи.
func (m *MemoryTaskStore) UpdatePriority(_ context.Context, id uuid.UUID, priority float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Priority = priority
	return nil
}

// MemoryLogStore — in-memory журнал аудита.
type MemoryLogStore struct {
	mu   sync.RWMutex
	logs []domain.LogEntry
}

// NewMemoryLogStore создаёт пустой журнал.
func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

// Append добавляет запись журнала.
func (m *MemoryLogStore) Append(_ context.Context, entry *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, *entry)
	return nil
}

// AppendMany добавляет записи журнала.
func (m *MemoryLogStore) AppendMany(_ context.Context, entries []*domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		m.logs = append(m.logs, *entry)
	}
	return nil
}

// List возвращает записи журнала по фильтру, новые первыми.
func (m *MemoryLogStore) List(_ context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	m.mu.RLock()
	var out []domain.LogEntry
	for i := len(m.logs) - 1; i >= 0; i-- {
		entry := m.logs[i]
		if filter.TaskID != nil && entry.TaskID != *filter.TaskID {
			continue
		}
		if filter.UserID != nil && entry.UserID != *filter.UserID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		out = append(out, entry)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.LogEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	start := min(max(filter.Offset, 0), len(out))
	out = out[start:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len возвращает количество записей в журнале.
func (m *MemoryLogStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

func compareBy(field string, a, b *domain.Task) int {
	switch field {
	case domain.SortByDeadline:
		return a.Deadline.Compare(b.Deadline)
	case domain.SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case domain.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case domain.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return cmp.Compare(a.Priority, b.Priority)
	}
}
