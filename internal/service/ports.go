package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
)

// TaskStore — хранилище задач.
//
// FindByID возвращает repo.ErrNotFound, если задачи нет.
// FindByIDs молча пропускает отсутствующие ID.
type TaskStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Task, error)
	FindDependents(ctx context.Context, id uuid.UUID) ([]domain.Task, error)
	List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, int, error)
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LogSink — append-only журнал аудита (at-least-once).
type LogSink interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
	AppendMany(ctx context.Context, entries []*domain.LogEntry) error
	List(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error)
}

// EventPublisher рассылает записи журнала внешним подписчикам.
// Ошибки публикации не влияют на результат операции.
type EventPublisher interface {
	PublishLogEntries(ctx context.Context, entries []*domain.LogEntry) error
}
