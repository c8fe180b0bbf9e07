package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ключи metadata записи журнала.
const (
	MetaUserRole   = "userRole"
	MetaBulkUpdate = "bulkUpdate"
)

// LogEntry — неизменяемая запись журнала аудита об одной мутации задачи.
//
// Создаётся ровно один раз на мутацию, никогда не обновляется и не удаляется.
type LogEntry struct {
	ID        uuid.UUID      `json:"id"`
	Action    LogAction      `json:"action"`
	TaskID    uuid.UUID      `json:"task_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Changes   LogChanges     `json:"changes"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// LogChanges — содержимое изменения.
//
// Для create/delete заполнен Task (полный снимок), для update — Before и After.
type LogChanges struct {
	Task   *Task `json:"task,omitempty"`
	Before *Task `json:"before,omitempty"`
	After  *Task `json:"after,omitempty"`
}

// NewSnapshotLog создаёт запись с полным снимком задачи (create, delete).
func NewSnapshotLog(action LogAction, task *Task, actor Actor, now time.Time) *LogEntry {
	return &LogEntry{
		ID:        uuid.New(),
		Action:    action,
		TaskID:    task.ID,
		UserID:    actor.ID,
		Changes:   LogChanges{Task: task.Clone()},
		Timestamp: now,
		Metadata:  map[string]any{MetaUserRole: string(actor.Role)},
	}
}

// NewUpdateLog создаёт запись с парой before/after.
func NewUpdateLog(before, after *Task, actor Actor, now time.Time) *LogEntry {
	return &LogEntry{
		ID:        uuid.New(),
		Action:    LogActionUpdate,
		TaskID:    after.ID,
		UserID:    actor.ID,
		Changes:   LogChanges{Before: before.Clone(), After: after.Clone()},
		Timestamp: now,
		Metadata:  map[string]any{MetaUserRole: string(actor.Role)},
	}
}

// MarkBulk помечает запись как часть массового обновления.
func (e *LogEntry) MarkBulk() *LogEntry {
	e.Metadata[MetaBulkUpdate] = true
	return e
}
