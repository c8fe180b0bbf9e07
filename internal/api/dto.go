package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
	"github.com/shaiso/taskflow/internal/service"
)

// Task DTOs

// CreateTaskRequest — запрос на создание задачи.
// Статус и приоритет клиент не задаёт.
type CreateTaskRequest struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	AssignedTo     uuid.UUID   `json:"assigned_to"`
	Dependencies   []uuid.UUID `json:"dependencies,omitempty"`
	Deadline       time.Time   `json:"deadline"`
	Tags           []string    `json:"tags,omitempty"`
	EstimatedHours float64     `json:"estimated_hours,omitempty"`
}

// ToInput конвертирует запрос во входные данные сервиса.
func (r CreateTaskRequest) ToInput() service.CreateInput {
	return service.CreateInput{
		Title:          r.Title,
		Description:    r.Description,
		AssignedTo:     r.AssignedTo,
		Dependencies:   r.Dependencies,
		Deadline:       r.Deadline,
		Tags:           r.Tags,
		EstimatedHours: r.EstimatedHours,
	}
}

// UpdateTaskRequest — частичное обновление задачи. Отсутствующие поля не меняются.
type UpdateTaskRequest = domain.TaskPatch

// BulkUpdateItem — одно обновление в массовом запросе.
type BulkUpdateItem struct {
	ID uuid.UUID `json:"id"`
	domain.TaskPatch
}

// BulkUpdateRequest — запрос на массовое обновление.
type BulkUpdateRequest struct {
	Tasks []BulkUpdateItem `json:"tasks"`
}

// ToItems конвертирует запрос в элементы сервиса.
func (r BulkUpdateRequest) ToItems() []service.BulkItem {
	items := make([]service.BulkItem, len(r.Tasks))
	for i, t := range r.Tasks {
		items[i] = service.BulkItem{ID: t.ID, Patch: t.TaskPatch}
	}
	return items
}

// TaskResponse — ответ с задачей.
type TaskResponse struct {
	ID                   uuid.UUID   `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Status               string      `json:"status"`
	Priority             float64     `json:"priority"`
	AssignedTo           uuid.UUID   `json:"assigned_to"`
	Dependencies         []uuid.UUID `json:"dependencies"`
	Deadline             time.Time   `json:"deadline"`
	Tags                 []string    `json:"tags"`
	EstimatedHours       float64     `json:"estimated_hours"`
	ActualHours          float64     `json:"actual_hours"`
	CompletionPercentage float64     `json:"completion_percentage"`
	CreatedBy            uuid.UUID   `json:"created_by"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	deps := t.Dependencies
	if deps == nil {
		deps = []uuid.UUID{}
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		Status:               t.Status.String(),
		Priority:             t.Priority,
		AssignedTo:           t.AssignedTo,
		Dependencies:         deps,
		Deadline:             t.Deadline,
		Tags:                 tags,
		EstimatedHours:       t.EstimatedHours,
		ActualHours:          t.ActualHours,
		CompletionPercentage: t.CompletionPercentage,
		CreatedBy:            t.CreatedBy,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// BulkUpdateResponse — результат массового обновления.
type BulkUpdateResponse struct {
	Message string         `json:"message"`
	Updated int            `json:"updated"`
	Tasks   []TaskResponse `json:"tasks"`
}

// Log DTOs

// LogEntryResponse — ответ с записью журнала.
type LogEntryResponse struct {
	ID        uuid.UUID         `json:"id"`
	Action    string            `json:"action"`
	TaskID    uuid.UUID         `json:"task_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Changes   domain.LogChanges `json:"changes"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]any    `json:"metadata"`
}

// LogEntryFromDomain конвертирует domain.LogEntry в LogEntryResponse.
func LogEntryFromDomain(e domain.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:        e.ID,
		Action:    string(e.Action),
		TaskID:    e.TaskID,
		UserID:    e.UserID,
		Changes:   e.Changes,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	}
}
