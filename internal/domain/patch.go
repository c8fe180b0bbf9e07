package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskPatch — частичное обновление задачи. nil-поля не меняются.
//
// Priority, CreatedBy и CreatedAt в патч не входят: приоритет
// вычисляется, авторство и время создания неизменны.
type TaskPatch struct {
	Title                *string      `json:"title,omitempty"`
	Description          *string      `json:"description,omitempty"`
	Status               *TaskStatus  `json:"status,omitempty"`
	AssignedTo           *uuid.UUID   `json:"assigned_to,omitempty"`
	Dependencies         *[]uuid.UUID `json:"dependencies,omitempty"`
	Deadline             *time.Time   `json:"deadline,omitempty"`
	Tags                 *[]string    `json:"tags,omitempty"`
	EstimatedHours       *float64     `json:"estimated_hours,omitempty"`
	ActualHours          *float64     `json:"actual_hours,omitempty"`
	CompletionPercentage *float64     `json:"completion_percentage,omitempty"`
}

// CompletesTask возвращает true, если патч переводит задачу в completed.
func (p TaskPatch) CompletesTask() bool {
	return p.Status != nil && *p.Status == TaskStatusCompleted
}

// ChangesDependencies возвращает true, если патч задаёт новый список зависимостей.
func (p TaskPatch) ChangesDependencies() bool {
	return p.Dependencies != nil
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (p TaskPatch) IsEmpty() bool {
	return p == TaskPatch{}
}

// Apply применяет патч к задаче. Валидацию делает вызывающий код через Task.Validate.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Dependencies != nil {
		t.Dependencies = NormalizeDependencies(*p.Dependencies)
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.Tags != nil {
		t.Tags = NormalizeTags(*p.Tags)
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	if p.CompletionPercentage != nil {
		t.CompletionPercentage = *p.CompletionPercentage
	}
}

// DependenciesAfter возвращает список зависимостей, который будет у t после патча.
func (p TaskPatch) DependenciesAfter(t *Task) []uuid.UUID {
	if p.Dependencies != nil {
		return NormalizeDependencies(*p.Dependencies)
	}
	return t.Dependencies
}
