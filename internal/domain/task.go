package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task — единица работы с зависимостями и вычисляемым приоритетом.
//
// Priority никогда не принимается от клиента: он пересчитывается
// при каждой мутации через CalculatePriority.
type Task struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// Priority — производная оценка срочности в диапазоне [0, 5].
	Priority float64 `json:"priority"`

	// AssignedTo — ID исполнителя (обязательное поле).
	AssignedTo uuid.UUID `json:"assigned_to"`

	// Dependencies — задачи, которые должны быть completed до этой.
	// Семантически множество: без повторов и без ссылки на себя.
	Dependencies []uuid.UUID `json:"dependencies"`

	// Deadline — срок выполнения (обязательное поле).
	Deadline time.Time `json:"deadline"`

	// Tags — метки, порядок не важен.
	Tags []string `json:"tags"`

	EstimatedHours       float64 `json:"estimated_hours"`
	ActualHours          float64 `json:"actual_hours"`
	CompletionPercentage float64 `json:"completion_percentage"`

	// CreatedBy — автор задачи, не меняется после создания.
	CreatedBy uuid.UUID `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone возвращает глубокую копию задачи (для снимков before/after).
func (t *Task) Clone() *Task {
	c := *t
	c.Dependencies = slices.Clone(t.Dependencies)
	c.Tags = slices.Clone(t.Tags)
	return &c
}

// HasDependencies возвращает true, если у задачи есть зависимости.
func (t *Task) HasDependencies() bool {
	return len(t.Dependencies) > 0
}

// DependsOn проверяет, зависит ли задача от id.
func (t *Task) DependsOn(id uuid.UUID) bool {
	return slices.Contains(t.Dependencies, id)
}

// CalculatePriority пересчитывает Priority относительно now и возвращает его.
func (t *Task) CalculatePriority(now time.Time) float64 {
	t.Priority = ComputePriority(t.Deadline, len(t.Dependencies), now)
	return t.Priority
}

// Touch обновляет UpdatedAt.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = now
}

// Validate проверяет инварианты полей задачи.
func (t *Task) Validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return NewFieldError("title", "title is required")
	case strings.TrimSpace(t.Description) == "":
		return NewFieldError("description", "description is required")
	case !t.Status.IsValid():
		return NewFieldError("status", "unknown status "+string(t.Status))
	case t.AssignedTo == uuid.Nil:
		return NewFieldError("assigned_to", "assigned_to is required")
	case t.Deadline.IsZero():
		return NewFieldError("deadline", "deadline is required")
	case t.EstimatedHours < 0:
		return NewFieldError("estimated_hours", "estimated_hours must be non-negative")
	case t.ActualHours < 0:
		return NewFieldError("actual_hours", "actual_hours must be non-negative")
	case t.CompletionPercentage < 0 || t.CompletionPercentage > 100:
		return NewFieldError("completion_percentage", "completion_percentage must be within [0, 100]")
	}
	if t.DependsOn(t.ID) {
		return NewFieldError("dependencies", "task cannot depend on itself")
	}
	return nil
}

// NormalizeDependencies убирает дубликаты и uuid.Nil, сохраняя порядок.
func NormalizeDependencies(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NormalizeTags обрезает пробелы, выкидывает пустые и повторяющиеся метки.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// FieldError — ошибка валидации конкретного поля.
type FieldError struct {
	Field   string
	Message string
}

// Error реализует интерфейс error.
func (e *FieldError) Error() string {
	return e.Message
}

// NewFieldError создаёт FieldError.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}
