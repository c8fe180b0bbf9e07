package domain

import (
	"math"

	"github.com/google/uuid"
)

// Поля сортировки списка задач.
const (
	SortByPriority  = "priority"
	SortByDeadline  = "deadline"
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByTitle     = "title"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// TaskFilter — параметры фильтрации, сортировки и пагинации задач.
type TaskFilter struct {
	Status      TaskStatus
	MinPriority *float64 // задачи с priority >= MinPriority
	AssignedTo  *uuid.UUID
	Search      string // подстрока в title или description, без учёта регистра
	SortBy      string
	Desc        bool
	Page        int
	Limit       int
}

// Normalize подставляет значения по умолчанию.
func (f *TaskFilter) Normalize() {
	switch f.SortBy {
	case SortByPriority, SortByDeadline, SortByCreatedAt, SortByUpdatedAt, SortByTitle:
	default:
		f.SortBy = SortByPriority
		f.Desc = true
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	// (Page-1)*Limit должно помещаться в int
	if maxPage := math.MaxInt / f.Limit; f.Page > maxPage {
		f.Page = maxPage
	}
}

// Offset возвращает смещение для текущей страницы.
func (f TaskFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TaskPage — страница списка задач.
type TaskPage struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// LogFilter — параметры выборки журнала аудита.
type LogFilter struct {
	TaskID *uuid.UUID
	UserID *uuid.UUID
	Action LogAction
	Limit  int
	Offset int
}
