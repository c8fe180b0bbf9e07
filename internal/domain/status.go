package domain

// TaskStatus — статус задачи.
//
// Жизненный цикл:
//
//	pending → in-progress → completed (только если все зависимости completed)
//	blocked ↔ pending / in-progress
//
// Кроме перехода в completed, переходы не ограничены.
type TaskStatus string

const (
	// TaskStatusPending — задача создана, работа не начата.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress — задача в работе.
	TaskStatusInProgress TaskStatus = "in-progress"

	// TaskStatusCompleted — задача выполнена.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusBlocked — задача заблокирована.
	TaskStatusBlocked TaskStatus = "blocked"
)

// IsValid возвращает true для известных статусов.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// Role — роль пользователя.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// IsValid возвращает true для известных ролей.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// LogAction — тип изменения в журнале аудита.
type LogAction string

const (
	LogActionCreate           LogAction = "create"
	LogActionUpdate           LogAction = "update"
	LogActionDelete           LogAction = "delete"
	LogActionStatusChange     LogAction = "status_change"
	LogActionDependencyUpdate LogAction = "dependency_update"
)

// IsValid возвращает true для известных действий.
func (a LogAction) IsValid() bool {
	switch a {
	case LogActionCreate, LogActionUpdate, LogActionDelete, LogActionStatusChange, LogActionDependencyUpdate:
		return true
	default:
		return false
	}
}
