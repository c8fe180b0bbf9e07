package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
)

// TaskLookup разрешает ID зависимостей в текущие задачи.
// Отсутствующие ID просто не попадают в результат.
type TaskLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Task, error)
}

// MissingDependencyPolicy определяет, как гейт трактует зависимость,
// которую не удалось найти (например, задача удалена).
type MissingDependencyPolicy string

const (
	// MissingDependencyIgnore — отсутствующая зависимость не мешает завершению.
	// Список из одних отсутствующих зависимостей проходит гейт.
	MissingDependencyIgnore MissingDependencyPolicy = "ignore"

	// MissingDependencyBlock — отсутствующая зависимость считается незавершённой.
	MissingDependencyBlock MissingDependencyPolicy = "block"
)

// DefaultMissingDependencyPolicy — политика по умолчанию.
const DefaultMissingDependencyPolicy = MissingDependencyIgnore

// ParseMissingDependencyPolicy парсит политику из строки; пустая строка — политика по умолчанию.
func ParseMissingDependencyPolicy(s string) (MissingDependencyPolicy, error) {
	switch MissingDependencyPolicy(s) {
	case "":
		return DefaultMissingDependencyPolicy, nil
	case MissingDependencyIgnore, MissingDependencyBlock:
		return MissingDependencyPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Checker — гейт завершения задачи по статусам зависимостей.
type Checker struct {
	lookup TaskLookup
	policy MissingDependencyPolicy
}

// NewChecker создаёт Checker.
func NewChecker(lookup TaskLookup, policy MissingDependencyPolicy) *Checker {
	if policy == "" {
		policy = DefaultMissingDependencyPolicy
	}
	return &Checker{lookup: lookup, policy: policy}
}

// Policy возвращает текущую политику для отсутствующих зависимостей.
func (c *Checker) Policy() MissingDependencyPolicy {
	return c.policy
}

// AreDependenciesCompleted возвращает true, если список зависимостей пуст
// или все найденные зависимости в статусе completed.
func (c *Checker) AreDependenciesCompleted(ctx context.Context, task *domain.Task) (bool, error) {
	pending, err := c.Incomplete(ctx, task.Dependencies)
	if err != nil {
		return false, err
	}
	return len(pending) == 0, nil
}

// Incomplete возвращает ID зависимостей, которые не дают завершить задачу,
// в порядке их следования в deps.
func (c *Checker) Incomplete(ctx context.Context, deps []uuid.UUID) ([]uuid.UUID, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	resolved, err := c.lookup.FindByIDs(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("resolve dependencies: %w", err)
	}

	statuses := make(map[uuid.UUID]domain.TaskStatus, len(resolved))
	for _, t := range resolved {
		statuses[t.ID] = t.Status
	}

	var pending []uuid.UUID
	for _, id := range deps {
		status, found := statuses[id]
		switch {
		case !found && c.policy == MissingDependencyBlock:
			pending = append(pending, id)
		case found && status != domain.TaskStatusCompleted:
			pending = append(pending, id)
		}
	}
	return pending, nil
}
