package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/taskflow/internal/domain"
)

const taskColumns = `id, title, description, status, priority, assigned_to, dependencies,
	deadline, tags, estimated_hours, actual_hours, completion_percentage,
	created_by, created_at, updated_at`

// sortColumns — допустимые поля сортировки.
var sortColumns = map[string]string{
	domain.SortByPriority:  "priority",
	domain.SortByDeadline:  "deadline",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
	domain.SortByTitle:     "title",
}

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новую задачу.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		nonNilUUIDs(task.Dependencies),
		task.Deadline,
		nonNilStrings(task.Tags),
		task.EstimatedHours,
		task.ActualHours,
		task.CompletionPercentage,
		task.CreatedBy,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindByID возвращает задачу по ID.
func (r *TaskRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// FindByIDs возвращает найденные задачи из списка ID. Отсутствующие пропускаются.
func (r *TaskRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ANY($1)`
	return r.query(ctx, "find tasks by ids", query, ids)
}

// FindDependents возвращает задачи, у которых id есть в dependencies.
func (r *TaskRepo) FindDependents(ctx context.Context, id uuid.UUID) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE dependencies @> ARRAY[$1::uuid]`
	return r.query(ctx, "find dependents", query, id)
}

// List возвращает страницу задач и общее количество по фильтру.
func (r *TaskRepo) List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, int, error) {
	filter.Normalize()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if filter.MinPriority != nil {
		conds = append(conds, "priority >= "+arg(*filter.MinPriority))
	}
	if filter.AssignedTo != nil {
		conds = append(conds, "assigned_to = "+arg(*filter.AssignedTo))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY ` + sortColumns[filter.SortBy] + ` ` + dir + `, id ASC` +
		` LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset())

	tasks, err := r.query(ctx, "list tasks", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Update перезаписывает изменяемые поля задачи.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assigned_to = $6,
		    dependencies = $7, deadline = $8, tags = $9, estimated_hours = $10,
		    actual_hours = $11, completion_percentage = $12, updated_at = $13
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		nonNilUUIDs(task.Dependencies),
		task.Deadline,
		nonNilStrings(task.Tags),
		task.EstimatedHours,
		task.ActualHours,
		task.CompletionPercentage,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет задачу.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive возвращает незавершённые задачи с ID больше after, по возрастанию ID.
// Используется для постраничного обхода при пересчёте приоритетов.
func (r *TaskRepo) ListActive(ctx context.Context, after uuid.UUID, limit int) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status <> $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`
	return r.query(ctx, "list active tasks", query, domain.TaskStatusCompleted, after, limit)
}

// UpdatePriority сохраняет пересчитанный приоритет, не трогая updated_at.
func (r *TaskRepo) UpdatePriority(ctx context.Context, id uuid.UUID, priority float64) error {
	result, err := r.pool.Exec(ctx, `UPDATE tasks SET priority = $2 WHERE id = $1`, id, priority)
	if err != nil {
		return fmt.Errorf("update priority: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *TaskRepo) query(ctx context.Context, op, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var deadline, createdAt, updatedAt time.Time

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssignedTo,
		&task.Dependencies,
		&deadline,
		&task.Tags,
		&task.EstimatedHours,
		&task.ActualHours,
		&task.CompletionPercentage,
		&task.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Deadline = deadline.UTC()
	task.CreatedAt = createdAt.UTC()
	task.UpdatedAt = updatedAt.UTC()

	return &task, nil
}

// nonNilUUIDs заменяет nil на пустой слайс, чтобы в БД не попал NULL.
func nonNilUUIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// escapeLike экранирует спецсимволы шаблона LIKE.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
