package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/taskflow/internal/domain"
	"github.com/shaiso/taskflow/internal/engine"
	"github.com/shaiso/taskflow/internal/repo"
	"github.com/shaiso/taskflow/internal/telemetry"
)

// Config — зависимости TaskService.
type Config struct {
	Tasks     TaskStore
	Logs      LogSink
	Publisher EventPublisher // может быть nil

	// MissingDependencyPolicy — политика гейта для отсутствующих зависимостей.
	MissingDependencyPolicy engine.MissingDependencyPolicy

	Logger *slog.Logger
	Now    func() time.Time // по умолчанию time.Now
}

// TaskService — оркестратор операций над задачами.
//
// Каждая мутация: загрузка → гейт → применение → валидация →
// пересчёт приоритета → сохранение → запись в журнал аудита.
type TaskService struct {
	tasks     TaskStore
	logs      LogSink
	publisher EventPublisher
	checker   *engine.Checker
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт TaskService.
func New(cfg Config) *TaskService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:     cfg.Tasks,
		logs:      cfg.Logs,
		publisher: cfg.Publisher,
		checker:   engine.NewChecker(cfg.Tasks, cfg.MissingDependencyPolicy),
		logger:    logger,
		now:       now,
	}
}

// CreateInput — данные для создания задачи.
type CreateInput struct {
	Title          string
	Description    string
	AssignedTo     uuid.UUID
	Dependencies   []uuid.UUID
	Deadline       time.Time
	Tags           []string
	EstimatedHours float64
}

// BulkItem — одно обновление в массовой операции.
type BulkItem struct {
	ID    uuid.UUID
	Patch domain.TaskPatch
}

// Create создаёт задачу со статусом pending и записывает create в журнал.
//
// Зависимости на момент создания не проверяются на существование.
func (s *TaskService) Create(ctx context.Context, in CreateInput, actor domain.Actor) (*domain.Task, error) {
	now := s.now().UTC()

	task := &domain.Task{
		ID:             uuid.New(),
		Title:          in.Title,
		Description:    in.Description,
		Status:         domain.TaskStatusPending,
		AssignedTo:     in.AssignedTo,
		Dependencies:   domain.NormalizeDependencies(in.Dependencies),
		Deadline:       in.Deadline,
		Tags:           domain.NormalizeTags(in.Tags),
		EstimatedHours: in.EstimatedHours,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := validate(task); err != nil {
		return nil, err
	}
	task.CalculatePriority(now)

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storageError(task.ID, "create task", err)
	}

	if err := s.audit(ctx, domain.NewSnapshotLog(domain.LogActionCreate, task, actor, now)); err != nil {
		return nil, err
	}

	telemetry.TaskMutations.WithLabelValues(string(domain.LogActionCreate)).Inc()
	s.actorLogger(actor).Info("task created",
		"task_id", task.ID,
		"priority", task.Priority,
		"dependencies", len(task.Dependencies),
	)

	return task, nil
}

// Get возвращает задачу по ID.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.load(ctx, id)
}

// List возвращает страницу задач по фильтру.
func (s *TaskService) List(ctx context.Context, filter domain.TaskFilter) (*domain.TaskPage, error) {
	filter.Normalize()

	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, storageError(uuid.Nil, "list tasks", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	return &domain.TaskPage{
		Tasks: tasks,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// Update применяет частичное обновление к задаче.
//
// Перевод в completed разрешён, только если все зависимости (с учётом
// зависимостей из самого патча) уже completed.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch, actor domain.Actor) (*domain.Task, error) {
	task, entry, err := s.stage(ctx, id, patch, actor)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, storageError(id, "update task", err)
	}

	if err := s.audit(ctx, entry); err != nil {
		return nil, err
	}

	telemetry.TaskMutations.WithLabelValues(string(domain.LogActionUpdate)).Inc()
	s.actorLogger(actor).Info("task updated",
		"task_id", task.ID,
		"status", task.Status,
		"priority", task.Priority,
	)

	return task, nil
}

// BulkUpdate применяет набор обновлений.
//
// Фаза 1 последовательно загружает, проверяет и валидирует все элементы;
// первая ошибка отменяет пакет до каких-либо записей. Гейт смотрит на
// сохранённое состояние, а не на изменения из этого же пакета.
//
// Фаза 2 параллельно сохраняет задачи и затем одним вызовом пишет журнал
// с пометкой bulkUpdate. Сбой одной записи в фазе 2 не откатывает
// остальные: операция не транзакционна.
func (s *TaskService) BulkUpdate(ctx context.Context, items []BulkItem, actor domain.Actor) ([]*domain.Task, error) {
	if len(items) == 0 {
		return nil, validationError(uuid.Nil, "updates", "no tasks to update")
	}

	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			return nil, validationError(item.ID, "updates", "task "+item.ID.String()+" appears more than once")
		}
		seen[item.ID] = struct{}{}
	}

	telemetry.BulkUpdateSize.Observe(float64(len(items)))

	// Фаза 1: проверка без записи
	staged := make([]*domain.Task, 0, len(items))
	entries := make([]*domain.LogEntry, 0, len(items))
	for _, item := range items {
		task, entry, err := s.stage(ctx, item.ID, item.Patch, actor)
		if err != nil {
			return nil, err
		}
		staged = append(staged, task)
		entries = append(entries, entry.MarkBulk())
	}

	// Фаза 2: параллельная запись
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range staged {
		g.Go(func() error {
			if err := s.tasks.Update(gctx, task); err != nil {
				return storageError(task.ID, "update task", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.actorLogger(actor).Error("bulk update partially failed", "items", len(staged), "error", err)
		return nil, err
	}

	if err := s.audit(ctx, entries...); err != nil {
		return nil, err
	}

	telemetry.TaskMutations.WithLabelValues(string(domain.LogActionUpdate)).Add(float64(len(staged)))
	s.actorLogger(actor).Info("bulk update applied", "items", len(staged))

	return staged, nil
}

// Delete удаляет задачу, если от неё не зависит ни одна другая.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID, actor domain.Actor) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	dependents, err := s.tasks.FindDependents(ctx, id)
	if err != nil {
		return storageError(id, "find dependents", err)
	}
	if len(dependents) > 0 {
		telemetry.GateRejections.WithLabelValues(telemetry.RejectHasDependents).Inc()
		s.actorLogger(actor).Warn("delete rejected", "task_id", id, "dependents", len(dependents))
		return hasDependentsError(id)
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError(id)
		}
		return storageError(id, "delete task", err)
	}

	if err := s.audit(ctx, domain.NewSnapshotLog(domain.LogActionDelete, task, actor, s.now().UTC())); err != nil {
		return err
	}

	telemetry.TaskMutations.WithLabelValues(string(domain.LogActionDelete)).Inc()
	s.actorLogger(actor).Info("task deleted", "task_id", id)

	return nil
}

// Logs возвращает записи журнала аудита, новые первыми.
func (s *TaskService) Logs(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultPageLimit
	}
	if filter.Limit > domain.MaxPageLimit {
		filter.Limit = domain.MaxPageLimit
	}

	entries, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, storageError(uuid.Nil, "list logs", err)
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return entries, nil
}

// stage загружает задачу, проверяет гейт, применяет патч и готовит запись журнала.
// Ничего не сохраняет.
func (s *TaskService) stage(ctx context.Context, id uuid.UUID, patch domain.TaskPatch, actor domain.Actor) (*domain.Task, *domain.LogEntry, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	deps := patch.DependenciesAfter(task)
	if slices.Contains(deps, id) {
		return nil, nil, validationError(id, "dependencies", "task cannot depend on itself")
	}

	if patch.CompletesTask() {
		pending, err := s.checker.Incomplete(ctx, deps)
		if err != nil {
			return nil, nil, storageError(id, "check dependencies", err)
		}
		if len(pending) > 0 {
			telemetry.GateRejections.WithLabelValues(telemetry.RejectDependenciesIncomplete).Inc()
			s.actorLogger(actor).Warn("completion rejected", "task_id", id, "pending", len(pending))
			return nil, nil, dependenciesNotCompletedError(id, pending)
		}
	}

	before := task.Clone()
	patch.Apply(task)

	if err := validate(task); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	task.CalculatePriority(now)
	task.Touch(now)

	return task, domain.NewUpdateLog(before, task, actor, now), nil
}

// load загружает задачу и переводит repo.ErrNotFound в ErrNotFound.
func (s *TaskService) load(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFoundError(id)
		}
		return nil, storageError(id, "load task", err)
	}
	return task, nil
}

// audit пишет записи журнала и публикует их подписчикам.
//
// Мутация к этому моменту уже сохранена; при ошибке журнала она не
// откатывается, ошибка возвращается как ErrStorage.
func (s *TaskService) audit(ctx context.Context, entries ...*domain.LogEntry) error {
	var err error
	if len(entries) == 1 {
		err = s.logs.Append(ctx, entries[0])
	} else {
		err = s.logs.AppendMany(ctx, entries)
	}
	if err != nil {
		telemetry.AuditFailures.Inc()
		s.logger.Error("audit log write failed",
			"task_id", entries[0].TaskID,
			"entries", len(entries),
			"error", err,
		)
		return storageError(entries[0].TaskID, "write audit log", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLogEntries(ctx, entries); err != nil {
			s.logger.Warn("failed to publish audit entries", "entries", len(entries), "error", err)
		}
	}
	return nil
}

func (s *TaskService) actorLogger(actor domain.Actor) *slog.Logger {
	return telemetry.WithActor(s.logger, actor.ID.String(), string(actor.Role))
}

func validate(task *domain.Task) error {
	err := task.Validate()
	if err == nil {
		return nil
	}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		return validationError(task.ID, fe.Field, fe.Message)
	}
	return validationError(task.ID, "", err.Error())
}
