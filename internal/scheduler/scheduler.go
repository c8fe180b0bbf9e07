package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shaiso/taskflow/internal/domain"
	"github.com/shaiso/taskflow/internal/telemetry"
)

// PriorityStore — хранилище, которое обходит планировщик.
type PriorityStore interface {
	// ListActive возвращает незавершённые задачи с ID > after по возрастанию ID.
	ListActive(ctx context.Context, after uuid.UUID, limit int) ([]domain.Task, error)

	// UpdatePriority сохраняет приоритет, не трогая updated_at.
	UpdatePriority(ctx context.Context, id uuid.UUID, priority float64) error
}

// Locker — лидерская блокировка между экземплярами планировщика.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Store  PriorityStore
	Lock   Locker // nil — единственный экземпляр, блокировка не нужна
	Logger *slog.Logger

	// CronExpr — расписание пересчёта.
	CronExpr string

	// BatchSize — размер страницы обхода (default: 500).
	BatchSize int

	Now func() time.Time
}

// TickResult — итог одного пересчёта.
type TickResult struct {
	Scanned int
	Updated int
	Failed  int
}

// Scheduler пересчитывает приоритеты незавершённых задач.
type Scheduler struct {
	store     PriorityStore
	lock      Locker
	logger    *slog.Logger
	cronExpr  string
	batchSize int
	now       func() time.Time
}

// New создаёт Scheduler. Возвращает ошибку для невалидного расписания.
func New(cfg Config) (*Scheduler, error) {
	if err := ValidateCronExpr(cfg.CronExpr); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		store:     cfg.Store,
		lock:      cfg.Lock,
		logger:    logger,
		cronExpr:  cfg.CronExpr,
		batchSize: batchSize,
		now:       now,
	}, nil
}

// Tick выполняет один проход пересчёта.
//
// 1. Постранично обходит незавершённые задачи
// 2. Пересчитывает приоритет относительно текущего времени
// 3. Сохраняет только изменившиеся значения
//
// Ошибка сохранения одной задачи не останавливает обход.
// Записи в журнал аудита не создаются: это обслуживание, а не действие пользователя.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.now()
	var res TickResult
	after := uuid.Nil

	for {
		tasks, err := s.store.ListActive(ctx, after, s.batchSize)
		if err != nil {
			return res, fmt.Errorf("list active tasks: %w", err)
		}
		if len(tasks) == 0 {
			break
		}

		for i := range tasks {
			task := &tasks[i]
			res.Scanned++

			priority := domain.ComputePriority(task.Deadline, len(task.Dependencies), now)
			if priority == task.Priority {
				continue
			}

			if err := s.store.UpdatePriority(ctx, task.ID, priority); err != nil {
				telemetry.WithTaskID(s.logger, task.ID.String()).Error("failed to update priority", "error", err)
				res.Failed++
				continue
			}
			res.Updated++
			telemetry.PriorityRefreshed.Inc()
		}

		after = tasks[len(tasks)-1].ID
		if len(tasks) < s.batchSize {
			break
		}
	}

	s.logger.Info("priority refresh completed",
		"scanned", res.Scanned,
		"updated", res.Updated,
		"failed", res.Failed,
	)

	return res, nil
}

// RunOnce выполняет Tick, если этот экземпляр — лидер.
// Возвращает false, если лидерство захвачено другим экземпляром.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx)
		if err != nil {
			return false, fmt.Errorf("acquire leader lock: %w", err)
		}
		if !ok {
			s.logger.Debug("not a leader, skipping refresh")
			return false, nil
		}
	}

	if _, err := s.Tick(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Run запускает пересчёт по расписанию и блокируется до отмены ctx.
// Перекрывающиеся запуски пропускаются.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.cronExpr, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("priority refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	if next, err := NextRun(s.cronExpr, s.now()); err == nil {
		s.logger.Info("priority refresher started", "cron", s.cronExpr, "next_run", next)
	}

	c.Start()
	<-ctx.Done()

	// ждём завершения текущего прохода
	<-c.Stop().Done()

	if s.lock != nil {
		if err := s.lock.Unlock(context.Background()); err != nil {
			s.logger.Warn("failed to release leader lock", "error", err)
		}
	}

	return nil
}
