// Package scheduler периодически пересчитывает приоритеты задач.
//
// Приоритет зависит от текущего времени (дней до дедлайна), поэтому
// сохранённое значение устаревает. Scheduler по cron-расписанию обходит
// незавершённые задачи и сохраняет изменившиеся приоритеты.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, RunOnce, Run)
//   - cron.go      — парсинг cron-выражений и вычисление следующего запуска
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Store:    taskRepo,
//	    Lock:     repo.NewAdvisoryLock(pool, lockID),
//	    CronExpr: "*/15 * * * *",
//	    Logger:   logger,
//	})
//	if err != nil { ... }
//	sched.Run(ctx)
//
// Leader Election:
//
// При нескольких экземплярах пересчёт выполняет только лидер,
// удерживающий pg_try_advisory_lock (см. repo.AdvisoryLock).
package scheduler
