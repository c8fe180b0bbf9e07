package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements — DDL, идемпотентный за счёт IF NOT EXISTS.
//
// task_logs не ссылается на tasks: журнал переживает удаление задачи.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                    UUID PRIMARY KEY,
		title                 TEXT NOT NULL,
		description           TEXT NOT NULL,
		status                TEXT NOT NULL,
		priority              DOUBLE PRECISION NOT NULL DEFAULT 0,
		assigned_to           UUID NOT NULL,
		dependencies          UUID[] NOT NULL DEFAULT '{}',
		deadline              TIMESTAMPTZ NOT NULL,
		tags                  TEXT[] NOT NULL DEFAULT '{}',
		estimated_hours       DOUBLE PRECISION NOT NULL DEFAULT 0,
		actual_hours          DOUBLE PRECISION NOT NULL DEFAULT 0,
		completion_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_by            UUID NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks (assigned_to)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks (priority DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_dependencies ON tasks USING GIN (dependencies)`,
	`CREATE TABLE IF NOT EXISTS task_logs (
		id        UUID PRIMARY KEY,
		action    TEXT NOT NULL,
		task_id   UUID NOT NULL,
		user_id   UUID NOT NULL,
		changes   JSONB NOT NULL,
		metadata  JSONB NOT NULL DEFAULT '{}',
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_logs_task ON task_logs (task_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_task_logs_user ON task_logs (user_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_task_logs_action ON task_logs (action)`,
}

// EnsureSchema создаёт таблицы и индексы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
