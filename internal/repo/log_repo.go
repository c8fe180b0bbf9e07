package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/taskflow/internal/domain"
)

const insertLogQuery = `
	INSERT INTO task_logs (id, action, task_id, user_id, changes, metadata, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// LogRepo — append-only репозиторий журнала аудита.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append добавляет одну запись.
func (r *LogRepo) Append(ctx context.Context, entry *domain.LogEntry) error {
	args, err := logArgs(entry)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertLogQuery, args...); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// AppendMany добавляет записи одной транзакцией: либо все, либо ни одной.
func (r *LogRepo) AppendMany(ctx context.Context, entries []*domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		args, err := logArgs(entry)
		if err != nil {
			return err
		}
		batch.Queue(insertLogQuery, args...)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert logs: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit logs: %w", err)
	}
	return nil
}

// List возвращает записи по фильтру, новые первыми.
func (r *LogRepo) List(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TaskID != nil {
		conds = append(conds, "task_id = "+arg(*filter.TaskID))
	}
	if filter.UserID != nil {
		conds = append(conds, "user_id = "+arg(*filter.UserID))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(filter.Action))
	}

	query := `SELECT id, action, task_id, user_id, changes, metadata, timestamp FROM task_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}
	query += " ORDER BY timestamp DESC, id ASC LIMIT " + arg(limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var changesJSON, metadataJSON []byte
		var ts time.Time

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.TaskID,
			&entry.UserID,
			&changesJSON,
			&metadataJSON,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}

		if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal changes: %w", err)
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		entry.Timestamp = ts.UTC()

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func logArgs(entry *domain.LogEntry) ([]any, error) {
	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return []any{
		entry.ID,
		entry.Action,
		entry.TaskID,
		entry.UserID,
		changesJSON,
		metadataJSON,
		entry.Timestamp,
	}, nil
}
