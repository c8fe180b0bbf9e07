package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
	"github.com/shaiso/taskflow/internal/engine"
	"github.com/shaiso/taskflow/internal/repo"
)

var fixedNow = time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

var (
	manager = domain.Actor{ID: uuid.New(), Role: domain.RoleManager}
	admin   = domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
)

// failingLogs — журнал, который отказывает на запись.
type failingLogs struct {
	*repo.MemoryLogStore
	err error
}

func (f *failingLogs) Append(context.Context, *domain.LogEntry) error        { return f.err }
func (f *failingLogs) AppendMany(context.Context, []*domain.LogEntry) error { return f.err }

// failingUpdates — хранилище, которое отказывает на Update для выбранной задачи.
type failingUpdates struct {
	*repo.MemoryTaskStore
	failID uuid.UUID
	err    error
}

func (f *failingUpdates) Update(ctx context.Context, task *domain.Task) error {
	if task.ID == f.failID {
		return f.err
	}
	return f.MemoryTaskStore.Update(ctx, task)
}

// recordingPublisher запоминает опубликованные записи.
type recordingPublisher struct {
	mu      sync.Mutex
	entries []*domain.LogEntry
	err     error
}

func (p *recordingPublisher) PublishLogEntries(_ context.Context, entries []*domain.LogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entries...)
	return p.err
}

type fixture struct {
	svc   *TaskService
	tasks *repo.MemoryTaskStore
	logs  *repo.MemoryLogStore
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()

	tasks := repo.NewMemoryTaskStore()
	logs := repo.NewMemoryLogStore()
	cfg := Config{
		Tasks:  tasks,
		Logs:   logs,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &fixture{svc: New(cfg), tasks: tasks, logs: logs}
}

func (f *fixture) create(t *testing.T, title string, deps ...uuid.UUID) *domain.Task {
	t.Helper()

	task, err := f.svc.Create(context.Background(), CreateInput{
		Title:        title,
		Description:  title + " description",
		AssignedTo:   uuid.New(),
		Dependencies: deps,
		Deadline:     fixedNow.AddDate(0, 0, 14),
	}, manager)
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return task
}

func (f *fixture) setStatus(t *testing.T, id uuid.UUID, status domain.TaskStatus) {
	t.Helper()

	if _, err := f.svc.Update(context.Background(), id, domain.TaskPatch{Status: &status}, manager); err != nil {
		t.Fatalf("set status %s: %v", status, err)
	}
}

func (f *fixture) logsFor(t *testing.T, id uuid.UUID) []domain.LogEntry {
	t.Helper()

	entries, err := f.logs.List(context.Background(), domain.LogFilter{TaskID: &id})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return entries
}

func statusPtr(s domain.TaskStatus) *domain.TaskStatus { return &s }

// --- Create ---

func TestCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	dep := uuid.New()

	task, err := f.svc.Create(context.Background(), CreateInput{
		Title:        "Ship release",
		Description:  "Tag and publish",
		AssignedTo:   uuid.New(),
		Dependencies: []uuid.UUID{dep, dep},
		Deadline:     fixedNow.Add(48 * time.Hour),
		Tags:         []string{"release", " release "},
	}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != domain.TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Priority != domain.MaxPriority {
		t.Errorf("expected priority 5, got %v", task.Priority)
	}
	if task.CreatedBy != manager.ID {
		t.Error("CreatedBy should be the actor")
	}
	if len(task.Dependencies) != 1 || len(task.Tags) != 1 {
		t.Errorf("dependencies and tags should be normalized: %v %v", task.Dependencies, task.Tags)
	}

	stored, err := f.tasks.FindByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("task not stored: %v", err)
	}
	if stored.Priority != task.Priority {
		t.Error("stored priority differs")
	}

	entries := f.logsFor(t, task.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != domain.LogActionCreate || e.UserID != manager.ID {
		t.Errorf("unexpected entry: %s by %s", e.Action, e.UserID)
	}
	if e.Changes.Task == nil || e.Changes.Task.ID != task.ID {
		t.Error("create entry should snapshot the task")
	}
	if e.Metadata[domain.MetaUserRole] != "manager" {
		t.Errorf("expected userRole manager, got %v", e.Metadata[domain.MetaUserRole])
	}
}

func TestCreate_PriorityFarDeadline(t *testing.T) {
	f := newFixture(t)

	task, err := f.svc.Create(context.Background(), CreateInput{
		Title:       "Plan offsite",
		Description: "Book venue",
		AssignedTo:  uuid.New(),
		Deadline:    fixedNow.AddDate(0, 0, 28),
	}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Priority != 1 {
		t.Errorf("expected priority 1, got %v", task.Priority)
	}
}

func TestCreate_ValidationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		Description: "no title",
		AssignedTo:  uuid.New(),
		Deadline:    fixedNow,
	}, manager)

	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Field != "title" {
		t.Errorf("expected title field error, got %v", err)
	}
	if f.logs.Len() != 0 {
		t.Error("failed create must not be logged")
	}
}

// --- Update ---

func TestUpdate_CompletionBlockedByIncompleteDependency(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")
	b := f.create(t, "B", a.ID)

	_, err := f.svc.Update(context.Background(), b.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}, manager)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	stored, _ := f.tasks.FindByID(context.Background(), b.ID)
	if stored.Status != domain.TaskStatusPending {
		t.Errorf("status must stay pending, got %s", stored.Status)
	}
	if n := len(f.logsFor(t, b.ID)); n != 1 {
		t.Errorf("rejected update must not be logged, got %d entries", n)
	}
}

func TestUpdate_CompletionAllowedAfterDependencyCompleted(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")
	b := f.create(t, "B", a.ID)

	f.setStatus(t, a.ID, domain.TaskStatusCompleted)

	updated, err := f.svc.Update(context.Background(), b.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}

	entries := f.logsFor(t, b.ID)
	if len(entries) != 2 {
		t.Fatalf("expected create + update entries, got %d", len(entries))
	}
	last := entries[0]
	if last.Action != domain.LogActionUpdate {
		t.Errorf("expected update entry, got %s", last.Action)
	}
	if last.Changes.Before.Status != domain.TaskStatusPending || last.Changes.After.Status != domain.TaskStatusCompleted {
		t.Errorf("unexpected snapshots: %s → %s", last.Changes.Before.Status, last.Changes.After.Status)
	}
}

func TestUpdate_GateUsesPatchedDependencies(t *testing.T) {
	f := newFixture(t)
	done := f.create(t, "done")
	f.setStatus(t, done.ID, domain.TaskStatusCompleted)
	pending := f.create(t, "pending")
	task := f.create(t, "task", done.ID)

	// Новые зависимости из патча тоже проверяются
	deps := []uuid.UUID{done.ID, pending.ID}
	_, err := f.svc.Update(context.Background(), task.ID, domain.TaskPatch{
		Status:       statusPtr(domain.TaskStatusCompleted),
		Dependencies: &deps,
	}, manager)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdate_MissingDependencyPassesByDefault(t *testing.T) {
	f := newFixture(t)
	z := uuid.New()
	c := f.create(t, "C", z)

	updated, err := f.svc.Update(context.Background(), c.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}, manager)
	if err != nil {
		t.Fatalf("nonexistent dependency should not block completion: %v", err)
	}
	if updated.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
}

func TestUpdate_MissingDependencyBlockPolicy(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MissingDependencyPolicy = engine.MissingDependencyBlock })
	c := f.create(t, "C", uuid.New())

	_, err := f.svc.Update(context.Background(), c.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}, manager)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict under block policy, got %v", err)
	}
}

func TestUpdate_RecomputesPriority(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, "A")
	if task.Priority != 3 {
		t.Fatalf("expected initial priority 3, got %v", task.Priority)
	}

	deadline := fixedNow.Add(24 * time.Hour)
	updated, err := f.svc.Update(context.Background(), task.ID, domain.TaskPatch{Deadline: &deadline}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ComputePriority(deadline, 0, fixedNow)
	if updated.Priority != want {
		t.Errorf("expected priority %v, got %v", want, updated.Priority)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), uuid.New(), domain.TaskPatch{}, manager)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, "A")

	_, err := f.svc.Update(context.Background(), task.ID, domain.TaskPatch{Status: statusPtr("archived")}, manager)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdate_SelfDependencyWithCompletionIsValidation(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, "A")
	other := f.create(t, "B")

	deps := []uuid.UUID{other.ID, task.ID}
	patch := domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted), Dependencies: &deps}

	_, err := f.svc.Update(context.Background(), task.ID, patch, manager)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("self-dependency must not be reported as conflict: %v", err)
	}

	stored, _ := f.tasks.FindByID(context.Background(), task.ID)
	if stored.Status != domain.TaskStatusPending || len(stored.Dependencies) != 0 {
		t.Errorf("task changed: status=%s deps=%v", stored.Status, stored.Dependencies)
	}
}

func TestUpdate_AuditFailureReturnsStorageError(t *testing.T) {
	tasks := repo.NewMemoryTaskStore()
	logErr := errors.New("disk full")
	logs := &failingLogs{MemoryLogStore: repo.NewMemoryLogStore()}

	svc := New(Config{
		Tasks:  tasks,
		Logs:   logs,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	})

	task, err := svc.Create(context.Background(), CreateInput{
		Title: "A", Description: "d", AssignedTo: uuid.New(), Deadline: fixedNow,
	}, manager)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	logs.err = logErr
	_, err = svc.Update(context.Background(), task.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)}, manager)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, logErr) {
		t.Fatalf("expected ErrStorage wrapping cause, got %v", err)
	}

	// Мутация уже применена
	stored, _ := tasks.FindByID(context.Background(), task.ID)
	if stored.Status != domain.TaskStatusInProgress {
		t.Errorf("expected persisted in-progress, got %s", stored.Status)
	}
}

// --- Delete ---

func TestDelete_BlockedByDependents(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")
	f.create(t, "B", a.ID)

	err := f.svc.Delete(context.Background(), a.ID, admin)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := f.tasks.FindByID(context.Background(), a.ID); err != nil {
		t.Error("task must still exist")
	}
}

func TestDelete_Success(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")

	if err := f.svc.Delete(context.Background(), a.ID, admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	entries, _ := f.logs.List(context.Background(), domain.LogFilter{TaskID: &a.ID, Action: domain.LogActionDelete})
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 delete entry, got %d", len(entries))
	}
	if entries[0].Changes.Task == nil || entries[0].Changes.Task.Title != "A" {
		t.Error("delete entry should snapshot the deleted task")
	}
	if entries[0].Metadata[domain.MetaUserRole] != "admin" {
		t.Errorf("expected userRole admin, got %v", entries[0].Metadata[domain.MetaUserRole])
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Delete(context.Background(), uuid.New(), admin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.logs.Len() != 0 {
		t.Error("nothing should be logged")
	}
}

// --- BulkUpdate ---

func TestBulkUpdate_ConflictAbortsWholeBatch(t *testing.T) {
	f := newFixture(t)
	dep := f.create(t, "dep")
	x := f.create(t, "X", dep.ID)
	y := f.create(t, "Y")
	logsBefore := f.logs.Len()

	_, err := f.svc.BulkUpdate(context.Background(), []BulkItem{
		{ID: x.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}},
		{ID: y.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)}},
	}, manager)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.TaskID != x.ID {
		t.Errorf("error should name X, got %s", svcErr.TaskID)
	}

	stored, _ := f.tasks.FindByID(context.Background(), y.ID)
	if stored.Status != domain.TaskStatusPending {
		t.Errorf("Y must not be persisted, got %s", stored.Status)
	}
	if f.logs.Len() != logsBefore {
		t.Error("failed batch must not write log entries")
	}
}

func TestBulkUpdate_Success(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, func(c *Config) { c.Publisher = pub })
	a := f.create(t, "A")
	b := f.create(t, "B")
	c := f.create(t, "C")
	pub.entries = nil

	updated, err := f.svc.BulkUpdate(context.Background(), []BulkItem{
		{ID: a.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)}},
		{ID: b.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusBlocked)}},
		{ID: c.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}},
	}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("expected 3 updated tasks, got %d", len(updated))
	}

	for id, want := range map[uuid.UUID]domain.TaskStatus{
		a.ID: domain.TaskStatusInProgress,
		b.ID: domain.TaskStatusBlocked,
		c.ID: domain.TaskStatusCompleted,
	} {
		stored, _ := f.tasks.FindByID(context.Background(), id)
		if stored.Status != want {
			t.Errorf("task %s: expected %s, got %s", id, want, stored.Status)
		}
	}

	entries, _ := f.logs.List(context.Background(), domain.LogFilter{Action: domain.LogActionUpdate})
	if len(entries) != 3 {
		t.Fatalf("expected 3 update entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Metadata[domain.MetaBulkUpdate] != true {
			t.Errorf("entry %s should be marked bulk", e.ID)
		}
	}

	if len(pub.entries) != 3 {
		t.Errorf("expected 3 published entries, got %d", len(pub.entries))
	}
}

func TestBulkUpdate_GateIgnoresSameBatchChanges(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")
	b := f.create(t, "B", a.ID)

	_, err := f.svc.BulkUpdate(context.Background(), []BulkItem{
		{ID: a.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}},
		{ID: b.ID, Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)}},
	}, manager)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBulkUpdate_Rejects(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")

	if _, err := f.svc.BulkUpdate(context.Background(), nil, manager); !errors.Is(err, ErrValidation) {
		t.Errorf("empty batch: expected ErrValidation, got %v", err)
	}

	_, err := f.svc.BulkUpdate(context.Background(), []BulkItem{{ID: a.ID}, {ID: a.ID}}, manager)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate ids: expected ErrValidation, got %v", err)
	}

	_, err = f.svc.BulkUpdate(context.Background(), []BulkItem{{ID: a.ID}, {ID: uuid.New()}}, manager)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestBulkUpdate_WriteFailureSkipsLog(t *testing.T) {
	tasks := repo.NewMemoryTaskStore()
	logs := repo.NewMemoryLogStore()
	store := &failingUpdates{MemoryTaskStore: tasks, err: errors.New("deadlock")}

	svc := New(Config{
		Tasks:  store,
		Logs:   logs,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	})

	var ids []uuid.UUID
	for _, title := range []string{"A", "B"} {
		task, err := svc.Create(context.Background(), CreateInput{
			Title: title, Description: "d", AssignedTo: uuid.New(), Deadline: fixedNow,
		}, manager)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, task.ID)
	}
	store.failID = ids[1]
	logsBefore := logs.Len()

	_, err := svc.BulkUpdate(context.Background(), []BulkItem{
		{ID: ids[0], Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)}},
		{ID: ids[1], Patch: domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)}},
	}, manager)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if logs.Len() != logsBefore {
		t.Error("log entries must not be written when a write fails")
	}
}

// --- Queries ---

func TestListAndLogs(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"A", "B", "C"} {
		f.create(t, title)
	}

	page, err := f.svc.List(context.Background(), domain.TaskFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Tasks) != 2 || page.Page != 1 || page.Limit != 2 {
		t.Errorf("unexpected page: total=%d len=%d page=%d limit=%d", page.Total, len(page.Tasks), page.Page, page.Limit)
	}

	entries, err := f.svc.Logs(context.Background(), domain.LogFilter{UserID: &manager.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries by manager, got %d", len(entries))
	}

	entries, _ = f.svc.Logs(context.Background(), domain.LogFilter{UserID: &admin.ID})
	if entries == nil || len(entries) != 0 {
		t.Error("expected empty non-nil slice")
	}
}

func TestPublisherFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f := newFixture(t, func(c *Config) { c.Publisher = pub })

	task := f.create(t, "A")
	if task == nil {
		t.Fatal("expected task")
	}
	if len(pub.entries) != 1 {
		t.Errorf("expected publish attempt, got %d entries", len(pub.entries))
	}
}
