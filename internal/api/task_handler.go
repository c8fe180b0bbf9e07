package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// ListTasks возвращает страницу задач.
// GET /api/v1/tasks?status=&priority=&assigned_to=&search=&sort_by=&sort_order=&page=&limit=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	page, err := h.tasks.List(r.Context(), filter)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	result := make([]TaskResponse, len(page.Tasks))
	for i, t := range page.Tasks {
		result[i] = TaskFromDomain(t)
	}

	Page(w, result, page.Total, page.Page, page.Limit)
}

// CreateTask создаёт задачу.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), req.ToInput(), actor)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	Created(w, TaskFromDomain(*task))
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), id)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// UpdateTask частично обновляет задачу.
// PUT /api/v1/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.tasks.Update(r.Context(), id, req, actor)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// BulkUpdateTasks применяет набор обновлений.
// POST /api/v1/tasks/bulk-update
func (h *Handler) BulkUpdateTasks(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req BulkUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tasks, err := h.tasks.BulkUpdate(r.Context(), req.ToItems(), actor)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(*t)
	}

	Success(w, BulkUpdateResponse{
		Message: "tasks updated successfully",
		Updated: len(result),
		Tasks:   result,
	})
}

// DeleteTask удаляет задачу.
// DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), id, actor); HandleServiceError(w, h.log(r), err) {
		return
	}

	NoContent(w)
}

// --- Helpers ---

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func parseTaskFilter(r *http.Request) (domain.TaskFilter, error) {
	q := r.URL.Query()
	var filter domain.TaskFilter

	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(v)
		if !status.IsValid() {
			return filter, errInvalidParam("status")
		}
		filter.Status = status
	}
	if v := q.Get("priority"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errInvalidParam("priority")
		}
		filter.MinPriority = &p
	}
	if v := q.Get("assigned_to"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errInvalidParam("assigned_to")
		}
		filter.AssignedTo = &id
	}
	filter.Search = q.Get("search")

	if v := q.Get("sort_by"); v != "" {
		filter.SortBy = v
		filter.Desc = !strings.EqualFold(q.Get("sort_order"), "asc")
	}

	var err error
	if filter.Page, err = intParam(q.Get("page")); err != nil {
		return filter, errInvalidParam("page")
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return filter, errInvalidParam("limit")
	}

	return filter, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

type paramError string

func (e paramError) Error() string { return "invalid " + string(e) + " parameter" }

func errInvalidParam(name string) error { return paramError(name) }
