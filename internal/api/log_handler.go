package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/taskflow/internal/domain"
)

// ListTaskLogs возвращает журнал одной задачи, новые записи первыми.
// Работает и для удалённых задач.
// GET /api/v1/tasks/{id}/logs?action=&limit=&offset=
func (h *Handler) ListTaskLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	filter, err := parseLogFilter(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	filter.TaskID = &id

	h.writeLogs(w, r, filter)
}

// ListLogs возвращает журнал аудита с фильтрами.
// GET /api/v1/logs?task_id=&user_id=&action=&limit=&offset=
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if v := r.URL.Query().Get("task_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, errInvalidParam("task_id").Error())
			return
		}
		filter.TaskID = &id
	}

	h.writeLogs(w, r, filter)
}

func (h *Handler) writeLogs(w http.ResponseWriter, r *http.Request, filter domain.LogFilter) {
	entries, err := h.tasks.Logs(r.Context(), filter)
	if HandleServiceError(w, h.log(r), err) {
		return
	}

	result := make([]LogEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = LogEntryFromDomain(e)
	}

	List(w, result, len(result))
}

func parseLogFilter(r *http.Request) (domain.LogFilter, error) {
	q := r.URL.Query()
	var filter domain.LogFilter

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errInvalidParam("user_id")
		}
		filter.UserID = &id
	}
	if v := q.Get("action"); v != "" {
		action := domain.LogAction(v)
		if !action.IsValid() {
			return filter, errInvalidParam("action")
		}
		filter.Action = action
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return filter, errInvalidParam("limit")
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil || filter.Offset < 0 {
		return filter, errInvalidParam("offset")
	}

	return filter, nil
}
