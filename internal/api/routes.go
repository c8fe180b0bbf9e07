package api

import (
	"net/http"

	"github.com/shaiso/taskflow/internal/domain"
)

// RegisterRoutes регистрирует все маршруты API.
//
// Чтение доступно любому аутентифицированному пользователю,
// изменения — admin и manager, удаление — только admin.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(),
		h.auth.Middleware(),
	)
	writers := Chain(chain, RequireRoles(domain.RoleAdmin, domain.RoleManager))
	admins := Chain(chain, RequireRoles(domain.RoleAdmin))

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", writers(http.HandlerFunc(h.CreateTask)))
	mux.Handle("POST /api/v1/tasks/bulk-update", writers(http.HandlerFunc(h.BulkUpdateTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("PUT /api/v1/tasks/{id}", writers(http.HandlerFunc(h.UpdateTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", admins(http.HandlerFunc(h.DeleteTask)))

	// Audit log
	mux.Handle("GET /api/v1/tasks/{id}/logs", chain(http.HandlerFunc(h.ListTaskLogs)))
	mux.Handle("GET /api/v1/logs", chain(http.HandlerFunc(h.ListLogs)))
}
