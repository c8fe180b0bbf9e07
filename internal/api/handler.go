package api

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/taskflow/internal/service"
	"github.com/shaiso/taskflow/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks  *service.TaskService
	auth   *Authenticator
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks     *service.TaskService
	JWTSecret string
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:  cfg.Tasks,
		auth:   NewAuthenticator(cfg.JWTSecret),
		logger: logger,
	}
}

// log возвращает логгер запроса (с request_id), положенный Logging.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContext(r.Context())
}
