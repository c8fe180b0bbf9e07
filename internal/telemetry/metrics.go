package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Причины отказа гейта.
const (
	RejectDependenciesIncomplete = "dependencies_incomplete"
	RejectHasDependents          = "has_dependents"
)

var (
	// TaskMutations — успешные мутации задач по типу действия.
	TaskMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_task_mutations_total",
		Help: "Total task mutations by action",
	}, []string{"action"})

	// GateRejections — отказы из-за зависимостей.
	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_gate_rejections_total",
		Help: "Total mutations rejected by the dependency gate",
	}, []string{"reason"})

	// AuditFailures — ошибки записи журнала аудита после применённой мутации.
	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskflow_audit_write_failures_total",
		Help: "Total audit log writes that failed after the mutation was applied",
	})

	// BulkUpdateSize — размер пакетов массового обновления.
	BulkUpdateSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskflow_bulk_update_size",
		Help:    "Number of items per bulk update request",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	// PriorityRefreshed — задачи, чей приоритет изменился при плановом пересчёте.
	PriorityRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskflow_priority_refreshed_total",
		Help: "Total tasks whose priority changed during scheduled refresh",
	})

	// HTTPRequests — HTTP запросы по методу, маршруту и статусу.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_http_requests_total",
		Help: "Total HTTP requests handled by taskflow-api",
	}, []string{"method", "route", "status"})

	// HTTPDuration — длительность обработки HTTP запросов.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskflow_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
