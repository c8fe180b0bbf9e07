// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go      — Handler с DI (сервис задач, аутентификация, logger)
//   - routes.go       — регистрация маршрутов и ролевые ограничения
//   - middleware.go   — middleware (logging, recovery, metrics)
//   - auth.go         — проверка JWT и RequireRoles
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - task_handler.go — обработчики для /tasks
//   - log_handler.go  — обработчики для журнала аудита
//
// API предоставляет REST endpoints для управления задачами и чтения журнала.
package api
