// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация записей журнала аудита
//   - consumer.go   — потребление событий (taskflow events tail)
//
// Типы сообщений совпадают с действиями журнала:
//   - audit.create, audit.update, audit.delete
//
// Exchanges:
//   - taskflow.audit — события журнала аудита (topic, routing key = action)
//   - taskflow.dlq   — dead letter queue
package mq
