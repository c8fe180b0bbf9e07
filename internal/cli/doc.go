// Package cli реализует инструмент командной строки taskflow.
//
// # Обзор
//
// CLI — клиентская утилита для taskflow API. Работает через HTTP и не
// импортирует internal/api: типы запросов и ответов продублированы в client.go.
// Исключение — log tail, который читает поток событий аудита прямо из
// RabbitMQ через internal/mq.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для taskflow API. Передаёт JWT как Bearer-токен, разбирает
// конверты ответов ({data}, {data,total,page,limit}, {error}) и возвращает
// ошибки сервера как *APIError.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	page, err := client.ListTasks(ctx, cli.ListTasksOpts{Status: "pending"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (go-pretty) — по умолчанию
//   - JSON — с флагом --json или TASKFLOW_JSON=true
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: taskflow task list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - task: list, show, create, update, complete, delete, bulk
//   - log: list, tail
//
// Каждая группа создаётся через фабричную функцию (NewTaskCmd, NewLogCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после разбора флагов и окружения (viper).
package cli
