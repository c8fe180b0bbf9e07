package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Виды ошибок сервиса. Проверяются через errors.Is.
var (
	// ErrValidation — отсутствует или некорректно обязательное поле.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound — задача не найдена.
	ErrNotFound = errors.New("not found")

	// ErrConflict — гейт зависимостей не пройден или у задачи есть зависимые.
	ErrConflict = errors.New("conflict")

	// ErrStorage — сбой хранилища или журнала аудита.
	ErrStorage = errors.New("storage failure")
)

// Error — ошибка операции сервиса.
//
// errors.Is(err, ErrConflict) проверяет вид ошибки,
// errors.Is(err, <причина>) — исходную ошибку хранилища.
type Error struct {
	Kind    error     // один из ErrValidation, ErrNotFound, ErrConflict, ErrStorage
	TaskID  uuid.UUID // задача, на которой произошла ошибка (может быть uuid.Nil)
	Field   string    // поле, не прошедшее валидацию
	Message string    // описание для клиента
	Err     error     // исходная ошибка
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Err != nil && e.Kind == ErrStorage {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap возвращает вид ошибки и исходную ошибку.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(taskID uuid.UUID, field, message string) *Error {
	return &Error{Kind: ErrValidation, TaskID: taskID, Field: field, Message: message}
}

func notFoundError(taskID uuid.UUID) *Error {
	return &Error{
		Kind:    ErrNotFound,
		TaskID:  taskID,
		Message: fmt.Sprintf("task %s not found", taskID),
	}
}

func dependenciesNotCompletedError(taskID uuid.UUID, pending []uuid.UUID) *Error {
	return &Error{
		Kind:    ErrConflict,
		TaskID:  taskID,
		Message: fmt.Sprintf("cannot complete task %s: dependencies are not completed (%d pending)", taskID, len(pending)),
	}
}

func hasDependentsError(taskID uuid.UUID) *Error {
	return &Error{
		Kind:    ErrConflict,
		TaskID:  taskID,
		Message: fmt.Sprintf("cannot delete task %s: other tasks depend on it", taskID),
	}
}

func storageError(taskID uuid.UUID, op string, err error) *Error {
	return &Error{Kind: ErrStorage, TaskID: taskID, Message: op, Err: err}
}
