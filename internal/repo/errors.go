package repo

import "errors"

// Ошибки хранилищ задач. Журнал аудита их не возвращает.
var (
	// ErrNotFound — задача с таким ID не найдена.
	ErrNotFound = errors.New("repo: task not found")

	// ErrAlreadyExists — задача с таким ID уже есть (нарушение первичного ключа).
	ErrAlreadyExists = errors.New("repo: task already exists")
)
