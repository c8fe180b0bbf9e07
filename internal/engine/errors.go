package engine

import "errors"

// Ошибки гейта зависимостей.
var (
	// ErrUnknownPolicy — неизвестная политика для отсутствующих зависимостей.
	ErrUnknownPolicy = errors.New("unknown missing dependency policy")
)
