package domain

import "github.com/google/uuid"

// Actor — аутентифицированный пользователь, выполняющий операцию.
// Приходит из слоя авторизации; ядро его только читает.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
