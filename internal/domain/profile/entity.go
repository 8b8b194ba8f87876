// Package profile содержит доменную модель профиля участника PropsHub.
// Движок профили не создаёт и не удаляет - только читает соответствие
// номер телефона → профиль, чтобы декорировать рейтинги и привязывать ачивки.
package profile

import (
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// Profile - проекция профиля участника, достаточная для движка.
type Profile struct {
	// ID - идентификатор профиля (UUID).
	ID shared.ProfileID

	// Handle - отображаемое имя.
	Handle string

	// Phone - нормализованный мобильный номер, сквозной ключ к тейкам.
	Phone shared.SubjectKey

	// CreatedAt - момент создания профиля.
	CreatedAt time.Time
}

// HasHandle возвращает true, если у профиля есть отображаемое имя.
func (p Profile) HasHandle() bool {
	return p.Handle != ""
}
