// Package profile содержит доменную модель профиля участника PropsHub.
package profile

import (
	"context"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// Repository определяет контракт чтения профилей.
// Отсутствие профиля по номеру - штатная ситуация (участник мог играть
// без регистрации), поэтому батч-методы возвращают только найденное.
type Repository interface {
	// FindByPhone возвращает профиль по мобильному номеру
	// или shared.ErrProfileNotFound.
	FindByPhone(ctx context.Context, phone shared.SubjectKey) (*Profile, error)

	// FindByID возвращает профиль по идентификатору
	// или shared.ErrProfileNotFound.
	FindByID(ctx context.Context, id shared.ProfileID) (*Profile, error)

	// FindByPhones возвращает найденные профили по набору номеров.
	// Номера без профиля в результат не попадают.
	FindByPhones(ctx context.Context, phones []shared.SubjectKey) (map[shared.SubjectKey]*Profile, error)
}
