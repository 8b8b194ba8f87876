// Package achievement содержит доменную модель майлстоун-ачивок PropsHub.
package achievement

import (
	"context"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// Repository определяет контракт хранилища ачивок.
//
// Хранилище обязано нести уникальный индекс по (profile_ref, key) и
// трактовать конфликт вставки как безобидный no-op: проверка "каких ключей
// не хватает" и сама вставка не обёрнуты в одну транзакцию, поэтому два
// конкурентных прохода могут увидеть один и тот же недостающий ключ.
// Read-then-write сам по себе гарантию at-most-once не даёт.
type Repository interface {
	// ExistingKeys возвращает множество ключей уже выданных участнику ачивок.
	ExistingKeys(ctx context.Context, profileRef shared.ProfileID, subject shared.SubjectKey) (map[string]struct{}, error)

	// InsertBatch вставляет строки ачивок, чанкуя запись под лимиты бэкенда.
	// Возвращает ключи реально созданных строк: конфликт по уникальному
	// индексу в результат не попадает. Пустой вход - no-op.
	InsertBatch(ctx context.Context, rows []Achievement) ([]string, error)
}
