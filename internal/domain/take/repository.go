// Package take содержит доменную модель тейка.
package take

import (
	"context"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// Repository определяет контракт доступа к записям тейков.
// Реализация обязана возвращать полный набор записей скоупа либо ошибку -
// частичный успех запрещён. Чанкование больших выборок по идентификаторам
// остаётся деталью реализации, но дедупликация после объединения чанков
// обязательна.
type Repository interface {
	// FindByIDs возвращает тейки по идентификаторам записей.
	// Порядок результата не гарантируется; дубликаты идентификаторов допустимы.
	FindByIDs(ctx context.Context, ids []string) ([]Take, error)

	// FindByProps возвращает все не-overwritten тейки по текстовым
	// идентификаторам пропов.
	FindByProps(ctx context.Context, propIDs []shared.PropID) ([]Take, error)

	// FindBySubject возвращает полную историю тейков участника,
	// включая overwritten и hidden записи.
	FindBySubject(ctx context.Context, subject shared.SubjectKey) ([]Take, error)

	// FindSubjectsByProps возвращает участников, чьи тейки затронуты
	// грейдингом указанных пропов. Ключ - SubjectKey, значение - прямая
	// ссылка на профиль, если она есть хотя бы у одной записи.
	FindSubjectsByProps(ctx context.Context, propIDs []shared.PropID) (map[shared.SubjectKey]shared.ProfileID, error)

	// PropLifecycles возвращает жизненный цикл каждого пропа из набора.
	// Пропы, отсутствующие в хранилище, в результат не попадают.
	PropLifecycles(ctx context.Context, propIDs []shared.PropID) (map[shared.PropID]PropLifecycle, error)
}
