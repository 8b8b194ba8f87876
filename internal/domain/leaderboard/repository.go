// Package leaderboard содержит доменную модель лидерборда PropsHub.
package leaderboard

import (
	"context"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// ScopeResolver резолвит дескриптор скоупа в конкретный набор тейков.
//
// Контракт:
//   - несуществующая ссылка (пак/команда/контест) даёт пустой набор, не ошибку:
//     "лидерборда ещё нет" и "грейдить нечего" для вызывающего неразличимы;
//   - резолюция атомарна - либо полный набор, либо ошибка;
//   - ошибка отсутствующей реляционной вьюхи обрабатывается внутри резолвера
//     (прозрачный переход на join-стратегию) и наружу не выходит;
//   - прочие ошибки бэкенда пробрасываются как есть, ретраи - забота
//     планировщика задач, не движка.
type ScopeResolver interface {
	// Resolve возвращает канонические тейки скоупа вместе с жизненными
	// циклами затронутых пропов (для фильтра archived/draft в агрегации).
	Resolve(ctx context.Context, scope Scope) (Resolution, error)
}

// Resolution - результат резолюции скоупа.
type Resolution struct {
	// Takes - полный набор тейков скоупа, дедуплицированный по ID записи.
	Takes []take.Take

	// Lifecycles - жизненный цикл каждого пропа, встретившегося в Takes.
	Lifecycles map[shared.PropID]take.PropLifecycle

	// Title - отображаемый заголовок скоупа (имя пака, команды, контеста).
	// Пустой для нерезолвящихся ссылок.
	Title string
}

// Empty возвращает true, если скоуп не дал ни одного тейка.
func (r Resolution) Empty() bool {
	return len(r.Takes) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - кешируемый снимок лидерборда: полный набор строк вместе с
// заголовком скоупа. Заголовок приходит только из резолюции, поэтому
// кешируется вместе со строками - иначе попадание в кеш его теряет.
type Snapshot struct {
	// Title - отображаемый заголовок скоупа.
	Title string `json:"title"`

	// Rows - полный (неусечённый) набор строк.
	Rows []Row `json:"rows"`
}

// RowCache - явная кеш-абстракция готовых снимков лидерборда.
// Кеш инжектируется, а не живёт глобальной переменной процесса: тесты
// должны детерминированно проверять hit/miss, а вызывающий - иметь
// явный флаг обхода.
type RowCache interface {
	// Get возвращает закешированный снимок скоупа или (Snapshot{}, false).
	Get(ctx context.Context, scopeRef string) (Snapshot, bool, error)

	// Set кеширует снимок скоупа с заданным TTL.
	Set(ctx context.Context, scopeRef string, snapshot Snapshot, ttl time.Duration) error

	// Invalidate сбрасывает кеш скоупа (после грейдинга).
	Invalidate(ctx context.Context, scopeRef string) error
}
