// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает ранжированный лидерборд произвольного скоупа.
// Пустой скоуп - штатный результат с пустым списком строк, не ошибка:
// "лидерборда ещё нет" не должно отличаться от "лидерборд пуст".
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCacheTTL - TTL кеша строк лидерборда по умолчанию.
const DefaultCacheTTL = 2 * time.Minute

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Scope - дескриптор выборки тейков.
	Scope leaderboard.Scope

	// Limit - количество строк (по умолчанию 25, максимум 100).
	Limit int

	// BypassCache - принудительно обойти кеш (для грейдинга и тестов).
	BypassCache bool
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if err := q.Scope.Validate(); err != nil {
		return err
	}
	if q.Limit < 0 {
		return shared.ErrInvalidInput
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	return nil
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Rows - строки лидерборда в финальном порядке.
	Rows []leaderboard.Row `json:"rows"`

	// Title - отображаемый заголовок скоупа.
	Title string `json:"title"`

	// ScopeRef - стабильная ссылка скоупа.
	ScopeRef string `json:"scope_ref"`

	// TotalSubjects - количество участников до усечения.
	TotalSubjects int `json:"total_subjects"`

	// CacheHit - строки пришли из кеша.
	CacheHit bool `json:"cache_hit"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	resolver    leaderboard.ScopeResolver
	profileRepo profile.Repository
	rowCache    leaderboard.RowCache
	cacheTTL    time.Duration
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
// rowCache может быть nil - тогда каждый запрос резолвит скоуп заново.
func NewGetLeaderboardHandler(
	resolver leaderboard.ScopeResolver,
	profileRepo profile.Repository,
	rowCache leaderboard.RowCache,
	cacheTTL time.Duration,
) *GetLeaderboardHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &GetLeaderboardHandler{
		resolver:    resolver,
		profileRepo: profileRepo,
		rowCache:    rowCache,
		cacheTTL:    cacheTTL,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, "invalid query", err)
	}

	scopeRef := query.Scope.Ref()

	// Попытка получить из кеша
	if h.rowCache != nil && !query.BypassCache {
		snapshot, ok, err := h.rowCache.Get(ctx, scopeRef)
		if err == nil && ok {
			return &GetLeaderboardResult{
				Rows:          truncate(snapshot.Rows, query.Limit),
				Title:         snapshot.Title,
				ScopeRef:      scopeRef,
				TotalSubjects: len(snapshot.Rows),
				CacheHit:      true,
				GeneratedAt:   time.Now().UTC(),
			}, nil
		}
		// Ошибка кеша не критична - идём в хранилище.
	}

	// Резолвим скоуп в набор тейков
	resolution, err := h.resolver.Resolve(ctx, query.Scope)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrBackendUnavailable, "scope resolution failed", err)
	}

	// Агрегация и сборка строк
	agg := leaderboard.Aggregate(resolution.Takes, resolution.Lifecycles)
	identities, err := h.resolveIdentities(ctx, agg)
	if err != nil {
		// Декорация профилями не критична - лидерборд уходит без неё.
		identities = nil
	}

	rows := leaderboard.Build(agg, identities, 0)

	// Кешируем полный снимок (строки + заголовок), усечение - на выдаче.
	if h.rowCache != nil {
		snapshot := leaderboard.Snapshot{Title: resolution.Title, Rows: rows}
		_ = h.rowCache.Set(ctx, scopeRef, snapshot, h.cacheTTL)
	}

	return &GetLeaderboardResult{
		Rows:          truncate(rows, query.Limit),
		Title:         resolution.Title,
		ScopeRef:      scopeRef,
		TotalSubjects: agg.Len(),
		CacheHit:      false,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// resolveIdentities батчем подтягивает профили участников агрегации.
func (h *GetLeaderboardHandler) resolveIdentities(ctx context.Context, agg *leaderboard.Aggregation) (map[shared.SubjectKey]leaderboard.Identity, error) {
	if h.profileRepo == nil || agg.Len() == 0 {
		return nil, nil
	}

	profiles, err := h.profileRepo.FindByPhones(ctx, agg.Subjects())
	if err != nil {
		return nil, err
	}

	identities := make(map[shared.SubjectKey]leaderboard.Identity, len(profiles))
	for phone, p := range profiles {
		identities[phone] = leaderboard.Identity{ProfileID: p.ID, Handle: p.Handle}
	}
	return identities, nil
}

// truncate усекает строки до лимита, не трогая исходный слайс.
func truncate(rows []leaderboard.Row, limit int) []leaderboard.Row {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}
