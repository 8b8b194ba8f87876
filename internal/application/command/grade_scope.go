// Package command contains write operations following CQRS pattern.
// Commands orchestrate domain logic and persistence; each command is a
// self-contained use case with its own request/response types.
package command

import (
	"context"
	"errors"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WINNER SELECTION + SCOPE GRADING
// Селектор победителя - чистое чтение: резолюция скоупа, агрегация, топ-1,
// резолюция профиля. Write-once запись победителя (check-then-set) - забота
// команды грейдинга, не селектора.
//
// Машина состояний скоупа:
//
//	ungraded → graded-with-winner | graded-no-winner
//
// Оба graded-состояния терминальны: повторный грейдинг ничего не пишет.
// ══════════════════════════════════════════════════════════════════════════════

// WinnerResult - результат выбора победителя.
type WinnerResult struct {
	// SubjectKey - мобильный ключ победителя.
	SubjectKey shared.SubjectKey

	// ProfileID - профиль победителя. nil - валидный репортуемый исход:
	// победитель без профиля остаётся победителем.
	ProfileID *shared.ProfileID

	// Points и Takes - итог победителя по скоупу.
	Points int
	Takes  int
}

// WinnerStore - порт записи ссылки на победителя.
// Реализация обязана обеспечивать write-once семантику на уровне хранилища.
type WinnerStore interface {
	// WinnerRefSet возвращает true, если ссылка победителя у скоупа уже
	// проставлена (любое graded-состояние).
	WinnerRefSet(ctx context.Context, scopeRef string) (bool, error)

	// SetWinnerRef записывает победителя скоупа. profileID == nil означает
	// терминальное состояние "graded, no winner". Повторная запись по уже
	// отгрейженному скоупу возвращает shared.ErrScopeAlreadyGraded.
	SetWinnerRef(ctx context.Context, scopeRef string, subject shared.SubjectKey, profileID *shared.ProfileID) error
}

// SelectWinnerHandler выбирает победителя финализированного скоупа.
type SelectWinnerHandler struct {
	resolver    leaderboard.ScopeResolver
	profileRepo profile.Repository
}

// NewSelectWinnerHandler создаёт селектор победителя.
func NewSelectWinnerHandler(resolver leaderboard.ScopeResolver, profileRepo profile.Repository) *SelectWinnerHandler {
	return &SelectWinnerHandler{resolver: resolver, profileRepo: profileRepo}
}

// Handle выбирает победителя. Возвращает (nil, nil) для пустого скоупа -
// это NoWinner, валидное терминальное состояние, а не ошибка.
func (h *SelectWinnerHandler) Handle(ctx context.Context, scope leaderboard.Scope) (*WinnerResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, shared.WrapError("command", "SelectWinner", shared.ErrValidation, "invalid scope", err)
	}

	resolution, err := h.resolver.Resolve(ctx, scope)
	if err != nil {
		return nil, shared.WrapError("command", "SelectWinner", shared.ErrBackendUnavailable, "scope resolution failed", err)
	}

	agg := leaderboard.Aggregate(resolution.Takes, resolution.Lifecycles)
	top := leaderboard.Top(agg, nil)
	if top == nil {
		// NoWinner: скоуп без единого видимого тейка.
		return nil, nil
	}

	result := &WinnerResult{
		SubjectKey: top.SubjectKey,
		Points:     top.Points,
		Takes:      top.Takes,
	}

	// Резолвим личность победителя по номеру. Отсутствие профиля - не сбой.
	if h.profileRepo != nil {
		p, err := h.profileRepo.FindByPhone(ctx, top.SubjectKey)
		switch {
		case err == nil:
			pid := p.ID
			result.ProfileID = &pid
		case shared.IsNotFound(err):
			// Победитель без резолвящейся личности - репортуем как есть.
		default:
			return nil, shared.WrapError("command", "SelectWinner", shared.ErrBackendUnavailable, "profile lookup failed", err)
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE SCOPE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// GradeScopeResult - итог грейдинга скоупа.
type GradeScopeResult struct {
	// ScopeRef - ссылка отгрейженного скоупа.
	ScopeRef string

	// Winner - победитель; nil в состоянии graded-no-winner.
	Winner *WinnerResult

	// AlreadyGraded - скоуп был отгрейжен ранее, запись пропущена.
	AlreadyGraded bool
}

// GradeScopeHandler выполняет полный грейдинг: выбор победителя,
// write-once запись ссылки, публикация события, сброс кеша строк.
type GradeScopeHandler struct {
	selector *SelectWinnerHandler
	winners  WinnerStore
	rowCache leaderboard.RowCache
	events   shared.EventPublisher
}

// NewGradeScopeHandler создаёт команду грейдинга скоупа.
// rowCache и events опциональны.
func NewGradeScopeHandler(
	selector *SelectWinnerHandler,
	winners WinnerStore,
	rowCache leaderboard.RowCache,
	events shared.EventPublisher,
) *GradeScopeHandler {
	return &GradeScopeHandler{
		selector: selector,
		winners:  winners,
		rowCache: rowCache,
		events:   events,
	}
}

// Handle грейдит скоуп. Повторный вызов по отгрейженному скоупу - no-op
// с точки зрения записи: ссылка победителя никогда не перезаписывается.
func (h *GradeScopeHandler) Handle(ctx context.Context, scope leaderboard.Scope) (*GradeScopeResult, error) {
	scopeRef := scope.Ref()

	// Check-then-set: терминальные состояния не перезаписываются.
	set, err := h.winners.WinnerRefSet(ctx, scopeRef)
	if err != nil {
		return nil, shared.WrapError("command", "GradeScope", shared.ErrBackendUnavailable, "winner ref check failed", err)
	}
	if set {
		return &GradeScopeResult{ScopeRef: scopeRef, AlreadyGraded: true}, nil
	}

	winner, err := h.selector.Handle(ctx, scope)
	if err != nil {
		return nil, err
	}

	if winner == nil {
		// Graded, no winner: пишем пустую ссылку и не ретраим бесконечно.
		if err := h.winners.SetWinnerRef(ctx, scopeRef, "", nil); err != nil {
			return h.handleWriteError(scopeRef, nil, err)
		}
	} else {
		if err := h.winners.SetWinnerRef(ctx, scopeRef, winner.SubjectKey, winner.ProfileID); err != nil {
			return h.handleWriteError(scopeRef, winner, err)
		}
	}

	if h.rowCache != nil {
		_ = h.rowCache.Invalidate(ctx, scopeRef)
	}

	h.publishGraded(scopeRef, winner)

	return &GradeScopeResult{ScopeRef: scopeRef, Winner: winner}, nil
}

// handleWriteError сводит гонку двух грейдеров к AlreadyGraded.
func (h *GradeScopeHandler) handleWriteError(scopeRef string, winner *WinnerResult, err error) (*GradeScopeResult, error) {
	if errors.Is(err, shared.ErrAlreadyGraded) {
		return &GradeScopeResult{ScopeRef: scopeRef, Winner: winner, AlreadyGraded: true}, nil
	}
	return nil, shared.WrapError("command", "GradeScope", shared.ErrBackendUnavailable, "winner ref write failed", err)
}

// publishGraded публикует событие терминального состояния скоупа.
func (h *GradeScopeHandler) publishGraded(scopeRef string, winner *WinnerResult) {
	if h.events == nil {
		return
	}

	var subject, profileID string
	var points int
	if winner != nil {
		subject = winner.SubjectKey.String()
		points = winner.Points
		if winner.ProfileID != nil {
			profileID = winner.ProfileID.String()
		}
	}

	// Ошибка публикации не откатывает грейдинг - события можно переиграть.
	_ = h.events.Publish(shared.NewScopeGradedEvent(scopeRef, subject, profileID, points))
}
