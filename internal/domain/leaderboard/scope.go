// Package leaderboard содержит доменную модель лидерборда PropsHub.
package leaderboard

import (
	"fmt"
	"strings"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKind - вид скоупа агрегации.
type ScopeKind string

const (
	// ScopePack - один пак.
	ScopePack ScopeKind = "pack"
	// ScopePackList - произвольный список паков.
	ScopePackList ScopeKind = "pack_list"
	// ScopeTeam - команда плюс опциональное временное окно.
	ScopeTeam ScopeKind = "team"
	// ScopeContest - контест, транзитивно разворачиваемый в пропы его паков.
	ScopeContest ScopeKind = "contest"
)

// Scope - чистый дескриптор выборки тейков. Не хранится в базе и не несёт
// состояния: одно и то же значение можно резолвить сколько угодно раз.
type Scope struct {
	Kind ScopeKind

	// PackID - для ScopePack.
	PackID shared.PackID

	// PackIDs - для ScopePackList.
	PackIDs []shared.PackID

	// Team и Window - для ScopeTeam. Нулевое окно означает "за всё время".
	Team   shared.TeamSlug
	Window shared.TimeWindow

	// ContestID - для ScopeContest.
	ContestID shared.ContestID
}

// PackScope создаёт скоуп одного пака.
func PackScope(packID shared.PackID) Scope {
	return Scope{Kind: ScopePack, PackID: packID}
}

// PackListScope создаёт скоуп списка паков.
func PackListScope(packIDs ...shared.PackID) Scope {
	return Scope{Kind: ScopePackList, PackIDs: packIDs}
}

// TeamScope создаёт скоуп команды с временным окном.
func TeamScope(team shared.TeamSlug, window shared.TimeWindow) Scope {
	return Scope{Kind: ScopeTeam, Team: team, Window: window}
}

// ContestScope создаёт скоуп контеста.
func ContestScope(contestID shared.ContestID) Scope {
	return Scope{Kind: ScopeContest, ContestID: contestID}
}

// Validate проверяет согласованность дескриптора.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopePack:
		if s.PackID.IsEmpty() {
			return shared.ErrInvalidScope
		}
	case ScopePackList:
		if len(s.PackIDs) == 0 {
			return shared.ErrInvalidScope
		}
	case ScopeTeam:
		if strings.TrimSpace(s.Team.String()) == "" {
			return shared.ErrInvalidScope
		}
		if !s.Window.IsValid() {
			return shared.ErrInvalidWindow
		}
	case ScopeContest:
		if s.ContestID.IsEmpty() {
			return shared.ErrInvalidScope
		}
	default:
		return shared.ErrInvalidScope
	}
	return nil
}

// Ref возвращает стабильную строковую ссылку скоупа для логов и событий.
func (s Scope) Ref() string {
	switch s.Kind {
	case ScopePack:
		return fmt.Sprintf("pack:%s", s.PackID)
	case ScopePackList:
		ids := make([]string, len(s.PackIDs))
		for i, id := range s.PackIDs {
			ids[i] = id.String()
		}
		return fmt.Sprintf("packs:%s", strings.Join(ids, ","))
	case ScopeTeam:
		if s.Window.IsZero() {
			return fmt.Sprintf("team:%s", s.Team.Normalize())
		}
		return fmt.Sprintf("team:%s:%d-%d", s.Team.Normalize(), s.Window.From.Unix(), s.Window.To.Unix())
	case ScopeContest:
		return fmt.Sprintf("contest:%s", s.ContestID)
	default:
		return "unknown"
	}
}

// String возвращает Ref для удобства логирования.
func (s Scope) String() string {
	return s.Ref()
}
