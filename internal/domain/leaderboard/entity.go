// Package leaderboard содержит доменную модель лидерборда PropsHub.
// Лидерборд собирается из видимых тейков скоупа: сначала агрегация по
// участникам, затем детерминированная сортировка. Для фиксированного
// скоупа и неизменного набора тейков порядок строк воспроизводим байт в байт.
package leaderboard

import (
	"sort"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// Stats - агрегат одного участника по скоупу.
type Stats struct {
	// Takes - количество видимых тейков.
	Takes int

	// Points - сумма очков видимых тейков.
	Points int

	// Счётчики по исходам.
	Won     int
	Lost    int
	Pushed  int
	Pending int
}

// add учитывает один видимый тейк.
func (s *Stats) add(t take.Take) {
	s.Takes++
	s.Points += t.Points.Int()

	switch t.Result {
	case take.ResultWon:
		s.Won++
	case take.ResultLost:
		s.Lost++
	case take.ResultPushed:
		s.Pushed++
	case take.ResultPending:
		s.Pending++
	}
}

// Aggregation - результат агрегации: тоталы по участникам плюс порядок
// первого появления для финального тай-брейка.
type Aggregation struct {
	stats map[shared.SubjectKey]*Stats
	order []shared.SubjectKey
}

// Get возвращает статистику участника.
func (a *Aggregation) Get(subject shared.SubjectKey) (*Stats, bool) {
	s, ok := a.stats[subject]
	return s, ok
}

// Len возвращает количество участников с хотя бы одним видимым тейком.
func (a *Aggregation) Len() int {
	return len(a.order)
}

// Subjects возвращает участников в порядке первого появления.
func (a *Aggregation) Subjects() []shared.SubjectKey {
	return a.order
}

// Aggregate группирует тейки по участникам.
// Порядок применения фильтров важен:
//  1. отбрасываются тейки по archived/draft пропам - даже со статусом latest;
//  2. отбрасываются невидимые записи (overwritten, hidden);
//  3. остаток группируется по SubjectKey.
//
// Участник без видимых тейков в результат не попадает вовсе - нулевых
// строк в лидерборде не бывает. lifecycles может быть nil: тогда фильтр
// жизненного цикла пропускает всё (пропы скоупа уже отфильтрованы выше).
func Aggregate(takes []take.Take, lifecycles map[shared.PropID]take.PropLifecycle) *Aggregation {
	agg := &Aggregation{
		stats: make(map[shared.SubjectKey]*Stats),
	}

	for _, t := range takes {
		if lifecycles != nil {
			if lc, ok := lifecycles[t.PropID]; ok && !lc.Countable() {
				continue
			}
		}
		if !t.IsVisible() {
			continue
		}
		if t.SubjectKey.IsEmpty() {
			continue
		}

		s, ok := agg.stats[t.SubjectKey]
		if !ok {
			s = &Stats{}
			agg.stats[t.SubjectKey] = s
			agg.order = append(agg.order, t.SubjectKey)
		}
		s.add(t)
	}

	return agg
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ROWS
// ══════════════════════════════════════════════════════════════════════════════

// Row - строка готового лидерборда.
type Row struct {
	// Rank - позиция в рейтинге, начиная с 1.
	Rank int `json:"rank"`

	// SubjectKey - мобильный ключ участника.
	SubjectKey shared.SubjectKey `json:"subject_key"`

	// ProfileID - профиль участника, если номер резолвится.
	// nil - валидное состояние, а не ошибка: участник мог не завести профиль.
	ProfileID *shared.ProfileID `json:"profile_id,omitempty"`

	// Handle - отображаемое имя профиля, если он есть.
	Handle string `json:"handle,omitempty"`

	// Takes - количество видимых тейков.
	Takes int `json:"takes"`

	// Points - сумма очков.
	Points int `json:"points"`

	// Счётчики по исходам.
	Won     int `json:"won"`
	Lost    int `json:"lost"`
	Pushed  int `json:"pushed"`
	Pending int `json:"pending"`
}

// Identity - минимальная проекция профиля для декорации строк.
type Identity struct {
	ProfileID shared.ProfileID
	Handle    string
}

// Build строит отсортированный лидерборд из агрегации.
// Порядок: очки по убыванию, затем количество тейков по убыванию, затем
// порядок первого появления во входных данных. Последний тай-брейк делает
// сортировку полностью детерминированной.
//
// identities декорирует строки профилями (nil - без декорации); отсутствие
// профиля у участника оставляет ProfileID пустым и не является ошибкой.
// limit <= 0 означает "без усечения".
func Build(agg *Aggregation, identities map[shared.SubjectKey]Identity, limit int) []Row {
	rows := make([]Row, 0, agg.Len())

	for i, subject := range agg.order {
		s := agg.stats[subject]
		row := Row{
			SubjectKey: subject,
			Takes:      s.Takes,
			Points:     s.Points,
			Won:        s.Won,
			Lost:       s.Lost,
			Pushed:     s.Pushed,
			Pending:    s.Pending,
		}
		if identities != nil {
			if id, ok := identities[subject]; ok && !id.ProfileID.IsEmpty() {
				pid := id.ProfileID
				row.ProfileID = &pid
				row.Handle = id.Handle
			}
		}
		// Порядок появления протаскивается через Rank до финальной нумерации.
		row.Rank = i
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].Takes != rows[j].Takes {
			return rows[i].Takes > rows[j].Takes
		}
		return rows[i].Rank < rows[j].Rank
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	for i := range rows {
		rows[i].Rank = i + 1
	}

	return rows
}

// Top возвращает первую строку лидерборда или nil для пустой агрегации.
func Top(agg *Aggregation, identities map[shared.SubjectKey]Identity) *Row {
	rows := Build(agg, identities, 1)
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}
