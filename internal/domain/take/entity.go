// Package take содержит доменную модель тейка - позиции пользователя по пропу.
// Тейк - это единица учёта очков: один пользователь, один проп, один выбор.
// История тейков не удаляется: при смене выбора старая запись помечается
// overwritten и остаётся для аудита, но никогда не участвует в подсчёте.
package take

import (
	"strings"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Result представляет исход тейка после грейдинга пропа.
type Result string

const (
	// ResultWon - тейк сыграл.
	ResultWon Result = "won"
	// ResultLost - тейк не сыграл.
	ResultLost Result = "lost"
	// ResultPushed - пуш: событие завершилось вничью по линии.
	ResultPushed Result = "pushed"
	// ResultPending - проп ещё не отгрейжен.
	ResultPending Result = "pending"
	// ResultUnknown - бэкенд вернул нераспознанное значение.
	ResultUnknown Result = "unknown"
)

// ParseResult разбирает сырое значение результата без учёта регистра.
// Легаси-бэкенд пишет "push" вместо "pushed" - оба значения эквивалентны.
// Нераспознанные значения схлопываются в ResultUnknown, а не в ошибку:
// один кривой рекорд не должен ронять агрегацию целого скоупа.
func ParseResult(raw string) Result {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "won", "win":
		return ResultWon
	case "lost", "loss":
		return ResultLost
	case "pushed", "push":
		return ResultPushed
	case "pending", "":
		return ResultPending
	default:
		return ResultUnknown
	}
}

// IsGraded возвращает true, если результат финальный.
func (r Result) IsGraded() bool {
	return r == ResultWon || r == ResultLost || r == ResultPushed
}

// String возвращает строковое представление.
func (r Result) String() string {
	return string(r)
}

// Status представляет статус записи тейка.
type Status string

const (
	// StatusLatest - актуальная запись, единственная учитываемая.
	StatusLatest Status = "latest"
	// StatusOverwritten - запись вытеснена более поздним выбором, хранится для аудита.
	StatusOverwritten Status = "overwritten"
)

// ParseStatus разбирает сырой статус записи без учёта регистра.
// Всё, что не overwritten, считается latest: легаси-бэкенд у части
// старых записей статус не проставлял вовсе.
func ParseStatus(raw string) Status {
	if strings.EqualFold(strings.TrimSpace(raw), string(StatusOverwritten)) {
		return StatusOverwritten
	}
	return StatusLatest
}

// PropLifecycle представляет жизненный цикл пропа/пака.
type PropLifecycle string

const (
	// LifecycleOpen - проп открыт для тейков.
	LifecycleOpen PropLifecycle = "open"
	// LifecycleClosed - тейки зафиксированы, событие идёт.
	LifecycleClosed PropLifecycle = "closed"
	// LifecycleGraded - результаты проставлены.
	LifecycleGraded PropLifecycle = "graded"
	// LifecycleArchived - проп снят после размещения тейков; в рейтингах не участвует.
	LifecycleArchived PropLifecycle = "archived"
	// LifecycleDraft - проп не был опубликован; в рейтингах не участвует.
	LifecycleDraft PropLifecycle = "draft"
)

// Countable возвращает true, если тейки по пропу в таком состоянии учитываются.
// Archived и draft исключаются даже для записей со статусом latest: снятый
// после размещения тейков проп не должен загрязнять рейтинг.
func (l PropLifecycle) Countable() bool {
	return l != LifecycleArchived && l != LifecycleDraft
}

// ══════════════════════════════════════════════════════════════════════════════
// TAKE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Take представляет каноническую форму тейка, общую для обоих бэкендов.
type Take struct {
	// ID - идентификатор записи (для дедупликации после чанкованных выборок).
	ID string

	// SubjectKey - мобильный номер участника, сквозной ключ между бэкендами.
	SubjectKey shared.SubjectKey

	// ProfileID - прямая ссылка на профиль, если она есть у записи.
	// У легаси-записей отсутствует - тогда профиль ищется по номеру.
	ProfileID shared.ProfileID

	// PropID - текстовый идентификатор пропа.
	PropID shared.PropID

	// PackIDs - паки, в зачёт которых идёт тейк (может быть несколько или ни одного).
	PackIDs []shared.PackID

	// Points - очки тейка. Могут быть отрицательными после админского оверрайда.
	Points shared.Points

	// Result - исход тейка.
	Result Result

	// Status - актуальность записи.
	Status Status

	// Hidden - тейк скрыт модерацией и не учитывается.
	Hidden bool

	// CreatedAt - момент размещения тейка.
	CreatedAt time.Time
}

// IsVisible возвращает true, если тейк учитывается в суммах и рейтингах.
// Невидимы записи со статусом overwritten и скрытые модерацией.
// Чистая функция: повторный вызов всегда даёт тот же результат.
func (t Take) IsVisible() bool {
	return t.Status != StatusOverwritten && !t.Hidden
}

// CountsToward возвращает true, если тейк идёт в зачёт указанного пака.
func (t Take) CountsToward(packID shared.PackID) bool {
	for _, id := range t.PackIDs {
		if id == packID {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD NORMALIZER
// ══════════════════════════════════════════════════════════════════════════════

// Record - сырая запись тейка из любого бэкенда до нормализации.
// Поля-указатели отражают реальность легаси-хранилища: очки и флаги
// у старых записей могут отсутствовать.
type Record struct {
	ID        string
	Mobile    string
	ProfileID string
	PropID    string
	PackIDs   []string
	Points    *int
	Result    string
	Status    string
	Hidden    *bool
	CreatedAt time.Time
}

// FromRecord нормализует сырую запись в каноничный Take.
// Отсутствующие очки трактуются как 0 - это осознанная мягкость, а не
// проглоченная ошибка: кривой рекорд стоит 0 очков, строгая валидация
// остаётся на совести записывающей стороны.
func FromRecord(rec Record) Take {
	t := Take{
		ID:        rec.ID,
		SubjectKey: shared.SubjectKey(strings.TrimSpace(rec.Mobile)),
		ProfileID: shared.ProfileID(rec.ProfileID),
		PropID:    shared.PropID(strings.ToLower(strings.TrimSpace(rec.PropID))),
		Result:    ParseResult(rec.Result),
		Status:    ParseStatus(rec.Status),
		CreatedAt: rec.CreatedAt,
	}

	if rec.Points != nil {
		t.Points = shared.Points(*rec.Points)
	}
	if rec.Hidden != nil {
		t.Hidden = *rec.Hidden
	}

	if len(rec.PackIDs) > 0 {
		t.PackIDs = make([]shared.PackID, 0, len(rec.PackIDs))
		for _, id := range rec.PackIDs {
			if id == "" {
				continue
			}
			t.PackIDs = append(t.PackIDs, shared.PackID(id))
		}
	}

	return t
}

// FromRecords нормализует пачку сырых записей.
func FromRecords(recs []Record) []Take {
	takes := make([]Take, 0, len(recs))
	for _, rec := range recs {
		takes = append(takes, FromRecord(rec))
	}
	return takes
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS SUMMATION
// ══════════════════════════════════════════════════════════════════════════════

// SumPoints суммирует очки видимых тейков.
// Overwritten и hidden записи дают ровно 0 независимо от своих очков,
// включая отрицательные. Пустой вход даёт 0.
func SumPoints(takes []Take) int {
	total := 0
	for _, t := range takes {
		if !t.IsVisible() {
			continue
		}
		total += t.Points.Int()
	}
	return total
}

// Dedupe убирает дубликаты записей по ID, сохраняя порядок первого вхождения.
// Обязательный шаг после объединения чанкованных подзапросов: один тейк
// может попасть в несколько чанков через разные идентификаторы.
func Dedupe(takes []Take) []Take {
	if len(takes) <= 1 {
		return takes
	}

	seen := make(map[string]struct{}, len(takes))
	out := takes[:0:0]
	for _, t := range takes {
		if t.ID != "" {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}
