// Package achievement содержит доменную модель майлстоун-ачивок PropsHub.
// Ачивка за очки выдаётся один раз за каждый порог в 1000 очков.
// Ключ ачивки - чистая функция порога ("points_3000"), поэтому проверка
// идемпотентна: достаточно заново вывести ключи и сверить с существующими.
package achievement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

const (
	// ThresholdStep - шаг порога в очках.
	ThresholdStep = 1000

	// KeyPrefix - префикс ключа майлстоун-ачивки.
	KeyPrefix = "points_"

	// MilestoneTitle - фиксированный заголовок майлстоун-ачивки.
	MilestoneTitle = "Points Milestone"
)

// Milestone - один непересечённый порог.
type Milestone struct {
	// Threshold - порог в очках (кратен ThresholdStep).
	Threshold int

	// Key - детерминированный ключ ("points_2000").
	Key string
}

// Description возвращает описание ачивки, выводимое из порога.
func (m Milestone) Description() string {
	return fmt.Sprintf("Earned %d total points", m.Threshold)
}

// MilestoneKey выводит ключ ачивки из порога.
func MilestoneKey(threshold int) string {
	return KeyPrefix + strconv.Itoa(threshold)
}

// ParseMilestoneKey разбирает ключ обратно в порог.
func ParseMilestoneKey(key string) (int, error) {
	raw, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, shared.ErrInvalidAchievementKey
	}
	threshold, err := strconv.Atoi(raw)
	if err != nil || threshold <= 0 || threshold%ThresholdStep != 0 {
		return 0, shared.ErrInvalidAchievementKey
	}
	return threshold, nil
}

// MissingThresholds вычисляет непересечённые пороги для текущей суммы очков.
// Чистая функция без I/O: для k = 1..floor(points/1000) порог k*1000
// попадает в результат, если его ключа нет среди existing.
//
// Повторный вызов с existing, дополненным предыдущим результатом, даёт
// пустой список - повторная выдача невозможна по построению.
func MissingThresholds(points int, existing map[string]struct{}) []Milestone {
	if points < ThresholdStep {
		return nil
	}

	maxK := points / ThresholdStep
	missing := make([]Milestone, 0, maxK)

	for k := 1; k <= maxK; k++ {
		threshold := k * ThresholdStep
		key := MilestoneKey(threshold)
		if _, ok := existing[key]; ok {
			continue
		}
		missing = append(missing, Milestone{Threshold: threshold, Key: key})
	}

	return missing
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - персистентная строка выданной ачивки.
// Инвариант хранилища: не более одной строки на пару (профиль, ключ).
type Achievement struct {
	// ID - идентификатор строки (UUID).
	ID string

	// ProfileRef - ссылка на профиль участника.
	ProfileRef shared.ProfileID

	// SubjectKey - мобильный ключ участника (для легаси-записей без профиля).
	SubjectKey shared.SubjectKey

	// Key - ключ ачивки ("points_1000").
	Key string

	// Title - заголовок.
	Title string

	// Description - описание.
	Description string

	// Value - значение порога.
	Value int

	// AwardedAt - момент выдачи.
	AwardedAt time.Time
}

// NewMilestoneAchievement создаёт строку майлстоун-ачивки для участника.
func NewMilestoneAchievement(id string, profileRef shared.ProfileID, subject shared.SubjectKey, m Milestone) Achievement {
	return Achievement{
		ID:          id,
		ProfileRef:  profileRef,
		SubjectKey:  subject,
		Key:         m.Key,
		Title:       MilestoneTitle,
		Description: m.Description(),
		Value:       m.Threshold,
		AwardedAt:   time.Now().UTC(),
	}
}
