// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propshub/props-scoring-engine/internal/domain/achievement"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// insertChunkSize bounds the size of one achievement insert batch.
const insertChunkSize = 10

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// The unique indexes on (profile_ref, achievement_key) and
// (subject_key, achievement_key) are the at-most-once guarantee for awards.
// Inserts go through ON CONFLICT DO NOTHING, so losing a race against a
// concurrent award pass is a silent no-op and the returned keys reflect
// the rows this call actually created.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// ExistingKeys returns the set of achievement keys already awarded to the
// participant. Rows are matched by profile reference when one exists,
// falling back to the subject key for legacy rows.
func (r *AchievementRepository) ExistingKeys(ctx context.Context, profileRef shared.ProfileID, subject shared.SubjectKey) (map[string]struct{}, error) {
	query := `
		SELECT achievement_key FROM achievements
		WHERE (profile_ref IS NOT NULL AND profile_ref = $1)
		   OR (subject_key != '' AND subject_key = $2)
	`

	var refArg *string
	if !profileRef.IsEmpty() {
		raw := string(profileRef)
		refArg = &raw
	}

	rows, err := r.conn.Query(ctx, query, refArg, string(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing achievement keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan achievement key: %w", err)
		}
		keys[key] = struct{}{}
	}

	return keys, rows.Err()
}

// InsertBatch inserts achievement rows in chunks and returns the keys of
// rows actually created. An empty input is a no-op.
func (r *AchievementRepository) InsertBatch(ctx context.Context, achievements []achievement.Achievement) ([]string, error) {
	if len(achievements) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO achievements (id, profile_ref, subject_key, achievement_key, title, description, value, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`

	var created []string
	for start := 0; start < len(achievements); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(achievements) {
			end = len(achievements)
		}
		chunk := achievements[start:end]

		batch := &pgx.Batch{}
		for _, a := range chunk {
			var refArg *string
			if !a.ProfileRef.IsEmpty() {
				raw := string(a.ProfileRef)
				refArg = &raw
			}
			batch.Queue(query,
				a.ID,
				refArg,
				string(a.SubjectKey),
				a.Key,
				a.Title,
				a.Description,
				a.Value,
				a.AwardedAt,
			)
		}

		results := r.conn.Pool().SendBatch(ctx, batch)
		err := func() error {
			defer results.Close()
			for _, a := range chunk {
				tag, err := results.Exec()
				if err != nil {
					return fmt.Errorf("failed to insert achievement %s: %w", a.Key, err)
				}
				// RowsAffected 0 means a conflict: someone else won the race.
				if tag.RowsAffected() > 0 {
					created = append(created, a.Key)
				}
			}
			return nil
		}()
		if err != nil {
			return created, err
		}
	}

	return created, nil
}
