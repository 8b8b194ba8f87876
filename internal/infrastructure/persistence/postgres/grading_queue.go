// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADING QUEUE
// Feeds the periodic jobs: pack scopes whose props have all settled and
// that have no winner reference yet, and props graded since a watermark.
// ══════════════════════════════════════════════════════════════════════════════

// GradingQueue finds work for the grading and award jobs.
type GradingQueue struct {
	conn *Connection
}

// NewGradingQueue creates a new GradingQueue.
func NewGradingQueue(conn *Connection) *GradingQueue {
	return &GradingQueue{conn: conn}
}

// PendingPackScopes returns pack scopes that are ready to grade: the pack has
// at least one take, every prop with takes in the pack has settled, and no
// winner reference exists yet. Archived and draft props do not block grading
// because aggregation drops their takes anyway.
func (q *GradingQueue) PendingPackScopes(ctx context.Context, limit int) ([]leaderboard.Scope, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT p.pack_id
		FROM packs p
		WHERE NOT EXISTS (
			SELECT 1 FROM scope_winners w
			WHERE w.scope_ref = 'pack:' || p.pack_id
		)
		AND EXISTS (
			SELECT 1 FROM takes t
			WHERE t.pack_ids @> ARRAY[p.pack_id]
		)
		AND NOT EXISTS (
			SELECT 1 FROM takes t
			JOIN props pr ON pr.prop_id = t.prop_id
			WHERE t.pack_ids @> ARRAY[p.pack_id]
			  AND pr.lifecycle NOT IN ('graded', 'archived', 'draft')
		)
		ORDER BY p.created_at
		LIMIT $1
	`

	rows, err := q.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending pack scopes: %w", err)
	}
	defer rows.Close()

	var scopes []leaderboard.Scope
	for rows.Next() {
		var packID string
		if err := rows.Scan(&packID); err != nil {
			return nil, fmt.Errorf("failed to scan pending pack: %w", err)
		}
		scopes = append(scopes, leaderboard.PackScope(shared.PackID(packID)))
	}

	return scopes, rows.Err()
}

// AllTeams returns the slugs of every known team.
func (q *GradingQueue) AllTeams(ctx context.Context) ([]shared.TeamSlug, error) {
	rows, err := q.conn.Query(ctx, `SELECT slug FROM teams ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []shared.TeamSlug
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan team slug: %w", err)
		}
		teams = append(teams, shared.TeamSlug(slug))
	}

	return teams, rows.Err()
}

// RecentlyGradedProps returns props whose lifecycle moved to graded at or
// after the given watermark.
func (q *GradingQueue) RecentlyGradedProps(ctx context.Context, since time.Time) ([]shared.PropID, error) {
	query := `
		SELECT prop_id FROM props
		WHERE lifecycle = 'graded'
		  AND graded_at IS NOT NULL
		  AND graded_at >= $1
		ORDER BY graded_at
	`

	rows, err := q.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recently graded props: %w", err)
	}
	defer rows.Close()

	var props []shared.PropID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan prop id: %w", err)
		}
		props = append(props, shared.PropID(id))
	}

	return props, rows.Err()
}
