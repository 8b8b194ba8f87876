// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WINNER STORE IMPLEMENTATION
// The scope_winners primary key on scope_ref enforces write-once at the
// storage level: the grading command does a check-then-set, but the real
// guarantee is the conflicting insert below.
// ══════════════════════════════════════════════════════════════════════════════

// WinnerStore implements the grading command's winner persistence port.
type WinnerStore struct {
	conn *Connection
}

// NewWinnerStore creates a new WinnerStore.
func NewWinnerStore(conn *Connection) *WinnerStore {
	return &WinnerStore{conn: conn}
}

// WinnerRefSet reports whether the scope already has a winner reference,
// including the empty graded-no-winner reference.
func (s *WinnerStore) WinnerRefSet(ctx context.Context, scopeRef string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scope_winners WHERE scope_ref = $1)`,
		scopeRef,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check winner ref: %w", err)
	}
	return exists, nil
}

// SetWinnerRef writes the scope winner. A nil profileID records the
// graded-no-winner terminal state. Writing to an already graded scope
// returns shared.ErrScopeAlreadyGraded and changes nothing.
func (s *WinnerStore) SetWinnerRef(ctx context.Context, scopeRef string, subject shared.SubjectKey, profileID *shared.ProfileID) error {
	var refArg *string
	if profileID != nil && !profileID.IsEmpty() {
		raw := string(*profileID)
		refArg = &raw
	}

	tag, err := s.conn.Exec(ctx, `
		INSERT INTO scope_winners (scope_ref, winner_subject, winner_profile_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope_ref) DO NOTHING
	`, scopeRef, string(subject), refArg)
	if err != nil {
		return fmt.Errorf("failed to set winner ref: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrScopeAlreadyGraded
	}
	return nil
}

// WinnerRef returns the recorded winner of a graded scope.
// Returns shared.ErrNotFound wrapped for ungraded scopes.
func (s *WinnerStore) WinnerRef(ctx context.Context, scopeRef string) (shared.SubjectKey, *shared.ProfileID, error) {
	var subject string
	var profileID *string
	err := s.conn.QueryRow(ctx,
		`SELECT winner_subject, winner_profile_id FROM scope_winners WHERE scope_ref = $1`,
		scopeRef,
	).Scan(&subject, &profileID)
	if IsNoRows(err) {
		return "", nil, shared.NewDomainError("grading", "WinnerRef", shared.ErrNotFound, "scope not graded")
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to query winner ref: %w", err)
	}

	var ref *shared.ProfileID
	if profileID != nil {
		pid := shared.ProfileID(*profileID)
		ref = &pid
	}
	return shared.SubjectKey(subject), ref, nil
}
