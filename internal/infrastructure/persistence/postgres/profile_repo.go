// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `id, handle, phone, created_at`

// FindByPhone returns a profile by mobile number.
func (r *ProfileRepository) FindByPhone(ctx context.Context, phone shared.SubjectKey) (*profile.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE phone = $1`, profileColumns)

	row := r.conn.QueryRow(ctx, query, string(phone))
	return scanProfile(row)
}

// FindByID returns a profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)

	row := r.conn.QueryRow(ctx, query, string(id))
	return scanProfile(row)
}

// FindByPhones returns the profiles found for a set of numbers.
// Numbers without a profile are simply absent from the result.
func (r *ProfileRepository) FindByPhones(ctx context.Context, phones []shared.SubjectKey) (map[shared.SubjectKey]*profile.Profile, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE phone = ANY($1)`, profileColumns)

	profiles := make(map[shared.SubjectKey]*profile.Profile, len(phones))
	for _, chunk := range chunkSubjectKeys(phones, batchChunkSize) {
		rows, err := r.conn.Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query profiles by phones: %w", err)
		}

		err = func() error {
			defer rows.Close()
			for rows.Next() {
				p, err := scanProfileRow(rows)
				if err != nil {
					return err
				}
				profiles[p.Phone] = p
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}

	return profiles, nil
}

// scanProfile scans a single profile row.
func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	var id, handle, phone string

	err := row.Scan(&id, &handle, &phone, &p.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.ID = shared.ProfileID(id)
	p.Handle = handle
	p.Phone = shared.SubjectKey(phone)
	return &p, nil
}

func scanProfileRow(rows pgx.Rows) (*profile.Profile, error) {
	var p profile.Profile
	var id, handle, phone string

	if err := rows.Scan(&id, &handle, &phone, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan profile row: %w", err)
	}

	p.ID = shared.ProfileID(id)
	p.Handle = handle
	p.Phone = shared.SubjectKey(phone)
	return &p, nil
}

func chunkSubjectKeys(keys []shared.SubjectKey, size int) [][]string {
	raw := make([]string, len(keys))
	for i, key := range keys {
		raw[i] = string(key)
	}
	return chunkStrings(raw, size)
}
