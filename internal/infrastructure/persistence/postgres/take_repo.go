// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
)

// batchChunkSize bounds the size of an id-list predicate. Large scopes are
// split into chunks and the results merged and deduplicated afterwards.
const batchChunkSize = 50

// ══════════════════════════════════════════════════════════════════════════════
// TAKE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TakeRepository implements take.Repository for PostgreSQL.
type TakeRepository struct {
	conn *Connection
}

// NewTakeRepository creates a new TakeRepository.
func NewTakeRepository(conn *Connection) *TakeRepository {
	return &TakeRepository{conn: conn}
}

const takeColumns = `id, mobile, profile_id, prop_id, pack_ids, points, result, status, hidden, created_at`

// FindByIDs returns takes by record identifiers.
func (r *TakeRepository) FindByIDs(ctx context.Context, ids []string) ([]take.Take, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM takes WHERE id = ANY($1)`, takeColumns)

	var all []take.Take
	for _, chunk := range chunkStrings(ids, batchChunkSize) {
		takes, err := r.queryTakes(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query takes by ids: %w", err)
		}
		all = append(all, takes...)
	}

	return take.Dedupe(all), nil
}

// FindByProps returns all non-overwritten takes for the given prop identifiers.
func (r *TakeRepository) FindByProps(ctx context.Context, propIDs []shared.PropID) ([]take.Take, error) {
	if len(propIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM takes
		WHERE prop_id = ANY($1) AND status != 'overwritten'
		ORDER BY created_at, id
	`, takeColumns)

	var all []take.Take
	for _, chunk := range chunkPropIDs(propIDs, batchChunkSize) {
		takes, err := r.queryTakes(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query takes by props: %w", err)
		}
		all = append(all, takes...)
	}

	return take.Dedupe(all), nil
}

// FindBySubject returns the full take history of a participant,
// overwritten and hidden records included.
func (r *TakeRepository) FindBySubject(ctx context.Context, subject shared.SubjectKey) ([]take.Take, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM takes
		WHERE mobile = $1
		ORDER BY created_at, id
	`, takeColumns)

	takes, err := r.queryTakes(ctx, query, string(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to query takes by subject: %w", err)
	}
	return takes, nil
}

// FindSubjectsByProps returns the participants whose takes are touched by
// grading the given props, with a direct profile reference when any of
// their records carries one.
func (r *TakeRepository) FindSubjectsByProps(ctx context.Context, propIDs []shared.PropID) (map[shared.SubjectKey]shared.ProfileID, error) {
	if len(propIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT mobile, MAX(profile_id::text)
		FROM takes
		WHERE prop_id = ANY($1)
		GROUP BY mobile
	`

	subjects := make(map[shared.SubjectKey]shared.ProfileID)
	for _, chunk := range chunkPropIDs(propIDs, batchChunkSize) {
		rows, err := r.conn.Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query subjects by props: %w", err)
		}

		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var mobile string
				var profileID *string
				if err := rows.Scan(&mobile, &profileID); err != nil {
					return fmt.Errorf("failed to scan subject row: %w", err)
				}

				key := shared.SubjectKey(mobile)
				if existing, ok := subjects[key]; ok && existing != "" {
					continue
				}
				var ref shared.ProfileID
				if profileID != nil {
					ref = shared.ProfileID(*profileID)
				}
				subjects[key] = ref
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}

	return subjects, nil
}

// PropLifecycles returns the lifecycle of each prop in the set.
// Props missing from storage are omitted from the result.
func (r *TakeRepository) PropLifecycles(ctx context.Context, propIDs []shared.PropID) (map[shared.PropID]take.PropLifecycle, error) {
	if len(propIDs) == 0 {
		return nil, nil
	}

	query := `SELECT prop_id, lifecycle FROM props WHERE prop_id = ANY($1)`

	lifecycles := make(map[shared.PropID]take.PropLifecycle, len(propIDs))
	for _, chunk := range chunkPropIDs(propIDs, batchChunkSize) {
		rows, err := r.conn.Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query prop lifecycles: %w", err)
		}

		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var propID, lifecycle string
				if err := rows.Scan(&propID, &lifecycle); err != nil {
					return fmt.Errorf("failed to scan lifecycle row: %w", err)
				}
				lifecycles[shared.PropID(propID)] = take.PropLifecycle(lifecycle)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}

	return lifecycles, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

// queryTakes runs a take query and normalizes the raw rows.
func (r *TakeRepository) queryTakes(ctx context.Context, query string, args ...interface{}) ([]take.Take, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []take.Record
	for rows.Next() {
		rec, err := scanTakeRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return take.FromRecords(records), nil
}

// scanTakeRecord scans one raw take row. Nullable columns land in the
// Record pointers so the normalizer applies its lenience uniformly.
func scanTakeRecord(rows pgx.Rows) (take.Record, error) {
	var rec take.Record
	var profileID *string
	var points *int
	var hidden *bool

	err := rows.Scan(
		&rec.ID,
		&rec.Mobile,
		&profileID,
		&rec.PropID,
		&rec.PackIDs,
		&points,
		&rec.Result,
		&rec.Status,
		&hidden,
		&rec.CreatedAt,
	)
	if err != nil {
		return take.Record{}, fmt.Errorf("failed to scan take row: %w", err)
	}

	if profileID != nil {
		rec.ProfileID = *profileID
	}
	rec.Points = points
	rec.Hidden = hidden

	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Chunking helpers
// ─────────────────────────────────────────────────────────────────────────────

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func chunkPropIDs(ids []shared.PropID, size int) [][]string {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	return chunkStrings(raw, size)
}
