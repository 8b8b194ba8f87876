// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE RESOLVER IMPLEMENTATION
// Resolves a scope descriptor into the canonical take set. Team scopes have
// two query strategies behind the single entry point:
//
//	view strategy — the denormalized take_team_results view, preferred;
//	join strategy — a manual takes/props_teams/props join, used when the
//	view does not exist in the target environment.
//
// The fallback is keyed off SQLSTATE 42P01 and remembered for the lifetime
// of the resolver, so only the first team query per process pays the probe.
// Callers never see the missing-view error.
// ══════════════════════════════════════════════════════════════════════════════

// ScopeResolver implements leaderboard.ScopeResolver for PostgreSQL.
type ScopeResolver struct {
	conn  *Connection
	takes *TakeRepository

	// contestEnabled gates contest scope expansion.
	contestEnabled bool

	// viewUnavailable flips to 1 after the first 42P01 from the view.
	viewUnavailable atomic.Bool
}

// ScopeResolverOption customizes a ScopeResolver.
type ScopeResolverOption func(*ScopeResolver)

// WithTeamView toggles the denormalized team view strategy. Disabling it
// routes every team scope through the manual join.
func WithTeamView(enabled bool) ScopeResolverOption {
	return func(r *ScopeResolver) {
		if !enabled {
			r.viewUnavailable.Store(true)
		}
	}
}

// WithContestScopes toggles contest scope expansion. When disabled a contest
// scope resolves to an empty take set, the same shape an unknown contest
// reference produces.
func WithContestScopes(enabled bool) ScopeResolverOption {
	return func(r *ScopeResolver) {
		r.contestEnabled = enabled
	}
}

// NewScopeResolver creates a new ScopeResolver.
func NewScopeResolver(conn *Connection, opts ...ScopeResolverOption) *ScopeResolver {
	r := &ScopeResolver{
		conn:           conn,
		takes:          NewTakeRepository(conn),
		contestEnabled: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the canonical take set of the scope.
// An unresolvable reference yields an empty resolution, not an error.
func (r *ScopeResolver) Resolve(ctx context.Context, scope leaderboard.Scope) (leaderboard.Resolution, error) {
	if err := scope.Validate(); err != nil {
		return leaderboard.Resolution{}, err
	}

	switch scope.Kind {
	case leaderboard.ScopePack:
		return r.resolvePacks(ctx, []shared.PackID{scope.PackID}, "")
	case leaderboard.ScopePackList:
		return r.resolvePacks(ctx, scope.PackIDs, "")
	case leaderboard.ScopeTeam:
		return r.resolveTeam(ctx, scope)
	case leaderboard.ScopeContest:
		return r.resolveContest(ctx, scope)
	default:
		return leaderboard.Resolution{}, shared.ErrInvalidScope
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pack and pack-list scopes
// ─────────────────────────────────────────────────────────────────────────────

// resolvePacks collects takes counting toward any of the given packs.
// The pack list is chunked so a contest-sized list never builds an
// unbounded predicate; chunk overlap is cleaned up by deduplication.
func (r *ScopeResolver) resolvePacks(ctx context.Context, packIDs []shared.PackID, title string) (leaderboard.Resolution, error) {
	if len(packIDs) == 0 {
		return leaderboard.Resolution{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM takes
		WHERE pack_ids && $1 AND status != 'overwritten'
		ORDER BY created_at, id
	`, takeColumns)

	var all []take.Take
	for _, chunk := range chunkPackIDs(packIDs, batchChunkSize) {
		takes, err := r.takes.queryTakes(ctx, query, chunk)
		if err != nil {
			return leaderboard.Resolution{}, fmt.Errorf("failed to query takes by packs: %w", err)
		}
		all = append(all, takes...)
	}
	all = take.Dedupe(all)

	lifecycles, err := r.lifecyclesFor(ctx, all)
	if err != nil {
		return leaderboard.Resolution{}, err
	}

	if title == "" && len(packIDs) == 1 {
		title, err = r.packTitle(ctx, packIDs[0])
		if err != nil {
			return leaderboard.Resolution{}, err
		}
	}

	return leaderboard.Resolution{Takes: all, Lifecycles: lifecycles, Title: title}, nil
}

// packTitle returns the display title of a pack, empty when unknown.
func (r *ScopeResolver) packTitle(ctx context.Context, packID shared.PackID) (string, error) {
	var title string
	err := r.conn.QueryRow(ctx, `SELECT title FROM packs WHERE pack_id = $1`, string(packID)).Scan(&title)
	if IsNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query pack title: %w", err)
	}
	return title, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Team scope
// ─────────────────────────────────────────────────────────────────────────────

// resolveTeam collects takes on props tagged with the team inside the window.
func (r *ScopeResolver) resolveTeam(ctx context.Context, scope leaderboard.Scope) (leaderboard.Resolution, error) {
	title, err := r.teamTitle(ctx, scope.Team)
	if err != nil {
		return leaderboard.Resolution{}, err
	}

	if !r.viewUnavailable.Load() {
		resolution, err := r.resolveTeamViaView(ctx, scope)
		if err == nil {
			resolution.Title = title
			return resolution, nil
		}
		if !IsUndefinedTable(err) {
			return leaderboard.Resolution{}, err
		}
		// The view is absent in this environment; remember and fall back.
		r.viewUnavailable.Store(true)
	}

	resolution, err := r.resolveTeamViaJoin(ctx, scope)
	if err != nil {
		return leaderboard.Resolution{}, err
	}
	resolution.Title = title
	return resolution, nil
}

// resolveTeamViaView reads the denormalized view. Lifecycles ride along in
// the view rows, so no second query is needed.
func (r *ScopeResolver) resolveTeamViaView(ctx context.Context, scope leaderboard.Scope) (leaderboard.Resolution, error) {
	query := `
		SELECT id, mobile, profile_id, prop_id, pack_ids, points, result, status, hidden, created_at, lifecycle
		FROM take_team_results
		WHERE team_slug = $1 AND status != 'overwritten'
	`
	args := []interface{}{scope.Team.Normalize().String()}
	if !scope.Window.IsZero() {
		query += ` AND created_at >= $2 AND created_at < $3`
		args = append(args, scope.Window.From, scope.Window.To)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return leaderboard.Resolution{}, err
	}
	defer rows.Close()

	var records []take.Record
	lifecycles := make(map[shared.PropID]take.PropLifecycle)
	for rows.Next() {
		var rec take.Record
		var profileID *string
		var points *int
		var hidden *bool
		var lifecycle string

		err := rows.Scan(
			&rec.ID, &rec.Mobile, &profileID, &rec.PropID, &rec.PackIDs,
			&points, &rec.Result, &rec.Status, &hidden, &rec.CreatedAt, &lifecycle,
		)
		if err != nil {
			return leaderboard.Resolution{}, fmt.Errorf("failed to scan view row: %w", err)
		}

		if profileID != nil {
			rec.ProfileID = *profileID
		}
		rec.Points = points
		rec.Hidden = hidden
		records = append(records, rec)
		lifecycles[shared.PropID(rec.PropID)] = take.PropLifecycle(lifecycle)
	}
	if err := rows.Err(); err != nil {
		return leaderboard.Resolution{}, err
	}

	return leaderboard.Resolution{
		Takes:      take.Dedupe(take.FromRecords(records)),
		Lifecycles: lifecycles,
	}, nil
}

// resolveTeamViaJoin is the manual-join equivalent of the view, byte-for-byte
// the same result set.
func (r *ScopeResolver) resolveTeamViaJoin(ctx context.Context, scope leaderboard.Scope) (leaderboard.Resolution, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM takes t
		JOIN props_teams pt ON pt.prop_id = t.prop_id
		WHERE pt.team_slug = $1 AND t.status != 'overwritten'
	`, qualifiedTakeColumns)
	args := []interface{}{scope.Team.Normalize().String()}
	if !scope.Window.IsZero() {
		query += ` AND t.created_at >= $2 AND t.created_at < $3`
		args = append(args, scope.Window.From, scope.Window.To)
	}
	query += ` ORDER BY t.created_at, t.id`

	takes, err := r.takes.queryTakes(ctx, query, args...)
	if err != nil {
		return leaderboard.Resolution{}, fmt.Errorf("failed to query takes by team: %w", err)
	}
	takes = take.Dedupe(takes)

	lifecycles, err := r.lifecyclesFor(ctx, takes)
	if err != nil {
		return leaderboard.Resolution{}, err
	}

	return leaderboard.Resolution{Takes: takes, Lifecycles: lifecycles}, nil
}

// teamTitle returns the display name of a team, empty when unknown.
func (r *ScopeResolver) teamTitle(ctx context.Context, slug shared.TeamSlug) (string, error) {
	var name string
	err := r.conn.QueryRow(ctx, `SELECT name FROM teams WHERE slug = $1`, slug.Normalize().String()).Scan(&name)
	if IsNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query team name: %w", err)
	}
	return name, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Contest scope
// ─────────────────────────────────────────────────────────────────────────────

// resolveContest expands the contest into its pack list, the packs into the
// props played in them, and resolves the takes on those props. Routing
// through the props keeps the contest take set aligned with per-prop
// grading: a take on a contest prop counts even when its own pack
// references point elsewhere.
func (r *ScopeResolver) resolveContest(ctx context.Context, scope leaderboard.Scope) (leaderboard.Resolution, error) {
	if !r.contestEnabled {
		return leaderboard.Resolution{}, nil
	}

	rows, err := r.conn.Query(ctx, `SELECT pack_id FROM packs WHERE contest_id = $1`, string(scope.ContestID))
	if err != nil {
		return leaderboard.Resolution{}, fmt.Errorf("failed to query contest packs: %w", err)
	}
	defer rows.Close()

	var packIDs []shared.PackID
	for rows.Next() {
		var packID string
		if err := rows.Scan(&packID); err != nil {
			return leaderboard.Resolution{}, fmt.Errorf("failed to scan contest pack row: %w", err)
		}
		packIDs = append(packIDs, shared.PackID(packID))
	}
	if err := rows.Err(); err != nil {
		return leaderboard.Resolution{}, err
	}

	if len(packIDs) == 0 {
		// Unknown contest reference: empty leaderboard, not an error.
		return leaderboard.Resolution{}, nil
	}

	propIDs, err := r.contestPropIDs(ctx, packIDs)
	if err != nil {
		return leaderboard.Resolution{}, err
	}
	if len(propIDs) == 0 {
		return leaderboard.Resolution{Title: string(scope.ContestID)}, nil
	}

	takes, err := r.takes.FindByProps(ctx, propIDs)
	if err != nil {
		return leaderboard.Resolution{}, err
	}

	lifecycles, err := r.lifecyclesFor(ctx, takes)
	if err != nil {
		return leaderboard.Resolution{}, err
	}

	return leaderboard.Resolution{
		Takes:      takes,
		Lifecycles: lifecycles,
		Title:      string(scope.ContestID),
	}, nil
}

// contestPropIDs lists the distinct props with takes in any of the packs.
func (r *ScopeResolver) contestPropIDs(ctx context.Context, packIDs []shared.PackID) ([]shared.PropID, error) {
	query := `SELECT DISTINCT prop_id FROM takes WHERE pack_ids && $1`

	seen := make(map[shared.PropID]struct{})
	var propIDs []shared.PropID
	for _, chunk := range chunkPackIDs(packIDs, batchChunkSize) {
		rows, err := r.conn.Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query contest props: %w", err)
		}

		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var propID string
				if err := rows.Scan(&propID); err != nil {
					return fmt.Errorf("failed to scan contest prop row: %w", err)
				}
				id := shared.PropID(propID)
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				propIDs = append(propIDs, id)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}

	return propIDs, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared helpers
// ─────────────────────────────────────────────────────────────────────────────

// qualifiedTakeColumns is takeColumns with the takes alias, for joins.
const qualifiedTakeColumns = `t.id, t.mobile, t.profile_id, t.prop_id, t.pack_ids, t.points, t.result, t.status, t.hidden, t.created_at`

// lifecyclesFor loads the lifecycle of every prop present in the take set.
func (r *ScopeResolver) lifecyclesFor(ctx context.Context, takes []take.Take) (map[shared.PropID]take.PropLifecycle, error) {
	if len(takes) == 0 {
		return nil, nil
	}

	seen := make(map[shared.PropID]struct{}, len(takes))
	propIDs := make([]shared.PropID, 0, len(takes))
	for _, t := range takes {
		if _, ok := seen[t.PropID]; ok {
			continue
		}
		seen[t.PropID] = struct{}{}
		propIDs = append(propIDs, t.PropID)
	}

	return r.takes.PropLifecycles(ctx, propIDs)
}

func chunkPackIDs(ids []shared.PackID, size int) [][]string {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	return chunkStrings(raw, size)
}
