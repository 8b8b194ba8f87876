package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConnection opens a connection to the database named by
// TEST_DATABASE_URL and runs the migrations. Tests that need a live
// database skip when the variable is unset.
func testConnection(t *testing.T) *Connection {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnectionFromURL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

// The strategy toggles are testable without a database: a disabled contest
// expansion returns before the first query, and a disabled team view is the
// same state the 42P01 probe leaves behind.

func TestScopeResolver_ContestScopesDisabled(t *testing.T) {
	resolver := NewScopeResolver(nil, WithContestScopes(false))

	resolution, err := resolver.Resolve(context.Background(), leaderboard.ContestScope("spring-cup"))

	require.NoError(t, err)
	assert.Empty(t, resolution.Takes)
	assert.Empty(t, resolution.Title)
}

func TestScopeResolver_ContestScopesEnabledByDefault(t *testing.T) {
	resolver := NewScopeResolver(nil)

	assert.True(t, resolver.contestEnabled)
}

func TestScopeResolver_TeamViewDisabledRoutesToJoin(t *testing.T) {
	resolver := NewScopeResolver(nil, WithTeamView(false))

	assert.True(t, resolver.viewUnavailable.Load())
}

func TestScopeResolver_TeamViewEnabledKeepsViewStrategy(t *testing.T) {
	resolver := NewScopeResolver(nil, WithTeamView(true))

	assert.False(t, resolver.viewUnavailable.Load())
}

// A contest resolves through its props: every take on a prop played in a
// contest pack counts, including takes whose own pack references point at
// packs outside the contest.
func TestScopeResolver_ContestResolvesThroughProps(t *testing.T) {
	conn := testConnection(t)
	ctx := context.Background()

	cleanup := func() {
		_, _ = conn.Exec(ctx, `DELETE FROM takes WHERE id LIKE 'ct-%'`)
		_, _ = conn.Exec(ctx, `DELETE FROM props WHERE prop_id LIKE 'ct-%'`)
		_, _ = conn.Exec(ctx, `DELETE FROM packs WHERE pack_id LIKE 'ct-%'`)
	}
	cleanup()
	t.Cleanup(cleanup)

	_, err := conn.Exec(ctx,
		`INSERT INTO packs (pack_id, title, contest_id) VALUES
			('ct-pack-1', 'Contest Pack', 'ct-cup'),
			('ct-pack-other', 'Other Pack', NULL)`)
	require.NoError(t, err)

	_, err = conn.Exec(ctx,
		`INSERT INTO props (prop_id, lifecycle) VALUES ('ct-prop-1', 'graded')`)
	require.NoError(t, err)

	_, err = conn.Exec(ctx,
		`INSERT INTO takes (id, mobile, prop_id, pack_ids, points, result) VALUES
			('ct-take-1', '+77001', 'ct-prop-1', ARRAY['ct-pack-1'], 500, 'won'),
			('ct-take-2', '+77002', 'ct-prop-1', ARRAY['ct-pack-other'], 300, 'won')`)
	require.NoError(t, err)

	resolver := NewScopeResolver(conn)
	resolution, err := resolver.Resolve(ctx, leaderboard.ContestScope("ct-cup"))

	require.NoError(t, err)
	assert.Equal(t, "ct-cup", resolution.Title)

	subjects := make(map[string]bool)
	for _, tk := range resolution.Takes {
		subjects[string(tk.SubjectKey)] = true
	}
	assert.True(t, subjects["+77001"])
	assert.True(t, subjects["+77002"], "takes on contest props count regardless of their own pack refs")
}

func TestScopeResolver_UnknownContestResolvesEmpty(t *testing.T) {
	conn := testConnection(t)

	resolver := NewScopeResolver(conn)
	resolution, err := resolver.Resolve(context.Background(), leaderboard.ContestScope("ct-nope"))

	require.NoError(t, err)
	assert.Empty(t, resolution.Takes)
}
