package query

import (
	"context"
	"testing"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	resolution leaderboard.Resolution
	err        error
	calls      int
}

func (f *fakeResolver) Resolve(_ context.Context, _ leaderboard.Scope) (leaderboard.Resolution, error) {
	f.calls++
	return f.resolution, f.err
}

type fakeProfileRepo struct {
	byPhone map[shared.SubjectKey]*profile.Profile
	err     error
}

func (f *fakeProfileRepo) FindByPhone(_ context.Context, phone shared.SubjectKey) (*profile.Profile, error) {
	if p, ok := f.byPhone[phone]; ok {
		return p, nil
	}
	return nil, shared.ErrProfileNotFound
}

func (f *fakeProfileRepo) FindByID(_ context.Context, _ shared.ProfileID) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (f *fakeProfileRepo) FindByPhones(_ context.Context, phones []shared.SubjectKey) (map[shared.SubjectKey]*profile.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[shared.SubjectKey]*profile.Profile)
	for _, phone := range phones {
		if p, ok := f.byPhone[phone]; ok {
			out[phone] = p
		}
	}
	return out, nil
}

type fakeRowCache struct {
	snapshots map[string]leaderboard.Snapshot
	getErr    error
	sets      int
}

func newFakeRowCache() *fakeRowCache {
	return &fakeRowCache{snapshots: make(map[string]leaderboard.Snapshot)}
}

func (f *fakeRowCache) Get(_ context.Context, scopeRef string) (leaderboard.Snapshot, bool, error) {
	if f.getErr != nil {
		return leaderboard.Snapshot{}, false, f.getErr
	}
	snapshot, ok := f.snapshots[scopeRef]
	return snapshot, ok, nil
}

func (f *fakeRowCache) Set(_ context.Context, scopeRef string, snapshot leaderboard.Snapshot, _ time.Duration) error {
	f.sets++
	f.snapshots[scopeRef] = snapshot
	return nil
}

func (f *fakeRowCache) Invalidate(_ context.Context, scopeRef string) error {
	delete(f.snapshots, scopeRef)
	return nil
}

func visibleTake(subject, prop string, points int) take.Take {
	return take.Take{
		ID:         subject + "-" + prop,
		SubjectKey: shared.SubjectKey(subject),
		PropID:     shared.PropID(prop),
		Points:     shared.Points(points),
		Result:     take.ResultWon,
		Status:     take.StatusLatest,
	}
}

func TestGetLeaderboard_BuildsRankedRows(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{
			visibleTake("+77001", "p1", 40),
			visibleTake("+77002", "p2", 90),
		},
		Title: "Week 7 Pack",
	}}
	profiles := &fakeProfileRepo{byPhone: map[shared.SubjectKey]*profile.Profile{
		"+77002": {ID: "a1b2c3d4-0000-0000-0000-000000000002", Handle: "closer"},
	}}
	handler := NewGetLeaderboardHandler(resolver, profiles, nil, 0)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")})

	require.NoError(t, err)
	assert.Equal(t, "Week 7 Pack", result.Title)
	assert.Equal(t, "pack:pack-1", result.ScopeRef)
	assert.Equal(t, 2, result.TotalSubjects)
	assert.False(t, result.CacheHit)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Rows[0].Rank)
	assert.Equal(t, shared.SubjectKey("+77002"), result.Rows[0].SubjectKey)
	assert.Equal(t, "closer", result.Rows[0].Handle)
	assert.Nil(t, result.Rows[1].ProfileID)
}

func TestGetLeaderboard_EmptyScopeIsNotError(t *testing.T) {
	handler := NewGetLeaderboardHandler(&fakeResolver{}, nil, nil, 0)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("ghost")})

	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Zero(t, result.TotalSubjects)
}

func TestGetLeaderboard_CacheHitSkipsResolver(t *testing.T) {
	resolver := &fakeResolver{}
	cache := newFakeRowCache()
	cache.snapshots["pack:pack-1"] = leaderboard.Snapshot{
		Title: "Week 7 Pack",
		Rows:  []leaderboard.Row{{Rank: 1, SubjectKey: "+77001", Points: 10, Takes: 1}},
	}
	handler := NewGetLeaderboardHandler(resolver, nil, cache, time.Minute)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")})

	require.NoError(t, err)
	assert.True(t, result.CacheHit)
	assert.Equal(t, "Week 7 Pack", result.Title)
	assert.Zero(t, resolver.calls)
	require.Len(t, result.Rows, 1)
}

func TestGetLeaderboard_BypassCache(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 10)},
	}}
	cache := newFakeRowCache()
	cache.snapshots["pack:pack-1"] = leaderboard.Snapshot{
		Rows: []leaderboard.Row{{Rank: 1, SubjectKey: "+77999"}},
	}
	handler := NewGetLeaderboardHandler(resolver, nil, cache, time.Minute)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{
		Scope:       leaderboard.PackScope("pack-1"),
		BypassCache: true,
	})

	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, shared.SubjectKey("+77001"), result.Rows[0].SubjectKey)
}

func TestGetLeaderboard_CacheFailureFallsThrough(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 10)},
	}}
	cache := newFakeRowCache()
	cache.getErr = shared.ErrBackendUnavailable
	handler := NewGetLeaderboardHandler(resolver, nil, cache, time.Minute)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")})

	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	require.Len(t, result.Rows, 1)
}

func TestGetLeaderboard_CachesFullSetTruncatesOutput(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{
			visibleTake("+77001", "p1", 30),
			visibleTake("+77002", "p2", 20),
			visibleTake("+77003", "p3", 10),
		},
	}}
	cache := newFakeRowCache()
	handler := NewGetLeaderboardHandler(resolver, nil, cache, time.Minute)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{
		Scope: leaderboard.PackScope("pack-1"),
		Limit: 2,
	})

	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, 3, result.TotalSubjects)
	// The cache holds the untruncated set so later limits can be served.
	assert.Len(t, cache.snapshots["pack:pack-1"].Rows, 3)
}

func TestGetLeaderboard_TitleSurvivesCacheHit(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 40)},
		Title: "Week 7 Pack",
	}}
	cache := newFakeRowCache()
	handler := NewGetLeaderboardHandler(resolver, nil, cache, time.Minute)

	query := GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")}

	miss, err := handler.Handle(context.Background(), query)
	require.NoError(t, err)
	require.False(t, miss.CacheHit)
	require.Equal(t, "Week 7 Pack", miss.Title)

	hit, err := handler.Handle(context.Background(), query)
	require.NoError(t, err)
	require.True(t, hit.CacheHit)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, "Week 7 Pack", hit.Title)
	assert.Equal(t, miss.Rows, hit.Rows)
}

func TestGetLeaderboard_ProfileFailureDegradesGracefully(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 10)},
	}}
	profiles := &fakeProfileRepo{err: shared.ErrBackendUnavailable}
	handler := NewGetLeaderboardHandler(resolver, profiles, nil, 0)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")})

	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Nil(t, result.Rows[0].ProfileID)
}

func TestGetLeaderboardQuery_Validate(t *testing.T) {
	q := GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")}
	require.NoError(t, q.Validate())
	assert.Equal(t, shared.DefaultPageSize, q.Limit)

	q = GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1"), Limit: 9000}
	require.NoError(t, q.Validate())
	assert.Equal(t, shared.MaxPageSize, q.Limit)

	q = GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1"), Limit: -1}
	assert.Error(t, q.Validate())

	q = GetLeaderboardQuery{Scope: leaderboard.PackScope("")}
	assert.Error(t, q.Validate())
}

func TestGetLeaderboard_ResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: shared.ErrTimeout}
	handler := NewGetLeaderboardHandler(resolver, nil, nil, 0)

	_, err := handler.Handle(context.Background(), GetLeaderboardQuery{Scope: leaderboard.PackScope("pack-1")})

	require.Error(t, err)
	assert.True(t, shared.IsBackendUnavailable(err))
}
