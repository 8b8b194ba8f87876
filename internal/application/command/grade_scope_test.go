package command

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

// ─── fakes ───────────────────────────────────────────────────────────────────

type fakeResolver struct {
	resolution leaderboard.Resolution
	err        error
}

func (f *fakeResolver) Resolve(_ context.Context, _ leaderboard.Scope) (leaderboard.Resolution, error) {
	return f.resolution, f.err
}

type fakeProfileRepo struct {
	byPhone map[shared.SubjectKey]*profile.Profile
	err     error
}

func (f *fakeProfileRepo) FindByPhone(_ context.Context, phone shared.SubjectKey) (*profile.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byPhone[phone]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfileRepo) FindByID(_ context.Context, _ shared.ProfileID) (*profile.Profile, error) {
	return nil, shared.ErrProfileNotFound
}

func (f *fakeProfileRepo) FindByPhones(_ context.Context, phones []shared.SubjectKey) (map[shared.SubjectKey]*profile.Profile, error) {
	out := make(map[shared.SubjectKey]*profile.Profile)
	for _, phone := range phones {
		if p, ok := f.byPhone[phone]; ok {
			out[phone] = p
		}
	}
	return out, nil
}

type winnerWrite struct {
	subject   shared.SubjectKey
	profileID *shared.ProfileID
}

type fakeWinnerStore struct {
	refs     map[string]winnerWrite
	setErr   error
	checkErr error
}

func newFakeWinnerStore() *fakeWinnerStore {
	return &fakeWinnerStore{refs: make(map[string]winnerWrite)}
}

func (f *fakeWinnerStore) WinnerRefSet(_ context.Context, scopeRef string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.refs[scopeRef]
	return ok, nil
}

func (f *fakeWinnerStore) SetWinnerRef(_ context.Context, scopeRef string, subject shared.SubjectKey, profileID *shared.ProfileID) error {
	if f.setErr != nil {
		return f.setErr
	}
	if _, ok := f.refs[scopeRef]; ok {
		return shared.ErrScopeAlreadyGraded
	}
	f.refs[scopeRef] = winnerWrite{subject: subject, profileID: profileID}
	return nil
}

type fakeRowCache struct {
	snapshots   map[string]leaderboard.Snapshot
	invalidated []string
}

func newFakeRowCache() *fakeRowCache {
	return &fakeRowCache{snapshots: make(map[string]leaderboard.Snapshot)}
}

func (f *fakeRowCache) Get(_ context.Context, scopeRef string) (leaderboard.Snapshot, bool, error) {
	snapshot, ok := f.snapshots[scopeRef]
	return snapshot, ok, nil
}

func (f *fakeRowCache) Set(_ context.Context, scopeRef string, snapshot leaderboard.Snapshot, _ time.Duration) error {
	f.snapshots[scopeRef] = snapshot
	return nil
}

func (f *fakeRowCache) Invalidate(_ context.Context, scopeRef string) error {
	delete(f.snapshots, scopeRef)
	f.invalidated = append(f.invalidated, scopeRef)
	return nil
}

type fakePublisher struct {
	events []shared.Event
}

func (f *fakePublisher) Publish(event shared.Event) error {
	f.events = append(f.events, event)
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

// ─── SelectWinner ────────────────────────────────────────────────────────────

func TestSelectWinner_PicksTopSubject(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{
			visibleTake("+77001", "p1", 40),
			visibleTake("+77002", "p2", 90),
		},
	}}
	profiles := &fakeProfileRepo{byPhone: map[shared.SubjectKey]*profile.Profile{
		"+77002": {ID: "a1b2c3d4-0000-0000-0000-000000000002", Handle: "closer"},
	}}

	winner, err := NewSelectWinnerHandler(resolver, profiles).Handle(context.Background(), leaderboard.PackScope("pack-1"))

	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, shared.SubjectKey("+77002"), winner.SubjectKey)
	assert.Equal(t, 90, winner.Points)
	require.NotNil(t, winner.ProfileID)
	assert.Equal(t, shared.ProfileID("a1b2c3d4-0000-0000-0000-000000000002"), *winner.ProfileID)
}

func TestSelectWinner_EmptyScopeIsNoWinnerNotError(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{}}

	winner, err := NewSelectWinnerHandler(resolver, nil).Handle(context.Background(), leaderboard.PackScope("ghost-pack"))

	require.NoError(t, err)
	assert.Nil(t, winner)
}

func TestSelectWinner_UnresolvedProfileStillWins(t *testing.T) {
	resolver := &fakeResolver{resolution: leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77005", "p1", 10)},
	}}
	profiles := &fakeProfileRepo{byPhone: map[shared.SubjectKey]*profile.Profile{}}

	winner, err := NewSelectWinnerHandler(resolver, profiles).Handle(context.Background(), leaderboard.PackScope("pack-1"))

	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, shared.SubjectKey("+77005"), winner.SubjectKey)
	assert.Nil(t, winner.ProfileID)
}

func TestSelectWinner_InvalidScope(t *testing.T) {
	_, err := NewSelectWinnerHandler(&fakeResolver{}, nil).Handle(context.Background(), leaderboard.PackScope(""))

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestSelectWinner_ResolverFailure(t *testing.T) {
	resolver := &fakeResolver{err: shared.ErrBackendUnavailable}

	_, err := NewSelectWinnerHandler(resolver, nil).Handle(context.Background(), leaderboard.PackScope("pack-1"))

	require.Error(t, err)
	assert.True(t, shared.IsBackendUnavailable(err))
}

// ─── GradeScope ──────────────────────────────────────────────────────────────

func newGradedFixture(resolution leaderboard.Resolution) (*GradeScopeHandler, *fakeWinnerStore, *fakeRowCache, *fakePublisher) {
	selector := NewSelectWinnerHandler(&fakeResolver{resolution: resolution}, &fakeProfileRepo{})
	winners := newFakeWinnerStore()
	cache := newFakeRowCache()
	bus := &fakePublisher{}
	return NewGradeScopeHandler(selector, winners, cache, bus), winners, cache, bus
}

func TestGradeScope_WritesWinnerOnce(t *testing.T) {
	handler, winners, cache, bus := newGradedFixture(leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 75)},
	})
	scope := leaderboard.PackScope("pack-1")
	cache.snapshots[scope.Ref()] = leaderboard.Snapshot{Rows: []leaderboard.Row{{Rank: 1}}}

	result, err := handler.Handle(context.Background(), scope)

	require.NoError(t, err)
	assert.False(t, result.AlreadyGraded)
	require.NotNil(t, result.Winner)
	assert.Equal(t, shared.SubjectKey("+77001"), result.Winner.SubjectKey)

	stored, ok := winners.refs["pack:pack-1"]
	require.True(t, ok)
	assert.Equal(t, shared.SubjectKey("+77001"), stored.subject)

	assert.Equal(t, []string{"pack:pack-1"}, cache.invalidated)
	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventScopeGradedWithWinner, bus.events[0].EventType())
}

func TestGradeScope_RepeatIsNoOp(t *testing.T) {
	handler, winners, _, bus := newGradedFixture(leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 75)},
	})
	scope := leaderboard.PackScope("pack-1")

	_, err := handler.Handle(context.Background(), scope)
	require.NoError(t, err)

	repeat, err := handler.Handle(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, repeat.AlreadyGraded)

	assert.Len(t, winners.refs, 1)
	assert.Len(t, bus.events, 1)
}

func TestGradeScope_NoWinnerIsTerminal(t *testing.T) {
	handler, winners, _, bus := newGradedFixture(leaderboard.Resolution{})
	scope := leaderboard.ContestScope("contest-1")

	result, err := handler.Handle(context.Background(), scope)

	require.NoError(t, err)
	assert.Nil(t, result.Winner)
	assert.False(t, result.AlreadyGraded)

	stored, ok := winners.refs["contest:contest-1"]
	require.True(t, ok)
	assert.Empty(t, stored.subject)
	assert.Nil(t, stored.profileID)

	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventScopeGradedNoWinner, bus.events[0].EventType())

	// No-winner is terminal too: the repeat grades nothing.
	repeat, err := handler.Handle(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, repeat.AlreadyGraded)
}

func TestGradeScope_ConcurrentWriteLosesGracefully(t *testing.T) {
	handler, winners, _, _ := newGradedFixture(leaderboard.Resolution{
		Takes: []take.Take{visibleTake("+77001", "p1", 75)},
	})
	// Другой грейдер успел записать между check и set.
	winners.setErr = shared.ErrScopeAlreadyGraded

	result, err := handler.Handle(context.Background(), leaderboard.PackScope("pack-1"))

	require.NoError(t, err)
	assert.True(t, result.AlreadyGraded)
}

func TestGradeScope_CheckFailure(t *testing.T) {
	handler, winners, _, _ := newGradedFixture(leaderboard.Resolution{})
	winners.checkErr = shared.ErrTimeout

	_, err := handler.Handle(context.Background(), leaderboard.PackScope("pack-1"))

	require.Error(t, err)
	assert.True(t, shared.IsBackendUnavailable(err))
}
