package leaderboard

import (
	"testing"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visible(subject, prop string, points int, result take.Result) take.Take {
	return take.Take{
		ID:         subject + "-" + prop,
		SubjectKey: shared.SubjectKey(subject),
		PropID:     shared.PropID(prop),
		Points:     shared.Points(points),
		Result:     result,
		Status:     take.StatusLatest,
	}
}

func TestAggregate_GroupsBySubject(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "p1", 100, take.ResultWon),
		visible("+77001", "p2", 0, take.ResultLost),
		visible("+77002", "p1", 50, take.ResultWon),
		visible("+77001", "p3", 25, take.ResultPushed),
		visible("+77002", "p4", 0, take.ResultPending),
	}

	agg := Aggregate(takes, nil)

	require.Equal(t, 2, agg.Len())

	a, ok := agg.Get("+77001")
	require.True(t, ok)
	assert.Equal(t, 3, a.Takes)
	assert.Equal(t, 125, a.Points)
	assert.Equal(t, 1, a.Won)
	assert.Equal(t, 1, a.Lost)
	assert.Equal(t, 1, a.Pushed)
	assert.Equal(t, 0, a.Pending)

	b, ok := agg.Get("+77002")
	require.True(t, ok)
	assert.Equal(t, 2, b.Takes)
	assert.Equal(t, 50, b.Points)
	assert.Equal(t, 1, b.Pending)
}

func TestAggregate_SkipsInvisible(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "p1", 100, take.ResultWon),
		{SubjectKey: "+77001", PropID: "p2", Points: 500, Status: take.StatusOverwritten},
		{SubjectKey: "+77001", PropID: "p3", Points: 200, Status: take.StatusLatest, Hidden: true},
	}

	agg := Aggregate(takes, nil)

	a, ok := agg.Get("+77001")
	require.True(t, ok)
	assert.Equal(t, 1, a.Takes)
	assert.Equal(t, 100, a.Points)
}

func TestAggregate_NoZeroRows(t *testing.T) {
	// A subject whose every take is invisible must not appear at all.
	takes := []take.Take{
		{SubjectKey: "+77009", PropID: "p1", Points: 500, Status: take.StatusOverwritten},
	}

	agg := Aggregate(takes, nil)

	assert.Equal(t, 0, agg.Len())
	_, ok := agg.Get("+77009")
	assert.False(t, ok)
}

func TestAggregate_DropsArchivedAndDraftProps(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "live-prop", 100, take.ResultWon),
		visible("+77001", "pulled-prop", 400, take.ResultWon),
		visible("+77001", "draft-prop", 300, take.ResultWon),
	}
	lifecycles := map[shared.PropID]take.PropLifecycle{
		"live-prop":   take.LifecycleGraded,
		"pulled-prop": take.LifecycleArchived,
		"draft-prop":  take.LifecycleDraft,
	}

	agg := Aggregate(takes, lifecycles)

	a, ok := agg.Get("+77001")
	require.True(t, ok)
	assert.Equal(t, 1, a.Takes)
	assert.Equal(t, 100, a.Points)
}

func TestBuild_OrderAndTieBreaks(t *testing.T) {
	// Points [50, 50, 30], takes-counts [2, 5, 1]: the 5-take subject wins
	// the tie, then the 2-take subject, then the 30-point subject.
	takes := []take.Take{
		visible("+77001", "a1", 25, take.ResultWon),
		visible("+77001", "a2", 25, take.ResultWon),

		visible("+77002", "b1", 50, take.ResultWon),
		visible("+77002", "b2", 0, take.ResultLost),
		visible("+77002", "b3", 0, take.ResultLost),
		visible("+77002", "b4", 0, take.ResultLost),
		visible("+77002", "b5", 0, take.ResultLost),

		visible("+77003", "c1", 30, take.ResultWon),
	}

	rows := Build(Aggregate(takes, nil), nil, 0)

	require.Len(t, rows, 3)
	assert.Equal(t, shared.SubjectKey("+77002"), rows[0].SubjectKey)
	assert.Equal(t, shared.SubjectKey("+77001"), rows[1].SubjectKey)
	assert.Equal(t, shared.SubjectKey("+77003"), rows[2].SubjectKey)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 3, rows[2].Rank)
}

func TestBuild_InsertionOrderFinalTieBreak(t *testing.T) {
	// Identical points and take counts: input order decides, deterministically.
	takes := []take.Take{
		visible("+77010", "x1", 10, take.ResultWon),
		visible("+77011", "y1", 10, take.ResultWon),
	}

	first := Build(Aggregate(takes, nil), nil, 0)
	second := Build(Aggregate(takes, nil), nil, 0)

	require.Len(t, first, 2)
	assert.Equal(t, shared.SubjectKey("+77010"), first[0].SubjectKey)
	assert.Equal(t, first, second)
}

func TestBuild_ProfileDecoration(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "p1", 10, take.ResultWon),
		visible("+77002", "p2", 5, take.ResultWon),
	}
	identities := map[shared.SubjectKey]Identity{
		"+77001": {ProfileID: "a1b2c3d4-0000-0000-0000-000000000001", Handle: "sharpshooter"},
	}

	rows := Build(Aggregate(takes, nil), identities, 0)

	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].ProfileID)
	assert.Equal(t, shared.ProfileID("a1b2c3d4-0000-0000-0000-000000000001"), *rows[0].ProfileID)
	assert.Equal(t, "sharpshooter", rows[0].Handle)

	// No profile resolved: nil ProfileID, never an error.
	assert.Nil(t, rows[1].ProfileID)
	assert.Empty(t, rows[1].Handle)
}

func TestBuild_Truncation(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "p1", 30, take.ResultWon),
		visible("+77002", "p2", 20, take.ResultWon),
		visible("+77003", "p3", 10, take.ResultWon),
	}

	rows := Build(Aggregate(takes, nil), nil, 2)

	require.Len(t, rows, 2)
	assert.Equal(t, 30, rows[0].Points)
	assert.Equal(t, 20, rows[1].Points)
}

func TestBuild_EmptyAggregation(t *testing.T) {
	rows := Build(Aggregate(nil, nil), nil, 10)
	assert.Empty(t, rows)
	assert.Nil(t, Top(Aggregate(nil, nil), nil))
}

func TestTop(t *testing.T) {
	takes := []take.Take{
		visible("+77001", "p1", 10, take.ResultWon),
		visible("+77002", "p2", 90, take.ResultWon),
	}

	top := Top(Aggregate(takes, nil), nil)

	require.NotNil(t, top)
	assert.Equal(t, shared.SubjectKey("+77002"), top.SubjectKey)
	assert.Equal(t, 90, top.Points)
}

func TestScopeValidate(t *testing.T) {
	assert.NoError(t, PackScope("pack-1").Validate())
	assert.Error(t, PackScope("").Validate())
	assert.NoError(t, PackListScope("a", "b").Validate())
	assert.Error(t, PackListScope().Validate())
	assert.NoError(t, TeamScope("lakers", shared.TimeWindow{}).Validate())
	assert.Error(t, TeamScope("  ", shared.TimeWindow{}).Validate())
	assert.NoError(t, ContestScope("contest-1").Validate())
	assert.Error(t, ContestScope("").Validate())
	assert.Error(t, Scope{Kind: "bogus"}.Validate())
}

func TestScopeRef(t *testing.T) {
	assert.Equal(t, "pack:pack-1", PackScope("pack-1").Ref())
	assert.Equal(t, "packs:a,b", PackListScope("a", "b").Ref())
	assert.Equal(t, "team:lakers", TeamScope("Lakers", shared.TimeWindow{}).Ref())
	assert.Equal(t, "contest:c-1", ContestScope("c-1").Ref())
}
