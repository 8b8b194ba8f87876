package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keySet(milestones []Milestone) map[string]struct{} {
	set := make(map[string]struct{}, len(milestones))
	for _, m := range milestones {
		set[m.Key] = struct{}{}
	}
	return set
}

func TestMissingThresholds_BelowFirstStep(t *testing.T) {
	assert.Empty(t, MissingThresholds(0, nil))
	assert.Empty(t, MissingThresholds(999, nil))
	assert.Empty(t, MissingThresholds(-500, nil))
}

func TestMissingThresholds_NoExisting(t *testing.T) {
	missing := MissingThresholds(1200, nil)

	require.Len(t, missing, 1)
	assert.Equal(t, 1000, missing[0].Threshold)
	assert.Equal(t, "points_1000", missing[0].Key)
}

func TestMissingThresholds_SkipsExisting(t *testing.T) {
	existing := map[string]struct{}{"points_1000": {}}

	missing := MissingThresholds(2500, existing)

	require.Len(t, missing, 1)
	assert.Equal(t, 2000, missing[0].Threshold)
	assert.Equal(t, "points_2000", missing[0].Key)
}

func TestMissingThresholds_MultipleCrossed(t *testing.T) {
	missing := MissingThresholds(3999, nil)

	require.Len(t, missing, 3)
	assert.Equal(t, "points_1000", missing[0].Key)
	assert.Equal(t, "points_2000", missing[1].Key)
	assert.Equal(t, "points_3000", missing[2].Key)
}

func TestMissingThresholds_ExactBoundary(t *testing.T) {
	missing := MissingThresholds(2000, nil)

	require.Len(t, missing, 2)
	assert.Equal(t, 2000, missing[1].Threshold)
}

func TestMissingThresholds_RerunIsEmpty(t *testing.T) {
	// Feeding the previous result back as existing yields nothing new.
	first := MissingThresholds(5400, nil)
	require.Len(t, first, 5)

	second := MissingThresholds(5400, keySet(first))
	assert.Empty(t, second)
}

func TestMissingThresholds_Monotonic(t *testing.T) {
	// Everything newly crossed between p1 and p2 must appear for p2.
	existing := keySet(MissingThresholds(2100, nil))

	missing := MissingThresholds(4700, existing)

	require.Len(t, missing, 2)
	assert.Equal(t, 3000, missing[0].Threshold)
	assert.Equal(t, 4000, missing[1].Threshold)
}

func TestMilestoneKeyRoundTrip(t *testing.T) {
	for _, threshold := range []int{1000, 2000, 17000} {
		key := MilestoneKey(threshold)
		parsed, err := ParseMilestoneKey(key)
		require.NoError(t, err)
		assert.Equal(t, threshold, parsed)
	}
}

func TestParseMilestoneKey_Invalid(t *testing.T) {
	for _, key := range []string{"", "points_", "points_abc", "points_1500", "points_-1000", "streak_7"} {
		_, err := ParseMilestoneKey(key)
		assert.Error(t, err, "key=%q", key)
	}
}

func TestMilestoneDescription(t *testing.T) {
	m := Milestone{Threshold: 3000, Key: MilestoneKey(3000)}
	assert.Equal(t, "Earned 3000 total points", m.Description())
}

func TestNewMilestoneAchievement(t *testing.T) {
	m := Milestone{Threshold: 1000, Key: "points_1000"}

	a := NewMilestoneAchievement("row-1", "a1b2c3d4-0000-0000-0000-000000000001", "+77001234567", m)

	assert.Equal(t, "row-1", a.ID)
	assert.Equal(t, MilestoneTitle, a.Title)
	assert.Equal(t, "points_1000", a.Key)
	assert.Equal(t, 1000, a.Value)
	assert.False(t, a.AwardedAt.IsZero())
}
