package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
	assert.True(t, ff.IsEnabled(FeatureGradingAutoSweep, nil))
	assert.True(t, ff.IsEnabled(FeatureAwardsMilestones, nil))

	// Experimental features start off.
	assert.False(t, ff.IsEnabled(FeatureExperimentalRedisEvents, nil))

	// Unknown features are off, not an error.
	assert.False(t, ff.IsEnabled("no.such.feature", nil))
}

func TestFeatureFlags_EnvBoolOverride(t *testing.T) {
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_REDIS_EVENTS", "true")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureLeaderboardCache, nil))
	assert.True(t, ff.IsEnabled(FeatureExperimentalRedisEvents, nil))
}

func TestFeatureFlags_EnvPercentOverride(t *testing.T) {
	t.Setenv("FEATURE_AWARDS_ON_GRADED", "50")

	ff := LoadFeatureFlags()
	features := ff.GetAllFeatures()

	feature, ok := features[FeatureAwardsOnGraded]
	require.True(t, ok)
	assert.True(t, feature.Enabled)
	assert.Equal(t, 50, feature.RolloutPercent)
}

func TestFeatureFlags_RolloutBucketing(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardProfiles, 50))

	// Same subject always lands in the same bucket.
	ctx := &FeatureContext{SubjectKey: "+77011234567"}
	first := ff.IsEnabled(FeatureLeaderboardProfiles, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureLeaderboardProfiles, ctx))
	}

	// 0% excludes everyone, 100% includes everyone.
	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardProfiles, 0))
	assert.False(t, ff.IsEnabled(FeatureLeaderboardProfiles, ctx))

	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardProfiles, 100))
	assert.True(t, ff.IsEnabled(FeatureLeaderboardProfiles, ctx))
}

func TestFeatureFlags_SubjectOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.DisableFeature(FeatureLeaderboardTeamView))

	ctx := &FeatureContext{SubjectKey: "+77019999999"}
	assert.False(t, ff.IsEnabled(FeatureLeaderboardTeamView, ctx))

	ff.SetSubjectOverride(ctx.SubjectKey, FeatureLeaderboardTeamView, true)
	assert.True(t, ff.IsEnabled(FeatureLeaderboardTeamView, ctx))

	// Override is per-subject.
	other := &FeatureContext{SubjectKey: "+77010000000"}
	assert.False(t, ff.IsEnabled(FeatureLeaderboardTeamView, other))

	ff.ClearSubjectOverrides(ctx.SubjectKey)
	assert.False(t, ff.IsEnabled(FeatureLeaderboardTeamView, ctx))
}

func TestFeatureFlags_SetRolloutPercentErrors(t *testing.T) {
	ff := LoadFeatureFlags()

	err := ff.SetRolloutPercent("no.such.feature", 50)
	assert.ErrorIs(t, err, ErrFeatureNotFound)

	err = ff.SetRolloutPercent(FeatureAwardsReconcile, 150)
	assert.ErrorIs(t, err, ErrInvalidRolloutPercent)
}
