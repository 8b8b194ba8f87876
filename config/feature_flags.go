package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the scoring engine.
// Supports gradual rollout keyed by subject so a cache or scoring change
// can be tested on a slice of participants before going wide.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	subjectOverrides map[string]map[string]bool // subject key -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Subjects are assigned based on hash of their key
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	SubjectKey string // participant phone number
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardCache       = "leaderboard.cache"       // Serve rows from Redis
	FeatureLeaderboardProfiles    = "leaderboard.profiles"    // Decorate rows with profiles
	FeatureLeaderboardTeamView    = "leaderboard.team_view"   // Prefer take_team_results view
	FeatureLeaderboardContestRefs = "leaderboard.contest"     // Contest scope resolution

	// === Grading Features ===
	FeatureGradingAutoSweep = "grading.auto_sweep" // Periodic pack grading sweep
	FeatureGradingTeamWeeks = "grading.team_weeks" // Weekly team scoreboard grading

	// === Award Features ===
	FeatureAwardsMilestones = "awards.milestones" // Points milestone achievements
	FeatureAwardsReconcile  = "awards.reconcile"  // Nightly award reconciliation
	FeatureAwardsOnGraded   = "awards.on_graded"  // Event-driven award checks

	// === Experimental Features ===
	FeatureExperimentalRedisEvents = "experimental.redis_events" // Redis pub/sub event bus
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		subjectOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Leaderboard features - enabled by default
	ff.features[FeatureLeaderboardCache] = &Feature{
		Name:           FeatureLeaderboardCache,
		Description:    "Serve leaderboard rows from Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardProfiles] = &Feature{
		Name:           FeatureLeaderboardProfiles,
		Description:    "Decorate leaderboard rows with profile handles",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardTeamView] = &Feature{
		Name:           FeatureLeaderboardTeamView,
		Description:    "Resolve team scopes through the take_team_results view",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardContestRefs] = &Feature{
		Name:           FeatureLeaderboardContestRefs,
		Description:    "Resolve contest scopes across packs",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Grading features - the point of the worker, enabled by default
	ff.features[FeatureGradingAutoSweep] = &Feature{
		Name:           FeatureGradingAutoSweep,
		Description:    "Periodically grade finalized pack scopes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGradingTeamWeeks] = &Feature{
		Name:           FeatureGradingTeamWeeks,
		Description:    "Grade weekly team scoreboards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Award features
	ff.features[FeatureAwardsMilestones] = &Feature{
		Name:           FeatureAwardsMilestones,
		Description:    "Award points milestone achievements",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAwardsReconcile] = &Feature{
		Name:           FeatureAwardsReconcile,
		Description:    "Nightly award reconciliation sweep",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAwardsOnGraded] = &Feature{
		Name:           FeatureAwardsOnGraded,
		Description:    "Run award checks when a scope is graded",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalRedisEvents] = &Feature{
		Name:           FeatureExperimentalRedisEvents,
		Description:    "Share events between instances over Redis pub/sub",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_LEADERBOARD_CACHE=false
// Example: FEATURE_AWARDS_ON_GRADED=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "grading.auto_sweep" -> "FEATURE_GRADING_AUTO_SWEEP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check subject overrides first
	if ctx != nil && ctx.SubjectKey != "" {
		if overrides, ok := ff.subjectOverrides[ctx.SubjectKey]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.SubjectKey != "" {
		return ff.isInRollout(ctx.SubjectKey, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a subject is in the rollout percentage.
// Uses consistent hashing so subjects stay in their bucket.
func (ff *FeatureFlags) isInRollout(subjectKey, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(subjectKey))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetSubjectOverride sets a feature override for a specific subject.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetSubjectOverride(subjectKey, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.subjectOverrides[subjectKey]; !ok {
		ff.subjectOverrides[subjectKey] = make(map[string]bool)
	}
	ff.subjectOverrides[subjectKey][featureName] = enabled
}

// ClearSubjectOverrides removes all overrides for a subject.
func (ff *FeatureFlags) ClearSubjectOverrides(subjectKey string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.subjectOverrides, subjectKey)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
