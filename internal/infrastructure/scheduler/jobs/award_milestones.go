package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/propshub/props-scoring-engine/internal/application/saga"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD MILESTONES JOB
// ══════════════════════════════════════════════════════════════════════════════

// GradedPropSource lists props graded since a watermark.
type GradedPropSource interface {
	RecentlyGradedProps(ctx context.Context, since time.Time) ([]shared.PropID, error)
}

// AwardMilestonesJob runs the milestone award flow over props graded since
// the last sweep. The watermark overlaps one interval back on the first run
// so a worker restart never skips freshly graded props; re-checking a
// subject is idempotent.
type AwardMilestonesJob struct {
	source    GradedPropSource
	awardFlow *saga.AwardFlowSaga
	logger    *slog.Logger
	config    AwardMilestonesConfig

	mu        sync.Mutex
	watermark time.Time
}

// AwardMilestonesConfig contains configuration for the award sweep.
type AwardMilestonesConfig struct {
	// InitialLookback is how far back the first sweep reaches.
	InitialLookback time.Duration

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultAwardMilestonesConfig returns sensible defaults.
func DefaultAwardMilestonesConfig() AwardMilestonesConfig {
	return AwardMilestonesConfig{
		InitialLookback: 1 * time.Hour,
		Timeout:         5 * time.Minute,
	}
}

// NewAwardMilestonesJob creates a new award sweep job.
func NewAwardMilestonesJob(
	source GradedPropSource,
	awardFlow *saga.AwardFlowSaga,
	logger *slog.Logger,
	config AwardMilestonesConfig,
) *AwardMilestonesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &AwardMilestonesJob{
		source:    source,
		awardFlow: awardFlow,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *AwardMilestonesJob) Name() string {
	return "award_milestones"
}

// Description returns a human-readable description.
func (j *AwardMilestonesJob) Description() string {
	return "Awards points milestones to participants affected by recently graded props"
}

// Run executes the award sweep.
func (j *AwardMilestonesJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	since := j.takeWatermark(startedAt)
	j.logger.Info("starting award_milestones job", "since", since.Format(time.RFC3339))

	props, err := j.source.RecentlyGradedProps(ctx, since)
	if err != nil {
		j.resetWatermark(since)
		return fmt.Errorf("failed to list recently graded props: %w", err)
	}

	if len(props) == 0 {
		j.logger.Info("award_milestones job completed", "props", 0)
		return nil
	}

	result, err := j.awardFlow.AwardForUpdatedProps(ctx, props)
	if err != nil && !errors.Is(err, shared.ErrPartialBatchFailure) {
		j.resetWatermark(since)
		return fmt.Errorf("award flow failed: %w", err)
	}

	j.logger.Info("award_milestones job completed",
		"duration", time.Since(startedAt).String(),
		"props", len(props),
		"subjects", len(result.Outcomes),
		"created", result.CreatedCount,
		"failed", result.FailedCount,
		"truncated", result.Truncated,
	)

	// Partial failure: the watermark stays advanced, failed subjects are
	// caught by the nightly reconciliation sweep.
	return err
}

// takeWatermark returns the current watermark and advances it to now.
func (j *AwardMilestonesJob) takeWatermark(now time.Time) time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	since := j.watermark
	if since.IsZero() {
		since = now.Add(-j.config.InitialLookback)
	}
	j.watermark = now
	return since
}

// resetWatermark rolls the watermark back after a failed sweep.
func (j *AwardMilestonesJob) resetWatermark(since time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.watermark = since
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AWARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileAwardsJob re-runs the award flow over every prop graded in the
// reconciliation window. It exists to pick up subjects dropped by partial
// batch failures or truncation during the frequent sweeps.
type ReconcileAwardsJob struct {
	source    GradedPropSource
	awardFlow *saga.AwardFlowSaga
	logger    *slog.Logger

	// Lookback is how far back the reconciliation reaches.
	Lookback time.Duration
}

// NewReconcileAwardsJob creates a new reconciliation job.
func NewReconcileAwardsJob(
	source GradedPropSource,
	awardFlow *saga.AwardFlowSaga,
	logger *slog.Logger,
	lookback time.Duration,
) *ReconcileAwardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}

	return &ReconcileAwardsJob{
		source:    source,
		awardFlow: awardFlow,
		logger:    logger,
		Lookback:  lookback,
	}
}

// Name returns the job name.
func (j *ReconcileAwardsJob) Name() string {
	return "reconcile_awards"
}

// Description returns a human-readable description.
func (j *ReconcileAwardsJob) Description() string {
	return "Re-checks milestone awards for all props graded in the reconciliation window"
}

// Run executes the reconciliation.
func (j *ReconcileAwardsJob) Run(ctx context.Context) error {
	since := time.Now().Add(-j.Lookback)
	j.logger.Info("starting reconcile_awards job", "since", since.Format(time.RFC3339))

	props, err := j.source.RecentlyGradedProps(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list graded props: %w", err)
	}

	if len(props) == 0 {
		j.logger.Info("reconcile_awards job completed", "props", 0)
		return nil
	}

	result, err := j.awardFlow.AwardForUpdatedProps(ctx, props)
	if err != nil && !errors.Is(err, shared.ErrPartialBatchFailure) {
		return fmt.Errorf("award flow failed: %w", err)
	}

	j.logger.Info("reconcile_awards job completed",
		"props", len(props),
		"subjects", len(result.Outcomes),
		"created", result.CreatedCount,
		"failed", result.FailedCount,
		"truncated", result.Truncated,
	)

	return err
}
