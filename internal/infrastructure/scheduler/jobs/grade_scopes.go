// Package jobs contains implementations of scheduled jobs for the PropsHub
// scoring engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/propshub/props-scoring-engine/internal/application/command"
	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE SCOPES JOB
// ══════════════════════════════════════════════════════════════════════════════

// PendingScopeSource lists scopes that are ready to grade.
type PendingScopeSource interface {
	PendingPackScopes(ctx context.Context, limit int) ([]leaderboard.Scope, error)
}

// GradeScopesJob sweeps finalized pack scopes and grades each one.
// Grading is write-once at the storage level, so racing another instance
// of this job (or a manual grade) degrades to an already-graded no-op.
type GradeScopesJob struct {
	source  PendingScopeSource
	grader  *command.GradeScopeHandler
	retrier *retry.Retrier
	logger  *slog.Logger
	config  GradeScopesConfig

	lastSweepStats atomic.Value // *GradeSweepStats
}

// GradeScopesConfig contains configuration for the grading sweep.
type GradeScopesConfig struct {
	// MaxScopesPerRun bounds one sweep.
	MaxScopesPerRun int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultGradeScopesConfig returns sensible defaults.
func DefaultGradeScopesConfig() GradeScopesConfig {
	return GradeScopesConfig{
		MaxScopesPerRun: 100,
		Timeout:         2 * time.Minute,
	}
}

// GradeSweepStats contains statistics from one grading sweep.
type GradeSweepStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	ScopesFound   int
	Graded        int
	NoWinner      int
	AlreadyGraded int
	Errors        []error
}

// NewGradeScopesJob creates a new grading sweep job.
func NewGradeScopesJob(
	source PendingScopeSource,
	grader *command.GradeScopeHandler,
	logger *slog.Logger,
	config GradeScopesConfig,
) *GradeScopesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &GradeScopesJob{
		source:  source,
		grader:  grader,
		retrier: retry.DatabaseRetrier(),
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *GradeScopesJob) Name() string {
	return "grade_scopes"
}

// Description returns a human-readable description.
func (j *GradeScopesJob) Description() string {
	return "Grades finalized pack scopes and records their winners"
}

// Run executes the grading sweep.
func (j *GradeScopesJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &GradeSweepStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting grade_scopes job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	scopes, err := j.source.PendingPackScopes(ctx, j.config.MaxScopesPerRun)
	if err != nil {
		return fmt.Errorf("failed to list pending scopes: %w", err)
	}

	stats.ScopesFound = len(scopes)
	j.logger.Info("found scopes ready to grade", "count", stats.ScopesFound)

	for _, scope := range scopes {
		if ctx.Err() != nil {
			break
		}
		j.gradeOne(ctx, scope, stats)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastSweepStats.Store(stats)

	j.logger.Info("grade_scopes job completed",
		"duration", stats.Duration.String(),
		"scopes_found", stats.ScopesFound,
		"graded", stats.Graded,
		"no_winner", stats.NoWinner,
		"already_graded", stats.AlreadyGraded,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("grading sweep completed with %d errors", len(stats.Errors))
	}

	return nil
}

// gradeOne grades a single scope, retrying transient failures.
func (j *GradeScopesJob) gradeOne(ctx context.Context, scope leaderboard.Scope, stats *GradeSweepStats) {
	ref := scope.Ref()

	var result *command.GradeScopeResult
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var gradeErr error
		result, gradeErr = j.grader.Handle(ctx, scope)
		if gradeErr != nil {
			return retry.Retryable(gradeErr)
		}
		return nil
	})
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Errorf("grade %s: %w", ref, err))
		j.logger.Error("failed to grade scope", "scope", ref, "error", err)
		return
	}

	switch {
	case result.AlreadyGraded:
		stats.AlreadyGraded++
	case result.Winner == nil:
		stats.NoWinner++
		j.logger.Info("scope graded without winner", "scope", ref)
	default:
		stats.Graded++
		j.logger.Info("scope graded",
			"scope", ref,
			"winner", string(result.Winner.SubjectKey),
			"points", int(result.Winner.Points),
		)
	}
}

// LastSweepStats returns statistics from the last sweep.
func (j *GradeScopesJob) LastSweepStats() *GradeSweepStats {
	stats := j.lastSweepStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*GradeSweepStats)
}
