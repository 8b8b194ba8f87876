package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/propshub/props-scoring-engine/internal/application/command"
	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE TEAM WEEKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// TeamSource lists the teams known to the engine.
type TeamSource interface {
	AllTeams(ctx context.Context) ([]shared.TeamSlug, error)
}

// GradeTeamWeeksJob grades the weekly team scoreboards for the last fully
// completed week. A week that is still open never gets a winner; grading an
// already graded week degrades to an already-graded no-op, so running this
// job more often than weekly is harmless.
type GradeTeamWeeksJob struct {
	teams  TeamSource
	grader *command.GradeScopeHandler
	logger *slog.Logger
}

// NewGradeTeamWeeksJob creates a new weekly team grading job.
func NewGradeTeamWeeksJob(
	teams TeamSource,
	grader *command.GradeScopeHandler,
	logger *slog.Logger,
) *GradeTeamWeeksJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &GradeTeamWeeksJob{
		teams:  teams,
		grader: grader,
		logger: logger,
	}
}

// Name returns the job name.
func (j *GradeTeamWeeksJob) Name() string {
	return "grade_team_weeks"
}

// Description returns a human-readable description.
func (j *GradeTeamWeeksJob) Description() string {
	return "Grades weekly team scoreboards for the last completed week"
}

// Run executes the weekly team grading.
func (j *GradeTeamWeeksJob) Run(ctx context.Context) error {
	from, to := timeutil.PreviousWeekWindow(time.Now())
	window, err := shared.NewTimeWindow(from, to)
	if err != nil {
		return fmt.Errorf("invalid week window: %w", err)
	}

	j.logger.Info("starting grade_team_weeks job", "window", timeutil.FormatWindow(from, to))

	teams, err := j.teams.AllTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}

	var graded, alreadyGraded, failed int
	for _, team := range teams {
		if ctx.Err() != nil {
			break
		}

		scope := leaderboard.TeamScope(team, window)
		result, err := j.grader.Handle(ctx, scope)
		if err != nil {
			failed++
			j.logger.Error("failed to grade team week", "scope", scope.Ref(), "error", err)
			continue
		}
		if result.AlreadyGraded {
			alreadyGraded++
			continue
		}
		graded++
	}

	j.logger.Info("grade_team_weeks job completed",
		"teams", len(teams),
		"graded", graded,
		"already_graded", alreadyGraded,
		"failed", failed,
	)

	if failed > 0 {
		return fmt.Errorf("team week grading completed with %d failures", failed)
	}
	return nil
}
