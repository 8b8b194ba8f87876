// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle partial failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/achievement"
	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD FLOW SAGA
// Business process: Milestone awarding after prop grading
// Flow: Collect Affected Subjects → Resolve Profiles → Fan Out →
//
//	(per subject) Load History → Sum Points → Diff Thresholds → Insert Rows →
//	Publish Events → Report Batch
//
// The per-subject check is a re-derivation, not an increment: the full take
// history is summed on every pass, so a crashed or repeated run converges to
// the same set of awarded milestones. The storage-level unique index is the
// at-most-once guarantee; this saga only narrows the candidate set.
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator generates unique identifiers for new achievement rows.
type IDGenerator interface {
	// GenerateID generates a new unique ID.
	GenerateID() string
}

// AwardCheckInput identifies one subject whose milestones should be re-derived.
type AwardCheckInput struct {
	// SubjectKey - the mobile key of the participant (required).
	SubjectKey shared.SubjectKey

	// ProfileRef - direct profile reference if the caller already has one.
	// When empty the saga falls back to a phone lookup.
	ProfileRef shared.ProfileID
}

// Validate checks if the input is valid.
func (i AwardCheckInput) Validate() error {
	if i.SubjectKey == "" {
		return errors.New("award_flow: subject key is required")
	}
	return nil
}

// AwardCheckResult contains the outcome of a single subject check.
type AwardCheckResult struct {
	// SubjectKey - the checked participant.
	SubjectKey shared.SubjectKey

	// ProfileRef - the resolved profile reference (may stay empty).
	ProfileRef shared.ProfileID

	// TotalPoints - the re-derived lifetime point total.
	TotalPoints int

	// CreatedKeys - keys of achievement rows actually created this pass.
	// Conflicting inserts (lost races) are excluded.
	CreatedKeys []string
}

// AwardBatchOutcome is the per-subject record of a fan-out pass.
// Exactly one of Result and Err is set.
type AwardBatchOutcome struct {
	SubjectKey shared.SubjectKey
	Result     *AwardCheckResult
	Err        error
}

// AwardBatchResult contains the outcome of a full fan-out pass.
type AwardBatchResult struct {
	// PropIDs - the props that triggered the pass.
	PropIDs []shared.PropID

	// Outcomes - one entry per subject that was actually checked.
	Outcomes []AwardBatchOutcome

	// CreatedCount - total achievement rows created across all subjects.
	CreatedCount int

	// FailedCount - subjects whose check failed.
	FailedCount int

	// Truncated - part of the subject set was not checked, either because
	// it exceeded the per-run cutoff or because the pass was stopped early.
	// The remainder needs another pass.
	Truncated bool

	// ProcessedAt - when the pass completed.
	ProcessedAt time.Time
}

// AwardFlowStep represents a step in the award flow.
type AwardFlowStep string

const (
	StepCollectSubjects AwardFlowStep = "collect_subjects"
	StepLoadHistory     AwardFlowStep = "load_history"
	StepDiffThresholds  AwardFlowStep = "diff_thresholds"
	StepInsertRows      AwardFlowStep = "insert_rows"
	StepPublishEvents   AwardFlowStep = "publish_events"
	StepAwardComplete   AwardFlowStep = "complete"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD FLOW SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowSaga orchestrates milestone re-derivation and awarding.
type AwardFlowSaga struct {
	// Dependencies
	takeRepo        take.Repository
	profileRepo     profile.Repository
	achievementRepo achievement.Repository
	eventBus        shared.EventPublisher
	idGenerator     IDGenerator

	// Configuration
	fanOutConcurrency int
	maxSubjectsPerRun int
}

// AwardFlowConfig contains configuration for the award flow saga.
type AwardFlowConfig struct {
	// FanOutConcurrency - number of concurrent subject checks.
	FanOutConcurrency int

	// MaxSubjectsPerRun - per-run cutoff; subjects beyond it are left for
	// the next pass and the batch result is flagged Truncated.
	MaxSubjectsPerRun int
}

// DefaultAwardFlowConfig returns default configuration.
func DefaultAwardFlowConfig() AwardFlowConfig {
	return AwardFlowConfig{
		FanOutConcurrency: 8,
		MaxSubjectsPerRun: 500,
	}
}

// NewAwardFlowSaga creates a new award flow saga with all dependencies.
func NewAwardFlowSaga(
	takeRepo take.Repository,
	profileRepo profile.Repository,
	achievementRepo achievement.Repository,
	eventBus shared.EventPublisher,
	idGenerator IDGenerator,
	config AwardFlowConfig,
) *AwardFlowSaga {
	if config.FanOutConcurrency <= 0 {
		config.FanOutConcurrency = DefaultAwardFlowConfig().FanOutConcurrency
	}
	if config.MaxSubjectsPerRun <= 0 {
		config.MaxSubjectsPerRun = DefaultAwardFlowConfig().MaxSubjectsPerRun
	}
	return &AwardFlowSaga{
		takeRepo:          takeRepo,
		profileRepo:       profileRepo,
		achievementRepo:   achievementRepo,
		eventBus:          eventBus,
		idGenerator:       idGenerator,
		fanOutConcurrency: config.FanOutConcurrency,
		maxSubjectsPerRun: config.MaxSubjectsPerRun,
	}
}

// CheckAndAward re-derives and awards milestones for a single subject.
func (s *AwardFlowSaga) CheckAndAward(ctx context.Context, input AwardCheckInput) (*AwardCheckResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Step 1: Resolve the profile reference if the caller did not have one.
	profileRef := input.ProfileRef
	if profileRef == "" {
		p, err := s.profileRepo.FindByPhone(ctx, input.SubjectKey)
		switch {
		case err == nil:
			profileRef = p.ID
		case shared.IsNotFound(err):
			// No profile: milestones are keyed by subject for legacy rows.
		default:
			return nil, s.wrapStepError(StepCollectSubjects, input.SubjectKey, err)
		}
	}

	// Step 2: Load the full take history and re-derive the lifetime total.
	history, err := s.takeRepo.FindBySubject(ctx, input.SubjectKey)
	if err != nil {
		return nil, s.wrapStepError(StepLoadHistory, input.SubjectKey, err)
	}
	totalPoints := take.SumPoints(history)

	result := &AwardCheckResult{
		SubjectKey:  input.SubjectKey,
		ProfileRef:  profileRef,
		TotalPoints: totalPoints,
	}
	if totalPoints < achievement.ThresholdStep {
		return result, nil
	}

	// Step 3: Diff crossed thresholds against already-awarded keys.
	existing, err := s.achievementRepo.ExistingKeys(ctx, profileRef, input.SubjectKey)
	if err != nil {
		return nil, s.wrapStepError(StepDiffThresholds, input.SubjectKey, err)
	}
	missing := achievement.MissingThresholds(totalPoints, existing)
	if len(missing) == 0 {
		return result, nil
	}

	// Step 4: Insert the new rows. The unique index on (profile_ref, key)
	// makes a lost race a silent no-op, so CreatedKeys reflects reality.
	rows := make([]achievement.Achievement, 0, len(missing))
	for _, m := range missing {
		rows = append(rows, achievement.NewMilestoneAchievement(s.idGenerator.GenerateID(), profileRef, input.SubjectKey, m))
	}
	created, err := s.achievementRepo.InsertBatch(ctx, rows)
	if err != nil {
		return nil, s.wrapStepError(StepInsertRows, input.SubjectKey, err)
	}
	result.CreatedKeys = created

	// Step 5: Publish one event per actually created row.
	// Non-critical - events can be replayed from storage.
	if s.eventBus != nil {
		for _, key := range created {
			threshold, parseErr := achievement.ParseMilestoneKey(key)
			if parseErr != nil {
				continue
			}
			_ = s.eventBus.Publish(shared.NewMilestoneAwardedEvent(string(profileRef), key, threshold))
		}
	}

	return result, nil
}

// AwardForUpdatedProps fans the milestone check out over every subject whose
// takes were touched by grading the given props.
//
// One failing subject never aborts the others: failures are collected in the
// per-subject outcomes and reported together. The error return distinguishes
// "some checks failed" (shared.ErrPartialBatchFailure, result still usable)
// from "the pass could not run at all".
func (s *AwardFlowSaga) AwardForUpdatedProps(ctx context.Context, propIDs []shared.PropID) (*AwardBatchResult, error) {
	if len(propIDs) == 0 {
		return &AwardBatchResult{ProcessedAt: time.Now().UTC()}, nil
	}

	// Step 1: Collect affected subjects, with any direct profile links.
	subjects, err := s.takeRepo.FindSubjectsByProps(ctx, propIDs)
	if err != nil {
		return nil, s.wrapStepError(StepCollectSubjects, "", err)
	}

	inputs := make([]AwardCheckInput, 0, len(subjects))
	for subjectKey, profileRef := range subjects {
		inputs = append(inputs, AwardCheckInput{SubjectKey: subjectKey, ProfileRef: profileRef})
	}

	// Per-run cutoff: stop issuing new work past the limit, never mid-check.
	truncated := false
	if len(inputs) > s.maxSubjectsPerRun {
		inputs = inputs[:s.maxSubjectsPerRun]
		truncated = true
	}

	outcomes := s.fanOut(ctx, inputs)

	// A cancelled context stops the fan-out early; the unchecked remainder
	// needs another pass just like a cutoff does.
	if len(outcomes) < len(inputs) {
		truncated = true
	}

	result := &AwardBatchResult{
		PropIDs:     propIDs,
		Outcomes:    outcomes,
		Truncated:   truncated,
		ProcessedAt: time.Now().UTC(),
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			result.FailedCount++
			continue
		}
		result.CreatedCount += len(outcome.Result.CreatedKeys)
	}

	// Batch report is non-critical.
	if s.eventBus != nil {
		_ = s.eventBus.Publish(shared.NewAwardBatchDoneEvent(
			fmt.Sprintf("award-batch-%d", result.ProcessedAt.UnixNano()),
			len(propIDs), len(outcomes), result.CreatedCount, result.FailedCount, truncated,
		))
	}

	if result.FailedCount > 0 {
		return result, shared.WrapError("achievement", "AwardForUpdatedProps",
			shared.ErrPartialBatchFailure,
			fmt.Sprintf("%d of %d subject checks failed", result.FailedCount, len(outcomes)),
			nil)
	}
	return result, nil
}

// fanOut runs subject checks on a bounded worker pool. A cancelled context
// stops new work from being issued; in-flight checks finish and report.
func (s *AwardFlowSaga) fanOut(ctx context.Context, inputs []AwardCheckInput) []AwardBatchOutcome {
	if len(inputs) == 0 {
		return nil
	}

	workers := s.fanOutConcurrency
	if workers > len(inputs) {
		workers = len(inputs)
	}

	work := make(chan AwardCheckInput)
	outcomes := make([]AwardBatchOutcome, 0, len(inputs))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for input := range work {
				result, err := s.CheckAndAward(ctx, input)
				outcome := AwardBatchOutcome{SubjectKey: input.SubjectKey, Result: result, Err: err}
				if err != nil {
					outcome.Result = nil
				}
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}()
	}

	for _, input := range inputs {
		select {
		case <-ctx.Done():
			// Stop issuing new work; already queued checks drain normally.
			close(work)
			wg.Wait()
			return outcomes
		case work <- input:
		}
	}
	close(work)
	wg.Wait()

	return outcomes
}

// wrapStepError attaches the failed step and subject to a downstream error.
func (s *AwardFlowSaga) wrapStepError(step AwardFlowStep, subject shared.SubjectKey, err error) error {
	msg := fmt.Sprintf("step %s failed", step)
	if subject != "" {
		msg = fmt.Sprintf("step %s failed for subject %s", step, subject)
	}
	return shared.WrapError("achievement", "AwardFlow", shared.ErrBackendUnavailable, msg, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowSagaBuilder helps construct the award flow saga with a fluent API.
type AwardFlowSagaBuilder struct {
	takeRepo        take.Repository
	profileRepo     profile.Repository
	achievementRepo achievement.Repository
	eventBus        shared.EventPublisher
	idGenerator     IDGenerator
	config          AwardFlowConfig
}

// NewAwardFlowSagaBuilder creates a new builder with default configuration.
func NewAwardFlowSagaBuilder() *AwardFlowSagaBuilder {
	return &AwardFlowSagaBuilder{config: DefaultAwardFlowConfig()}
}

// WithTakeRepository sets the take repository.
func (b *AwardFlowSagaBuilder) WithTakeRepository(repo take.Repository) *AwardFlowSagaBuilder {
	b.takeRepo = repo
	return b
}

// WithProfileRepository sets the profile repository.
func (b *AwardFlowSagaBuilder) WithProfileRepository(repo profile.Repository) *AwardFlowSagaBuilder {
	b.profileRepo = repo
	return b
}

// WithAchievementRepository sets the achievement repository.
func (b *AwardFlowSagaBuilder) WithAchievementRepository(repo achievement.Repository) *AwardFlowSagaBuilder {
	b.achievementRepo = repo
	return b
}

// WithEventBus sets the event publisher.
func (b *AwardFlowSagaBuilder) WithEventBus(bus shared.EventPublisher) *AwardFlowSagaBuilder {
	b.eventBus = bus
	return b
}

// WithIDGenerator sets the ID generator.
func (b *AwardFlowSagaBuilder) WithIDGenerator(gen IDGenerator) *AwardFlowSagaBuilder {
	b.idGenerator = gen
	return b
}

// WithConfig sets the configuration.
func (b *AwardFlowSagaBuilder) WithConfig(config AwardFlowConfig) *AwardFlowSagaBuilder {
	b.config = config
	return b
}

// Build constructs the saga.
func (b *AwardFlowSagaBuilder) Build() *AwardFlowSaga {
	return NewAwardFlowSaga(b.takeRepo, b.profileRepo, b.achievementRepo, b.eventBus, b.idGenerator, b.config)
}
