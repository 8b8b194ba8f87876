package saga

import (
	"context"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE GRADED → AWARD CHECK HANDLER
// Bridges the grading events onto the award flow: the winner of a freshly
// graded scope gets a milestone re-derivation immediately instead of waiting
// for the next periodic sweep.
// ══════════════════════════════════════════════════════════════════════════════

// NewScopeGradedAwardHandler returns an event handler that runs a milestone
// check for the winner carried by a scope-graded event. Events without a
// winner are ignored.
func NewScopeGradedAwardHandler(ctx context.Context, flow *AwardFlowSaga) shared.EventHandler {
	return func(event shared.Event) error {
		subject, profileRef := winnerFromGradedEvent(event)
		if subject == "" {
			return nil
		}

		_, err := flow.CheckAndAward(ctx, AwardCheckInput{
			SubjectKey: shared.SubjectKey(subject),
			ProfileRef: shared.ProfileID(profileRef),
		})
		return err
	}
}

// winnerFromGradedEvent extracts the winner reference from a grading event.
// Locally published events arrive as the concrete value type; events relayed
// from another instance only carry the generic payload, so the payload keys
// are the fallback.
func winnerFromGradedEvent(event shared.Event) (subject, profileRef string) {
	if graded, ok := event.(shared.ScopeGradedEvent); ok {
		return graded.WinnerSubject, graded.WinnerProfileID
	}

	payload := event.Payload()
	subject, _ = payload["winner_subject"].(string)
	profileRef, _ = payload["winner_profile_id"].(string)
	return subject, profileRef
}
