package saga

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/internal/domain/take"
	"github.com/propshub/props-scoring-engine/internal/infrastructure/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payloadOnlyEvent mimics an event relayed from another instance: the
// concrete type is lost, only the generic payload survives.
type payloadOnlyEvent struct {
	eventType shared.EventType
	payload   map[string]interface{}
}

func (e payloadOnlyEvent) EventType() shared.EventType     { return e.eventType }
func (e payloadOnlyEvent) OccurredAt() time.Time           { return time.Now() }
func (e payloadOnlyEvent) AggregateID() string             { return "" }
func (e payloadOnlyEvent) Payload() map[string]interface{} { return e.payload }

func syncTestBus() *messaging.InMemoryEventBus {
	return messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestScopeGradedAwardHandler_AwardsWinnerViaBus(t *testing.T) {
	takes := &fakeTakeRepo{bySubject: map[shared.SubjectKey][]take.Take{
		"+77001": history(1500),
	}}
	achievements := newFakeAchievementRepo()
	awardBus := &fakePublisher{}
	flow := newSaga(takes, &fakeProfileRepo{}, achievements, awardBus, AwardFlowConfig{})

	bus := syncTestBus()
	defer bus.Close()
	require.NoError(t, bus.Subscribe(shared.EventScopeGradedWithWinner,
		NewScopeGradedAwardHandler(context.Background(), flow)))

	err := bus.Publish(shared.NewScopeGradedEvent("pack:p1", "+77001", "", 1500))
	require.NoError(t, err)

	keys, err := achievements.ExistingKeys(context.Background(), "", "+77001")
	require.NoError(t, err)
	assert.Contains(t, keys, "points_1000")
	assert.Len(t, awardBus.byType(shared.EventMilestoneAwarded), 1)
}

func TestScopeGradedAwardHandler_ResolvesProfileRefFromEvent(t *testing.T) {
	takes := &fakeTakeRepo{bySubject: map[shared.SubjectKey][]take.Take{
		"+77001": history(1200),
	}}
	achievements := newFakeAchievementRepo()
	flow := newSaga(takes, &fakeProfileRepo{}, achievements, &fakePublisher{}, AwardFlowConfig{})

	handler := NewScopeGradedAwardHandler(context.Background(), flow)
	err := handler(shared.NewScopeGradedEvent("pack:p1", "+77001", "a1b2c3d4-0000-0000-0000-000000000001", 1200))

	require.NoError(t, err)
	keys, err := achievements.ExistingKeys(context.Background(), "a1b2c3d4-0000-0000-0000-000000000001", "")
	require.NoError(t, err)
	assert.Contains(t, keys, "points_1000")
}

func TestScopeGradedAwardHandler_PayloadOnlyEvent(t *testing.T) {
	takes := &fakeTakeRepo{bySubject: map[shared.SubjectKey][]take.Take{
		"+77002": history(2100),
	}}
	achievements := newFakeAchievementRepo()
	flow := newSaga(takes, &fakeProfileRepo{}, achievements, &fakePublisher{}, AwardFlowConfig{})

	handler := NewScopeGradedAwardHandler(context.Background(), flow)
	err := handler(payloadOnlyEvent{
		eventType: shared.EventScopeGradedWithWinner,
		payload: map[string]interface{}{
			"scope_ref":         "pack:p1",
			"winner_subject":    "+77002",
			"winner_profile_id": "",
			"winner_points":     2100,
		},
	})

	require.NoError(t, err)
	keys, err := achievements.ExistingKeys(context.Background(), "", "+77002")
	require.NoError(t, err)
	assert.Contains(t, keys, "points_2000")
}

func TestScopeGradedAwardHandler_NoWinnerIsNoop(t *testing.T) {
	achievements := newFakeAchievementRepo()
	flow := newSaga(&fakeTakeRepo{}, &fakeProfileRepo{}, achievements, &fakePublisher{}, AwardFlowConfig{})

	handler := NewScopeGradedAwardHandler(context.Background(), flow)
	err := handler(shared.NewScopeGradedEvent("pack:p1", "", "", 0))

	require.NoError(t, err)
	assert.Empty(t, achievements.rows)
}
