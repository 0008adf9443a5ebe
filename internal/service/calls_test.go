package service

import (
	"context"
	"testing"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/events"
	"commrouter/internal/metrics"
	"commrouter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCallFixture() (*CallService, *mockStore, *mockCallRouter, *recordingPublisher, *metrics.Registry) {
	store, router, publisher, registry := &mockStore{}, &mockCallRouter{}, &recordingPublisher{}, metrics.NewRegistry()
	return NewCallService(store, router, publisher, registry, quietLogger()), store, router, publisher, registry
}

func TestCallReceivers(t *testing.T) {
	s, store, router, _, registry := newCallFixture()
	team := &models.Team{ID: "team-1", CallRoutingStrategy: models.CallRoutingCallCenter}
	store.On("GetTeam", mock.Anything, "team-1").Return(team, nil)
	router.On("SelectCallReceivers", mock.Anything, team).
		Return(models.Receivers{Type: models.ReceiverCallCenter, Endpoints: []string{"+15550100000"}}, nil)

	receivers, err := s.Receivers(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReceiverCallCenter, receivers.Type)
	assert.Equal(t, float64(1), counterValue(registry, metrics.CallReceiversTotal+"_type:CALL_CENTER"))
}

func TestCallReceiversUnknownTeam(t *testing.T) {
	s, store, router, _, _ := newCallFixture()
	store.On("GetTeam", mock.Anything, "missing").Return(nil, nil)

	_, err := s.Receivers(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	router.AssertNotCalled(t, "SelectCallReceivers", mock.Anything, mock.Anything)

	_, err = s.Receivers(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))
}

func TestDialOutcomeAnnouncesNewOwner(t *testing.T) {
	s, store, router, publisher, registry := newCallFixture()
	store.On("GetParty", mock.Anything, "party-1").Return(&models.Party{ID: "party-1"}, nil)
	outcome := models.DialOutcome{State: models.DialNoAnswer, AgentID: "user-a"}
	router.On("OnDialOutcome", mock.Anything, "party-1", "comm-1", outcome, "team-1").
		Return(models.DialResolution{PartyOwner: "user-b", Announcement: models.AnnouncementUnavailable, Escalated: true}, nil)

	resolution, err := s.DialOutcome(context.Background(), DialOutcomeRequest{
		CommunicationID: "comm-1",
		PartyID:         "party-1",
		TeamID:          "team-1",
		Outcome:         outcome,
	})
	require.NoError(t, err)
	assert.True(t, resolution.Escalated)
	assert.Equal(t, "user-b", resolution.PartyOwner)

	require.Equal(t, []string{events.TypePartyOwnerAssigned}, publisher.types())
	data := publisher.envelopes[0].Data.(events.PartyOwnerAssigned)
	assert.Equal(t, "escalated", data.Reason)
	assert.Equal(t, "user-b", data.UserID)
	assert.Equal(t, float64(1), counterValue(registry, metrics.DialOutcomesTotal+"_escalated:true_state:NO_ANSWER"))
}

func TestDialOutcomeExistingOwnerIsQuiet(t *testing.T) {
	s, store, router, publisher, _ := newCallFixture()
	store.On("GetParty", mock.Anything, "party-1").Return(&models.Party{ID: "party-1", UserID: "user-a"}, nil)
	outcome := models.DialOutcome{State: models.DialAnswered, AgentID: "user-a"}
	router.On("OnDialOutcome", mock.Anything, "party-1", "comm-1", outcome, "").
		Return(models.DialResolution{PartyOwner: "user-a"}, nil)

	_, err := s.DialOutcome(context.Background(), DialOutcomeRequest{CommunicationID: "comm-1", PartyID: "party-1", Outcome: outcome})
	require.NoError(t, err)
	assert.Empty(t, publisher.types())
}

func TestDialOutcomeValidation(t *testing.T) {
	s, store, router, _, _ := newCallFixture()

	_, err := s.DialOutcome(context.Background(), DialOutcomeRequest{Outcome: models.DialOutcome{State: models.DialRinging}})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))

	store.On("GetParty", mock.Anything, "ghost").Return(nil, nil)
	_, err = s.DialOutcome(context.Background(), DialOutcomeRequest{CommunicationID: "comm-1", PartyID: "ghost"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	router.AssertNotCalled(t, "OnDialOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
