package routing

import (
	"context"
	"testing"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(values ...string) []models.Identifier {
	out := make([]models.Identifier, 0, len(values))
	for _, v := range values {
		out = append(out, models.Identifier{Value: v, Provenance: models.ProvenanceDirect})
	}
	return out
}

func newTestTargetResolver(store *mockStore) *TargetResolver {
	return NewTargetResolver(store, newTestProgramResolver(store), newTestLogger())
}

func TestSelectPrimaryTarget(t *testing.T) {
	party := models.PartyTarget{ID: "party-1"}
	program := models.ProgramTarget{Program: &models.Program{ID: "prog-1"}}
	member := models.TeamMemberTarget{ID: "tm-1"}
	individual := models.IndividualTarget{PersonID: "person-1"}

	tests := []struct {
		name     string
		to, cc   []models.Target
		wantID   string
		wantRule string
	}{
		{"party in cc dominates", []models.Target{program}, []models.Target{party}, "party-1", "PartyTarget"},
		{"single to and single cc", []models.Target{member}, []models.Target{program}, "tm-1", "SingleTarget"},
		{"program over member", []models.Target{member, program}, nil, "prog-1", "ProgramTarget"},
		{"member over individual", []models.Target{individual}, []models.Target{member, member}, "tm-1", "TeamMemberTarget"},
		{"first individual", nil, []models.Target{individual}, "person-1", "FirstIndividual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, rule := SelectPrimaryTarget(tt.to, tt.cc)
			require.NotNil(t, target)
			assert.Equal(t, tt.wantID, target.TargetID())
			assert.Equal(t, tt.wantRule, rule)
		})
	}

	target, rule := SelectPrimaryTarget(nil, nil)
	assert.Nil(t, target)
	assert.Empty(t, rule)
}

func TestTargetResolverPartyDominatesProgram(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetPartyByEmailIdentifier", ctx, "party.abc").
		Return(&models.Party{ID: "party-1", WorkflowState: models.WorkflowActive, OwnerTeamID: "team-1"}, nil)
	store.On("GetProgramByEmailIdentifier", ctx, "parkview").
		Return(&models.Program{ID: "prog-1", TeamID: "team-1"}, nil)
	emptyDirectory(store)

	target, err := newTestTargetResolver(store).Resolve(ctx, TargetRequest{
		Channel: models.ChannelEmail,
		To:      ids("parkview"),
		Cc:      ids("party.abc"),
	})
	require.NoError(t, err)
	pt, ok := target.(models.PartyTarget)
	require.True(t, ok)
	assert.Equal(t, "party-1", pt.ID)
	assert.Equal(t, "team-1", pt.TeamID)
}

func TestTargetResolverPhonePrefersProgram(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetProgramByPhone", ctx, "15552223333").Return(&models.Program{ID: "prog-1"}, nil)
	emptyDirectory(store)

	target, err := newTestTargetResolver(store).Resolve(ctx, TargetRequest{
		Channel: models.ChannelSMS,
		To:      ids("15552223333"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TargetProgram, target.Type())
	store.AssertNotCalled(t, "GetTeamMemberByPhone", ctx, "15552223333")
}

func TestTargetResolverTeamMemberByPhone(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetTeamMemberByPhone", ctx, "15552224444").
		Return(&models.TeamMember{ID: "tm-1", TeamID: "team-1", UserID: "user-1"}, nil)
	emptyDirectory(store)

	target, err := newTestTargetResolver(store).Resolve(ctx, TargetRequest{
		Channel: models.ChannelCall,
		To:      ids("15552224444"),
	})
	require.NoError(t, err)
	tm, ok := target.(models.TeamMemberTarget)
	require.True(t, ok)
	assert.Equal(t, "user-1", tm.UserID)
}

func TestTargetResolverNotFound(t *testing.T) {
	store := &mockStore{}
	emptyDirectory(store)

	_, err := newTestTargetResolver(store).Resolve(context.Background(), TargetRequest{
		Channel: models.ChannelEmail,
		To:      ids("unknown"),
		Cc:      ids("other"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeTargetNotFound))
	assert.True(t, apperrors.IsFatal(err))
}

func TestTargetResolverExplicitTeamUsesTransferredProgram(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetCommunication", ctx, "comm-1").Return(&models.Communication{ID: "comm-1", ProgramID: "prog-1"}, nil)
	store.On("GetProgramByID", ctx, "prog-1").Return(&models.Program{ID: "prog-1"}, nil)

	target, err := newTestTargetResolver(store).Resolve(ctx, TargetRequest{
		Channel:               models.ChannelCall,
		ToTeamID:              "team-2",
		TransferredFromCommID: "comm-1",
	})
	require.NoError(t, err)
	tt, ok := target.(models.TeamTarget)
	require.True(t, ok)
	assert.Equal(t, "team-2", tt.ID)
	require.NotNil(t, tt.Program)
	assert.Equal(t, "prog-1", tt.Program.ID)
}

func TestTargetResolverExplicitUser(t *testing.T) {
	target, err := newTestTargetResolver(&mockStore{}).Resolve(context.Background(), TargetRequest{
		Channel:  models.ChannelCall,
		ToUserID: "user-9",
	})
	require.NoError(t, err)
	assert.Equal(t, models.IndividualTarget{UserID: "user-9"}, target)
}

func TestTargetResolverRelayAlias(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetRelayAliasPerson", ctx, "relay-7f3a").Return("person-2", nil)
	emptyDirectory(store)

	target, err := newTestTargetResolver(store).Resolve(ctx, TargetRequest{
		Channel:        models.ChannelEmail,
		To:             ids("relay-7f3a"),
		PersonToPerson: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.IndividualTarget{PersonID: "person-2"}, target)
	store.AssertNotCalled(t, "GetPartyByEmailIdentifier", ctx, "relay-7f3a")
}
