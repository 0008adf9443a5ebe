package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
	"commrouter/internal/telephony"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commrouter.db")
	db, err := New(models.DatabaseConfig{Path: path, EncryptionSecret: testSecret})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewRejectsInvalidPaths(t *testing.T) {
	_, err := New(models.DatabaseConfig{Path: ""})
	assert.Error(t, err)

	_, err = New(models.DatabaseConfig{Path: "../outside.db"})
	assert.Error(t, err)

	_, err = New(models.DatabaseConfig{Path: filepath.Join(t.TempDir(), "x.db"), EncryptionSecret: "short"})
	assert.Error(t, err)
}

func TestNewCreatesFileWithRestrictedPermissions(t *testing.T) {
	_, path := newTestDB(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, db.Ping(context.Background()))
}

func TestProgramLookups(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	end := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	program := &models.Program{
		ID:                    "prog-1",
		Name:                  "Spring Campaign",
		DirectEmailIdentifier: "spring",
		DirectPhoneIdentifier: "15551234567",
		EndDate:               &end,
		ProgramFallbackID:     "prog-2",
		TeamID:                "team-1",
		PropertyID:            "prop-1",
		Timezone:              "America/Chicago",
		Forwarding: models.ProgramForwarding{
			Enabled:     true,
			EmailTarget: "ext@x.com",
		},
	}
	require.NoError(t, db.SaveProgram(ctx, program))

	byID, err := db.GetProgramByID(ctx, "prog-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Spring Campaign", byID.Name)
	assert.Equal(t, "prog-2", byID.ProgramFallbackID)
	assert.True(t, byID.EndDate.Equal(end))
	assert.True(t, byID.Forwarding.Enabled)
	assert.Equal(t, "ext@x.com", byID.Forwarding.EmailTarget)
	assert.Empty(t, byID.Forwarding.SMSTarget)

	byPhone, err := db.GetProgramByPhone(ctx, "15551234567")
	require.NoError(t, err)
	require.NotNil(t, byPhone)
	assert.Equal(t, "prog-1", byPhone.ID)

	byEmail, err := db.GetProgramByEmailIdentifier(ctx, "spring")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "prog-1", byEmail.ID)

	missing, err := db.GetProgramByPhone(ctx, "10000000000")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func saveTeamWithAgents(t *testing.T, db *Database, team *models.Team, names ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.SaveTeam(ctx, team))
	for _, name := range names {
		userID := "user-" + name
		require.NoError(t, db.SaveAgent(ctx,
			&models.Agent{UserID: userID, FullName: name, Active: true, Endpoints: []string{"sip:" + name}, HasLARole: true},
			&models.TeamMember{ID: team.ID + ":" + userID, TeamID: team.ID, UserID: userID},
		))
	}
}

func TestTeamsAndAgents(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	team := &models.Team{
		ID:                   "team-1",
		Name:                 "Leasing",
		CallRoutingStrategy:  models.CallRoutingRoundRobin,
		PartyRoutingStrategy: models.PartyRoutingDispatcher,
		Metadata:             models.TeamMetadata{DispatcherUserID: "user-Dana"},
		Timezone:             "America/New_York",
		OfficeHours:          &models.OfficeHours{Start: "09:00", End: "17:00"},
	}
	saveTeamWithAgents(t, db, team, "Bob", "Alice")

	loaded, err := db.GetTeam(ctx, "team-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.ModuleLeasing, loaded.Module)
	assert.Equal(t, models.CallRoutingRoundRobin, loaded.CallRoutingStrategy)
	assert.Equal(t, "user-Dana", loaded.Metadata.DispatcherUserID)
	require.NotNil(t, loaded.OfficeHours)
	assert.Equal(t, "09:00", loaded.OfficeHours.Start)

	agents, err := db.ListTeamAgents(ctx, "team-1")
	require.NoError(t, err)
	assert.Len(t, agents, 2)
	for _, a := range agents {
		assert.True(t, a.Active)
		assert.True(t, a.HasLARole)
		assert.Equal(t, models.AgentAvailable, a.Status)
		assert.Len(t, a.Endpoints, 1)
	}

	require.NoError(t, db.SetAgentStatus(ctx, "user-Bob", models.AgentBusy))
	bob, err := db.GetAgent(ctx, "user-Bob")
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.Equal(t, models.AgentBusy, bob.Status)
	assert.Equal(t, "team-1", bob.TeamID)

	missing, err := db.GetAgent(ctx, "user-nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInactiveMembershipIsNotActive(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTeam(ctx, &models.Team{ID: "team-1", Name: "Leasing"}))
	require.NoError(t, db.SaveAgent(ctx,
		&models.Agent{UserID: "user-1", FullName: "Eve", Active: true, Endpoints: []string{"sip:eve"}},
		&models.TeamMember{ID: "tm-1", TeamID: "team-1", UserID: "user-1", DirectPhoneIdentifier: "15550009999", Inactive: true},
	))

	agents, err := db.ListTeamAgents(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].Active)

	member, err := db.GetTeamMemberByPhone(ctx, "15550009999")
	assert.NoError(t, err)
	assert.Nil(t, member)
}

func TestUpdateTeamRotationCompareAndSwap(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveTeam(ctx, &models.Team{ID: "team-1", Name: "Leasing"}))

	team, err := db.GetTeam(ctx, "team-1")
	require.NoError(t, err)

	ok, err := db.UpdateTeamRotation(ctx, "team-1", team.Version, "user-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.UpdateTeamRotation(ctx, "team-1", team.Version, "user-b")
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not win")

	reloaded, err := db.GetTeam(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, "user-a", reloaded.Metadata.LastAssignedUser)
	assert.Equal(t, team.Version+1, reloaded.Version)
}

func TestRoundRobinPointerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rotation.db")
	cfg := models.DatabaseConfig{Path: path}

	db, err := New(cfg)
	require.NoError(t, err)
	saveTeamWithAgents(t, db, &models.Team{
		ID:                  "team-rr",
		Name:                "Round Robin",
		CallRoutingStrategy: models.CallRoutingRoundRobin,
	}, "Alice", "Bob", "Carol")

	pick := func(store telephony.Store) string {
		team, err := store.GetTeam(ctx, "team-rr")
		require.NoError(t, err)
		receivers, err := telephony.NewDistributor(store, 5, quietLogger()).SelectCallReceivers(ctx, team)
		require.NoError(t, err)
		require.Len(t, receivers.UserIDs, 1)
		return receivers.UserIDs[0]
	}

	assert.Equal(t, "user-Alice", pick(db))
	require.NoError(t, db.Close())

	reopened, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, "user-Bob", pick(reopened))
	assert.Equal(t, "user-Carol", pick(reopened))
	assert.Equal(t, "user-Alice", pick(reopened))
}

func TestPersonsAndParties(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePerson(ctx, "person-1", "Pat Doe", []string{"pat@example.com"}, []string{"15550001111"}))
	require.NoError(t, db.SavePerson(ctx, "person-2", "Sam Doe", []string{"sam@example.com"}, nil))

	ids, err := db.GetPersonIDsByContact(ctx, "pat@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"person-1"}, ids)

	ids, err = db.GetPersonIDsByContact(ctx, "15550001111")
	require.NoError(t, err)
	assert.Equal(t, []string{"person-1"}, ids)

	ids, err = db.GetPersonIDsByContact(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, ids)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	require.NoError(t, db.SaveParty(ctx, &models.Party{
		ID: "party-old", WorkflowState: models.WorkflowClosed, State: models.PartyStateLead,
		OwnerTeamID: "team-1", PartyGroupID: "group-1", PersonIDs: []string{"person-1"},
		CreatedAt: older, UpdatedAt: older,
	}, ""))
	require.NoError(t, db.SaveParty(ctx, &models.Party{
		ID: "party-new", State: models.PartyStateApplicant,
		OwnerTeamID: "team-1", PartyGroupID: "group-1", Teams: []string{"team-2"},
		PersonIDs: []string{"person-1", "person-2"}, CreatedAt: newer, UpdatedAt: newer,
	}, "party-new-alias"))

	parties, err := db.GetPartiesForPersons(ctx, []string{"person-1", "person-2"})
	require.NoError(t, err)
	require.Len(t, parties, 2)
	assert.Equal(t, "party-new", parties[0].ID)
	assert.Equal(t, models.WorkflowActive, parties[0].WorkflowState)
	assert.Equal(t, []string{"person-1", "person-2"}, parties[0].PersonIDs)
	assert.Equal(t, []string{"team-2"}, parties[0].Teams)
	assert.True(t, parties[1].IsClosed())

	none, err := db.GetPartiesForPersons(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, none)

	byEmail, err := db.GetPartyByEmailIdentifier(ctx, "party-new-alias")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "party-new", byEmail.ID)

	active, err := db.GetActivePartyInGroup(ctx, "group-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "party-new", active.ID)

	assigned, err := db.AssignPartyOwner(ctx, "party-new", "user-1")
	require.NoError(t, err)
	assert.True(t, assigned)

	assigned, err = db.AssignPartyOwner(ctx, "party-new", "user-2")
	require.NoError(t, err)
	assert.False(t, assigned, "an owned party keeps its owner")

	party, err := db.GetParty(ctx, "party-new")
	require.NoError(t, err)
	assert.Equal(t, "user-1", party.UserID)
}

func TestContactsAreEncryptedAtRest(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SavePerson(ctx, "person-1", "Pat", []string{"pat@example.com"}, nil))

	var stored string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT value FROM contact_infos WHERE person_id = ?`, "person-1").Scan(&stored))
	assert.NotEqual(t, "pat@example.com", stored)
	assert.NotContains(t, stored, "example.com")
}

func TestCommunicationRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveParty(ctx, &models.Party{ID: "party-1", PersonIDs: []string{"person-1"}}, ""))

	comm := &models.Communication{
		ID:         "comm-1",
		MessageID:  "<abc@mail>",
		ThreadID:   "thread-1",
		Channel:    models.ChannelEmail,
		PartyIDs:   []string{"party-1"},
		PersonIDs:  []string{"person-1"},
		TeamIDs:    []string{"team-1"},
		ProgramID:  "prog-1",
		From:       "pat@example.com",
		Text:       "Is the unit still available?",
		Category:   models.CategoryUserCommunication,
		TargetType: string(models.TargetParty),
		TargetID:   "party-1",
	}
	require.NoError(t, db.SaveCommunication(ctx, comm))

	loaded, err := db.GetCommunication(ctx, "comm-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.DirectionIn, loaded.Direction)
	assert.Equal(t, "pat@example.com", loaded.From)
	assert.Equal(t, "Is the unit still available?", loaded.Text)
	assert.Equal(t, []string{"party-1"}, loaded.PartyIDs)
	assert.Equal(t, []string{"person-1"}, loaded.PersonIDs)
	assert.Equal(t, []string{"team-1"}, loaded.TeamIDs)

	byMessage, err := db.GetCommunicationByMessageID(ctx, "<abc@mail>")
	require.NoError(t, err)
	require.NotNil(t, byMessage)
	assert.Equal(t, "comm-1", byMessage.ID)

	parties, err := db.GetPartiesByThread(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, "party-1", parties[0].ID)

	n, err := db.CountCommunicationsByMessageID(ctx, "<abc@mail>")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var rawText string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT message FROM communications WHERE id = ?`, "comm-1").Scan(&rawText))
	assert.NotEqual(t, comm.Text, rawText)

	require.NoError(t, db.SetCallStatus(ctx, "comm-1", models.DialAnswered))
	var status string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT call_status FROM communications WHERE id = ?`, "comm-1").Scan(&status))
	assert.Equal(t, string(models.DialAnswered), status)

	missing, err := db.GetCommunicationByMessageID(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestForwardedCommunicationIsRecordedOnce(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	record := &models.ForwardedCommunication{
		ID:           "fwd-1",
		Type:         models.ChannelEmail,
		MessageID:    "m-1",
		ProgramID:    "prog-1",
		Message:      "hello",
		ForwardedTo:  "ext@x.com",
		ReceivedFrom: "pat@example.com",
		Status:       models.ForwardedSent,
	}
	require.NoError(t, db.SaveForwardedCommunication(ctx, record))

	again := *record
	again.ID = "fwd-2"
	err := db.SaveForwardedCommunication(ctx, &again)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicateMessage, apperrors.GetCode(err))

	n, err := db.CountForwardedCommunications(ctx, "prog-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestForwardedCommunicationStatusUpdate(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveForwardedCommunication(ctx, &models.ForwardedCommunication{
		ID:          "fwd-1",
		Type:        models.ChannelSMS,
		MessageID:   "SM-1",
		ProgramID:   "prog-1",
		Message:     "hello",
		ForwardedTo: "15559990000",
		Status:      models.ForwardedPending,
	}))
	require.NoError(t, db.UpdateForwardedStatus(ctx, "fwd-1", models.ForwardedSent))

	stored, err := db.GetForwardedCommunication(ctx, "SM-1", "15559990000")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "fwd-1", stored.ID)
	assert.Equal(t, models.ForwardedSent, stored.Status)
	assert.Equal(t, "hello", stored.Message)
	assert.Empty(t, stored.ReceivedFrom)

	other, err := db.GetForwardedCommunication(ctx, "SM-1", "15550000000")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRelayMessageLookup(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveRelayMessage(ctx, &models.RelayMessage{
		MessageID:         "relay-1",
		ForwardMessageID:  "relay-1-fwd",
		ThreadID:          "thread-9",
		SenderPersonID:    "person-a",
		RecipientPersonID: "person-b",
	}))

	for _, id := range []string{"relay-1", "relay-1-fwd"} {
		relay, err := db.GetRelayMessage(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, relay, id)
		assert.Equal(t, "thread-9", relay.ThreadID)
	}

	missing, err := db.GetRelayMessage(ctx, "unknown")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClaimMessageWindow(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	window := 5 * time.Minute

	claimed, err := db.ClaimMessage(ctx, "m-1", window)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = db.ClaimMessage(ctx, "m-1", window)
	require.NoError(t, err)
	assert.False(t, claimed, "redelivery inside the window is a duplicate")

	now = now.Add(window + time.Second)
	claimed, err = db.ClaimMessage(ctx, "m-1", window)
	require.NoError(t, err)
	assert.True(t, claimed, "the window has passed")

	require.NoError(t, db.ReleaseMessage(ctx, "m-1"))
	claimed, err = db.ClaimMessage(ctx, "m-1", window)
	require.NoError(t, err)
	assert.True(t, claimed, "a released claim can be taken again")

	now = now.Add(time.Hour)
	purged, err := db.PurgeProcessed(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
