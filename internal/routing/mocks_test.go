package routing

import (
	"context"
	"io"

	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetProgramByID(ctx context.Context, id string) (*models.Program, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *mockStore) GetProgramByPhone(ctx context.Context, phone string) (*models.Program, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *mockStore) GetProgramByEmailIdentifier(ctx context.Context, identifier string) (*models.Program, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *mockStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

func (m *mockStore) GetTeamMemberByPhone(ctx context.Context, phone string) (*models.TeamMember, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func (m *mockStore) GetTeamMemberByEmailIdentifier(ctx context.Context, identifier string) (*models.TeamMember, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

func (m *mockStore) GetPartyByEmailIdentifier(ctx context.Context, identifier string) (*models.Party, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *mockStore) GetOutsideDedicatedEmailTarget(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockStore) GetRelayAliasPerson(ctx context.Context, alias string) (string, error) {
	args := m.Called(ctx, alias)
	return args.String(0), args.Error(1)
}

func (m *mockStore) GetPersonIDsByContact(ctx context.Context, contact string) ([]string, error) {
	args := m.Called(ctx, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) GetPartiesForPersons(ctx context.Context, personIDs []string) ([]models.Party, error) {
	args := m.Called(ctx, personIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Party), args.Error(1)
}

func (m *mockStore) GetParty(ctx context.Context, id string) (*models.Party, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *mockStore) GetPartiesByThread(ctx context.Context, threadID string) ([]models.Party, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Party), args.Error(1)
}

func (m *mockStore) GetActivePartyInGroup(ctx context.Context, partyGroupID string) (*models.Party, error) {
	args := m.Called(ctx, partyGroupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *mockStore) GetCommunication(ctx context.Context, id string) (*models.Communication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Communication), args.Error(1)
}

func (m *mockStore) GetCommunicationByMessageID(ctx context.Context, messageID string) (*models.Communication, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Communication), args.Error(1)
}

func (m *mockStore) GetRelayMessage(ctx context.Context, messageID string) (*models.RelayMessage, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RelayMessage), args.Error(1)
}

func (m *mockStore) SaveForwardedCommunication(ctx context.Context, record *models.ForwardedCommunication) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockStore) GetForwardedCommunication(ctx context.Context, messageID, forwardedTo string) (*models.ForwardedCommunication, error) {
	args := m.Called(ctx, messageID, forwardedTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ForwardedCommunication), args.Error(1)
}

func (m *mockStore) UpdateForwardedStatus(ctx context.Context, id string, status models.ForwardedStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// emptyDirectory makes every address lookup miss unless a test overrides it first.
func emptyDirectory(m *mockStore) {
	m.On("GetOutsideDedicatedEmailTarget", mock.Anything, mock.Anything).Return("", nil).Maybe()
	m.On("GetRelayAliasPerson", mock.Anything, mock.Anything).Return("", nil).Maybe()
	m.On("GetPartyByEmailIdentifier", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetProgramByEmailIdentifier", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetTeamMemberByEmailIdentifier", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetProgramByPhone", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetTeamMemberByPhone", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetRelayMessage", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	m.On("GetTeam", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
}
