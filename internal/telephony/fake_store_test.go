package telephony

import (
	"context"
	"io"
	"sync"

	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// fakeStore keeps telephony state in memory with the same compare-and-swap
// semantics as the SQLite store.
type fakeStore struct {
	mu          sync.Mutex
	teams       map[string]models.Team
	agents      []models.Agent
	parties     map[string]models.Party
	callStatus  map[string]models.DialState
	casFailures int
	casCalls    int
}

func newFakeStore(team models.Team, agents ...models.Agent) *fakeStore {
	for i := range agents {
		if agents[i].TeamID == "" {
			agents[i].TeamID = team.ID
		}
	}
	return &fakeStore{
		teams:      map[string]models.Team{team.ID: team},
		agents:     agents,
		parties:    make(map[string]models.Party),
		callStatus: make(map[string]models.DialState),
	}
}

func (s *fakeStore) GetTeam(_ context.Context, id string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return nil, nil
	}
	return &team, nil
}

func (s *fakeStore) ListTeamAgents(_ context.Context, teamID string) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Agent
	for _, a := range s.agents {
		if a.TeamID == teamID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAgent(_ context.Context, userID string) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.UserID == userID {
			agent := a
			return &agent, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpdateTeamRotation(_ context.Context, teamID string, expectedVersion int64, lastAssignedUser string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	team := s.teams[teamID]
	if s.casFailures > 0 {
		s.casFailures--
		team.Version++
		s.teams[teamID] = team
		return false, nil
	}
	if team.Version != expectedVersion {
		return false, nil
	}
	team.Version++
	team.Metadata.LastAssignedUser = lastAssignedUser
	s.teams[teamID] = team
	return true, nil
}

func (s *fakeStore) SetAgentStatus(_ context.Context, userID string, status models.AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.agents {
		if s.agents[i].UserID == userID {
			s.agents[i].Status = status
		}
	}
	return nil
}

func (s *fakeStore) GetParty(_ context.Context, id string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	party, ok := s.parties[id]
	if !ok {
		return nil, nil
	}
	return &party, nil
}

func (s *fakeStore) AssignPartyOwner(_ context.Context, partyID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	party, ok := s.parties[partyID]
	if !ok || party.UserID != "" {
		return false, nil
	}
	party.UserID = userID
	s.parties[partyID] = party
	return true, nil
}

func (s *fakeStore) SetCallStatus(_ context.Context, commID string, state models.DialState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callStatus[commID] = state
	return nil
}

func (s *fakeStore) addParty(p models.Party) *models.Party {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = p
	return &p
}

func (s *fakeStore) agentStatus(userID string) models.AgentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.UserID == userID {
			return a.Status
		}
	}
	return ""
}

func (s *fakeStore) partyOwner(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parties[id].UserID
}

func agent(id, name string) models.Agent {
	return models.Agent{
		UserID:    id,
		FullName:  name,
		Active:    true,
		Status:    models.AgentAvailable,
		Endpoints: []string{"sip:" + id + "@pbx.local"},
		HasLARole: true,
	}
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
