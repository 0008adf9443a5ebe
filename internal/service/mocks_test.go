package service

import (
	"context"
	"io"
	"sync"

	"commrouter/internal/events"
	"commrouter/internal/metrics"
	"commrouter/internal/models"
	"commrouter/internal/telephony"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, msg *models.InboundMessage) (models.Outcome, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Outcome), args.Error(1)
}

// mockStore serves both the intake and the call service
type mockStore struct {
	mock.Mock
}

// RunInTx runs fn inline; rollback behaviour is covered against SQLite.
func (m *mockStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockStore) SaveCommunication(ctx context.Context, c *models.Communication) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockStore) GetParty(ctx context.Context, id string) (*models.Party, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *mockStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}

type mockCallRouter struct {
	mock.Mock
}

func (m *mockCallRouter) RouteCall(ctx context.Context, team *models.Team, party *models.Party) (telephony.CallRoute, error) {
	args := m.Called(ctx, team, party)
	return args.Get(0).(telephony.CallRoute), args.Error(1)
}

func (m *mockCallRouter) RouteToUser(ctx context.Context, userID string, party *models.Party) (telephony.CallRoute, error) {
	args := m.Called(ctx, userID, party)
	return args.Get(0).(telephony.CallRoute), args.Error(1)
}

func (m *mockCallRouter) SelectCallReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	args := m.Called(ctx, team)
	return args.Get(0).(models.Receivers), args.Error(1)
}

func (m *mockCallRouter) OnDialOutcome(ctx context.Context, partyID, commID string, outcome models.DialOutcome, targetContextID string) (models.DialResolution, error) {
	args := m.Called(ctx, partyID, commID, outcome, targetContextID)
	return args.Get(0).(models.DialResolution), args.Error(1)
}

type mockWindow struct {
	mock.Mock
}

func (m *mockWindow) Claim(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWindow) Release(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// memoryWindow claims ids for the lifetime of the test
type memoryWindow struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newMemoryWindow() *memoryWindow {
	return &memoryWindow{claimed: make(map[string]bool)}
}

func (w *memoryWindow) Claim(_ context.Context, messageID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.claimed[messageID] {
		return false, nil
	}
	w.claimed[messageID] = true
	return true, nil
}

func (w *memoryWindow) Release(_ context.Context, messageID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.claimed, messageID)
	return nil
}

// recordingPublisher keeps published envelopes, failing when err is set
type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envelopes))
	for _, env := range p.envelopes {
		out = append(out, env.Meta.Type)
	}
	return out
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func counterValue(reg *metrics.Registry, key string) float64 {
	return reg.GetAllMetrics().Counters[key].Value
}
