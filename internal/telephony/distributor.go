package telephony

import (
	"context"
	"fmt"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// Distributor decides who rings for inbound calls and who owns the parties
// those calls create
type Distributor struct {
	store   Store
	rotator *rotator
	logger  *logrus.Logger
	now     func() time.Time
}

// NewDistributor creates a distributor retrying lost rotation updates up to casAttempts times
func NewDistributor(store Store, casAttempts int, logger *logrus.Logger) *Distributor {
	return &Distributor{
		store:   store,
		rotator: newRotator(store, casAttempts, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// CallRoute is the ringing decision for one call together with the owner
// assigned to the caller's party, if any
type CallRoute struct {
	Receivers  models.Receivers `json:"receivers"`
	PartyOwner string           `json:"party_owner,omitempty"`
}

// RouteCall picks receivers for a call to team from the caller's party. A party
// that already has an owner on an OWNER team rings that owner without running
// any assignment; otherwise the team's call strategy decides and the party is
// assigned when the strategy calls for it.
func (d *Distributor) RouteCall(ctx context.Context, team *models.Team, party *models.Party) (CallRoute, error) {
	if party != nil && party.UserID != "" && team.CallRoutingStrategy == models.CallRoutingOwner {
		receivers, err := d.ReceiversForParty(ctx, party)
		if err != nil {
			return CallRoute{}, err
		}
		return CallRoute{Receivers: receivers, PartyOwner: party.UserID}, nil
	}

	receivers, err := d.SelectCallReceivers(ctx, team)
	if err != nil {
		return CallRoute{}, err
	}
	if party == nil {
		return CallRoute{Receivers: receivers}, nil
	}

	owner, err := d.AssignPartyIfNeeded(ctx, party, team, receivers)
	if err != nil {
		return CallRoute{}, err
	}
	return CallRoute{Receivers: receivers, PartyOwner: owner}, nil
}

// SelectCallReceivers applies the team's call routing strategy.
func (d *Distributor) SelectCallReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	logger := d.logger.WithFields(logrus.Fields{
		"team_id":  team.ID,
		"strategy": team.CallRoutingStrategy,
	})

	var (
		receivers models.Receivers
		err       error
	)
	switch team.CallRoutingStrategy {
	case models.CallRoutingOwner:
		receivers, err = d.ownerReceivers(ctx, team)
	case models.CallRoutingRoundRobin:
		receivers, err = d.roundRobinReceivers(ctx, team)
	case models.CallRoutingEverybody:
		receivers, err = d.everybodyReceivers(ctx, team)
	case models.CallRoutingCallCenter:
		receivers, err = d.callCenterReceivers(team)
	default:
		logger.Warn("Unknown call routing strategy, ringing the dispatcher")
		receivers, err = d.dispatcherReceivers(ctx, team)
	}
	if err != nil {
		return models.Receivers{}, err
	}

	logger.WithFields(logrus.Fields{
		"receiver_type": receivers.Type,
		"receivers":     len(receivers.UserIDs),
	}).Debug("Call receivers selected")
	return receivers, nil
}

// ReceiversForParty rings the party owner: while they are free they are dialed,
// while on another call the caller waits, and when unreachable voicemail plays.
func (d *Distributor) ReceiversForParty(ctx context.Context, party *models.Party) (models.Receivers, error) {
	return d.ringUser(ctx, party.UserID, "party owner")
}

// RouteToUser rings one user directly, for calls to an agent's own number and
// transfers to a user. No rotation runs and the caller's party keeps its
// current owner.
func (d *Distributor) RouteToUser(ctx context.Context, userID string, party *models.Party) (CallRoute, error) {
	receivers, err := d.ringUser(ctx, userID, "direct")
	if err != nil {
		return CallRoute{}, err
	}
	route := CallRoute{Receivers: receivers}
	if party != nil {
		route.PartyOwner = party.UserID
	}
	return route, nil
}

func (d *Distributor) ringUser(ctx context.Context, userID, role string) (models.Receivers, error) {
	agent, err := d.store.GetAgent(ctx, userID)
	if err != nil {
		return models.Receivers{}, fmt.Errorf("failed to load %s: %w", role, err)
	}
	switch {
	case agent != nil && agent.IsAvailable():
		return d.dial(ctx, agent, role)
	case agent != nil && agent.IsReachable() && agent.Status == models.AgentBusy:
		return models.Receivers{Type: models.ReceiverQueue, Reason: role + " busy"}, nil
	default:
		return voicemail(userID, role+" unreachable"), nil
	}
}

// AssignPartyIfNeeded gives an ownerless party an owner when the call routing
// calls for one: call-center calls fall to the dispatcher, OWNER teams give the
// party to the agent being dialed, and voicemail gives it to the fallback
// owner. A caller left waiting keeps an ownerless party. It returns the
// party's owner after the call, "" when there is none.
func (d *Distributor) AssignPartyIfNeeded(ctx context.Context, party *models.Party, team *models.Team, receivers models.Receivers) (string, error) {
	if party.UserID != "" {
		return party.UserID, nil
	}

	var owner string
	switch {
	case receivers.Type == models.ReceiverCallCenter:
		owner = team.Metadata.DispatcherUserID
	case receivers.Type == models.ReceiverVoicemail:
		owner = receivers.PartyOwner
	case team.CallRoutingStrategy == models.CallRoutingOwner && receivers.Type == models.ReceiverUsers && len(receivers.UserIDs) > 0:
		owner = receivers.UserIDs[0]
	}
	if owner == "" {
		return "", nil
	}
	return d.assignOwner(ctx, party.ID, owner)
}

// PartyOwnerFor picks the owner of a new party for team under its party
// routing strategy. Round robin rotates over active agents with the leasing
// role while the team is open, busy agents included; when nobody qualifies,
// and for any other strategy, the dispatcher owns the party.
func (d *Distributor) PartyOwnerFor(ctx context.Context, team *models.Team) (string, error) {
	return d.partyOwnerExcluding(ctx, team, "")
}

func (d *Distributor) partyOwnerExcluding(ctx context.Context, team *models.Team, excludedUserID string) (string, error) {
	if team.PartyRoutingStrategy != models.PartyRoutingRoundRobin {
		return team.Metadata.DispatcherUserID, nil
	}
	if !team.IsOpenAt(d.now()) {
		return team.Metadata.DispatcherUserID, nil
	}

	agent, err := d.rotator.next(ctx, team, func(a *models.Agent) bool {
		return canOwnParties(a) && a.UserID != excludedUserID
	})
	if err != nil {
		return "", err
	}
	if agent == nil {
		return team.Metadata.DispatcherUserID, nil
	}
	return agent.UserID, nil
}

// ownerReceivers serves OWNER teams for callers without an owner yet: the
// party routing decides who is dialed. Round robin considers only active
// agents with the leasing role while the team is open; outside office hours,
// or when none of them is reachable, the dispatcher takes the call.
func (d *Distributor) ownerReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	if team.PartyRoutingStrategy != models.PartyRoutingRoundRobin || !team.IsOpenAt(d.now()) {
		return d.dispatcherReceivers(ctx, team)
	}

	agents, err := d.store.ListTeamAgents(ctx, team.ID)
	if err != nil {
		return models.Receivers{}, fmt.Errorf("failed to list team agents: %w", err)
	}
	if !anyAgent(agents, func(a *models.Agent) bool { return canOwnParties(a) && a.IsReachable() }) {
		return d.dispatcherReceivers(ctx, team)
	}

	agent, err := d.rotator.next(ctx, team, func(a *models.Agent) bool {
		return canOwnParties(a) && a.IsAvailable()
	})
	if err != nil {
		return models.Receivers{}, err
	}
	if agent == nil {
		return models.Receivers{Type: models.ReceiverQueue, Reason: "all agents busy"}, nil
	}
	return d.dial(ctx, agent, "round robin owner")
}

func (d *Distributor) roundRobinReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	agent, err := d.rotator.next(ctx, team, (*models.Agent).IsReachable)
	if err != nil {
		return models.Receivers{}, err
	}
	if agent == nil {
		return voicemail(team.Metadata.DispatcherUserID, "no reachable agents"), nil
	}
	return d.dial(ctx, agent, "round robin")
}

func (d *Distributor) everybodyReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	agents, err := d.store.ListTeamAgents(ctx, team.ID)
	if err != nil {
		return models.Receivers{}, fmt.Errorf("failed to list team agents: %w", err)
	}

	receivers := models.Receivers{Type: models.ReceiverUsers, Reason: "everybody"}
	for i := range agents {
		if agents[i].IsAvailable() {
			receivers.UserIDs = append(receivers.UserIDs, agents[i].UserID)
			receivers.Endpoints = append(receivers.Endpoints, agents[i].Endpoints...)
		}
	}
	if len(receivers.UserIDs) > 0 {
		return receivers, nil
	}
	if anyAgent(agents, (*models.Agent).IsReachable) {
		return models.Receivers{Type: models.ReceiverQueue, Reason: "all agents busy"}, nil
	}
	return voicemail(team.Metadata.DispatcherUserID, "no reachable agents"), nil
}

func (d *Distributor) callCenterReceivers(team *models.Team) (models.Receivers, error) {
	if team.Metadata.CallCenterPhoneNumber == "" {
		return models.Receivers{}, apperrors.NewValidationError("call_center_phone_number", team.ID, "team routes to a call center without a number")
	}
	return models.Receivers{
		Type:       models.ReceiverCallCenter,
		Endpoints:  []string{team.Metadata.CallCenterPhoneNumber},
		PartyOwner: team.Metadata.DispatcherUserID,
		Reason:     "call center",
	}, nil
}

func (d *Distributor) dispatcherReceivers(ctx context.Context, team *models.Team) (models.Receivers, error) {
	dispatcherID := team.Metadata.DispatcherUserID
	if dispatcherID == "" {
		return voicemail("", "team has no dispatcher"), nil
	}
	agent, err := d.store.GetAgent(ctx, dispatcherID)
	if err != nil {
		return models.Receivers{}, fmt.Errorf("failed to load dispatcher: %w", err)
	}
	switch {
	case agent != nil && agent.IsAvailable():
		return d.dial(ctx, agent, "dispatcher")
	case agent != nil && agent.IsReachable():
		return models.Receivers{Type: models.ReceiverQueue, Reason: "dispatcher busy"}, nil
	default:
		return voicemail(dispatcherID, "dispatcher unreachable"), nil
	}
}

// dial rings a single agent and marks them busy for the duration of the call.
func (d *Distributor) dial(ctx context.Context, agent *models.Agent, reason string) (models.Receivers, error) {
	if err := d.store.SetAgentStatus(ctx, agent.UserID, models.AgentBusy); err != nil {
		return models.Receivers{}, fmt.Errorf("failed to mark agent busy: %w", err)
	}
	return models.Receivers{
		Type:      models.ReceiverUsers,
		UserIDs:   []string{agent.UserID},
		Endpoints: agent.Endpoints,
		Reason:    reason,
	}, nil
}

func (d *Distributor) assignOwner(ctx context.Context, partyID, userID string) (string, error) {
	assigned, err := d.store.AssignPartyOwner(ctx, partyID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to assign party owner: %w", err)
	}
	if assigned {
		d.logger.WithFields(logrus.Fields{
			"party_id": partyID,
			"user_id":  userID,
		}).Info("Party owner assigned")
		return userID, nil
	}

	// Someone else won the assignment; report the owner that stuck.
	party, err := d.store.GetParty(ctx, partyID)
	if err != nil {
		return "", fmt.Errorf("failed to reload party: %w", err)
	}
	if party == nil {
		return "", nil
	}
	return party.UserID, nil
}

func voicemail(partyOwner, reason string) models.Receivers {
	return models.Receivers{
		Type:         models.ReceiverVoicemail,
		Announcement: models.AnnouncementUnavailable,
		PartyOwner:   partyOwner,
		Reason:       reason,
	}
}

// canOwnParties reports an active agent holding the leasing role.
func canOwnParties(a *models.Agent) bool {
	return a.Active && a.HasLARole
}

func anyAgent(agents []models.Agent, match func(*models.Agent) bool) bool {
	for i := range agents {
		if match(&agents[i]) {
			return true
		}
	}
	return false
}
