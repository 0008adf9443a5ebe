package routing

import (
	"context"
	"fmt"
	"strings"

	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// SenderRequest is the input to sender resolution
type SenderRequest struct {
	Message           *models.InboundMessage
	From              string
	FromName          string
	ForwardedFromName string
	Target            models.Target
	// Prior is the communication InReplyTo refers to, when it was found.
	Prior *models.Communication
	// Relay is set for person-to-person relay replies.
	Relay *models.RelayMessage
	// PersonToPerson messages never attach to parties.
	PersonToPerson bool
}

// SenderResolver determines the originating persons and the parties a message attaches to
type SenderResolver struct {
	store  PartyStore
	comms  CommunicationStore
	logger *logrus.Logger
}

// NewSenderResolver creates a sender resolver
func NewSenderResolver(store PartyStore, comms CommunicationStore, logger *logrus.Logger) *SenderResolver {
	return &SenderResolver{store: store, comms: comms, logger: logger}
}

// Resolve never creates records: it returns party ids to attach to or sets
// NeedsNewParty for the persistence collaborator.
func (r *SenderResolver) Resolve(ctx context.Context, req SenderRequest) (models.SenderContext, error) {
	sender := models.SenderContext{
		From:              req.From,
		FromName:          req.FromName,
		ForwardedFromName: req.ForwardedFromName,
	}

	persons, err := r.resolvePersons(ctx, req)
	if err != nil {
		return sender, err
	}
	sender.PersonIDs = persons

	if req.Relay != nil || req.PersonToPerson {
		return sender, nil
	}

	if len(persons) == 0 {
		if pt, ok := req.Target.(models.PartyTarget); ok {
			sender.PartyIDs = []string{pt.ID}
		} else {
			sender.NeedsNewParty = true
		}
		return sender, nil
	}

	parties, err := r.store.GetPartiesForPersons(ctx, persons)
	if err != nil {
		return sender, fmt.Errorf("failed to load sender parties: %w", err)
	}

	if resident := residentParties(parties); len(resident) > 0 {
		sender.PartyIDs = models.PartyIDs(resident)
		return sender, nil
	}

	if req.Prior != nil && req.Prior.ThreadID != "" {
		return r.replyParties(ctx, sender, req.Prior.ThreadID, persons, parties)
	}

	return r.targetParties(sender, req.Target, parties), nil
}

func (r *SenderResolver) resolvePersons(ctx context.Context, req SenderRequest) ([]string, error) {
	msg := req.Message

	if req.Relay != nil {
		if it, ok := req.Target.(models.IndividualTarget); ok && it.PersonID != "" {
			if counterpart := req.Relay.Counterpart(it.PersonID); counterpart != "" {
				return []string{counterpart}, nil
			}
		}
	}

	if refID := firstNonEmpty(msg.TransferredFromCommID, msg.RedialForCommID); refID != "" {
		comm, err := r.comms.GetCommunication(ctx, refID)
		if err != nil {
			return nil, fmt.Errorf("failed to load referenced communication: %w", err)
		}
		if comm != nil && len(comm.PersonIDs) > 0 {
			return comm.PersonIDs, nil
		}
	}

	var contacts []string
	if msg.Channel == models.ChannelWeb {
		if msg.WebContact != nil {
			contacts = append(contacts, strings.ToLower(strings.TrimSpace(msg.WebContact.Email)), DigitsOnly(msg.WebContact.Phone))
		}
	} else {
		contacts = append(contacts, req.From)
	}

	var persons []string
	seen := make(map[string]bool)
	for _, contact := range contacts {
		if contact == "" {
			continue
		}
		ids, err := r.store.GetPersonIDsByContact(ctx, contact)
		if err != nil {
			return nil, fmt.Errorf("failed to look up persons by contact: %w", err)
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				persons = append(persons, id)
			}
		}
	}
	return persons, nil
}

// replyParties follows the thread of the replied-to message. Archived carriers
// are replaced by the active party of their group through one lookup.
func (r *SenderResolver) replyParties(ctx context.Context, sender models.SenderContext, threadID string, persons []string, parties []models.Party) (models.SenderContext, error) {
	carriers, err := r.store.GetPartiesByThread(ctx, threadID)
	if err != nil {
		return sender, fmt.Errorf("failed to load thread parties: %w", err)
	}

	memberCarriers := filterParties(carriers, func(p *models.Party) bool { return hasAnyPerson(p, persons) })
	if open := filterParties(memberCarriers, func(p *models.Party) bool { return !p.IsArchived() }); len(open) > 0 {
		sender.PartyIDs = models.PartyIDs(open)
		return sender, nil
	}

	if archived := models.MostRecentlyArchived(memberCarriers); archived != nil && archived.PartyGroupID != "" {
		successor, err := r.store.GetActivePartyInGroup(ctx, archived.PartyGroupID)
		if err != nil {
			return sender, fmt.Errorf("failed to load active party in group: %w", err)
		}
		if successor != nil && !successor.IsArchived() {
			sender.PartyIDs = []string{successor.ID}
			return sender, nil
		}
	}

	r.logger.WithField("thread_id", threadID).Debug("Sender is not in any party of the replied thread")
	sender.Source = models.SenderSourceTransferAgent
	if current := models.MostRecent(filterParties(parties, (*models.Party).IsActive)); current != nil {
		sender.PartyIDs = []string{current.ID}
		return sender, nil
	}
	sender.NeedsNewParty = true
	return sender, nil
}

func (r *SenderResolver) targetParties(sender models.SenderContext, target models.Target, parties []models.Party) models.SenderContext {
	if pt, ok := target.(models.PartyTarget); ok {
		if pt.IsActive() {
			sender.PartyIDs = []string{pt.ID}
			return sender
		}
		onProperty := filterParties(parties, func(p *models.Party) bool {
			return p.IsActive() && (pt.PropertyID == "" || p.AssignedPropertyID == pt.PropertyID)
		})
		if len(onProperty) > 0 {
			sender.PartyIDs = models.PartyIDs(onProperty)
		} else {
			sender.PartyIDs = []string{pt.ID}
		}
		return sender
	}

	teamID, propertyID := models.TargetTeamID(target), models.TargetPropertyID(target)
	scoped := filterParties(parties, func(p *models.Party) bool {
		if teamID != "" && !p.InTeam(teamID) {
			return false
		}
		return propertyID == "" || p.AssignedPropertyID == "" || p.AssignedPropertyID == propertyID
	})

	if active := filterParties(scoped, (*models.Party).IsActive); len(active) > 0 {
		sender.PartyIDs = models.PartyIDs(active)
		return sender
	}
	if closed := models.MostRecentlyClosed(scoped); closed != nil {
		sender.PartyIDs = []string{closed.ID}
		return sender
	}
	sender.NeedsNewParty = true
	return sender
}

// residentParties returns the resident parties when the sender's most recent
// relationship is RESIDENT. Such senders never start a new party.
func residentParties(parties []models.Party) []models.Party {
	latest := models.MostRecent(parties)
	if latest == nil || latest.State != models.PartyStateResident {
		return nil
	}
	return filterParties(parties, func(p *models.Party) bool { return p.State == models.PartyStateResident })
}

func filterParties(parties []models.Party, keep func(*models.Party) bool) []models.Party {
	var out []models.Party
	for i := range parties {
		if keep(&parties[i]) {
			out = append(out, parties[i])
		}
	}
	return out
}

func hasAnyPerson(p *models.Party, persons []string) bool {
	for _, id := range persons {
		if p.HasPerson(id) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
