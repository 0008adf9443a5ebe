package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"commrouter/internal/models"
	"commrouter/internal/routing"
	"commrouter/internal/security"

	"gopkg.in/yaml.v3"
)

// Fixtures is a directory snapshot loaded from YAML by the seed command and tests.
type Fixtures struct {
	Teams                  []TeamFixture         `yaml:"teams"`
	Programs               []ProgramFixture      `yaml:"programs"`
	Persons                []PersonFixture       `yaml:"persons"`
	Parties                []PartyFixture        `yaml:"parties"`
	OutsideDedicatedEmails map[string]string     `yaml:"outside_dedicated_emails"`
	RelayAliases           map[string]string     `yaml:"relay_aliases"`
	RelayMessages          []RelayMessageFixture `yaml:"relay_messages"`
}

type TeamFixture struct {
	ID              string                      `yaml:"id"`
	Name            string                      `yaml:"name"`
	Module          models.TeamModule           `yaml:"module"`
	CallRouting     models.CallRoutingStrategy  `yaml:"call_routing"`
	PartyRouting    models.PartyRoutingStrategy `yaml:"party_routing"`
	CallCenterPhone string                      `yaml:"call_center_phone"`
	Dispatcher      string                      `yaml:"dispatcher"`
	Timezone        string                      `yaml:"timezone"`
	OfficeHours     *models.OfficeHours         `yaml:"office_hours"`
	Members         []MemberFixture             `yaml:"members"`
}

type MemberFixture struct {
	ID        string             `yaml:"id"`
	UserID    string             `yaml:"user_id"`
	FullName  string             `yaml:"full_name"`
	Email     string             `yaml:"email"`
	Phone     string             `yaml:"phone"`
	Endpoints []string           `yaml:"endpoints"`
	Status    models.AgentStatus `yaml:"status"`
	LARole    bool               `yaml:"la_role"`
	Disabled  bool               `yaml:"disabled"`
	Inactive  bool               `yaml:"inactive"`
}

type ProgramFixture struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Email      string     `yaml:"email"`
	Phone      string     `yaml:"phone"`
	EndDate    *time.Time `yaml:"end_date"`
	Fallback   string     `yaml:"fallback"`
	Team       string     `yaml:"team"`
	Property   string     `yaml:"property"`
	Timezone   string     `yaml:"timezone"`
	Forwarding struct {
		Enabled bool   `yaml:"enabled"`
		Email   string `yaml:"email"`
		SMS     string `yaml:"sms"`
		Call    string `yaml:"call"`
	} `yaml:"forwarding"`
}

type RelayMessageFixture struct {
	MessageID        string `yaml:"message_id"`
	ForwardMessageID string `yaml:"forward_message_id"`
	ThreadID         string `yaml:"thread_id"`
	Sender           string `yaml:"sender"`
	Recipient        string `yaml:"recipient"`
}

type PersonFixture struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Emails []string `yaml:"emails"`
	Phones []string `yaml:"phones"`
}

type PartyFixture struct {
	ID              string               `yaml:"id"`
	Workflow        models.WorkflowState `yaml:"workflow"`
	State           models.PartyState    `yaml:"state"`
	OwnerTeam       string               `yaml:"owner_team"`
	Owner           string               `yaml:"owner"`
	Property        string               `yaml:"property"`
	Group           string               `yaml:"group"`
	EmailIdentifier string               `yaml:"email_identifier"`
	Persons         []string             `yaml:"persons"`
	Teams           []string             `yaml:"teams"`
	ArchiveDate     *time.Time           `yaml:"archive_date"`
	UpdatedAt       *time.Time           `yaml:"updated_at"`
}

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid fixtures path: %w", err)
	}
	if err := security.ValidateFileExtension(path, ".yaml", ".yml"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Seed upserts every fixture. Contact values are normalized the way the
// routing engine looks them up.
func (d *Database) Seed(ctx context.Context, f *Fixtures) error {
	for _, t := range f.Teams {
		team := &models.Team{
			ID:                   t.ID,
			Name:                 t.Name,
			Module:               t.Module,
			CallRoutingStrategy:  t.CallRouting,
			PartyRoutingStrategy: t.PartyRouting,
			Metadata: models.TeamMetadata{
				CallCenterPhoneNumber: routing.DigitsOnly(t.CallCenterPhone),
				DispatcherUserID:      t.Dispatcher,
			},
			Timezone:    t.Timezone,
			OfficeHours: t.OfficeHours,
		}
		if team.CallRoutingStrategy == "" {
			team.CallRoutingStrategy = models.CallRoutingOwner
		}
		if team.PartyRoutingStrategy == "" {
			team.PartyRoutingStrategy = models.PartyRoutingDispatcher
		}
		if err := d.SaveTeam(ctx, team); err != nil {
			return fmt.Errorf("seed team %s: %w", t.ID, err)
		}
		for _, m := range t.Members {
			memberID := m.ID
			if memberID == "" {
				memberID = t.ID + ":" + m.UserID
			}
			agent := &models.Agent{
				UserID:    m.UserID,
				FullName:  m.FullName,
				Active:    !m.Disabled,
				Status:    m.Status,
				Endpoints: m.Endpoints,
				HasLARole: m.LARole,
			}
			member := &models.TeamMember{
				ID:                    memberID,
				TeamID:                t.ID,
				UserID:                m.UserID,
				DirectEmailIdentifier: strings.ToLower(strings.TrimSpace(m.Email)),
				DirectPhoneIdentifier: routing.DigitsOnly(m.Phone),
				Inactive:              m.Inactive,
			}
			if err := d.SaveAgent(ctx, agent, member); err != nil {
				return fmt.Errorf("seed member %s: %w", m.UserID, err)
			}
		}
	}

	for _, p := range f.Programs {
		program := &models.Program{
			ID:                    p.ID,
			Name:                  p.Name,
			DirectEmailIdentifier: strings.ToLower(strings.TrimSpace(p.Email)),
			DirectPhoneIdentifier: routing.DigitsOnly(p.Phone),
			EndDate:               p.EndDate,
			ProgramFallbackID:     p.Fallback,
			TeamID:                p.Team,
			PropertyID:            p.Property,
			Timezone:              p.Timezone,
			Forwarding: models.ProgramForwarding{
				Enabled:     p.Forwarding.Enabled,
				EmailTarget: p.Forwarding.Email,
				SMSTarget:   p.Forwarding.SMS,
				CallTarget:  p.Forwarding.Call,
			},
		}
		if err := d.SaveProgram(ctx, program); err != nil {
			return fmt.Errorf("seed program %s: %w", p.ID, err)
		}
	}

	for _, p := range f.Persons {
		emails := make([]string, 0, len(p.Emails))
		for _, e := range p.Emails {
			emails = append(emails, strings.ToLower(strings.TrimSpace(e)))
		}
		phones := make([]string, 0, len(p.Phones))
		for _, ph := range p.Phones {
			phones = append(phones, routing.DigitsOnly(ph))
		}
		if err := d.SavePerson(ctx, p.ID, p.Name, emails, phones); err != nil {
			return fmt.Errorf("seed person %s: %w", p.ID, err)
		}
	}

	for _, p := range f.Parties {
		party := &models.Party{
			ID:                 p.ID,
			WorkflowState:      p.Workflow,
			State:              p.State,
			ArchiveDate:        p.ArchiveDate,
			OwnerTeamID:        p.OwnerTeam,
			UserID:             p.Owner,
			AssignedPropertyID: p.Property,
			PartyGroupID:       p.Group,
			Teams:              p.Teams,
			PersonIDs:          p.Persons,
		}
		if p.UpdatedAt != nil {
			party.UpdatedAt = *p.UpdatedAt
			party.CreatedAt = *p.UpdatedAt
		}
		if err := d.SaveParty(ctx, party, strings.ToLower(p.EmailIdentifier)); err != nil {
			return fmt.Errorf("seed party %s: %w", p.ID, err)
		}
	}

	for email, target := range f.OutsideDedicatedEmails {
		if err := d.SaveOutsideDedicatedEmail(ctx, strings.ToLower(email), strings.ToLower(target)); err != nil {
			return fmt.Errorf("seed outside dedicated email %s: %w", email, err)
		}
	}
	for alias, person := range f.RelayAliases {
		if err := d.SaveRelayAlias(ctx, strings.ToLower(alias), person); err != nil {
			return fmt.Errorf("seed relay alias %s: %w", alias, err)
		}
	}
	for _, r := range f.RelayMessages {
		relay := &models.RelayMessage{
			MessageID:         r.MessageID,
			ForwardMessageID:  r.ForwardMessageID,
			ThreadID:          r.ThreadID,
			SenderPersonID:    r.Sender,
			RecipientPersonID: r.Recipient,
		}
		if err := d.SaveRelayMessage(ctx, relay); err != nil {
			return fmt.Errorf("seed relay message %s: %w", r.MessageID, err)
		}
	}
	return nil
}
