package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"commrouter/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) GetProgramByID(ctx context.Context, id string) (*models.Program, error) {
	return d.getProgram(ctx, SelectProgramByIDQuery, id)
}

func (d *Database) GetProgramByPhone(ctx context.Context, phone string) (*models.Program, error) {
	return d.getProgram(ctx, SelectProgramByPhoneQuery, phone)
}

func (d *Database) GetProgramByEmailIdentifier(ctx context.Context, identifier string) (*models.Program, error) {
	return d.getProgram(ctx, SelectProgramByEmailQuery, identifier)
}

func (d *Database) getProgram(ctx context.Context, query, arg string) (*models.Program, error) {
	program, err := scanProgram(d.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get program", err)
	}
	return program, nil
}

func scanProgram(row rowScanner) (*models.Program, error) {
	var (
		p                                            models.Program
		email, phone, fallback, teamID, property, tz sql.NullString
		forwardEmail, forwardSMS, forwardCall        sql.NullString
		endDate                                      sql.NullTime
		forwarding                                   bool
	)
	if err := row.Scan(&p.ID, &p.Name, &email, &phone, &endDate, &fallback, &teamID, &property, &tz,
		&forwarding, &forwardEmail, &forwardSMS, &forwardCall); err != nil {
		return nil, err
	}
	p.DirectEmailIdentifier = email.String
	p.DirectPhoneIdentifier = phone.String
	p.EndDate = timePtr(endDate)
	p.ProgramFallbackID = fallback.String
	p.TeamID = teamID.String
	p.PropertyID = property.String
	p.Timezone = tz.String
	p.Forwarding = models.ProgramForwarding{
		Enabled:     forwarding,
		EmailTarget: forwardEmail.String,
		SMSTarget:   forwardSMS.String,
		CallTarget:  forwardCall.String,
	}
	return &p, nil
}

// SaveProgram inserts or replaces a program.
func (d *Database) SaveProgram(ctx context.Context, p *models.Program) error {
	_, err := d.conn(ctx).ExecContext(ctx, UpsertProgramQuery,
		p.ID, p.Name, nullString(p.DirectEmailIdentifier), nullString(p.DirectPhoneIdentifier), nullTime(p.EndDate),
		nullString(p.ProgramFallbackID), nullString(p.TeamID), nullString(p.PropertyID), nullString(p.Timezone),
		boolInt(p.Forwarding.Enabled), nullString(p.Forwarding.EmailTarget), nullString(p.Forwarding.SMSTarget),
		nullString(p.Forwarding.CallTarget),
	)
	if err != nil {
		return classifyDBError("save program", err)
	}
	return nil
}

func (d *Database) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var (
		t                                                  models.Team
		lastAssigned, callCenter, dispatcher, tz, from, to sql.NullString
	)
	err := d.conn(ctx).QueryRowContext(ctx, SelectTeamByIDQuery, id).Scan(
		&t.ID, &t.Name, &t.Module, &t.CallRoutingStrategy, &t.PartyRoutingStrategy,
		&lastAssigned, &callCenter, &dispatcher, &tz, &from, &to, &t.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get team", err)
	}
	t.Metadata = models.TeamMetadata{
		LastAssignedUser:      lastAssigned.String,
		CallCenterPhoneNumber: callCenter.String,
		DispatcherUserID:      dispatcher.String,
	}
	t.Timezone = tz.String
	if from.Valid && to.Valid {
		t.OfficeHours = &models.OfficeHours{Start: from.String, End: to.String}
	}
	return &t, nil
}

// SaveTeam inserts or updates a team's settings. The rotation pointer is left
// untouched and the version bumped so in-flight rotations re-read the team.
func (d *Database) SaveTeam(ctx context.Context, t *models.Team) error {
	var from, to string
	if t.OfficeHours != nil {
		from, to = t.OfficeHours.Start, t.OfficeHours.End
	}
	module := t.Module
	if module == "" {
		module = models.ModuleLeasing
	}
	_, err := d.conn(ctx).ExecContext(ctx, UpsertTeamQuery,
		t.ID, t.Name, module, t.CallRoutingStrategy, t.PartyRoutingStrategy,
		nullString(t.Metadata.LastAssignedUser), nullString(t.Metadata.CallCenterPhoneNumber),
		nullString(t.Metadata.DispatcherUserID), nullString(t.Timezone), nullString(from), nullString(to),
	)
	if err != nil {
		return classifyDBError("save team", err)
	}
	return nil
}

// UpdateTeamRotation is a compare-and-swap on the team version.
func (d *Database) UpdateTeamRotation(ctx context.Context, teamID string, expectedVersion int64, lastAssignedUser string) (bool, error) {
	res, err := d.conn(ctx).ExecContext(ctx, UpdateTeamRotationQuery, lastAssignedUser, teamID, expectedVersion)
	if err != nil {
		return false, classifyDBError("update team rotation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classifyDBError("update team rotation", err)
	}
	return n == 1, nil
}

func (d *Database) ListTeamAgents(ctx context.Context, teamID string) ([]models.Agent, error) {
	rows, err := d.conn(ctx).QueryContext(ctx, SelectTeamAgentsQuery, teamID)
	if err != nil {
		return nil, classifyDBError("list team agents", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, classifyDBError("list team agents", err)
		}
		agents = append(agents, *agent)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("list team agents", err)
	}
	return agents, nil
}

func (d *Database) GetAgent(ctx context.Context, userID string) (*models.Agent, error) {
	agent, err := scanAgent(d.conn(ctx).QueryRowContext(ctx, SelectAgentQuery, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get agent", err)
	}
	return agent, nil
}

// scanAgent folds user and membership flags: an agent is active only when
// active globally and not deactivated in the team.
func scanAgent(row rowScanner) (*models.Agent, error) {
	var (
		a                      models.Agent
		teamID, endpoints      sql.NullString
		userActive             bool
		memberInactive, laRole sql.NullBool
	)
	if err := row.Scan(&a.UserID, &a.FullName, &teamID, &userActive, &memberInactive, &a.Status, &endpoints, &laRole); err != nil {
		return nil, err
	}
	a.TeamID = teamID.String
	a.Active = userActive && !memberInactive.Bool
	a.HasLARole = laRole.Bool
	if endpoints.String != "" {
		if err := json.Unmarshal([]byte(endpoints.String), &a.Endpoints); err != nil {
			return nil, fmt.Errorf("failed to decode endpoints of %s: %w", a.UserID, err)
		}
	}
	return &a, nil
}

func (d *Database) SetAgentStatus(ctx context.Context, userID string, status models.AgentStatus) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.conn(ctx).ExecContext(ctx, UpdateAgentStatusQuery, status, userID)
		return err
	}, "set agent status")
}

// SaveAgent inserts or updates the user and their membership in agent.TeamID.
func (d *Database) SaveAgent(ctx context.Context, agent *models.Agent, member *models.TeamMember) error {
	endpoints, err := json.Marshal(agent.Endpoints)
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}
	if agent.Endpoints == nil {
		endpoints = []byte("[]")
	}
	status := agent.Status
	if status == "" {
		status = models.AgentAvailable
	}

	err = d.withWriteTx(ctx, func(tx querier) error {
		if _, err := tx.ExecContext(ctx, UpsertUserQuery, agent.UserID, agent.FullName, boolInt(agent.Active), status, string(endpoints)); err != nil {
			return err
		}
		if member == nil {
			return nil
		}
		_, err := tx.ExecContext(ctx, UpsertTeamMemberQuery,
			member.ID, member.TeamID, member.UserID,
			nullString(member.DirectEmailIdentifier), nullString(member.DirectPhoneIdentifier),
			boolInt(member.Inactive), boolInt(agent.HasLARole),
		)
		return err
	})
	return classifyDBError("save agent", err)
}

func (d *Database) GetTeamMemberByPhone(ctx context.Context, phone string) (*models.TeamMember, error) {
	return d.getTeamMember(ctx, SelectTeamMemberByPhoneQuery, phone)
}

func (d *Database) GetTeamMemberByEmailIdentifier(ctx context.Context, identifier string) (*models.TeamMember, error) {
	return d.getTeamMember(ctx, SelectTeamMemberByEmailQuery, identifier)
}

// getTeamMember ignores deactivated memberships.
func (d *Database) getTeamMember(ctx context.Context, query, arg string) (*models.TeamMember, error) {
	var (
		m            models.TeamMember
		email, phone sql.NullString
	)
	err := d.conn(ctx).QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.TeamID, &m.UserID, &email, &phone, &m.Inactive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get team member", err)
	}
	if m.Inactive {
		return nil, nil
	}
	m.DirectEmailIdentifier = email.String
	m.DirectPhoneIdentifier = phone.String
	return &m, nil
}

func (d *Database) GetOutsideDedicatedEmailTarget(ctx context.Context, email string) (string, error) {
	return d.getString(ctx, "get outside dedicated email", SelectOutsideDedicatedTargetQuery, email)
}

func (d *Database) GetRelayAliasPerson(ctx context.Context, alias string) (string, error) {
	return d.getString(ctx, "get relay alias", SelectRelayAliasPersonQuery, alias)
}

func (d *Database) getString(ctx context.Context, operation, query, arg string) (string, error) {
	var v string
	err := d.conn(ctx).QueryRowContext(ctx, query, arg).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classifyDBError(operation, err)
	}
	return v, nil
}

// SaveOutsideDedicatedEmail maps an external mailbox onto a tenant identifier.
func (d *Database) SaveOutsideDedicatedEmail(ctx context.Context, email, targetIdentifier string) error {
	if _, err := d.conn(ctx).ExecContext(ctx, UpsertOutsideDedicatedQuery, email, targetIdentifier); err != nil {
		return classifyDBError("save outside dedicated email", err)
	}
	return nil
}

// SaveRelayAlias registers the anonymous relay address of a person.
func (d *Database) SaveRelayAlias(ctx context.Context, alias, personID string) error {
	if _, err := d.conn(ctx).ExecContext(ctx, UpsertRelayAliasQuery, alias, personID); err != nil {
		return classifyDBError("save relay alias", err)
	}
	return nil
}
