package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"commrouter/internal/models"
)

const (
	contactEmail = "email"
	contactPhone = "phone"
)

// GetPersonIDsByContact matches a normalized email address or phone number.
func (d *Database) GetPersonIDsByContact(ctx context.Context, contact string) ([]string, error) {
	value, err := d.encryptor.EncryptForLookup(contact)
	if err != nil {
		return nil, err
	}
	ids, err := d.queryStrings(ctx, SelectPersonIDsByContactQuery, value)
	if err != nil {
		return nil, classifyDBError("get persons by contact", err)
	}
	return ids, nil
}

// GetPartiesForPersons returns every party any of the persons belongs to,
// most recently updated first.
func (d *Database) GetPartiesForPersons(ctx context.Context, personIDs []string) ([]models.Party, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(personIDs)), ", ")
	query := `SELECT DISTINCT ` + partyColumns + `
		FROM parties p
		JOIN party_members pm ON pm.party_id = p.id
		WHERE pm.person_id IN (` + placeholders + `)
		ORDER BY p.updated_at DESC, p.id`

	args := make([]interface{}, len(personIDs))
	for i, id := range personIDs {
		args[i] = id
	}
	return d.listParties(ctx, "get parties for persons", query, args...)
}

func (d *Database) GetParty(ctx context.Context, id string) (*models.Party, error) {
	return d.getParty(ctx, "get party", SelectPartyByIDQuery, id)
}

func (d *Database) GetPartyByEmailIdentifier(ctx context.Context, identifier string) (*models.Party, error) {
	return d.getParty(ctx, "get party by email identifier", SelectPartyByEmailQuery, identifier)
}

func (d *Database) GetActivePartyInGroup(ctx context.Context, partyGroupID string) (*models.Party, error) {
	if partyGroupID == "" {
		return nil, nil
	}
	return d.getParty(ctx, "get active party in group", SelectActivePartyInGroupQuery, partyGroupID)
}

// GetPartiesByThread returns the parties linked to any communication of the thread.
func (d *Database) GetPartiesByThread(ctx context.Context, threadID string) ([]models.Party, error) {
	return d.listParties(ctx, "get parties by thread", SelectPartiesByThreadQuery, threadID)
}

// AssignPartyOwner sets the owner only when the party has none.
func (d *Database) AssignPartyOwner(ctx context.Context, partyID, userID string) (bool, error) {
	var assigned bool
	err := retryableDBOperationNoReturn(ctx, func() error {
		res, err := d.conn(ctx).ExecContext(ctx, AssignPartyOwnerQuery, userID, d.now().UTC(), partyID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		assigned = n == 1
		return nil
	}, "assign party owner")
	return assigned, err
}

// SaveParty inserts or replaces a party together with its members and teams.
func (d *Database) SaveParty(ctx context.Context, p *models.Party, emailIdentifier string) error {
	now := d.now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	workflow := p.WorkflowState
	if workflow == "" {
		workflow = models.WorkflowActive
	}
	state := p.State
	if state == "" {
		state = models.PartyStateContact
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		return d.withWriteTx(ctx, func(tx querier) error {
			if _, err := tx.ExecContext(ctx, UpsertPartyQuery,
				p.ID, workflow, state, nullTime(p.EndDate), nullTime(p.ArchiveDate), nullString(p.OwnerTeamID),
				nullString(p.UserID), nullString(p.AssignedPropertyID), nullString(p.PartyGroupID),
				nullString(emailIdentifier), created, updated,
			); err != nil {
				return err
			}
			for _, personID := range p.PersonIDs {
				if _, err := tx.ExecContext(ctx, InsertPartyMemberQuery, p.ID, personID); err != nil {
					return err
				}
			}
			for _, teamID := range p.Teams {
				if _, err := tx.ExecContext(ctx, InsertPartyTeamQuery, p.ID, teamID); err != nil {
					return err
				}
			}
			return nil
		})
	}, "save party")
}

// SavePerson stores a person and their contact values. Emails are expected
// lowercased and phones reduced to digits, the same form lookups use.
func (d *Database) SavePerson(ctx context.Context, id, fullName string, emails, phones []string) error {
	type contact struct{ kind, value string }
	var contacts []contact
	for _, e := range emails {
		contacts = append(contacts, contact{contactEmail, e})
	}
	for _, ph := range phones {
		contacts = append(contacts, contact{contactPhone, ph})
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		return d.withWriteTx(ctx, func(tx querier) error {
			if _, err := tx.ExecContext(ctx, UpsertPersonQuery, id, fullName); err != nil {
				return err
			}
			for _, c := range contacts {
				stored, err := d.encryptor.EncryptForLookup(c.value)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, InsertContactInfoQuery, id, c.kind, stored); err != nil {
					return err
				}
			}
			return nil
		})
	}, "save person")
}

func (d *Database) getParty(ctx context.Context, operation, query string, args ...interface{}) (*models.Party, error) {
	party, err := scanParty(d.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError(operation, err)
	}
	if err := d.loadPartyRelations(ctx, party); err != nil {
		return nil, classifyDBError(operation, err)
	}
	return party, nil
}

func (d *Database) listParties(ctx context.Context, operation, query string, args ...interface{}) ([]models.Party, error) {
	rows, err := d.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(operation, err)
	}

	var parties []models.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			_ = rows.Close()
			return nil, classifyDBError(operation, err)
		}
		parties = append(parties, *party)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, classifyDBError(operation, err)
	}
	_ = rows.Close()

	// Relations are loaded after the cursor is closed so the connection is free.
	for i := range parties {
		if err := d.loadPartyRelations(ctx, &parties[i]); err != nil {
			return nil, classifyDBError(operation, err)
		}
	}
	return parties, nil
}

func (d *Database) loadPartyRelations(ctx context.Context, p *models.Party) error {
	members, err := d.queryStrings(ctx, SelectPartyMembersQuery, p.ID)
	if err != nil {
		return err
	}
	teams, err := d.queryStrings(ctx, SelectPartyTeamsQuery, p.ID)
	if err != nil {
		return err
	}
	p.PersonIDs = members
	p.Teams = teams
	return nil
}

func scanParty(row rowScanner) (*models.Party, error) {
	var (
		p                                    models.Party
		ownerTeam, userID, property, groupID sql.NullString
		endDate, archiveDate                 sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.WorkflowState, &p.State, &endDate, &archiveDate, &ownerTeam,
		&userID, &property, &groupID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.EndDate = timePtr(endDate)
	p.ArchiveDate = timePtr(archiveDate)
	p.OwnerTeamID = ownerTeam.String
	p.UserID = userID.String
	p.AssignedPropertyID = property.String
	p.PartyGroupID = groupID.String
	return &p, nil
}
