package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commrouter/internal/models"
)

// SaveCommunication stores an inbound communication and its party, person
// and team links in one transaction. Sender and body are encrypted at rest.
func (d *Database) SaveCommunication(ctx context.Context, c *models.Communication) error {
	sender, err := d.encryptor.Encrypt(c.From)
	if err != nil {
		return fmt.Errorf("failed to encrypt sender: %w", err)
	}
	text, err := d.encryptor.Encrypt(c.Text)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.now().UTC()
	}
	direction := c.Direction
	if direction == "" {
		direction = models.DirectionIn
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		return d.withWriteTx(ctx, func(tx querier) error {
			if _, err := tx.ExecContext(ctx, InsertCommunicationQuery,
				c.ID, nullString(c.MessageID), c.ThreadID, c.Channel, direction,
				nullString(c.UserID), nullString(c.ProgramID), nullString(sender), nullString(text),
				c.Category, nullString(c.TargetType), nullString(c.TargetID), c.CreatedAt,
			); err != nil {
				return err
			}
			links := []struct {
				query string
				ids   []string
			}{
				{InsertCommunicationPartyQuery, c.PartyIDs},
				{InsertCommunicationPersonQuery, c.PersonIDs},
				{InsertCommunicationTeamQuery, c.TeamIDs},
			}
			for _, link := range links {
				for _, id := range link.ids {
					if _, err := tx.ExecContext(ctx, link.query, c.ID, id); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}, "save communication")
}

func (d *Database) GetCommunication(ctx context.Context, id string) (*models.Communication, error) {
	return d.getCommunication(ctx, "get communication", SelectCommunicationByIDQuery, id)
}

// GetCommunicationByMessageID returns the earliest communication carrying the
// provider message id.
func (d *Database) GetCommunicationByMessageID(ctx context.Context, messageID string) (*models.Communication, error) {
	if messageID == "" {
		return nil, nil
	}
	return d.getCommunication(ctx, "get communication by message id", SelectCommunicationByMessageIDQuery, messageID)
}

func (d *Database) CountCommunicationsByMessageID(ctx context.Context, messageID string) (int, error) {
	var n int
	if err := d.conn(ctx).QueryRowContext(ctx, CountCommunicationsByMessageIDQuery, messageID).Scan(&n); err != nil {
		return 0, classifyDBError("count communications", err)
	}
	return n, nil
}

func (d *Database) SetCallStatus(ctx context.Context, commID string, state models.DialState) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.conn(ctx).ExecContext(ctx, UpdateCallStatusQuery, state, commID)
		return err
	}, "set call status")
}

func (d *Database) getCommunication(ctx context.Context, operation, query, arg string) (*models.Communication, error) {
	var (
		c                                                              models.Communication
		messageID, userID, programID, sender, text, targetType, target sql.NullString
	)
	err := d.conn(ctx).QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &messageID, &c.ThreadID, &c.Channel, &c.Direction, &userID, &programID,
		&sender, &text, &c.Category, &targetType, &target, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError(operation, err)
	}
	c.MessageID = messageID.String
	c.UserID = userID.String
	c.ProgramID = programID.String
	c.TargetType = targetType.String
	c.TargetID = target.String

	if c.From, err = d.encryptor.Decrypt(sender.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt sender: %w", err)
	}
	if c.Text, err = d.encryptor.Decrypt(text.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %w", err)
	}

	if c.PartyIDs, err = d.queryStrings(ctx, SelectCommunicationPartiesQuery, c.ID); err != nil {
		return nil, classifyDBError(operation, err)
	}
	if c.PersonIDs, err = d.queryStrings(ctx, SelectCommunicationPersonsQuery, c.ID); err != nil {
		return nil, classifyDBError(operation, err)
	}
	if c.TeamIDs, err = d.queryStrings(ctx, SelectCommunicationTeamsQuery, c.ID); err != nil {
		return nil, classifyDBError(operation, err)
	}
	return &c, nil
}

// SaveForwardedCommunication records a forward. A second record for the same
// message and destination is rejected as DUPLICATE_MESSAGE.
func (d *Database) SaveForwardedCommunication(ctx context.Context, r *models.ForwardedCommunication) error {
	message, err := d.encryptor.Encrypt(r.Message)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = d.now().UTC()
	}
	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.conn(ctx).ExecContext(ctx, InsertForwardedCommunicationQuery,
			r.ID, r.Type, nullString(r.MessageID), r.ProgramID, nullString(r.ProgramContactData),
			nullString(message), r.ForwardedTo, nullString(r.ReceivedFrom), r.Status, r.CreatedAt,
		)
		return err
	}, "save forwarded communication")
}

// GetForwardedCommunication returns the forward of messageID to forwardedTo.
func (d *Database) GetForwardedCommunication(ctx context.Context, messageID, forwardedTo string) (*models.ForwardedCommunication, error) {
	if messageID == "" {
		return nil, nil
	}
	var (
		r                                            models.ForwardedCommunication
		storedID, contactData, message, receivedFrom sql.NullString
	)
	err := d.conn(ctx).QueryRowContext(ctx, SelectForwardedCommunicationQuery, messageID, forwardedTo).Scan(
		&r.ID, &r.Type, &storedID, &r.ProgramID, &contactData, &message,
		&r.ForwardedTo, &receivedFrom, &r.Status, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get forwarded communication", err)
	}
	r.MessageID = storedID.String
	r.ProgramContactData = contactData.String
	r.ReceivedFrom = receivedFrom.String
	if r.Message, err = d.encryptor.Decrypt(message.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %w", err)
	}
	return &r, nil
}

func (d *Database) UpdateForwardedStatus(ctx context.Context, id string, status models.ForwardedStatus) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.conn(ctx).ExecContext(ctx, UpdateForwardedStatusQuery, status, id)
		return err
	}, "update forwarded status")
}

func (d *Database) CountForwardedCommunications(ctx context.Context, programID string) (int, error) {
	var n int
	if err := d.conn(ctx).QueryRowContext(ctx, CountForwardedCommunicationsQuery, programID).Scan(&n); err != nil {
		return 0, classifyDBError("count forwarded communications", err)
	}
	return n, nil
}

func (d *Database) GetRelayMessage(ctx context.Context, messageID string) (*models.RelayMessage, error) {
	if messageID == "" {
		return nil, nil
	}
	var (
		r       models.RelayMessage
		forward sql.NullString
	)
	err := d.conn(ctx).QueryRowContext(ctx, SelectRelayMessageQuery, messageID, messageID).Scan(
		&r.MessageID, &forward, &r.ThreadID, &r.SenderPersonID, &r.RecipientPersonID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("get relay message", err)
	}
	r.ForwardMessageID = forward.String
	return &r, nil
}

func (d *Database) SaveRelayMessage(ctx context.Context, r *models.RelayMessage) error {
	_, err := d.conn(ctx).ExecContext(ctx, InsertRelayMessageQuery,
		r.MessageID, nullString(r.ForwardMessageID), r.ThreadID, r.SenderPersonID, r.RecipientPersonID)
	if err != nil {
		return classifyDBError("save relay message", err)
	}
	return nil
}
