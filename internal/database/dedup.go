package database

import (
	"context"
	"time"
)

// ClaimMessage records a provider message id as in flight. It returns false
// when the id was already claimed within window.
func (d *Database) ClaimMessage(ctx context.Context, messageID string, window time.Duration) (bool, error) {
	now := d.now()
	cutoff := now.Add(-window).UnixMilli()

	var claimed bool
	err := retryableDBOperationNoReturn(ctx, func() error {
		res, err := d.conn(ctx).ExecContext(ctx, ClaimMessageQuery, messageID, now.UnixMilli(), cutoff)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		claimed = n > 0
		return nil
	}, "claim message")
	return claimed, err
}

// ReleaseMessage forgets a claim so a redelivery is processed again.
func (d *Database) ReleaseMessage(ctx context.Context, messageID string) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.conn(ctx).ExecContext(ctx, ReleaseMessageQuery, messageID)
		return err
	}, "release message")
}

// PurgeProcessed drops claims older than window and returns how many were removed.
func (d *Database) PurgeProcessed(ctx context.Context, window time.Duration) (int64, error) {
	res, err := d.conn(ctx).ExecContext(ctx, PurgeProcessedQuery, d.now().Add(-window).UnixMilli())
	if err != nil {
		return 0, classifyDBError("purge processed messages", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifyDBError("purge processed messages", err)
	}
	return n, nil
}
