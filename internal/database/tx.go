package database

import (
	"context"
	"database/sql"
)

// querier is the subset of *sql.DB and *sql.Tx the store methods use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// conn returns the transaction carried by ctx, or the pool outside RunInTx.
func (d *Database) conn(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return d.db
}

// RunInTx runs fn inside one transaction. Every store call made with the
// context handed to fn joins it, so either all of them commit or none do.
// A nested RunInTx joins the outer transaction.
func (d *Database) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classifyDBError("commit transaction", err)
	}
	return nil
}

// withWriteTx runs a multi-statement write in its own transaction, or in the
// caller's when ctx already carries one.
func (d *Database) withWriteTx(ctx context.Context, fn func(q querier) error) error {
	if tx, ok := txFrom(ctx); ok {
		return fn(tx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
