package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GetExecutor returns the transaction stored in ctx, or the pool.
func (p *Postgres) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.Pool
}

// WithinTransaction runs f in a read-write transaction carried by ctx.
func (p *Postgres) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return p.within(ctx, pgx.TxOptions{}, f)
}

// WithinReadTransaction runs f in a repeatable-read, read-only transaction so
// several queries see one snapshot of the data.
func (p *Postgres) WithinReadTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	return p.within(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, f)
}

func (p *Postgres) within(ctx context.Context, opts pgx.TxOptions, f func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return f(ctx)
	}

	tx, err := p.Pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("Postgres - within - p.Pool.BeginTx: %w", err)
	}

	err = f(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		_ = tx.Rollback(ctx)

		return fmt.Errorf("Postgres - within: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("Postgres - within - tx.Commit: %w", err)
	}

	return nil
}
