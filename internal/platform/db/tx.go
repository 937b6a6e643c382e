package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn as a single unit of work. Everything fn does through
// repositories that honour the context commits together or not at all.
// Nested calls join the enclosing transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type contextKey string

const (
	txKey      contextKey = "db_tx"
	journalKey contextKey = "db_journal"
)

// TxFromContext returns the transaction bound to ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// Conn returns the transaction bound to ctx when there is one, else the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// PgTransactor runs units of work inside a pgx transaction.
type PgTransactor struct {
	pool *pgxpool.Pool
}

func NewPgTransactor(pool *pgxpool.Pool) *PgTransactor {
	return &PgTransactor{pool: pool}
}

func (t *PgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MemTransactor serialises units of work against the in-memory stores.
// Stores register an undo step for every mutation via Compensate; when fn
// fails or panics the steps run in reverse order.
type MemTransactor struct {
	mu sync.Mutex
}

func NewMemTransactor() *MemTransactor {
	return &MemTransactor{}
}

type journal struct {
	undo []func()
}

func (t *MemTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey).(*journal); ok {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	committed := false
	defer func() {
		if committed {
			return
		}
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}()
	if err := fn(context.WithValue(ctx, journalKey, j)); err != nil {
		return err
	}
	committed = true
	return nil
}

// Compensate records undo against the in-memory transaction bound to ctx.
// Outside a transaction the mutation is final and undo is dropped.
func Compensate(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// InTx reports whether ctx carries a transaction of either kind.
func InTx(ctx context.Context) bool {
	if TxFromContext(ctx) != nil {
		return true
	}
	_, ok := ctx.Value(journalKey).(*journal)
	return ok
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsCheckViolation reports whether err is a Postgres check constraint violation.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
