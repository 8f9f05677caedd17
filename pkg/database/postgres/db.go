package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type txContextKey struct{}

type txState struct {
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
}

var (
	ErrAlreadyInTx = errors.New("already executing in existing db tx")
	ErrNotInTx     = errors.New("not executing in existing db tx")
)

// ExecuteTxWithinCtx runs fn within a new transaction carried by the context
// passed to it. The transaction commits when fn returns nil, and rolls back
// otherwise. Nesting is not supported.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(context.Context) error) error {
	if ctx.Value(txContextKey{}) != nil {
		return ErrAlreadyInTx
	}

	isolation = normalizeIsolation(isolation)

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	return finishTx(tx, fn(context.WithValue(ctx, txContextKey{}, &txState{tx: tx, isolation: isolation})))
}

// ExecuteInTx runs a store operation in a transaction. It joins the
// transaction started by ExecuteTxWithinCtx when ctx carries one, which then
// owns commit and rollback. Otherwise, it runs in its own transaction.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	isolation = normalizeIsolation(isolation)

	existing, err := getTxFromCtx(ctx, isolation)
	switch {
	case err == nil:
		return fn(existing)
	case err != ErrNotInTx:
		return err
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}
	return finishTx(tx, fn(tx))
}

func finishTx(tx *sqlx.Tx, err error) error {
	if err != nil {
		// Rollback is required for sql.DB to release the connection
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(rollbackErr, "failed to rollback transaction after: %v", err)
		}
		return err
	}
	return tx.Commit()
}

func getTxFromCtx(ctx context.Context, desiredIsolation sql.IsolationLevel) (*sqlx.Tx, error) {
	state, ok := ctx.Value(txContextKey{}).(*txState)
	if !ok {
		return nil, ErrNotInTx
	}

	if state.isolation < desiredIsolation {
		return nil, errors.Errorf("current tx isolation %s is weaker than %s", state.isolation, desiredIsolation)
	}

	return state.tx, nil
}

func normalizeIsolation(isolation sql.IsolationLevel) sql.IsolationLevel {
	if isolation == sql.LevelDefault {
		return sql.LevelReadCommitted
	}
	return isolation
}
