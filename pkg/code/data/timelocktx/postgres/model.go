package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	pgutil "github.com/code-payments/code-timelock-server/pkg/database/postgres"
	q "github.com/code-payments/code-timelock-server/pkg/database/query"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

const (
	tableName = "codetimelock__core_transaction"

	allColumns = `id, address, timelock, program, accounts, data, executable_at, is_executed, executed_at, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address  string `db:"address"`
	Timelock string `db:"timelock"`

	Program  string `db:"program"`
	Accounts []byte `db:"accounts"`
	Data     []byte `db:"data"`

	ExecutableAt time.Time `db:"executable_at"`

	IsExecuted bool         `db:"is_executed"`
	ExecutedAt sql.NullTime `db:"executed_at"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *timelocktx.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	accounts := make([]timelock_program.TransactionAccountMeta, len(obj.Accounts))
	for i, account := range obj.Accounts {
		publicKey, err := base58.Decode(account.PublicKey)
		if err != nil {
			return nil, err
		}

		accounts[i] = timelock_program.TransactionAccountMeta{
			PublicKey:  publicKey,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	var executedAt sql.NullTime
	if obj.ExecutedAt != nil {
		executedAt.Valid = true
		executedAt.Time = obj.ExecutedAt.UTC()
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address:  obj.Address,
		Timelock: obj.Timelock,

		Program:  obj.Program,
		Accounts: timelock_program.MarshalTransactionAccountMetas(accounts),
		Data:     data,

		ExecutableAt: obj.ExecutableAt,

		IsExecuted: obj.IsExecuted,
		ExecutedAt: executedAt,

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) (*timelocktx.Record, error) {
	decoded, err := timelock_program.UnmarshalTransactionAccountMetas(obj.Accounts)
	if err != nil {
		return nil, err
	}

	accounts := make([]timelocktx.AccountMeta, len(decoded))
	for i, account := range decoded {
		accounts[i] = timelocktx.AccountMeta{
			PublicKey:  base58.Encode(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	var executedAt *time.Time
	if obj.ExecutedAt.Valid {
		value := obj.ExecutedAt.Time.UTC()
		executedAt = &value
	}

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)

	return &timelocktx.Record{
		Id: uint64(obj.Id.Int64),

		Address:  obj.Address,
		Timelock: obj.Timelock,

		Program:  obj.Program,
		Accounts: accounts,
		Data:     data,

		ExecutableAt: obj.ExecutableAt.UTC(),

		IsExecuted: obj.IsExecuted,
		ExecutedAt: executedAt,

		CreatedAt: obj.CreatedAt.UTC(),
	}, nil
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, timelock, program, accounts, data, executable_at, is_executed, executed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING
				` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Address,
			m.Timelock,

			m.Program,
			m.Accounts,
			m.Data,

			m.ExecutableAt.UTC(),

			m.IsExecuted,
			m.ExecutedAt,

			m.CreatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, timelocktx.ErrTransactionExists)
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT
		` + allColumns + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, timelocktx.ErrTransactionNotFound)
	}
	return res, nil
}

func dbGetAllByTimelock(ctx context.Context, db *sqlx.DB, timelock string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT
		` + allColumns + `
		FROM ` + tableName + `
		WHERE (timelock = $1)`

	opts := []interface{}{timelock}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, timelocktx.ErrTransactionNotFound)
	}
	if len(res) == 0 {
		return nil, timelocktx.ErrTransactionNotFound
	}
	return res, nil
}

func dbGetAllExecutable(ctx context.Context, db *sqlx.DB, at time.Time, after timelocktx.ExecutableCursor, limit uint64) ([]*model, error) {
	res := []*model{}

	query := `SELECT
		` + allColumns + `
		FROM ` + tableName + `
		WHERE is_executed = FALSE AND executable_at <= $1`

	opts := []interface{}{at.UTC()}
	if !after.IsZero() {
		query += ` AND (executable_at, id) > ($2, $3)`
		opts = append(opts, after.ExecutableAt.UTC(), after.Id)
	}

	query += ` ORDER BY executable_at ASC, id ASC`

	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(opts)+1)
		opts = append(opts, limit)
	}

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, timelocktx.ErrTransactionNotFound)
	}
	if len(res) == 0 {
		return nil, timelocktx.ErrTransactionNotFound
	}
	return res, nil
}

func dbGetCountByState(ctx context.Context, db *sqlx.DB, state timelocktx.State) (uint64, error) {
	var res uint64

	var isExecuted bool
	switch state {
	case timelocktx.StateQueued:
	case timelocktx.StateExecuted:
		isExecuted = true
	default:
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM ` + tableName + `
		WHERE is_executed = $1`

	err := db.GetContext(ctx, &res, query, isExecuted)
	if err != nil {
		return 0, err
	}
	return res, nil
}

// dbMarkExecuted flips is_executed with a conditional update, so concurrent
// callers can never both observe a successful transition.
func dbMarkExecuted(ctx context.Context, db *sqlx.DB, address string, executedAt time.Time) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET is_executed = TRUE, executed_at = $2
			WHERE address = $1 AND is_executed = FALSE`

		result, err := tx.ExecContext(ctx, query, address, executedAt.UTC())
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rowsAffected == 1 {
			return nil
		}

		var isExecuted bool
		query = `SELECT is_executed FROM ` + tableName + `
			WHERE address = $1`

		err = tx.GetContext(ctx, &isExecuted, query, address)
		if err != nil {
			return pgutil.CheckNoRows(err, timelocktx.ErrTransactionNotFound)
		}

		return timelocktx.ErrAlreadyExecuted
	})
}
