package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	pgutil "github.com/code-payments/code-timelock-server/pkg/database/postgres"
)

const (
	tableName = "codetimelock__core_timelock"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address string `db:"address"`

	SignerAddress string `db:"signer_address"`
	Nonce         uint   `db:"nonce"`

	DelaySeconds int64 `db:"delay_seconds"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *timelock.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Address: obj.Address,

		SignerAddress: obj.SignerAddress,
		Nonce:         uint(obj.Nonce),

		DelaySeconds: int64(obj.Delay / time.Second),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *timelock.Record {
	return &timelock.Record{
		Id: uint64(obj.Id.Int64),

		Address: obj.Address,

		SignerAddress: obj.SignerAddress,
		Nonce:         uint8(obj.Nonce),

		Delay: time.Duration(obj.DelaySeconds) * time.Second,

		CreatedAt: obj.CreatedAt.UTC(),
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, signer_address, nonce, delay_seconds, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING
				id, address, signer_address, nonce, delay_seconds, created_at`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Address,

			m.SignerAddress,
			m.Nonce,

			m.DelaySeconds,

			m.CreatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, timelock.ErrTimelockExists)
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT
		id, address, signer_address, nonce, delay_seconds, created_at
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, timelock.ErrTimelockNotFound)
	}
	return res, nil
}

func dbGetBySigner(ctx context.Context, db *sqlx.DB, signer string) (*model, error) {
	res := &model{}

	query := `SELECT
		id, address, signer_address, nonce, delay_seconds, created_at
		FROM ` + tableName + `
		WHERE signer_address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, signer)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, timelock.ErrTimelockNotFound)
	}
	return res, nil
}

func dbGetCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName
	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
