package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed timelock.Store
func New(db *sql.DB) timelock.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements timelock.Store.Save
func (s *store) Save(ctx context.Context, record *timelock.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	res := fromModel(model)
	res.CopyTo(record)

	return nil
}

// GetByAddress implements timelock.Store.GetByAddress
func (s *store) GetByAddress(ctx context.Context, address string) (*timelock.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetBySigner implements timelock.Store.GetBySigner
func (s *store) GetBySigner(ctx context.Context, signer string) (*timelock.Record, error) {
	model, err := dbGetBySigner(ctx, s.db, signer)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetCount implements timelock.Store.GetCount
func (s *store) GetCount(ctx context.Context) (uint64, error) {
	return dbGetCount(ctx, s.db)
}
