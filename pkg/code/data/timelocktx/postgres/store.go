package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed timelocktx.Store
func New(db *sql.DB) timelocktx.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements timelocktx.Store.Save
func (s *store) Save(ctx context.Context, record *timelocktx.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	res, err := fromModel(model)
	if err != nil {
		return err
	}
	res.CopyTo(record)

	return nil
}

// GetByAddress implements timelocktx.Store.GetByAddress
func (s *store) GetByAddress(ctx context.Context, address string) (*timelocktx.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model)
}

// GetAllByTimelock implements timelocktx.Store.GetAllByTimelock
func (s *store) GetAllByTimelock(ctx context.Context, timelock string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*timelocktx.Record, error) {
	models, err := dbGetAllByTimelock(ctx, s.db, timelock, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	return fromModels(models)
}

// GetAllExecutable implements timelocktx.Store.GetAllExecutable
func (s *store) GetAllExecutable(ctx context.Context, at time.Time, after timelocktx.ExecutableCursor, limit uint64) ([]*timelocktx.Record, error) {
	models, err := dbGetAllExecutable(ctx, s.db, at, after, limit)
	if err != nil {
		return nil, err
	}

	return fromModels(models)
}

// GetCountByState implements timelocktx.Store.GetCountByState
func (s *store) GetCountByState(ctx context.Context, state timelocktx.State) (uint64, error) {
	return dbGetCountByState(ctx, s.db, state)
}

// MarkExecuted implements timelocktx.Store.MarkExecuted
func (s *store) MarkExecuted(ctx context.Context, address string, executedAt time.Time) error {
	return dbMarkExecuted(ctx, s.db, address, executedAt)
}

func fromModels(models []*model) ([]*timelocktx.Record, error) {
	res := make([]*timelocktx.Record, len(models))
	for i, model := range models {
		record, err := fromModel(model)
		if err != nil {
			return nil, err
		}
		res[i] = record
	}
	return res, nil
}
