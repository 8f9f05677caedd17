package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-timelock-server/pkg/cache"
	pg "github.com/code-payments/code-timelock-server/pkg/database/postgres"
	"github.com/code-payments/code-timelock-server/pkg/database/query"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"

	timelock_memory_client "github.com/code-payments/code-timelock-server/pkg/code/data/timelock/memory"
	timelocktx_memory_client "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx/memory"

	timelock_postgres_client "github.com/code-payments/code-timelock-server/pkg/code/data/timelock/postgres"
	timelocktx_postgres_client "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx/postgres"
)

const (
	maxTimelockTransactionReqSize = 100
)

type DatabaseData interface {
	// Timelock
	// --------------------------------------------------------------------------------
	SaveTimelock(ctx context.Context, record *timelock.Record) error
	GetTimelockByAddress(ctx context.Context, address string) (*timelock.Record, error)
	GetTimelockBySigner(ctx context.Context, signer string) (*timelock.Record, error)
	GetTimelockCount(ctx context.Context) (uint64, error)

	// Timelock Transactions
	// --------------------------------------------------------------------------------
	SaveTimelockTransaction(ctx context.Context, record *timelocktx.Record) error
	GetTimelockTransaction(ctx context.Context, address string) (*timelocktx.Record, error)
	GetAllTimelockTransactionsByTimelock(ctx context.Context, timelock string, opts ...query.Option) ([]*timelocktx.Record, error)
	GetAllExecutableTimelockTransactions(ctx context.Context, at time.Time, after timelocktx.ExecutableCursor, limit uint64) ([]*timelocktx.Record, error)
	GetTimelockTransactionCountByState(ctx context.Context, state timelocktx.State) (uint64, error)
	MarkTimelockTransactionExecuted(ctx context.Context, address string, executedAt time.Time) error

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	// This enables more complex transactions that can span many calls across the provider.
	//
	// Note: This highly relies on the store implementations adding explicit support for
	// this, which was added ad hoc at the time of writing this comment.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	timelocks    timelock.Store
	transactions timelocktx.Store

	timelockCache cache.Cache[*timelock.Record]

	db *sqlx.DB
}

func NewDatabaseProvider(dbConfig *pg.Config, configProvider ConfigProvider) (DatabaseData, error) {
	db, err := pg.Open(context.Background(), dbConfig)
	if err != nil {
		return nil, err
	}

	conf := configProvider()

	return &DatabaseProvider{
		timelocks:    timelock_postgres_client.New(db),
		transactions: timelocktx_postgres_client.New(db),

		timelockCache: cache.NewCache[*timelock.Record](int(conf.timelockCacheBudget.Get(context.Background()))),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		timelocks:    timelock_memory_client.New(),
		transactions: timelocktx_memory_client.New(),

		timelockCache: cache.NewCache[*timelock.Record](defaultTimelockCacheBudget),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Timelock
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveTimelock(ctx context.Context, record *timelock.Record) error {
	return dp.timelocks.Save(ctx, record)
}
func (dp *DatabaseProvider) GetTimelockByAddress(ctx context.Context, address string) (*timelock.Record, error) {
	// Timelocks are immutable, so cached entries never go stale
	if dp.timelockCache != nil {
		if cached, ok := dp.timelockCache.Retrieve(address); ok {
			return cached.Clone(), nil
		}
	}

	record, err := dp.timelocks.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	if dp.timelockCache != nil {
		// Losing an insert race is fine, the value is the same
		dp.timelockCache.Insert(address, record.Clone(), 1)
	}

	return record, nil
}
func (dp *DatabaseProvider) GetTimelockBySigner(ctx context.Context, signer string) (*timelock.Record, error) {
	return dp.timelocks.GetBySigner(ctx, signer)
}
func (dp *DatabaseProvider) GetTimelockCount(ctx context.Context) (uint64, error) {
	return dp.timelocks.GetCount(ctx)
}

// Timelock Transactions
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) SaveTimelockTransaction(ctx context.Context, record *timelocktx.Record) error {
	return dp.transactions.Save(ctx, record)
}
func (dp *DatabaseProvider) GetTimelockTransaction(ctx context.Context, address string) (*timelocktx.Record, error) {
	return dp.transactions.GetByAddress(ctx, address)
}
func (dp *DatabaseProvider) GetAllTimelockTransactionsByTimelock(ctx context.Context, timelock string, opts ...query.Option) ([]*timelocktx.Record, error) {
	req, err := query.DefaultPaginationHandlerWithLimit(maxTimelockTransactionReqSize, opts...)
	if err != nil {
		return nil, err
	}

	return dp.transactions.GetAllByTimelock(ctx, timelock, req.Cursor, req.Limit, req.SortBy)
}
func (dp *DatabaseProvider) GetAllExecutableTimelockTransactions(ctx context.Context, at time.Time, after timelocktx.ExecutableCursor, limit uint64) ([]*timelocktx.Record, error) {
	return dp.transactions.GetAllExecutable(ctx, at, after, limit)
}
func (dp *DatabaseProvider) GetTimelockTransactionCountByState(ctx context.Context, state timelocktx.State) (uint64, error) {
	return dp.transactions.GetCountByState(ctx, state)
}
func (dp *DatabaseProvider) MarkTimelockTransactionExecuted(ctx context.Context, address string, executedAt time.Time) error {
	return dp.transactions.MarkExecuted(ctx, address, executedAt)
}
