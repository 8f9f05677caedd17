package data

import (
	pg "github.com/code-payments/code-timelock-server/pkg/database/postgres"
)

type Provider interface {
	DatabaseData

	GetDatabaseDataProvider() DatabaseData
}

type provider struct {
	*DatabaseProvider
}

func NewDataProvider(dbConfig *pg.Config, configProvider ConfigProvider) (Provider, error) {
	db, err := NewDatabaseProvider(dbConfig, configProvider)
	if err != nil {
		return nil, err
	}

	return &provider{
		DatabaseProvider: db.(*DatabaseProvider),
	}, nil
}

// NewMemoryDataProvider returns a Provider backed by in memory stores. State
// doesn't survive the process.
func NewMemoryDataProvider() Provider {
	return &provider{
		DatabaseProvider: NewTestDatabaseProvider().(*DatabaseProvider),
	}
}

func NewTestDataProvider() Provider {
	return NewMemoryDataProvider()
}

func (p *provider) GetDatabaseDataProvider() DatabaseData {
	return p.DatabaseProvider
}
