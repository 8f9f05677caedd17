package pg

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	// Registers the "nrpgx" driver, which is pgx instrumented with New Relic
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = time.Hour
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// DSN returns the connection URL for the config. TLS is left to the network
// between the service and the database.
func (c *Config) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DbName,
		RawQuery: "sslmode=disable",
	}
	return dsn.String()
}

// Open returns a connection pool for the config, once the database responds
// to a ping.
func Open(ctx context.Context, config *Config) (*sql.DB, error) {
	if len(config.Host) == 0 || len(config.DbName) == 0 {
		return nil, errors.New("postgres host and db name are required")
	}

	db, err := sql.Open(driverName, config.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "error opening postgres connection pool")
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "error connecting to postgres at %s", config.Host)
	}

	return db, nil
}
