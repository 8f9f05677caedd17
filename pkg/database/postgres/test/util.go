package test

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	pg "github.com/code-payments/code-timelock-server/pkg/database/postgres"
	"github.com/code-payments/code-timelock-server/pkg/retry"
	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
)

const (
	containerName     = "postgres"
	containerVersion  = "14-alpine"
	containerAutoKill = 120 * time.Second

	port     = 5432
	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"
)

// StartPostgresDB starts a postgres container and returns a client connected
// to it. closeFunc removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"listen_addresses = '*'",
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start resource")
	}

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			logrus.StandardLogger().WithError(err).Warn("failed to purge postgres container")
		}
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	hostPort, err := strconv.Atoi(resource.GetPort(strconv.Itoa(port) + "/tcp"))
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "invalid mapped postgres port")
	}

	config := &pg.Config{
		User:     user,
		Password: password,
		Host:     "localhost",
		Port:     hostPort,
		DbName:   dbname,
	}

	_, err = retry.Retry(
		func() error {
			db, err = sql.Open("pgx", config.DSN())
			if err != nil {
				return err
			}

			if err := db.Ping(); err != nil {
				db.Close()
				return err
			}
			return nil
		},
		retry.Limit(50),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container to become available")
	}

	return db, closeFunc, nil
}
