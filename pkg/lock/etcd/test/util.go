package test

import (
	"context"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/code-timelock-server/pkg/retry"
	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
)

const (
	containerName     = "quay.io/coreos/etcd"
	containerVersion  = "v3.5.13"
	containerAutoKill = 120 * time.Second

	clientPort = "2379/tcp"
)

// StartEtcd starts a single node etcd container and returns a client connected
// to it. closeFunc removes the container.
func StartEtcd(pool *dockertest.Pool) (client *v3.Client, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"ETCD_LISTEN_CLIENT_URLS=http://0.0.0.0:2379",
			"ETCD_ADVERTISE_CLIENT_URLS=http://0.0.0.0:2379",
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
			logrus.StandardLogger().WithError(err).Warn("failed to purge etcd container")
		}
	}

	// Expire never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	client, err = v3.New(v3.Config{
		Endpoints:   []string{fmt.Sprintf("localhost:%s", resource.GetPort(clientPort))},
		DialTimeout: time.Second,
	})
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "error creating etcd client")
	}

	_, err = retry.Retry(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			_, err := client.Get(ctx, "/startup")
			return err
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		client.Close()
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for etcd container to become available")
	}

	return client, func() {
		client.Close()
		closeFunc()
	}, nil
}
