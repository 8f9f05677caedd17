package app

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"

	"github.com/code-payments/code-timelock-server/pkg/clock"
	async_timelock "github.com/code-payments/code-timelock-server/pkg/code/async/timelock"
	code_data "github.com/code-payments/code-timelock-server/pkg/code/data"
	"github.com/code-payments/code-timelock-server/pkg/code/invoke/local"
	"github.com/code-payments/code-timelock-server/pkg/code/invoke/webhook"
	web_timelock "github.com/code-payments/code-timelock-server/pkg/code/server/web/timelock"
	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
	grpc_app "github.com/code-payments/code-timelock-server/pkg/grpc/app"
	"github.com/code-payments/code-timelock-server/pkg/lock"
	etcd_lock "github.com/code-payments/code-timelock-server/pkg/lock/etcd"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
)

type timelockApp struct {
	log *logrus.Entry

	config *Config
	data   code_data.Provider

	etcdClient  *v3.Client
	lockManager *etcd_lock.LockManager

	invoker  timelock.Invoker
	executor *timelock.Executor
	api      *web_timelock.Server

	keeperCancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	stopOnce     sync.Once
}

// New returns the timelock service as a runnable app
func New() grpc_app.App {
	return &timelockApp{
		log:        logrus.StandardLogger().WithField("type", "timelock/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements grpc_app.App.Init
func (a *timelockApp) Init(rawConfig grpc_app.Config, metricsProvider *newrelic.Application) error {
	config, err := decodeConfig(rawConfig)
	if err != nil {
		return err
	}
	a.config = config

	a.data, err = newDataProvider(config)
	if err != nil {
		return errors.Wrap(err, "error initializing data provider")
	}

	var distributedLocks lock.Manager
	if len(config.Etcd.Endpoints) > 0 {
		a.etcdClient, err = v3.New(v3.Config{
			Endpoints:   config.Etcd.Endpoints,
			DialTimeout: config.Etcd.DialTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "error creating etcd client")
		}

		hostname, _ := os.Hostname()
		a.lockManager, err = etcd_lock.NewLockManager(a.etcdClient, config.Etcd.RootKey, config.Etcd.LockTTL, hostname)
		if err != nil {
			return errors.Wrap(err, "error creating lock manager")
		}
		distributedLocks = a.lockManager
	}

	a.invoker, err = newInvoker(config)
	if err != nil {
		return errors.Wrap(err, "error initializing invoker")
	}

	clk := clock.Real()
	a.executor = timelock.NewExecutor(a.data, a.invoker, clk, distributedLocks, timelock.WithEnvConfigs())
	a.api = web_timelock.NewTimelockServer(a.executor, web_timelock.WithEnvConfigs())

	if config.EnableKeeper {
		ctx, cancel := context.WithCancel(metrics.NewContext(context.Background(), metricsProvider))
		a.keeperCancel = cancel

		keeper := async_timelock.New(a.data, a.executor, clk, async_timelock.WithEnvConfigs())
		go func() {
			err := keeper.Start(ctx, config.KeeperInterval)
			if err != nil && err != context.Canceled {
				a.log.WithError(err).Warn("timelock keeper stopped unexpectedly")
				a.shutdown()
			}
		}()
	}

	a.log.WithFields(logrus.Fields{
		"data_store": config.DataStore,
		"invoker":    config.Invoker,
		"keeper":     config.EnableKeeper,
		"etcd":       len(config.Etcd.Endpoints) > 0,
	}).Info("timelock app initialized")

	return nil
}

// RegisterWithGRPC implements grpc_app.App.RegisterWithGRPC. Only the health
// service is served over gRPC.
func (a *timelockApp) RegisterWithGRPC(_ *grpc.Server) {
}

// RegisterWithHTTP implements grpc_app.App.RegisterWithHTTP
func (a *timelockApp) RegisterWithHTTP(mux *http.ServeMux) {
	for path, handler := range a.api.GetHandlers() {
		mux.HandleFunc(path, handler)
	}
}

// ShutdownChan implements grpc_app.App.ShutdownChan
func (a *timelockApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements grpc_app.App.Stop
func (a *timelockApp) Stop() {
	a.stopOnce.Do(func() {
		if a.keeperCancel != nil {
			a.keeperCancel()
		}

		if a.lockManager != nil {
			a.lockManager.Close()
		}

		if a.etcdClient != nil {
			if err := a.etcdClient.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing etcd client")
			}
		}

		a.shutdown()
	})
}

func (a *timelockApp) shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

func newDataProvider(config *Config) (code_data.Provider, error) {
	switch config.DataStore {
	case DataStorePostgres:
		return code_data.NewDataProvider(config.Postgres.toDatabaseConfig(), code_data.WithEnvConfigs())
	default:
		return code_data.NewMemoryDataProvider(), nil
	}
}

func newInvoker(config *Config) (timelock.Invoker, error) {
	switch config.Invoker {
	case InvokerWebhook:
		signer, err := config.Webhook.getSigner()
		if err != nil {
			return nil, err
		}
		return webhook.New(signer, config.Webhook.Endpoints, webhook.WithEnvConfigs())
	default:
		router := local.NewRouter()
		for _, program := range config.PuppetPrograms {
			programId, err := decodePublicKey(program)
			if err != nil {
				return nil, err
			}

			if err := router.Register(programId, local.NewPuppetProgram(programId)); err != nil {
				return nil, err
			}
		}
		return router, nil
	}
}
