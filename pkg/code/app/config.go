package app

import (
	"crypto/ed25519"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	pg "github.com/code-payments/code-timelock-server/pkg/database/postgres"
	grpc_app "github.com/code-payments/code-timelock-server/pkg/grpc/app"
)

const (
	DataStoreMemory   = "memory"
	DataStorePostgres = "postgres"

	InvokerLocal   = "local"
	InvokerWebhook = "webhook"
)

type PostgresConfig struct {
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	DbName             string `mapstructure:"db_name"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	RootKey     string        `mapstructure:"root_key"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type WebhookConfig struct {
	// Base58 encoded ed25519 private key that signs invocation tokens
	SignerKey string `mapstructure:"signer_key"`

	// Base58 program ID to endpoint URL
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// Config is the timelock application's section of the base app config
type Config struct {
	DataStore string         `mapstructure:"data_store"`
	Postgres  PostgresConfig `mapstructure:"postgres"`

	// Distributed execution locks are only used when endpoints are set
	Etcd EtcdConfig `mapstructure:"etcd"`

	Invoker string        `mapstructure:"invoker"`
	Webhook WebhookConfig `mapstructure:"webhook"`

	// Programs served by the local invoker
	PuppetPrograms []string `mapstructure:"puppet_programs"`

	EnableKeeper   bool          `mapstructure:"enable_keeper"`
	KeeperInterval time.Duration `mapstructure:"keeper_interval"`
}

var defaultConfig = Config{
	DataStore: DataStoreMemory,
	Postgres: PostgresConfig{
		Port: 5432,
	},

	Etcd: EtcdConfig{
		DialTimeout: 5 * time.Second,
		RootKey:     "/timelock",
		LockTTL:     10 * time.Second,
	},

	Invoker: InvokerLocal,

	EnableKeeper:   true,
	KeeperInterval: time.Second,
}

func decodeConfig(raw grpc_app.Config) (*Config, error) {
	config := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.DataStore {
	case DataStoreMemory:
	case DataStorePostgres:
		if len(c.Postgres.Host) == 0 || len(c.Postgres.DbName) == 0 {
			return errors.New("postgres host and db name are required")
		}
	default:
		return errors.Errorf("unsupported data store: %s", c.DataStore)
	}

	switch c.Invoker {
	case InvokerLocal:
		for _, program := range c.PuppetPrograms {
			if _, err := decodePublicKey(program); err != nil {
				return errors.Wrapf(err, "invalid puppet program %s", program)
			}
		}
	case InvokerWebhook:
		if _, err := c.Webhook.getSigner(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unsupported invoker: %s", c.Invoker)
	}

	if c.EnableKeeper && c.KeeperInterval <= 0 {
		return errors.New("keeper interval must be positive")
	}

	return nil
}

func (c *PostgresConfig) toDatabaseConfig() *pg.Config {
	return &pg.Config{
		User:               c.User,
		Password:           c.Password,
		Host:               c.Host,
		Port:               c.Port,
		DbName:             c.DbName,
		MaxOpenConnections: c.MaxOpenConnections,
		MaxIdleConnections: c.MaxIdleConnections,
	}
}

func (c *WebhookConfig) getSigner() (ed25519.PrivateKey, error) {
	decoded, err := base58.Decode(c.SignerKey)
	if err != nil || len(decoded) != ed25519.PrivateKeySize {
		return nil, errors.New("webhook signer key must be a base58 ed25519 private key")
	}
	return decoded, nil
}

func decodePublicKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}
