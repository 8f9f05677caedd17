package etcd

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/code-payments/code-timelock-server/pkg/lock"
)

const (
	minLockTTL = time.Second
	maxLockTTL = time.Minute

	sessionRetryInterval = time.Second
)

var (
	ErrManagerClosed     = errors.New("lock manager is closed")
	ErrConcurrentAcquire = errors.New("lock is already being acquired or held")
)

// LockManager is a lock.Manager backed by etcd elections. All locks share a
// single lease-backed session, which is recreated whenever it expires.
type LockManager struct {
	log     *logrus.Entry
	client  *v3.Client
	rootKey string
	ttl     int
	value   string

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	session *concurrency.Session
}

// NewLockManager returns a LockManager rooted at rootKey. Lock holders are
// identified by value, and hold their locks for at most ttl after losing
// contact with the cluster.
func NewLockManager(client *v3.Client, rootKey string, ttl time.Duration, value string) (*LockManager, error) {
	if ttl < minLockTTL || ttl > maxLockTTL {
		return nil, errors.Errorf("invalid lock ttl %s: must be within [%s, %s]", ttl, minLockTTL, maxLockTTL)
	}

	lm := &LockManager{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "lock/etcd/manager",
			"root": rootKey,
		}),
		client:  client,
		rootKey: rootKey,
		ttl:     int(ttl.Round(time.Second).Seconds()),
		value:   value,
		closed:  make(chan struct{}),
	}

	session, err := lm.newSession()
	if err != nil {
		return nil, errors.Wrap(err, "error creating etcd session")
	}
	lm.session = session

	go lm.keepSession()

	return lm, nil
}

// Create implements lock.Manager.Create
func (lm *LockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	if _, err := lm.currentSession(); err != nil {
		return nil, err
	}

	key := path.Join(lm.rootKey, name)
	return &Lock{
		log: lm.log.WithFields(logrus.Fields{
			"type": "lock/etcd/lock",
			"key":  key,
		}),
		manager: lm,
		key:     key,
	}, nil
}

// Close releases every lock held through the manager
func (lm *LockManager) Close() {
	lm.closeOnce.Do(func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()

		close(lm.closed)

		if err := lm.session.Close(); err != nil {
			lm.log.WithError(err).Warn("failure closing etcd session")
		}
		lm.session = nil
	})
}

func (lm *LockManager) newSession() (*concurrency.Session, error) {
	return concurrency.NewSession(
		lm.client,
		concurrency.WithTTL(lm.ttl),
		concurrency.WithContext(v3.WithRequireLeader(context.Background())),
	)
}

func (lm *LockManager) currentSession() (*concurrency.Session, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.session == nil {
		return nil, ErrManagerClosed
	}
	return lm.session, nil
}

// keepSession replaces the session whenever its lease is lost, which can
// happen after extended leaderless periods or connectivity loss.
func (lm *LockManager) keepSession() {
	for {
		session, err := lm.currentSession()
		if err != nil {
			return
		}

		select {
		case <-lm.closed:
			return
		case <-session.Done():
		}

		lm.log.Info("etcd session expired, recreating")

		for {
			replacement, err := lm.newSession()
			if err == nil {
				lm.mu.Lock()
				if lm.session == nil {
					lm.mu.Unlock()
					replacement.Close()
					return
				}
				lm.session = replacement
				lm.mu.Unlock()
				break
			}

			lm.log.WithError(err).Warn("failure recreating etcd session")

			select {
			case <-lm.closed:
				return
			case <-time.After(sessionRetryInterval):
			}
		}
	}
}

// Lock is a lock.DistributedLock for a single etcd key
type Lock struct {
	log     *logrus.Entry
	manager *LockManager
	key     string

	mu       sync.Mutex
	election *concurrency.Election
}

// Acquire implements lock.DistributedLock.Acquire
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.election != nil {
		return nil, ErrConcurrentAcquire
	}

	session, err := l.manager.currentSession()
	if err != nil {
		return nil, err
	}

	campaignCtx, cancel := context.WithCancel(ctx)

	election := concurrency.NewElection(session, l.key)
	if err := election.Campaign(campaignCtx, l.manager.value); err != nil {
		cancel()
		return nil, errors.Wrap(err, "error campaigning for lock")
	}

	l.log.Debug("lock acquired")
	l.election = election

	watchCh := session.Client().Watch(v3.WithRequireLeader(campaignCtx), election.Key(), v3.WithRev(election.Rev()))

	lost := make(chan struct{})
	go func() {
		defer cancel()
		defer l.release(ctx, election)

		// Holders are notified before resigning, since resigning blocks while
		// the cluster has no leader
		defer close(lost)

		l.watch(session, election, watchCh)
	}()

	return lost, nil
}

func (l *Lock) watch(session *concurrency.Session, election *concurrency.Election, watchCh v3.WatchChan) {
	for {
		select {
		case <-session.Done():
			l.log.Warn("etcd session ended, releasing lock")
			return

		case resp, ok := <-watchCh:
			if !ok {
				return
			}

			if err := resp.Err(); err != nil {
				l.log.WithError(err).Warn("failure watching lock key")
				return
			}

			for _, event := range resp.Events {
				switch event.Type {
				case mvccpb.PUT:
					if event.Kv.CreateRevision != election.Rev() {
						l.log.Warn("lock key was recreated, releasing lock")
						return
					}
				case mvccpb.DELETE:
					l.log.Trace("lock key was deleted")
					return
				}
			}
		}
	}
}

func (l *Lock) release(ctx context.Context, election *concurrency.Election) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.election != election {
		return
	}

	if err := election.Resign(ctx); err != nil {
		l.log.WithError(err).Warn("failure resigning lock")
	}
	l.election = nil
}

// Unlock implements lock.DistributedLock.Unlock
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.election == nil {
		return nil
	}

	err := l.election.Resign(ctx)
	l.election = nil
	return err
}

// IsLocked implements lock.DistributedLock.IsLocked
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.election != nil && l.election.Key() != ""
}
