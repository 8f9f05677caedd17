package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
)

type store struct {
	mu      sync.Mutex
	records []*timelock.Record
	last    uint64
}

// New returns a new in memory timelock.Store
func New() timelock.Store {
	return &store{}
}

// Save implements timelock.Store.Save
func (s *store) Save(_ context.Context, data *timelock.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByAddress(data.Address); item != nil {
		return timelock.ErrTimelockExists
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	c := data.Clone()
	s.records = append(s.records, c)

	return nil
}

// GetByAddress implements timelock.Store.GetByAddress
func (s *store) GetByAddress(_ context.Context, address string) (*timelock.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByAddress(address); item != nil {
		return item.Clone(), nil
	}
	return nil, timelock.ErrTimelockNotFound
}

// GetBySigner implements timelock.Store.GetBySigner
func (s *store) GetBySigner(_ context.Context, signer string) (*timelock.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.records {
		if signer == item.SignerAddress {
			return item.Clone(), nil
		}
	}
	return nil, timelock.ErrTimelockNotFound
}

// GetCount implements timelock.Store.GetCount
func (s *store) GetCount(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) findByAddress(address string) *timelock.Record {
	for _, item := range s.records {
		if address == item.Address {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.last = 0
}
