package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
)

type store struct {
	mu      sync.Mutex
	records []*timelocktx.Record
	last    uint64
}

type ById []*timelocktx.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

type ByExecutableAt []*timelocktx.Record

func (a ByExecutableAt) Len() int      { return len(a) }
func (a ByExecutableAt) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByExecutableAt) Less(i, j int) bool {
	if a[i].ExecutableAt.Equal(a[j].ExecutableAt) {
		return a[i].Id < a[j].Id
	}
	return a[i].ExecutableAt.Before(a[j].ExecutableAt)
}

// New returns a new in memory timelocktx.Store
func New() timelocktx.Store {
	return &store{}
}

// Save implements timelocktx.Store.Save
func (s *store) Save(_ context.Context, data *timelocktx.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByAddress(data.Address); item != nil {
		return timelocktx.ErrTransactionExists
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

// GetByAddress implements timelocktx.Store.GetByAddress
func (s *store) GetByAddress(_ context.Context, address string) (*timelocktx.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByAddress(address); item != nil {
		return item.Clone(), nil
	}
	return nil, timelocktx.ErrTransactionNotFound
}

// GetAllByTimelock implements timelocktx.Store.GetAllByTimelock
func (s *store) GetAllByTimelock(_ context.Context, timelock string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*timelocktx.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*timelocktx.Record
	for _, item := range s.records {
		if item.Timelock == timelock {
			items = append(items, item)
		}
	}

	res := s.filter(items, cursor, limit, direction)
	if len(res) == 0 {
		return nil, timelocktx.ErrTransactionNotFound
	}

	return cloneAll(res), nil
}

// GetAllExecutable implements timelocktx.Store.GetAllExecutable
func (s *store) GetAllExecutable(_ context.Context, at time.Time, after timelocktx.ExecutableCursor, limit uint64) ([]*timelocktx.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*timelocktx.Record
	for _, item := range s.records {
		if item.IsExecuted || !item.IsExecutable(at) {
			continue
		}
		if after.IsZero() || after.IsBefore(item) {
			res = append(res, item)
		}
	}

	if len(res) == 0 {
		return nil, timelocktx.ErrTransactionNotFound
	}

	sort.Sort(ByExecutableAt(res))

	if limit > 0 && len(res) > int(limit) {
		res = res[:limit]
	}

	return cloneAll(res), nil
}

// GetCountByState implements timelocktx.Store.GetCountByState
func (s *store) GetCountByState(_ context.Context, state timelocktx.State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.State() == state {
			count++
		}
	}
	return count, nil
}

// MarkExecuted implements timelocktx.Store.MarkExecuted
func (s *store) MarkExecuted(_ context.Context, address string, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByAddress(address)
	if item == nil {
		return timelocktx.ErrTransactionNotFound
	}

	if item.IsExecuted {
		return timelocktx.ErrAlreadyExecuted
	}

	item.IsExecuted = true
	item.ExecutedAt = &executedAt

	return nil
}

func (s *store) findByAddress(address string) *timelocktx.Record {
	for _, item := range s.records {
		if address == item.Address {
			return item
		}
	}
	return nil
}

func (s *store) filter(items []*timelocktx.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*timelocktx.Record {
	var start uint64

	start = 0
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*timelocktx.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	}

	if limit > 0 && len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func cloneAll(items []*timelocktx.Record) []*timelocktx.Record {
	res := make([]*timelocktx.Record, len(items))
	for i, item := range items {
		res[i] = item.Clone()
	}
	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.last = 0
}
