package cache

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrKeyExists = errors.New("key already exists in cache")

// Cache is a weighted LRU cache. Each entry carries a weight, and the least
// recently used entries are evicted once the total weight passes the budget.
type Cache[V any] interface {
	GetWeight() int
	GetBudget() int

	// Insert adds a new entry. Existing keys are rejected with ErrKeyExists.
	Insert(key string, value V, weight int) error

	// Retrieve returns the value for key and marks it as recently used
	Retrieve(key string) (V, bool)

	Clear()
}

type entry[V any] struct {
	key    string
	value  V
	weight int
}

type cache[V any] struct {
	log *logrus.Entry

	mu      sync.Mutex
	order   *list.List // Front is most recently used
	entries map[string]*list.Element
	weight  int
	budget  int
}

// NewCache returns an empty Cache with the provided weight budget
func NewCache[V any](budget int) Cache[V] {
	return &cache[V]{
		log:     logrus.StandardLogger().WithField("type", "cache"),
		order:   list.New(),
		entries: make(map[string]*list.Element),
		budget:  budget,
	}
}

func (c *cache[V]) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache[V]) GetBudget() int {
	return c.budget
}

func (c *cache[V]) Insert(key string, value V, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return ErrKeyExists
	}

	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value, weight: weight})
	c.weight += weight

	for c.weight > c.budget {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}

		evicted := c.order.Remove(oldest).(*entry[V])
		delete(c.entries, evicted.key)
		c.weight -= evicted.weight

		c.log.WithFields(logrus.Fields{
			"key":    evicted.key,
			"weight": evicted.weight,
			"spare":  c.budget - c.weight,
		}).Trace("cache eviction")
	}

	return nil
}

func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	return element.Value.(*entry[V]).value, true
}

func (c *cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.weight = 0
}
