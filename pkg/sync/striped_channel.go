package sync

import (
	base "sync"
)

// StripedChannel consistently maps a key space onto a fixed set of buffered
// channels. Values sent with the same key arrive on the same channel, in
// send order.
type StripedChannel[T any] struct {
	channels  []chan T
	ring      *ring
	closeOnce base.Once
}

// NewStripedChannel returns a new StripedChannel of count channels, each
// buffering up to queueSize values.
func NewStripedChannel[T any](count, queueSize uint) *StripedChannel[T] {
	if count == 0 {
		count = 1
	}

	channels := make([]chan T, count)
	for i := range channels {
		channels[i] = make(chan T, queueSize)
	}

	return &StripedChannel[T]{
		channels: channels,
		ring:     newRing(int(count), defaultReplicationFactor),
	}
}

// GetChannels returns the receiving side of every stripe
func (c *StripedChannel[T]) GetChannels() []<-chan T {
	receivers := make([]<-chan T, len(c.channels))
	for i, channel := range c.channels {
		receivers[i] = channel
	}
	return receivers
}

// Send is a non-blocking send to the stripe for key. It returns false when
// that stripe's buffer is full.
func (c *StripedChannel[T]) Send(key []byte, value T) bool {
	select {
	case c.channels[c.ring.shard(key)] <- value:
		return true
	default:
		return false
	}
}

// BlockingSend is Send, waiting for buffer space instead of failing
func (c *StripedChannel[T]) BlockingSend(key []byte, value T) {
	c.channels[c.ring.shard(key)] <- value
}

// Close closes every stripe. It's safe to call more than once.
func (c *StripedChannel[T]) Close() {
	c.closeOnce.Do(func() {
		for _, channel := range c.channels {
			close(channel)
		}
	})
}
