package sync

import (
	base "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripedChannel_HappyPath(t *testing.T) {
	c := NewStripedChannel[int](32, 256)

	channels := c.GetChannels()
	require.Len(t, channels, 32)

	results := make([][]int, len(channels))

	var wg base.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(stripe int, receiver <-chan int) {
			defer wg.Done()
			for value := range receiver {
				results[stripe] = append(results[stripe], value)
			}
		}(i, channel)
	}

	for i := 0; i < 256; i++ {
		for j := 0; j < 10; j++ {
			assert.True(t, c.Send([]byte{byte(i)}, i*10+j))
		}
	}

	c.Close()
	c.Close()
	wg.Wait()

	perKey := make(map[int][]int)
	for _, result := range results {
		for _, value := range result {
			perKey[value/10] = append(perKey[value/10], value%10)
		}
	}

	// Every key landed on a single stripe, in send order
	require.Len(t, perKey, 256)
	for _, sequence := range perKey {
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sequence)
	}
}

func TestStripedChannel_FullQueue(t *testing.T) {
	c := NewStripedChannel[int](32, 256)

	for i := 0; i < 256; i++ {
		assert.True(t, c.Send([]byte{1}, 1))
	}
	assert.False(t, c.Send([]byte{1}, 1))

	// Only a stripe other than the full one accepts more
	for i := 2; i < 256; i++ {
		if c.ring.shard([]byte{byte(i)}) != c.ring.shard([]byte{1}) {
			assert.True(t, c.Send([]byte{byte(i)}, i))
			return
		}
	}
	t.Fatal("every key mapped to the same stripe")
}
