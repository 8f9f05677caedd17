package sync

import (
	"encoding/binary"
	"strconv"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

const defaultReplicationFactor = 200

// ring is a consistent hash ring over the member indices [0, members)
type ring struct {
	points *treemap.Map

	// Cached, since treemap.Map.Min is O(log n)
	first int
}

func newRing(members int, replicationFactor uint) *ring {
	points := treemap.NewWith(utils.Int64Comparator)

	var seed [12]byte
	for member := 0; member < members; member++ {
		memberHash, _ := murmur3.Sum128([]byte("member" + strconv.Itoa(member)))
		binary.LittleEndian.PutUint64(seed[:8], memberHash)

		for replica := uint(0); replica < replicationFactor; replica++ {
			binary.LittleEndian.PutUint32(seed[8:], uint32(replica))
			point, _ := murmur3.Sum128(seed[:])
			points.Put(int64(point), member)
		}
	}

	r := &ring{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

// shard returns the member owning key, which is the first point clockwise
// from the key's hash
func (r *ring) shard(key []byte) int {
	hash, _ := murmur3.Sum128(key)

	_, member := r.points.Ceiling(int64(hash))
	if member == nil {
		return r.first
	}
	return member.(int)
}
