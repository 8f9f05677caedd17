package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// Value of limit_in_bytes when a cgroup v1 container has no memory limit
const unrestrictedMemoryLimit = 9223372036854771712

var cgroupMemoryLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",                   // cgroup v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // cgroup v1
}

// GetTotalMemory returns the memory available to the process. Within a
// container, this is the container's memory limit.
func GetTotalMemory() uint64 {
	total := memory.TotalMemory()
	if limit, ok := readCgroupMemoryLimit(cgroupMemoryLimitFiles); ok && limit < total {
		return limit
	}
	return total
}

func readCgroupMemoryLimit(paths []string) (uint64, bool) {
	for _, path := range paths {
		contents, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		value := strings.TrimSpace(string(contents))
		if value == "max" {
			return 0, false
		}

		limit, err := strconv.ParseUint(value, 10, 64)
		if err != nil || limit == 0 || limit == unrestrictedMemoryLimit {
			return 0, false
		}
		return limit, true
	}
	return 0, false
}
