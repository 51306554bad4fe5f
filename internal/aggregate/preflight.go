package aggregate

import (
	"fmt"

	"golang.org/x/sys/unix"

	"distiller/internal/services"
)

// minFreeBytes is the free-space floor enforced before a harvest starts. A
// day's worth of articles plus derivatives stays well under this.
const minFreeBytes uint64 = 512 << 20

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (free uint64, err error)

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func checkFreeSpace(statfs statfsFunc, dir string) error {
	free, err := statfs(dir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "aggregate", "preflight",
			fmt.Sprintf("cannot stat filesystem for %s", dir), err)
	}
	if free < minFreeBytes {
		return services.Wrap(services.ErrConfiguration, "aggregate", "preflight",
			fmt.Sprintf("insufficient free space under %s: %d bytes available, need %d", dir, free, minFreeBytes), nil)
	}
	return nil
}
