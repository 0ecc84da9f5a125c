package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"reframe/internal/ffmpeg"
	"reframe/internal/services"
)

// minFreeBytes is the smallest amount of free space on the output volume
// accepted before spawning an encode. Transcodes routinely write multiple
// gigabytes; refusing early beats a half-written file.
const minFreeBytes = 512 * 1024 * 1024

// statfs reports free bytes on the volume holding path. Swapped in tests.
var statfs = func(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// checkJobPreflight verifies the request can run before any process is
// spawned: the input must be a readable regular file, the output directory
// must exist, and the output volume must have room.
func checkJobPreflight(req ffmpeg.Request) error {
	info, err := os.Stat(req.InputPath)
	if err != nil {
		return services.Wrap(services.ErrInvalidRequest, "daemon", "preflight", fmt.Sprintf("input %s not accessible", req.InputPath), err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrInvalidRequest, "daemon", "preflight", fmt.Sprintf("input %s is not a regular file", req.InputPath), nil)
	}

	outDir := filepath.Dir(req.OutputPath)
	dirInfo, err := os.Stat(outDir)
	if err != nil || !dirInfo.IsDir() {
		return services.Wrap(services.ErrInvalidRequest, "daemon", "preflight", fmt.Sprintf("output directory %s not available", outDir), err)
	}

	free, err := statfs(outDir)
	if err != nil {
		// statfs can fail on exotic filesystems; do not block the job on it.
		return nil
	}
	if free < minFreeBytes {
		return services.Wrap(services.ErrInvalidRequest, "daemon", "preflight",
			fmt.Sprintf("output volume has %d MiB free, need at least %d MiB", free/(1024*1024), minFreeBytes/(1024*1024)), nil)
	}
	return nil
}
