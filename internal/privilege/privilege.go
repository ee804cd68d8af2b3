package privilege

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
)

var ErrNotRoot = errors.New("root is required")

func IsRoot() bool {
	return unix.Geteuid() == 0
}

// Check fails when root is required and the effective user is not root.
// Reading the pagemap of another process needs CAP_SYS_ADMIN, without it the PFNs read as zero.
func Check(requireRoot bool) error {
	if requireRoot && !IsRoot() {
		return ErrNotRoot
	}

	return nil
}

// CheckProcess verifies the target process exists before anything is read from it.
func CheckProcess(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}

	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("failed to check pid %d: %w", pid, err)
	}

	if !exists {
		return fmt.Errorf("pid %d: %w", pid, procfs.ErrProcessNotFound)
	}

	return nil
}
