//go:build linux

package isolation

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Default ceilings applied to the worker process itself, before it
// reads a single byte of untrusted input. The address-space ceiling
// applies only when the job spec carries no positive memory limit; the
// CPU and open-file ceilings are fixed.
const (
	defaultAddressSpaceBytes = 512 << 20
	defaultCPUSeconds        = 30
	defaultMaxOpenFiles      = 64
)

// applyResourceLimits sets RLIMIT_AS (virtual memory), RLIMIT_CPU, and
// RLIMIT_NOFILE on the calling process, and marks it as never able to
// gain privileges via PR_SET_NO_NEW_PRIVS. It must run before any
// untrusted input is read, since the worker's own self-exec pattern
// means this is the only place such limits get applied. memoryLimitBytes
// overrides the address-space ceiling when positive, letting the
// configured memory_limit_bytes reach the actual RLIMIT_AS; a
// non-positive value falls back to defaultAddressSpaceBytes.
func applyResourceLimits(memoryLimitBytes int64) error {
	addressSpace := uint64(defaultAddressSpaceBytes)
	if memoryLimitBytes > 0 {
		addressSpace = uint64(memoryLimitBytes)
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: addressSpace, Max: addressSpace}); err != nil {
		return errors.Wrap(err, "isolation: setrlimit RLIMIT_AS")
	}
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: defaultCPUSeconds, Max: defaultCPUSeconds}); err != nil {
		return errors.Wrap(err, "isolation: setrlimit RLIMIT_CPU")
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Cur: defaultMaxOpenFiles, Max: defaultMaxOpenFiles}); err != nil {
		return errors.Wrap(err, "isolation: setrlimit RLIMIT_NOFILE")
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return errors.Wrap(err, "isolation: prctl PR_SET_NO_NEW_PRIVS")
	}
	return nil
}
