package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liangyou/dnvm/internal/lock"
	"github.com/liangyou/dnvm/internal/remote"
	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/internal/storage"
	"github.com/liangyou/dnvm/internal/version"
	"github.com/liangyou/dnvm/pkg/models"
)

// 进程退出码。
const (
	ExitOK = iota
	ExitError
	ExitUsage
	ExitLockTimeout
	ExitManifest
	ExitIndexUnavailable
	ExitNotFound
	ExitConflict
	ExitInstallFailed
)

// usageError 表示参数错误。
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode 把错误映射为退出码，nil 返回 ExitOK。
func ExitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	case errors.Is(err, lock.ErrTimeout):
		return ExitLockTimeout
	case errors.Is(err, storage.ErrManifestCorrupted), errors.Is(err, storage.ErrManifestIO):
		return ExitManifest
	case errors.Is(err, remote.ErrCouldntFetchIndex):
		return ExitIndexUnavailable
	case errors.Is(err, version.ErrInstallFailed):
		return ExitInstallFailed
	case errors.Is(err, models.ErrChannelAlreadyTracked), errors.Is(err, version.ErrAlreadyInstalled):
		return ExitConflict
	case errors.Is(err, models.ErrChannelNotTracked),
		errors.Is(err, resolve.ErrUnknownChannel),
		errors.Is(err, resolve.ErrNoCompatibleVersion),
		errors.Is(err, version.ErrNotInstalled),
		errors.Is(err, version.ErrBadDirName),
		errors.Is(err, version.ErrGlobalJSONNotFound):
		return ExitNotFound
	default:
		return ExitError
	}
}

func exactArgs(n int, what string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("expected %s", what)
		}
		return nil
	}
}
