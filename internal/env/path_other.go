//go:build !windows

package env

import "os"

// DefaultPathStore 在非 Windows 平台上只作用于当前进程；切换 SDK 通过符号链接完成。
func DefaultPathStore() PathStore {
	return NewMemoryPathStore(os.Getenv("PATH"))
}
