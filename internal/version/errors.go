package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liangyou/dnvm/pkg/models"
)

var (
	// ErrInstallFailed 表示下载或解压 SDK 失败，清单保持不变。
	ErrInstallFailed = errors.New("install failed")
	// ErrAlreadyInstalled 表示目标目录中已存在该 SDK 版本。
	ErrAlreadyInstalled = errors.New("sdk already installed")
	// ErrNotInstalled 表示要卸载的 SDK 不存在。
	ErrNotInstalled = errors.New("sdk not installed")
	// ErrBadDirName 表示要切换到的目录中没有已安装的 SDK。
	ErrBadDirName = errors.New("bad sdk directory name")
	// ErrGlobalJSONNotFound 表示从起始目录向上找不到 global.json。
	ErrGlobalJSONNotFound = errors.New("global.json not found")
)

// BadDirNameError 列出可选的有效目录名。
type BadDirNameError struct {
	Name  models.SdkDirName
	Valid []models.SdkDirName
}

func (e *BadDirNameError) Error() string {
	names := make([]string, 0, len(e.Valid))
	for _, v := range e.Valid {
		names = append(names, string(v))
	}
	if len(names) == 0 {
		return fmt.Sprintf("%s %q: no sdks are installed", ErrBadDirName, e.Name)
	}
	return fmt.Sprintf("%s %q, valid names are: %s", ErrBadDirName, e.Name, strings.Join(names, ", "))
}

func (e *BadDirNameError) Is(target error) bool {
	return target == ErrBadDirName
}
