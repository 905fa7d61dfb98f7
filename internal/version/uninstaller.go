package version

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

// Uninstaller 删除已安装的 SDK。
type Uninstaller struct {
	deps Deps
}

// NewUninstaller 创建卸载器。
func NewUninstaller(deps Deps) *Uninstaller {
	return &Uninstaller{deps: deps}
}

// Uninstall 删除指定版本。dir 为空时从所有包含该版本的目录中删除。
// 共享组件只有在同目录其余 SDK 都不再引用时才会删除。
func (u *Uninstaller) Uninstall(ctx context.Context, version *models.Version, dir models.SdkDirName) ([]models.InstalledSdk, error) {
	if version == nil {
		return nil, fmt.Errorf("uninstaller: version is required")
	}

	var removed []models.InstalledSdk
	err := u.deps.Workspace.Mutate(ctx, "uninstall", func(m models.Manifest) (models.Manifest, error) {
		for _, sdk := range m.InstalledSdks {
			if models.SameVersion(sdk.SdkVersion, version) && (dir == "" || sdk.SdkDirName == dir) {
				removed = append(removed, sdk)
			}
		}
		if len(removed) == 0 {
			if dir == "" {
				return m, fmt.Errorf("%w: %s", ErrNotInstalled, version)
			}
			return m, fmt.Errorf("%w: %s in %s", ErrNotInstalled, version, dir)
		}
		return removeSdks(u.deps, m, removed)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// removeSdks 按目录分组删除文件，再从清单中移除记录。
func removeSdks(deps Deps, m models.Manifest, removing []models.InstalledSdk) (models.Manifest, error) {
	byDir := make(map[models.SdkDirName][]models.InstalledSdk)
	var dirs []models.SdkDirName
	for _, sdk := range removing {
		if _, ok := byDir[sdk.SdkDirName]; !ok {
			dirs = append(dirs, sdk.SdkDirName)
		}
		byDir[sdk.SdkDirName] = append(byDir[sdk.SdkDirName], sdk)
	}

	for _, dir := range dirs {
		group := byDir[dir]
		var keeping []models.InstalledSdk
		for _, sdk := range m.SdksInDir(dir) {
			if !containsSdk(group, sdk) {
				keeping = append(keeping, sdk)
			}
		}

		if deps.Remover != nil {
			if err := deps.Remover.RemoveSdks(deps.Workspace.Store().SdkDir(dir), group, keeping); err != nil {
				return m, err
			}
		}
		for _, sdk := range group {
			deps.log().Info("sdk removed", zap.Stringer("sdk", sdk.SdkVersion), zap.Stringer("dir", dir))
			m = m.RemoveSdk(sdk.SdkVersion, dir)
		}
	}
	return m, nil
}

func containsSdk(list []models.InstalledSdk, sdk models.InstalledSdk) bool {
	for _, s := range list {
		if s.SdkDirName == sdk.SdkDirName && models.SameVersion(s.SdkVersion, sdk.SdkVersion) {
			return true
		}
	}
	return false
}

// Untracker 取消跟踪渠道，保留已安装的 SDK。
type Untracker struct {
	deps Deps
}

// NewUntracker 创建 Untracker。
func NewUntracker(deps Deps) *Untracker {
	return &Untracker{deps: deps}
}

// Untrack 在所有目录中把渠道标记为 untracked。渠道未被跟踪时返回 models.ErrChannelNotTracked。
func (u *Untracker) Untrack(ctx context.Context, ch models.Channel) error {
	return u.deps.Workspace.Mutate(ctx, "untrack", func(m models.Manifest) (models.Manifest, error) {
		return m.UntrackChannel(ch)
	})
}
