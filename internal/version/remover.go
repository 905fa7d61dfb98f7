package version

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

// SdkRemover 删除沙箱目录中的 SDK 文件。
type SdkRemover interface {
	RemoveSdks(sdkDir string, removing, keeping []models.InstalledSdk) error
}

// ComponentRemover 无条件删除 SDK 专属目录；运行时、ASP.NET Core 与 host 组件
// 只有在 keeping 中没有 SDK 引用同一版本时才删除。
type ComponentRemover struct {
	rid    string
	logger *zap.Logger
}

// NewComponentRemover 创建 ComponentRemover。
func NewComponentRemover(rid string, logger *zap.Logger) *ComponentRemover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComponentRemover{rid: rid, logger: logger}
}

// RemoveSdks 实现 SdkRemover。
func (r *ComponentRemover) RemoveSdks(sdkDir string, removing, keeping []models.InstalledSdk) error {
	var paths []string
	for _, sdk := range removing {
		v := sdk.SdkVersion.String()
		paths = append(paths,
			filepath.Join(sdkDir, "sdk", v),
			filepath.Join(sdkDir, "templates", v),
		)
	}

	for _, rt := range unreferenced(removing, keeping, func(s models.InstalledSdk) *models.Version { return s.RuntimeVersion }) {
		paths = append(paths,
			filepath.Join(sdkDir, "shared", "Microsoft.NETCore.App", rt),
			filepath.Join(sdkDir, "host", "fxr", rt),
			filepath.Join(sdkDir, "packs", "Microsoft.NETCore.App.Ref", rt),
			filepath.Join(sdkDir, "packs", "Microsoft.NETCore.App.Host."+r.rid, rt),
		)
	}
	for _, asp := range unreferenced(removing, keeping, func(s models.InstalledSdk) *models.Version { return s.AspNetVersion }) {
		paths = append(paths,
			filepath.Join(sdkDir, "shared", "Microsoft.AspNetCore.App", asp),
			filepath.Join(sdkDir, "packs", "Microsoft.AspNetCore.App.Ref", asp),
		)
	}

	for _, p := range paths {
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("uninstaller: remove %s: %w", p, err)
		}
		r.logger.Debug("removed", zap.String("path", p))
	}
	return nil
}

// unreferenced 返回 removing 使用、但 keeping 不再使用的组件版本。
func unreferenced(removing, keeping []models.InstalledSdk, component func(models.InstalledSdk) *models.Version) []string {
	kept := make(map[string]struct{}, len(keeping))
	for _, sdk := range keeping {
		kept[component(sdk).String()] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, sdk := range removing {
		v := component(sdk).String()
		if _, ok := kept[v]; ok {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
