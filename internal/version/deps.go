package version

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/remote"
	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

// Deps 汇集各生命周期操作共享的协作者。
type Deps struct {
	Workspace  *Workspace
	Index      remote.IndexClient
	Feeds      []string
	Installer  SdkInstaller
	Remover    SdkRemover
	Activator  Activator
	DefaultDir models.SdkDirName
	Logger     *zap.Logger
}

func (d Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) dirOrDefault(dir models.SdkDirName) models.SdkDirName {
	if dir != "" {
		return dir
	}
	if d.DefaultDir != "" {
		return d.DefaultDir
	}
	return models.DefaultSdkDirName
}

func (d Deps) fetchIndex(ctx context.Context) ([]models.ChannelIndex, error) {
	if d.Index == nil {
		return nil, fmt.Errorf("version: release index client is required")
	}
	return d.Index.FetchLatestIndex(ctx, d.Feeds)
}

// ensureInstalled 在目录中尚无该 SDK 或 force 时执行安装副作用，返回要记录的 InstalledSdk。
// 第二个返回值表示本次是否真正执行了安装。
func (d Deps) ensureInstalled(ctx context.Context, m models.Manifest, c resolve.Candidate, dir models.SdkDirName, force bool) (models.InstalledSdk, bool, error) {
	sdk := c.Release.InstalledSdkFor(*c.Sdk, dir)
	if _, ok := m.FindSdk(sdk.SdkVersion, dir); ok && !force {
		d.log().Debug("sdk already present", zap.Stringer("sdk", sdk.SdkVersion), zap.Stringer("dir", dir))
		return sdk, false, nil
	}
	if d.Installer == nil {
		return models.InstalledSdk{}, false, fmt.Errorf("%w: no installer configured", ErrInstallFailed)
	}

	sdkDir := d.Workspace.Store().SdkDir(dir)
	d.log().Info("installing sdk", zap.Stringer("sdk", sdk.SdkVersion), zap.String("path", sdkDir))
	if err := d.Installer.InstallSdk(ctx, sdkDir, *c.Sdk); err != nil {
		return models.InstalledSdk{}, false, fmt.Errorf("%w: sdk %s: %w", ErrInstallFailed, sdk.SdkVersion, err)
	}

	if dir == m.CurrentSdkDir && d.Activator != nil {
		if err := d.Activator.Activate(dir, dir); err != nil {
			return models.InstalledSdk{}, false, fmt.Errorf("activate %s: %w", dir, err)
		}
	}
	return sdk, true, nil
}
