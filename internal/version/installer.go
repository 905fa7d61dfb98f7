package version

import (
	"context"
	"fmt"

	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

// InstallOptions 是按精确版本安装的参数。
type InstallOptions struct {
	Version *models.Version
	SdkDir  models.SdkDirName
	Force   bool
}

// Installer 按精确版本安装 SDK，不关联任何渠道。
type Installer struct {
	deps Deps
}

// NewInstaller 创建 Installer。
func NewInstaller(deps Deps) *Installer {
	return &Installer{deps: deps}
}

// Install 从版本所属的 major.minor 渠道取得发布并安装。
func (i *Installer) Install(ctx context.Context, opts InstallOptions) (models.InstalledSdk, error) {
	if opts.Version == nil {
		return models.InstalledSdk{}, fmt.Errorf("installer: version is required")
	}
	dir := i.deps.dirOrDefault(opts.SdkDir)

	var installed models.InstalledSdk
	err := i.deps.Workspace.Mutate(ctx, "install", func(m models.Manifest) (models.Manifest, error) {
		if _, ok := m.FindSdk(opts.Version, dir); ok && !opts.Force {
			return m, fmt.Errorf("%w: %s in %s", ErrAlreadyInstalled, opts.Version, dir)
		}

		index, err := i.deps.fetchIndex(ctx)
		if err != nil {
			return m, err
		}
		entry, err := resolve.FindMajorMinor(opts.Version.Major(), opts.Version.Minor(), index)
		if err != nil {
			return m, err
		}
		releases, err := i.deps.Index.FetchChannelReleases(ctx, entry.ReleasesURL)
		if err != nil {
			return m, fmt.Errorf("fetch %s releases: %w", entry.MajorMinorVersion, err)
		}
		candidate, ok := resolve.FindSdk(opts.Version, releases)
		if !ok {
			return m, fmt.Errorf("%w: sdk %s is not listed in the %s channel", resolve.ErrNoCompatibleVersion, opts.Version, entry.MajorMinorVersion)
		}

		installed, _, err = i.deps.ensureInstalled(ctx, m, candidate, dir, true)
		if err != nil {
			return m, err
		}
		return m.AddSdk(installed, nil), nil
	})
	return installed, err
}
