package version

import (
	"context"
	"sort"

	"github.com/liangyou/dnvm/pkg/models"
)

// Pruner 对每个 (目录, major.minor) 分组只保留最高版本。
type Pruner struct {
	deps Deps
}

// NewPruner 创建 Pruner。
func NewPruner(deps Deps) *Pruner {
	return &Pruner{deps: deps}
}

// Prune 删除过时的 SDK 并返回被删除（dryRun 时为将被删除）的列表。
func (p *Pruner) Prune(ctx context.Context, dryRun bool) ([]models.InstalledSdk, error) {
	var outdated []models.InstalledSdk
	err := p.deps.Workspace.Mutate(ctx, "prune", func(m models.Manifest) (models.Manifest, error) {
		outdated = OutdatedSdks(m)
		if len(outdated) == 0 || dryRun {
			return m, errNothingToWrite
		}
		return removeSdks(p.deps, m, outdated)
	})
	if err != nil {
		return nil, err
	}
	return outdated, nil
}

// OutdatedSdks 返回每个 (目录, major.minor) 分组中除最高版本外的 SDK，按目录与版本降序排列。
func OutdatedSdks(m models.Manifest) []models.InstalledSdk {
	type key struct {
		dir          models.SdkDirName
		major, minor uint64
	}
	newest := make(map[key]*models.Version)
	for _, sdk := range m.InstalledSdks {
		k := key{sdk.SdkDirName, sdk.SdkVersion.Major(), sdk.SdkVersion.Minor()}
		if cur, ok := newest[k]; !ok || sdk.SdkVersion.GreaterThan(cur) {
			newest[k] = sdk.SdkVersion
		}
	}

	var out []models.InstalledSdk
	for _, sdk := range m.InstalledSdks {
		k := key{sdk.SdkDirName, sdk.SdkVersion.Major(), sdk.SdkVersion.Minor()}
		if !newest[k].Equal(sdk.SdkVersion) {
			out = append(out, sdk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SdkDirName != out[j].SdkDirName {
			return out[i].SdkDirName < out[j].SdkDirName
		}
		return out[i].SdkVersion.GreaterThan(out[j].SdkVersion)
	})
	return out
}
