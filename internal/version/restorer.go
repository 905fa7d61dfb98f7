package version

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

// GlobalJSONName 是项目声明 SDK 要求的文件名。
const GlobalJSONName = "global.json"

// SdkRequirement 是 global.json 中 sdk 节点的内容。
type SdkRequirement struct {
	Path            string
	Version         *models.Version
	RollForward     resolve.RollForward
	AllowPrerelease bool
}

type globalJSON struct {
	Sdk *struct {
		Version         string `json:"version"`
		RollForward     string `json:"rollForward"`
		AllowPrerelease *bool  `json:"allowPrerelease"`
	} `json:"sdk"`
}

// FindGlobalJSON 从 start 开始逐级向上查找 global.json。
func FindGlobalJSON(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("restore: %w", err)
	}
	for {
		candidate := filepath.Join(dir, GlobalJSONName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrGlobalJSONNotFound, start)
		}
		dir = parent
	}
}

// ReadSdkRequirement 解析 global.json。rollForward 缺省为 latestPatch，allowPrerelease 缺省为 true。
func ReadSdkRequirement(path string) (SdkRequirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SdkRequirement{}, fmt.Errorf("restore: read %s: %w", path, err)
	}
	var doc globalJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return SdkRequirement{}, fmt.Errorf("restore: decode %s: %w", path, err)
	}
	if doc.Sdk == nil || doc.Sdk.Version == "" {
		return SdkRequirement{}, fmt.Errorf("restore: %s does not declare sdk.version", path)
	}

	req := SdkRequirement{Path: path, RollForward: resolve.LatestPatch, AllowPrerelease: true}
	if req.Version, err = models.ParseVersion(doc.Sdk.Version); err != nil {
		return SdkRequirement{}, fmt.Errorf("restore: %s: %w", path, err)
	}
	if doc.Sdk.RollForward != "" {
		if req.RollForward, err = resolve.ParseRollForward(doc.Sdk.RollForward); err != nil {
			return SdkRequirement{}, fmt.Errorf("restore: %s: %w", path, err)
		}
	}
	if doc.Sdk.AllowPrerelease != nil {
		req.AllowPrerelease = *doc.Sdk.AllowPrerelease
	}
	return req, nil
}

// RestoreResult 描述 restore 的结果。
type RestoreResult struct {
	Requirement SdkRequirement
	Sdk         models.InstalledSdk
	// AlreadySatisfied 表示已安装的 SDK 满足要求，没有下载。
	AlreadySatisfied bool
}

// Restorer 按项目的 global.json 安装满足要求的 SDK。
type Restorer struct {
	deps Deps
}

// NewRestorer 创建 Restorer。
func NewRestorer(deps Deps) *Restorer {
	return &Restorer{deps: deps}
}

// Restore 先在目标目录的已安装 SDK 中前滚查找，找不到时再从发布索引中查找并安装。
// 安装的 SDK 不关联任何渠道。
func (r *Restorer) Restore(ctx context.Context, projectDir string, dir models.SdkDirName) (RestoreResult, error) {
	path, err := FindGlobalJSON(projectDir)
	if err != nil {
		return RestoreResult{}, err
	}
	req, err := ReadSdkRequirement(path)
	if err != nil {
		return RestoreResult{}, err
	}
	result := RestoreResult{Requirement: req}

	err = r.deps.Workspace.Mutate(ctx, "restore", func(m models.Manifest) (models.Manifest, error) {
		target := dir
		if target == "" {
			target = m.CurrentSdkDir
		}

		local := r.filter(resolve.CandidatesFromInstalled(m.SdksInDir(target)), req)
		if c, ok := resolve.Resolve(req.Version, req.RollForward, local); ok {
			sdk, _ := m.FindSdk(c.Version, target)
			result.Sdk = sdk
			result.AlreadySatisfied = true
			return m, errNothingToWrite
		}

		remote, err := r.remoteCandidates(ctx, req)
		if err != nil {
			return m, err
		}
		c, ok := resolve.Resolve(req.Version, req.RollForward, remote)
		if !ok {
			return m, fmt.Errorf("%w: %s with rollForward %s", resolve.ErrNoCompatibleVersion, req.Version, req.RollForward)
		}
		r.deps.log().Info("restoring sdk", zap.Stringer("requested", req.Version), zap.Stringer("resolved", c.Version))

		sdk, _, err := r.deps.ensureInstalled(ctx, m, c, target, false)
		if err != nil {
			return m, err
		}
		result.Sdk = sdk
		return m.AddSdk(sdk, nil), nil
	})
	return result, err
}

func (r *Restorer) filter(list resolve.CandidateList, req SdkRequirement) resolve.CandidateList {
	if req.AllowPrerelease || req.Version.Prerelease() != "" {
		return list
	}
	return list.WithoutPrereleases()
}

// remoteCandidates 只获取策略可能命中的渠道的发布列表。
func (r *Restorer) remoteCandidates(ctx context.Context, req SdkRequirement) (resolve.CandidateList, error) {
	index, err := r.deps.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var releases []models.Release
	fetched := 0
	for _, entry := range index {
		if !channelCanSatisfy(entry, req) {
			continue
		}
		rels, err := r.deps.Index.FetchChannelReleases(ctx, entry.ReleasesURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s releases: %w", entry.MajorMinorVersion, err)
		}
		releases = append(releases, rels...)
		fetched++
	}
	if fetched == 0 {
		return nil, fmt.Errorf("%w: %d.%d", resolve.ErrUnknownChannel, req.Version.Major(), req.Version.Minor())
	}
	return r.filter(resolve.CandidatesFromReleases(releases), req), nil
}

func channelCanSatisfy(entry models.ChannelIndex, req SdkRequirement) bool {
	v := req.Version
	switch req.RollForward {
	case resolve.Patch, resolve.LatestPatch, resolve.Feature, resolve.LatestFeature, resolve.Disable:
		return entry.Major == v.Major() && entry.Minor == v.Minor()
	case resolve.Minor, resolve.LatestMinor:
		return entry.Major == v.Major() && entry.Minor >= v.Minor()
	case resolve.Major, resolve.LatestMajor:
		return entry.Major > v.Major() || (entry.Major == v.Major() && entry.Minor >= v.Minor())
	}
	return false
}
