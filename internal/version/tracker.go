package version

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

// TrackOptions 是 track 命令的参数。
type TrackOptions struct {
	Channel models.Channel
	SdkDir  models.SdkDirName
	// Force 在渠道已被跟踪时仍重新解析并重新安装。
	Force bool
}

// TrackResult 描述 track 的结果。
type TrackResult struct {
	Channel models.Channel
	SdkDir  models.SdkDirName
	// Sdk 是渠道解析到的 SDK；NoBuilds 为 true 时为空。
	Sdk *models.InstalledSdk
	// Installed 表示本次执行了下载安装，false 表示复用了目录中已有的 SDK。
	Installed bool
	// NoBuilds 表示渠道已登记但目前没有可用构建。
	NoBuilds bool
}

// Tracker 开始跟踪一个渠道并安装其最新 SDK。
type Tracker struct {
	deps Deps
}

// NewTracker 创建 Tracker。
func NewTracker(deps Deps) *Tracker {
	return &Tracker{deps: deps}
}

// Track 执行 track。渠道已被跟踪时返回 models.ErrChannelAlreadyTracked，清单不变。
func (t *Tracker) Track(ctx context.Context, opts TrackOptions) (TrackResult, error) {
	dir := t.deps.dirOrDefault(opts.SdkDir)
	result := TrackResult{Channel: opts.Channel, SdkDir: dir}

	err := t.deps.Workspace.Mutate(ctx, "track", func(m models.Manifest) (models.Manifest, error) {
		reg, exists := m.FindChannel(opts.Channel, dir)
		alreadyTracked := exists && !reg.Untracked
		if alreadyTracked && !opts.Force {
			return m, fmt.Errorf("%w: %s in %s", models.ErrChannelAlreadyTracked, opts.Channel, dir)
		}

		index, err := t.deps.fetchIndex(ctx)
		if err != nil {
			return m, err
		}

		candidate, ok, err := resolveChannel(ctx, t.deps, opts.Channel, index)
		if err != nil {
			return m, err
		}
		if !ok {
			t.deps.log().Info("channel has no builds yet", zap.Stringer("channel", opts.Channel))
			result.NoBuilds = true
			if alreadyTracked {
				return m, nil
			}
			return m.TrackChannel(models.RegisteredChannel{ChannelName: opts.Channel, SdkDirName: dir})
		}

		sdk, installed, err := t.deps.ensureInstalled(ctx, m, candidate, dir, opts.Force)
		if err != nil {
			return m, err
		}
		result.Sdk = &sdk
		result.Installed = installed

		if !alreadyTracked {
			if m, err = m.TrackChannel(models.RegisteredChannel{ChannelName: opts.Channel, SdkDirName: dir}); err != nil {
				return m, err
			}
		}
		return m.AddSdk(sdk, &opts.Channel), nil
	})
	return result, err
}

// resolveChannel 把渠道解析为具体的发布与 SDK。第二个返回值为 false 表示暂无构建。
func resolveChannel(ctx context.Context, deps Deps, ch models.Channel, index []models.ChannelIndex) (resolve.Candidate, bool, error) {
	entry := resolve.GetChannelIndex(ch, index)
	if entry == nil {
		return resolve.Candidate{}, false, nil
	}
	releases, err := deps.Index.FetchChannelReleases(ctx, entry.ReleasesURL)
	if err != nil {
		return resolve.Candidate{}, false, fmt.Errorf("fetch %s releases: %w", entry.MajorMinorVersion, err)
	}
	candidate, ok := resolve.SelectRelease(ch, *entry, releases)
	if !ok {
		return resolve.Candidate{}, false, nil
	}
	if candidate.Sdk == nil || candidate.Release == nil {
		return resolve.Candidate{}, false, errors.New("version: resolved release is incomplete")
	}
	return candidate, true, nil
}
