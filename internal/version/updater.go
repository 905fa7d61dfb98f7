package version

import (
	"context"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

// UpdatePlan 描述一个渠道的可用更新。
type UpdatePlan struct {
	Channel models.RegisteredChannel
	Current *models.Version
	Target  resolve.Candidate
}

// UpdateOptions 是 update 命令的参数。
type UpdateOptions struct {
	// DryRun 只返回计划，不安装也不写清单。
	DryRun bool
	// Confirm 在安装前调用，返回 false 时放弃更新。为空表示直接执行。
	Confirm func([]UpdatePlan) bool
}

// Updater 把每个被跟踪的渠道更新到其最新版本。
type Updater struct {
	deps Deps
}

// NewUpdater 创建 Updater。
func NewUpdater(deps Deps) *Updater {
	return &Updater{deps: deps}
}

// Update 检查所有仍在跟踪的渠道，对有更新的渠道安装新版本并追加到其版本集合。
// 返回的计划按清单中的渠道顺序排列。
func (u *Updater) Update(ctx context.Context, opts UpdateOptions) ([]UpdatePlan, error) {
	var plans []UpdatePlan
	err := u.deps.Workspace.Mutate(ctx, "update", func(m models.Manifest) (models.Manifest, error) {
		var err error
		plans, err = u.plan(ctx, m)
		if err != nil {
			return m, err
		}
		if len(plans) == 0 || opts.DryRun {
			return m, errNothingToWrite
		}
		if opts.Confirm != nil && !opts.Confirm(plans) {
			plans = nil
			return m, errNothingToWrite
		}

		for _, p := range plans {
			dir := p.Channel.SdkDirName
			sdk, installed, err := u.deps.ensureInstalled(ctx, m, p.Target, dir, false)
			if err != nil {
				return m, err
			}
			u.deps.log().Info("channel updated",
				zap.Stringer("channel", p.Channel.ChannelName),
				zap.Stringer("sdk", sdk.SdkVersion),
				zap.Bool("downloaded", installed))
			ch := p.Channel.ChannelName
			m = m.AddSdk(sdk, &ch)
		}
		return m, nil
	})
	return plans, err
}

func (u *Updater) plan(ctx context.Context, m models.Manifest) ([]UpdatePlan, error) {
	active := m.ActiveChannels()
	if len(active) == 0 {
		return nil, nil
	}
	index, err := u.deps.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var plans []UpdatePlan
	for _, reg := range active {
		candidate, ok, err := resolveChannel(ctx, u.deps, reg.ChannelName, index)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		newest := reg.Newest()
		if newest != nil && !candidate.Version.GreaterThan(newest) {
			continue
		}
		plans = append(plans, UpdatePlan{Channel: reg, Current: newest, Target: candidate})
	}
	return plans, nil
}
