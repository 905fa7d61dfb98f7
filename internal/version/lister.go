package version

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/liangyou/dnvm/pkg/models"
)

// Lister 聚合远程与本地版本信息。
type Lister struct {
	deps Deps
}

// NewLister 创建版本列表服务。
func NewLister(deps Deps) *Lister {
	return &Lister{deps: deps}
}

// LocalSdk 是 list 命令的一行。
type LocalSdk struct {
	models.InstalledSdk
	Channels  []models.Channel
	IsCurrent bool
}

// LocalView 是本地状态的只读快照。
type LocalView struct {
	CurrentSdkDir models.SdkDirName
	Sdks          []LocalSdk
	Channels      []models.RegisteredChannel
}

// Local 读取清单并按目录、版本降序返回已安装的 SDK。
func (l *Lister) Local(_ context.Context) (LocalView, error) {
	m, err := l.deps.Workspace.Read()
	if err != nil {
		return LocalView{}, fmt.Errorf("lister: %w", err)
	}

	view := LocalView{CurrentSdkDir: m.CurrentSdkDir, Channels: m.RegisteredChannels}
	for _, sdk := range m.InstalledSdks {
		row := LocalSdk{InstalledSdk: sdk, IsCurrent: sdk.SdkDirName == m.CurrentSdkDir}
		for _, reg := range m.RegisteredChannels {
			if reg.SdkDirName == sdk.SdkDirName && !reg.Untracked && reg.Has(sdk.SdkVersion) {
				row.Channels = append(row.Channels, reg.ChannelName)
			}
		}
		view.Sdks = append(view.Sdks, row)
	}
	sort.SliceStable(view.Sdks, func(i, j int) bool {
		a, b := view.Sdks[i], view.Sdks[j]
		if a.SdkDirName != b.SdkDirName {
			return a.SdkDirName < b.SdkDirName
		}
		return a.SdkVersion.GreaterThan(b.SdkVersion)
	})
	return view, nil
}

// Remote 返回发布索引，按 major.minor 降序。
func (l *Lister) Remote(ctx context.Context) ([]models.ChannelIndex, error) {
	index, err := l.deps.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(index, func(i, j int) bool {
		if index[i].Major != index[j].Major {
			return index[i].Major > index[j].Major
		}
		return index[i].Minor > index[j].Minor
	})
	return index, nil
}

// FormatLocalSdk 格式化本地 SDK 输出，标记当前目录并列出关联渠道。
func FormatLocalSdk(s LocalSdk) string {
	marker := " "
	if s.IsCurrent {
		marker = "*"
	}
	line := fmt.Sprintf("%s %-24s %-6s runtime %s", marker, s.SdkVersion, s.SdkDirName, s.RuntimeVersion)
	if len(s.Channels) > 0 {
		names := make([]string, 0, len(s.Channels))
		for _, ch := range s.Channels {
			names = append(names, ch.Name())
		}
		line += " [" + strings.Join(names, ", ") + "]"
	}
	return line
}

// FormatRemoteChannel 格式化一条远程渠道。
func FormatRemoteChannel(ci models.ChannelIndex) string {
	return fmt.Sprintf("%-6s %-24s %-4s %s", ci.MajorMinorVersion, ci.LatestSdk, ci.ReleaseType, ci.SupportPhase)
}
