package resolve

import (
	"errors"
	"fmt"

	"github.com/liangyou/dnvm/pkg/models"
)

var (
	// ErrUnknownChannel 表示发布索引中不存在请求的 major.minor 渠道。
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNoCompatibleVersion 表示没有满足前滚策略的版本。
	ErrNoCompatibleVersion = errors.New("no compatible version")
)

// GetChannelIndex 在发布索引中查找与渠道匹配、且最新 SDK 版本最高的条目。
// 返回 nil 表示该渠道目前没有可用构建，调用方应继续而不是失败。
func GetChannelIndex(ch models.Channel, index []models.ChannelIndex) *models.ChannelIndex {
	var best *models.ChannelIndex
	for i := range index {
		entry := index[i]
		if !channelMatches(ch, entry) || entry.LatestSdk == nil {
			continue
		}
		if best == nil || entry.LatestSdk.GreaterThan(best.LatestSdk) {
			best = &entry
		}
	}
	return best
}

func channelMatches(ch models.Channel, entry models.ChannelIndex) bool {
	switch ch.Kind {
	case models.ChannelLatest:
		return entry.SupportPhase == models.SupportActive
	case models.ChannelLts:
		return entry.ReleaseType == models.ReleaseTypeLts && supported(entry.SupportPhase)
	case models.ChannelSts:
		return entry.ReleaseType == models.ReleaseTypeSts && supported(entry.SupportPhase)
	case models.ChannelPreview:
		switch entry.SupportPhase {
		case models.SupportActive, models.SupportPreview, models.SupportGoLive:
			return true
		}
		return false
	case models.ChannelVersioned, models.ChannelVersionedFeature:
		return entry.Major == uint64(ch.Major) && entry.Minor == uint64(ch.Minor)
	default:
		panic(fmt.Sprintf("resolve: unknown channel kind %d", ch.Kind))
	}
}

// supported 对 lts/sts 排除尚在预览或已结束支持的版本线。
func supported(phase models.SupportPhase) bool {
	return phase == models.SupportActive || phase == models.SupportMaintenance
}

// FindMajorMinor 返回指定 major.minor 的渠道条目，不存在时返回 ErrUnknownChannel。
func FindMajorMinor(major, minor uint64, index []models.ChannelIndex) (models.ChannelIndex, error) {
	for _, entry := range index {
		if entry.Major == major && entry.Minor == minor {
			return entry, nil
		}
	}
	return models.ChannelIndex{}, fmt.Errorf("%w: %d.%d", ErrUnknownChannel, major, minor)
}

// SelectRelease 在渠道的详细发布列表中选出要安装的发布与 SDK 组件。
// feature band 渠道选择该 band 内版本最高的 SDK；其他渠道选择索引声明的最新发布。
// 第二个返回值为 false 表示没有可用构建。
func SelectRelease(ch models.Channel, entry models.ChannelIndex, releases []models.Release) (Candidate, bool) {
	if ch.Kind == models.ChannelVersionedFeature {
		return selectFeatureBand(ch, releases)
	}

	for i := range releases {
		rel := &releases[i]
		if !models.SameVersion(rel.ReleaseVersion, entry.LatestRelease) {
			continue
		}
		sdks := rel.AllSdks()
		for j := range sdks {
			if models.SameVersion(sdks[j].Version, entry.LatestSdk) {
				return Candidate{Version: sdks[j].Version, Release: rel, Sdk: &sdks[j]}, true
			}
		}
		return Candidate{Version: rel.Sdk.Version, Release: rel, Sdk: &rel.Sdk}, true
	}

	// 索引与详细列表不同步时退回到 latest-sdk 所在的发布。
	if c, ok := FindSdk(entry.LatestSdk, releases); ok {
		return c, true
	}
	return Candidate{}, false
}

func selectFeatureBand(ch models.Channel, releases []models.Release) (Candidate, bool) {
	var best Candidate
	found := false
	for i := range releases {
		rel := &releases[i]
		sdks := rel.AllSdks()
		for j := range sdks {
			v := sdks[j].Version
			if v.Major() != uint64(ch.Major) || v.Minor() != uint64(ch.Minor) || models.FeatureBand(v) != uint64(ch.FeatureBand) {
				continue
			}
			if !found || v.GreaterThan(best.Version) {
				best = Candidate{Version: v, Release: rel, Sdk: &sdks[j]}
				found = true
			}
		}
	}
	return best, found
}

// FindSdk 查找附带指定 SDK 版本的发布。
func FindSdk(version *models.Version, releases []models.Release) (Candidate, bool) {
	for i := range releases {
		rel := &releases[i]
		sdks := rel.AllSdks()
		for j := range sdks {
			if models.SameVersion(sdks[j].Version, version) {
				return Candidate{Version: sdks[j].Version, Release: rel, Sdk: &sdks[j]}, true
			}
		}
	}
	return Candidate{}, false
}
