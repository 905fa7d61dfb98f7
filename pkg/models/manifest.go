package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultSdkDirName 是未指定目录时使用的沙箱目录。
const DefaultSdkDirName SdkDirName = "dn"

var (
	// ErrChannelAlreadyTracked 表示渠道在该目录下已被跟踪。
	ErrChannelAlreadyTracked = errors.New("channel is already tracked")
	// ErrChannelNotTracked 表示没有处于跟踪状态的渠道注册。
	ErrChannelNotTracked = errors.New("channel is not tracked")
)

// SdkDirName 是安装根目录下的沙箱子目录名，总是小写的简单名称。
type SdkDirName string

// NewSdkDirName 规范化并校验目录名。
func NewSdkDirName(name string) (SdkDirName, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("models: invalid sdk dir name %q", name)
	}
	if strings.ContainsAny(cleaned, `/\:`) {
		return "", fmt.Errorf("models: sdk dir name %q must not contain path separators", name)
	}
	return SdkDirName(cleaned), nil
}

func (d SdkDirName) String() string {
	return string(d)
}

// InstalledSdk 描述一个已经落盘的 SDK。
type InstalledSdk struct {
	ReleaseVersion *semver.Version `json:"releaseVersion"`
	SdkVersion     *semver.Version `json:"sdkVersion"`
	RuntimeVersion *semver.Version `json:"runtimeVersion"`
	AspNetVersion  *semver.Version `json:"aspNetVersion"`
	SdkDirName     SdkDirName      `json:"sdkDirName"`
}

// RegisteredChannel 记录某个目录下跟踪的渠道以及因它安装的 SDK 版本。
type RegisteredChannel struct {
	ChannelName          Channel           `json:"channelName"`
	SdkDirName           SdkDirName        `json:"sdkDirName"`
	InstalledSdkVersions []*semver.Version `json:"installedSdkVersions"`
	Untracked            bool              `json:"untracked"`
}

// Newest 返回该渠道记录的最高版本。
func (r RegisteredChannel) Newest() *semver.Version {
	var newest *semver.Version
	for _, v := range r.InstalledSdkVersions {
		if newest == nil || v.GreaterThan(newest) {
			newest = v
		}
	}
	return newest
}

// Has 判断渠道是否记录了该版本。
func (r RegisteredChannel) Has(v *semver.Version) bool {
	return containsVersion(r.InstalledSdkVersions, v)
}

// Manifest 是已安装 SDK 与已跟踪渠道的聚合根。所有修改方法都返回新值。
type Manifest struct {
	CurrentSdkDir      SdkDirName          `json:"currentSdkDir"`
	InstalledSdks      []InstalledSdk      `json:"installedSdks"`
	RegisteredChannels []RegisteredChannel `json:"registeredChannels"`
}

// EmptyManifest 返回首次使用时的清单。
func EmptyManifest() Manifest {
	return Manifest{
		CurrentSdkDir:      DefaultSdkDirName,
		InstalledSdks:      []InstalledSdk{},
		RegisteredChannels: []RegisteredChannel{},
	}
}

// Clone 深拷贝切片，版本对象本身不可变因此共享。
func (m Manifest) Clone() Manifest {
	out := Manifest{
		CurrentSdkDir:      m.CurrentSdkDir,
		InstalledSdks:      slices.Clone(m.InstalledSdks),
		RegisteredChannels: make([]RegisteredChannel, len(m.RegisteredChannels)),
	}
	if out.InstalledSdks == nil {
		out.InstalledSdks = []InstalledSdk{}
	}
	for i, reg := range m.RegisteredChannels {
		reg.InstalledSdkVersions = slices.Clone(reg.InstalledSdkVersions)
		if reg.InstalledSdkVersions == nil {
			reg.InstalledSdkVersions = []*semver.Version{}
		}
		out.RegisteredChannels[i] = reg
	}
	return out
}

// FindSdk 查找目录中指定版本的 SDK。
func (m Manifest) FindSdk(version *semver.Version, dir SdkDirName) (InstalledSdk, bool) {
	for _, sdk := range m.InstalledSdks {
		if sdk.SdkDirName == dir && SameVersion(sdk.SdkVersion, version) {
			return sdk, true
		}
	}
	return InstalledSdk{}, false
}

// SdksInDir 返回目录中的全部 SDK。
func (m Manifest) SdksInDir(dir SdkDirName) []InstalledSdk {
	var out []InstalledSdk
	for _, sdk := range m.InstalledSdks {
		if sdk.SdkDirName == dir {
			out = append(out, sdk)
		}
	}
	return out
}

// SdkDirs 返回包含 SDK 的目录，按名称排序。
func (m Manifest) SdkDirs() []SdkDirName {
	var dirs []SdkDirName
	for _, sdk := range m.InstalledSdks {
		if !slices.Contains(dirs, sdk.SdkDirName) {
			dirs = append(dirs, sdk.SdkDirName)
		}
	}
	slices.Sort(dirs)
	return dirs
}

// ActiveChannels 返回未被取消跟踪的渠道注册。
func (m Manifest) ActiveChannels() []RegisteredChannel {
	var out []RegisteredChannel
	for _, reg := range m.RegisteredChannels {
		if !reg.Untracked {
			out = append(out, reg)
		}
	}
	return out
}

// FindChannel 查找 (channel, dir) 对应的注册。
func (m Manifest) FindChannel(ch Channel, dir SdkDirName) (RegisteredChannel, bool) {
	for _, reg := range m.RegisteredChannels {
		if reg.ChannelName == ch && reg.SdkDirName == dir {
			return reg, true
		}
	}
	return RegisteredChannel{}, false
}

// WithCurrentDir 设置当前激活目录。
func (m Manifest) WithCurrentDir(dir SdkDirName) Manifest {
	out := m.Clone()
	out.CurrentSdkDir = dir
	return out
}

// AddSdk 记录一个已安装的 SDK；channel 非空时同时把版本追加到该渠道的版本集合。
func (m Manifest) AddSdk(sdk InstalledSdk, channel *Channel) Manifest {
	out := m.Clone()
	if _, ok := out.FindSdk(sdk.SdkVersion, sdk.SdkDirName); !ok {
		out.InstalledSdks = append(out.InstalledSdks, sdk)
	}
	if channel == nil {
		return out
	}

	for i := range out.RegisteredChannels {
		reg := &out.RegisteredChannels[i]
		if reg.ChannelName != *channel || reg.SdkDirName != sdk.SdkDirName {
			continue
		}
		reg.Untracked = false
		if !reg.Has(sdk.SdkVersion) {
			reg.InstalledSdkVersions = append(reg.InstalledSdkVersions, sdk.SdkVersion)
		}
		return out
	}

	out.RegisteredChannels = append(out.RegisteredChannels, RegisteredChannel{
		ChannelName:          *channel,
		SdkDirName:           sdk.SdkDirName,
		InstalledSdkVersions: []*semver.Version{sdk.SdkVersion},
	})
	return out
}

// TrackChannel 注册渠道。已取消跟踪的注册会被恢复并合并版本集合；仍在跟踪时返回 ErrChannelAlreadyTracked。
func (m Manifest) TrackChannel(reg RegisteredChannel) (Manifest, error) {
	out := m.Clone()
	for i := range out.RegisteredChannels {
		existing := &out.RegisteredChannels[i]
		if existing.ChannelName != reg.ChannelName || existing.SdkDirName != reg.SdkDirName {
			continue
		}
		if !existing.Untracked {
			return m, fmt.Errorf("%w: %s in %s", ErrChannelAlreadyTracked, reg.ChannelName, reg.SdkDirName)
		}
		existing.Untracked = false
		for _, v := range reg.InstalledSdkVersions {
			if !existing.Has(v) {
				existing.InstalledSdkVersions = append(existing.InstalledSdkVersions, v)
			}
		}
		return out, nil
	}

	reg.Untracked = false
	reg.InstalledSdkVersions = slices.Clone(reg.InstalledSdkVersions)
	if reg.InstalledSdkVersions == nil {
		reg.InstalledSdkVersions = []*semver.Version{}
	}
	out.RegisteredChannels = append(out.RegisteredChannels, reg)
	return out, nil
}

// UntrackChannel 在所有目录中把渠道标记为 untracked，不删除任何 SDK。
func (m Manifest) UntrackChannel(ch Channel) (Manifest, error) {
	out := m.Clone()
	found := false
	for i := range out.RegisteredChannels {
		reg := &out.RegisteredChannels[i]
		if reg.ChannelName == ch && !reg.Untracked {
			reg.Untracked = true
			found = true
		}
	}
	if !found {
		return m, fmt.Errorf("%w: %s", ErrChannelNotTracked, ch)
	}
	return out, nil
}

// RemoveSdk 删除目录中的 SDK 记录，并从所有渠道的版本集合中移除该版本。
func (m Manifest) RemoveSdk(version *semver.Version, dir SdkDirName) Manifest {
	out := m.Clone()
	out.InstalledSdks = slices.DeleteFunc(out.InstalledSdks, func(sdk InstalledSdk) bool {
		return sdk.SdkDirName == dir && SameVersion(sdk.SdkVersion, version)
	})
	for i := range out.RegisteredChannels {
		reg := &out.RegisteredChannels[i]
		if reg.SdkDirName != dir {
			continue
		}
		reg.InstalledSdkVersions = slices.DeleteFunc(reg.InstalledSdkVersions, func(v *semver.Version) bool {
			return SameVersion(v, version)
		})
	}
	return out
}

// Validate 校验清单内部一致性：渠道引用的每个版本都必须作为 InstalledSdk 存在于同一目录。
func (m Manifest) Validate() error {
	if m.CurrentSdkDir == "" {
		return errors.New("models: current sdk dir is empty")
	}
	for i, sdk := range m.InstalledSdks {
		if sdk.SdkDirName == "" {
			return fmt.Errorf("models: installed sdk %d has empty dir name", i)
		}
		if sdk.SdkVersion == nil || sdk.RuntimeVersion == nil || sdk.AspNetVersion == nil || sdk.ReleaseVersion == nil {
			return fmt.Errorf("models: installed sdk %d is missing a version", i)
		}
	}
	for _, reg := range m.RegisteredChannels {
		if reg.SdkDirName == "" {
			return fmt.Errorf("models: channel %s has empty dir name", reg.ChannelName)
		}
		for _, v := range reg.InstalledSdkVersions {
			if v == nil {
				return fmt.Errorf("models: channel %s lists a null version", reg.ChannelName)
			}
			if _, ok := m.FindSdk(v, reg.SdkDirName); !ok {
				return fmt.Errorf("models: channel %s references %s which is not installed in %s", reg.ChannelName, v, reg.SdkDirName)
			}
		}
	}
	return nil
}

func containsVersion(list []*semver.Version, v *semver.Version) bool {
	return slices.ContainsFunc(list, func(x *semver.Version) bool { return SameVersion(x, v) })
}
