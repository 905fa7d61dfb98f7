package models

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ReleaseType 是 lts 或 sts。
type ReleaseType string

const (
	ReleaseTypeLts ReleaseType = "lts"
	ReleaseTypeSts ReleaseType = "sts"
)

// SupportPhase 表示渠道的支持阶段。
type SupportPhase string

const (
	SupportActive      SupportPhase = "active"
	SupportPreview     SupportPhase = "preview"
	SupportGoLive      SupportPhase = "go-live"
	SupportMaintenance SupportPhase = "maintenance"
	SupportEol         SupportPhase = "eol"
)

// ChannelIndex 是发布索引中的一条渠道记录。
type ChannelIndex struct {
	MajorMinorVersion string
	Major             uint64
	Minor             uint64
	LatestSdk         *semver.Version
	LatestRelease     *semver.Version
	LatestRuntime     *semver.Version
	ReleaseType       ReleaseType
	SupportPhase      SupportPhase
	ReleasesURL       string
}

// File 是某个组件在特定 RID 下的下载文件。
type File struct {
	Name string
	Rid  string
	URL  string
	Hash string // sha512，十六进制
}

// Component 是一次发布中的单个组件（SDK、运行时或 ASP.NET Core）。
type Component struct {
	Version *semver.Version
	Files   []File
}

// FileFor 返回指定 RID 和扩展名的下载文件。
func (c Component) FileFor(rid, ext string) (File, error) {
	for _, f := range c.Files {
		if f.Rid == rid && strings.HasSuffix(f.URL, ext) {
			return f, nil
		}
	}
	return File{}, fmt.Errorf("models: no %s artifact for %s %s", ext, rid, c.Version)
}

// Release 是渠道详细发布列表中的一项。
type Release struct {
	ReleaseVersion *semver.Version
	Runtime        Component
	AspNetCore     Component
	Sdk            Component
	Sdks           []Component
}

// AllSdks 返回该发布附带的全部 SDK，至少包含 Sdk 本身。
func (r Release) AllSdks() []Component {
	if len(r.Sdks) > 0 {
		return r.Sdks
	}
	if r.Sdk.Version != nil {
		return []Component{r.Sdk}
	}
	return nil
}

// InstalledSdkFor 构造一个与该发布组件版本对应的 InstalledSdk。
func (r Release) InstalledSdkFor(sdk Component, dir SdkDirName) InstalledSdk {
	return InstalledSdk{
		ReleaseVersion: r.ReleaseVersion,
		SdkVersion:     sdk.Version,
		RuntimeVersion: r.Runtime.Version,
		AspNetVersion:  r.AspNetCore.Version,
		SdkDirName:     dir,
	}
}
