package models

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version 是语义化版本，比较遵循 semver 优先级（预发布版本低于同号正式版）。
type Version = semver.Version

// ParseVersion 解析完整的语义化版本号，例如 8.0.100 或 9.0.100-preview.1.24101.2。
func ParseVersion(input string) (*semver.Version, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(input), "v")
	v, err := semver.StrictNewVersion(cleaned)
	if err != nil {
		return nil, fmt.Errorf("models: invalid version %q: %w", input, err)
	}
	return v, nil
}

// MustParseVersion 用于常量与测试数据。
func MustParseVersion(input string) *semver.Version {
	v, err := ParseVersion(input)
	if err != nil {
		panic(err)
	}
	return v
}

// FeatureBand 返回 SDK 版本 patch 字段的百位，例如 8.0.203 -> 2。
func FeatureBand(v *semver.Version) uint64 {
	return v.Patch() / 100
}

// PatchInBand 返回 feature band 内的补丁号，例如 8.0.203 -> 3。
func PatchInBand(v *semver.Version) uint64 {
	return v.Patch() % 100
}

// SameVersion 比较两个版本是否相等，nil 只与 nil 相等。
func SameVersion(a, b *semver.Version) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

// MajorMinor 返回 "major.minor"。
func MajorMinor(v *semver.Version) string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}
