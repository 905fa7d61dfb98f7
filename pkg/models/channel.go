package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelKind 区分渠道的种类。
type ChannelKind int

const (
	ChannelLatest ChannelKind = iota
	ChannelLts
	ChannelSts
	ChannelPreview
	ChannelVersioned
	ChannelVersionedFeature
)

// Channel 表示一条发布渠道，可直接用 == 比较。
type Channel struct {
	Kind        ChannelKind
	Major       int
	Minor       int
	FeatureBand int // 仅 ChannelVersionedFeature 使用，例如 8.0.1xx 中的 1
}

var (
	Latest  = Channel{Kind: ChannelLatest}
	Lts     = Channel{Kind: ChannelLts}
	Sts     = Channel{Kind: ChannelSts}
	Preview = Channel{Kind: ChannelPreview}
)

// Versioned 构造 major.minor 渠道。
func Versioned(major, minor int) Channel {
	return Channel{Kind: ChannelVersioned, Major: major, Minor: minor}
}

// VersionedFeature 构造 major.minor.Nxx 渠道。
func VersionedFeature(major, minor, band int) Channel {
	return Channel{Kind: ChannelVersionedFeature, Major: major, Minor: minor, FeatureBand: band}
}

// Name 返回渠道的小写名称，用于持久化与匹配发布索引。
func (c Channel) Name() string {
	switch c.Kind {
	case ChannelLatest:
		return "latest"
	case ChannelLts:
		return "lts"
	case ChannelSts:
		return "sts"
	case ChannelPreview:
		return "preview"
	case ChannelVersioned:
		return fmt.Sprintf("%d.%d", c.Major, c.Minor)
	case ChannelVersionedFeature:
		return fmt.Sprintf("%d.%d.%dxx", c.Major, c.Minor, c.FeatureBand)
	default:
		panic(fmt.Sprintf("models: unknown channel kind %d", c.Kind))
	}
}

func (c Channel) String() string {
	return c.Name()
}

// IsVersioned 判断是否为显式版本渠道。
func (c Channel) IsVersioned() bool {
	return c.Kind == ChannelVersioned || c.Kind == ChannelVersionedFeature
}

// MarshalText 以渠道名称序列化。
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.Name()), nil
}

// UnmarshalText 解析渠道名称。
func (c *Channel) UnmarshalText(text []byte) error {
	parsed, err := ParseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseChannel 解析 latest/lts/sts/preview/M.m/M.m.Nxx。
func ParseChannel(input string) (Channel, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	switch name {
	case "latest":
		return Latest, nil
	case "lts":
		return Lts, nil
	case "sts":
		return Sts, nil
	case "preview":
		return Preview, nil
	case "":
		return Channel{}, fmt.Errorf("models: empty channel name")
	}

	parts := strings.Split(name, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return Channel{}, fmt.Errorf("models: invalid channel %q", input)
	}
	major, err := parseChannelNumber(parts[0])
	if err != nil {
		return Channel{}, fmt.Errorf("models: invalid channel %q: %w", input, err)
	}
	minor, err := parseChannelNumber(parts[1])
	if err != nil {
		return Channel{}, fmt.Errorf("models: invalid channel %q: %w", input, err)
	}
	if len(parts) == 2 {
		return Versioned(major, minor), nil
	}

	band := parts[2]
	if len(band) != 3 || !strings.HasSuffix(band, "xx") {
		return Channel{}, fmt.Errorf("models: invalid feature band in channel %q", input)
	}
	n, err := parseChannelNumber(band[:1])
	if err != nil || n == 0 {
		return Channel{}, fmt.Errorf("models: invalid feature band in channel %q", input)
	}
	return VersionedFeature(major, minor, n), nil
}

func parseChannelNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return n, nil
}
