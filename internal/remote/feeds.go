package remote

// DefaultFeeds 是官方发布索引地址，按顺序尝试，第一个成功的生效。
var DefaultFeeds = []string{
	"https://builds.dotnet.microsoft.com/dotnet/release-metadata/releases-index.json",
	"https://dotnetcli.blob.core.windows.net/dotnet/release-metadata/releases-index.json",
}

// FeedsOrDefault 在未配置时返回默认地址。
func FeedsOrDefault(feeds []string) []string {
	var out []string
	for _, f := range feeds {
		if f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultFeeds...)
	}
	return out
}
