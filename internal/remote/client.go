package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/liangyou/dnvm/pkg/models"
)

const defaultCacheTTL = 5 * time.Minute

// ErrCouldntFetchIndex 表示所有发布索引地址都获取失败。
var ErrCouldntFetchIndex = errors.New("remote: could not fetch release index")

// IndexClient 定义发布索引的只读访问能力。
type IndexClient interface {
	FetchLatestIndex(ctx context.Context, feeds []string) ([]models.ChannelIndex, error)
	FetchChannelReleases(ctx context.Context, url string) ([]models.Release, error)
}

// HTTPClient 描述最小化的 HTTP 客户端接口，方便测试时替换。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option 用于配置 Client。
type Option func(*Client)

// WithHTTPClient 设置 HTTP 客户端。
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithCacheTTL 设置渠道发布列表的缓存时间。
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithLogger 设置日志。
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client 实现 IndexClient。渠道发布列表按需获取并按 URL 缓存。
type Client struct {
	httpClient HTTPClient
	cacheTTL   time.Duration
	logger     *zap.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedReleases
}

type cachedReleases struct {
	releases []models.Release
	at       time.Time
}

// NewClient 创建发布索引客户端。
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		cacheTTL:   defaultCacheTTL,
		logger:     zap.NewNop(),
		cache:      make(map[string]cachedReleases),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchLatestIndex 依次尝试 feeds，返回第一个成功解析的渠道索引。
func (c *Client) FetchLatestIndex(ctx context.Context, feeds []string) ([]models.ChannelIndex, error) {
	var errs []error
	for _, feed := range FeedsOrDefault(feeds) {
		body, err := c.get(ctx, feed)
		if err == nil {
			var index []models.ChannelIndex
			index, err = parseIndex(body, c.logger)
			if err == nil {
				c.logger.Debug("release index fetched", zap.String("feed", feed), zap.Int("channels", len(index)))
				return index, nil
			}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote: fetch index: %w", ctx.Err())
		}
		c.logger.Warn("release index feed failed", zap.String("feed", feed), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", feed, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrCouldntFetchIndex, errors.Join(errs...))
}

// FetchChannelReleases 获取单个渠道的详细发布列表，按发布版本降序。
func (c *Client) FetchChannelReleases(ctx context.Context, url string) ([]models.Release, error) {
	if releases, ok := c.getCached(url); ok {
		return releases, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}
		releases, err := parseReleases(body)
		if err != nil {
			return nil, err
		}
		c.setCache(url, releases)
		return releases, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneReleases(v.([]models.Release)), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read body: %w", err)
	}
	return body, nil
}

func (c *Client) getCached(url string) ([]models.Release, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[url]
	if !ok {
		return nil, false
	}
	if c.cacheTTL > 0 && time.Since(entry.at) > c.cacheTTL {
		delete(c.cache, url)
		return nil, false
	}
	return cloneReleases(entry.releases), true
}

func (c *Client) setCache(url string, releases []models.Release) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[url] = cachedReleases{releases: cloneReleases(releases), at: time.Now()}
}

func cloneReleases(in []models.Release) []models.Release {
	out := make([]models.Release, len(in))
	copy(out, in)
	return out
}

// indexDocument 是 releases-index.json 的结构。
type indexDocument struct {
	ReleasesIndex []indexEntry `json:"releases-index"`
}

type indexEntry struct {
	ChannelVersion string `json:"channel-version"`
	LatestRelease  string `json:"latest-release"`
	LatestRuntime  string `json:"latest-runtime"`
	LatestSdk      string `json:"latest-sdk"`
	ReleaseType    string `json:"release-type"`
	SupportPhase   string `json:"support-phase"`
	ReleasesJSON   string `json:"releases.json"`
}

// releasesDocument 是单个渠道 releases.json 的结构。
type releasesDocument struct {
	ChannelVersion string         `json:"channel-version"`
	Releases       []releaseEntry `json:"releases"`
}

type releaseEntry struct {
	ReleaseVersion string           `json:"release-version"`
	Runtime        *componentEntry  `json:"runtime"`
	Sdk            *componentEntry  `json:"sdk"`
	Sdks           []componentEntry `json:"sdks"`
	AspNetCore     *componentEntry  `json:"aspnetcore-runtime"`
}

type componentEntry struct {
	Version string      `json:"version"`
	Files   []fileEntry `json:"files"`
}

type fileEntry struct {
	Name string `json:"name"`
	Rid  string `json:"rid"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// parseIndex 跳过无法解析的渠道条目；所有条目都不合法时视为该地址失败。
func parseIndex(data []byte, logger *zap.Logger) ([]models.ChannelIndex, error) {
	var entries []indexEntry
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("remote: decode index: %w", err)
		}
	} else {
		var doc indexDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("remote: decode index: %w", err)
		}
		entries = doc.ReleasesIndex
	}

	index := make([]models.ChannelIndex, 0, len(entries))
	for _, e := range entries {
		ci, err := convertIndexEntry(e)
		if err != nil {
			logger.Warn("skipping malformed release index entry", zap.String("channel", e.ChannelVersion), zap.Error(err))
			continue
		}
		index = append(index, ci)
	}
	if len(index) == 0 && len(entries) > 0 {
		return nil, fmt.Errorf("remote: no valid channels among %d index entries", len(entries))
	}
	return index, nil
}

func convertIndexEntry(e indexEntry) (models.ChannelIndex, error) {
	var major, minor uint64
	if _, err := fmt.Sscanf(e.ChannelVersion, "%d.%d", &major, &minor); err != nil {
		return models.ChannelIndex{}, fmt.Errorf("remote: invalid channel-version %q", e.ChannelVersion)
	}
	sdk, err := models.ParseVersion(e.LatestSdk)
	if err != nil {
		return models.ChannelIndex{}, fmt.Errorf("remote: channel %s: %w", e.ChannelVersion, err)
	}
	rel, err := models.ParseVersion(e.LatestRelease)
	if err != nil {
		return models.ChannelIndex{}, fmt.Errorf("remote: channel %s: %w", e.ChannelVersion, err)
	}
	ci := models.ChannelIndex{
		MajorMinorVersion: e.ChannelVersion,
		Major:             major,
		Minor:             minor,
		LatestSdk:         sdk,
		LatestRelease:     rel,
		ReleaseType:       models.ReleaseType(e.ReleaseType),
		SupportPhase:      models.SupportPhase(e.SupportPhase),
		ReleasesURL:       e.ReleasesJSON,
	}
	if rt, err := models.ParseVersion(e.LatestRuntime); err == nil {
		ci.LatestRuntime = rt
	}
	return ci, nil
}

func parseReleases(data []byte) ([]models.Release, error) {
	var doc releasesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("remote: decode releases: %w", err)
	}

	releases := make([]models.Release, 0, len(doc.Releases))
	for _, e := range doc.Releases {
		rel, ok := convertRelease(e)
		if !ok {
			continue
		}
		releases = append(releases, rel)
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].ReleaseVersion.GreaterThan(releases[j].ReleaseVersion)
	})
	return releases, nil
}

// convertRelease 跳过缺少运行时或 SDK、或版本号不合法的历史条目。
func convertRelease(e releaseEntry) (models.Release, bool) {
	relVersion, err := models.ParseVersion(e.ReleaseVersion)
	if err != nil || e.Runtime == nil || e.Sdk == nil {
		return models.Release{}, false
	}
	runtime, ok := convertComponent(e.Runtime)
	if !ok {
		return models.Release{}, false
	}
	sdk, ok := convertComponent(e.Sdk)
	if !ok {
		return models.Release{}, false
	}

	rel := models.Release{
		ReleaseVersion: relVersion,
		Runtime:        runtime,
		Sdk:            sdk,
	}
	if e.AspNetCore != nil {
		if asp, ok := convertComponent(e.AspNetCore); ok {
			rel.AspNetCore = asp
		}
	}
	if rel.AspNetCore.Version == nil {
		rel.AspNetCore = models.Component{Version: runtime.Version}
	}
	for i := range e.Sdks {
		if c, ok := convertComponent(&e.Sdks[i]); ok {
			rel.Sdks = append(rel.Sdks, c)
		}
	}
	if len(rel.Sdks) == 0 {
		rel.Sdks = []models.Component{sdk}
	}
	return rel, true
}

func convertComponent(e *componentEntry) (models.Component, bool) {
	v, err := models.ParseVersion(e.Version)
	if err != nil {
		return models.Component{}, false
	}
	files := make([]models.File, 0, len(e.Files))
	for _, f := range e.Files {
		files = append(files, models.File{Name: f.Name, Rid: f.Rid, URL: f.URL, Hash: f.Hash})
	}
	return models.Component{Version: v, Files: files}, true
}
