package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const indexJSON = `{
  "releases-index": [
    {"channel-version": "9.0", "latest-release": "9.0.0-preview.1", "latest-runtime": "9.0.0-preview.1", "latest-sdk": "9.0.100-preview.1", "release-type": "sts", "support-phase": "preview", "releases.json": "RELEASES"},
    {"channel-version": "8.0", "latest-release": "8.0.1", "latest-runtime": "8.0.1", "latest-sdk": "8.0.101", "release-type": "lts", "support-phase": "active", "releases.json": "RELEASES"}
  ]
}`

const releasesJSON = `{
  "channel-version": "8.0",
  "releases": [
    {
      "release-version": "8.0.0",
      "runtime": {"version": "8.0.0", "files": []},
      "sdk": {"version": "8.0.100", "files": []},
      "aspnetcore-runtime": {"version": "8.0.0", "files": []}
    },
    {
      "release-version": "8.0.1",
      "runtime": {"version": "8.0.1", "files": [{"name": "dotnet-runtime-linux-x64.tar.gz", "rid": "linux-x64", "url": "https://example/rt.tar.gz", "hash": "aa"}]},
      "sdk": {"version": "8.0.101", "files": [{"name": "dotnet-sdk-linux-x64.tar.gz", "rid": "linux-x64", "url": "https://example/sdk.tar.gz", "hash": "bb"}]},
      "sdks": [
        {"version": "8.0.101", "files": []},
        {"version": "8.0.200", "files": []}
      ],
      "aspnetcore-runtime": {"version": "8.0.1", "files": []}
    },
    {
      "release-version": "not-a-version",
      "runtime": {"version": "1.0.0", "files": []},
      "sdk": {"version": "1.0.0", "files": []}
    }
  ]
}`

func TestFetchLatestIndexParsesEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	index, err := client.FetchLatestIndex(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("FetchLatestIndex error: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(index))
	}
	lts := index[1]
	if lts.Major != 8 || lts.Minor != 0 || lts.LatestSdk.String() != "8.0.101" || lts.ReleaseType != "lts" || lts.SupportPhase != "active" {
		t.Fatalf("unexpected lts entry: %#v", lts)
	}
	if index[0].LatestSdk.Prerelease() != "preview.1" {
		t.Fatalf("expected preview sdk, got %s", index[0].LatestSdk)
	}
}

func TestFetchLatestIndexAcceptsBareArray(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"channel-version": "8.0", "latest-release": "8.0.1", "latest-sdk": "8.0.101", "release-type": "lts", "support-phase": "active", "releases.json": "x"}]`))
	}))
	defer server.Close()

	index, err := NewClient(WithHTTPClient(server.Client())).FetchLatestIndex(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("FetchLatestIndex error: %v", err)
	}
	if len(index) != 1 || index[0].LatestRuntime != nil {
		t.Fatalf("unexpected index: %#v", index)
	}
}

func TestFetchLatestIndexSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"releases-index": [
  {"channel-version": "9.0", "latest-release": "9.0.0", "latest-sdk": "not-a-version", "release-type": "sts", "support-phase": "active", "releases.json": "x"},
  {"channel-version": "oops", "latest-release": "1.0.0", "latest-sdk": "1.0.100", "release-type": "lts", "support-phase": "eol", "releases.json": "x"},
  {"channel-version": "8.0", "latest-release": "8.0.1", "latest-sdk": "8.0.101", "release-type": "lts", "support-phase": "active", "releases.json": "x"}
]}`))
	}))
	defer server.Close()

	index, err := NewClient(WithHTTPClient(server.Client())).FetchLatestIndex(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("FetchLatestIndex error: %v", err)
	}
	if len(index) != 1 || index[0].MajorMinorVersion != "8.0" {
		t.Fatalf("expected only the valid 8.0 entry, got %#v", index)
	}
}

func TestFetchLatestIndexAllEntriesMalformed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"channel-version": "9.0", "latest-release": "?", "latest-sdk": "?", "release-type": "sts", "support-phase": "active", "releases.json": "x"}]`))
	}))
	defer server.Close()

	_, err := NewClient(WithHTTPClient(server.Client())).FetchLatestIndex(context.Background(), []string{server.URL})
	if !errors.Is(err, ErrCouldntFetchIndex) {
		t.Fatalf("expected ErrCouldntFetchIndex, got %v", err)
	}
}

func TestFetchLatestIndexFallsBackToNextFeed(t *testing.T) {
	t.Parallel()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(indexJSON))
	}))
	defer good.Close()

	client := NewClient()
	index, err := client.FetchLatestIndex(context.Background(), []string{bad.URL, good.URL})
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("unexpected index length %d", len(index))
	}
}

func TestFetchLatestIndexAllFeedsFail(t *testing.T) {
	t.Parallel()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer bad.Close()

	_, err := NewClient().FetchLatestIndex(context.Background(), []string{bad.URL, bad.URL + "/missing"})
	if !errors.Is(err, ErrCouldntFetchIndex) {
		t.Fatalf("expected ErrCouldntFetchIndex, got %v", err)
	}
}

func TestFetchChannelReleasesSortsAndCaches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(releasesJSON))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithCacheTTL(time.Hour))
	for i := 0; i < 2; i++ {
		releases, err := client.FetchChannelReleases(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("FetchChannelReleases error: %v", err)
		}
		if len(releases) != 2 {
			t.Fatalf("expected invalid release to be skipped, got %d", len(releases))
		}
		if releases[0].ReleaseVersion.String() != "8.0.1" {
			t.Fatalf("expected descending order, got %s first", releases[0].ReleaseVersion)
		}
		if len(releases[0].AllSdks()) != 2 {
			t.Fatalf("expected both sdks of 8.0.1, got %d", len(releases[0].AllSdks()))
		}
		if len(releases[1].AllSdks()) != 1 {
			t.Fatalf("release without sdks list should fall back to sdk, got %d", len(releases[1].AllSdks()))
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected single upstream hit, got %d", hits.Load())
	}
}

func TestFetchChannelReleasesHonorsCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewClient().FetchChannelReleases(ctx, server.URL); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestFeedsOrDefault(t *testing.T) {
	t.Parallel()

	if got := FeedsOrDefault(nil); len(got) != len(DefaultFeeds) {
		t.Fatalf("expected defaults, got %v", got)
	}
	if got := FeedsOrDefault([]string{"", "https://mirror/index.json"}); len(got) != 1 || got[0] != "https://mirror/index.json" {
		t.Fatalf("unexpected feeds %v", got)
	}
}

// compile-time检查，确保 Client 满足 IndexClient 接口
var _ IndexClient = (*Client)(nil)
