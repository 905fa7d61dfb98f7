package version

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/liangyou/dnvm/internal/storage"
	"github.com/liangyou/dnvm/pkg/models"
)

const testRid = "linux-x64"

// fakeIndex 是内存中的发布索引，publish 模拟新版本发布。
type fakeIndex struct {
	mu           sync.Mutex
	entries      map[string]models.ChannelIndex
	releases     map[string][]models.Release
	indexCalls   int
	releaseCalls int
	err          error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		entries:  make(map[string]models.ChannelIndex),
		releases: make(map[string][]models.Release),
	}
}

func (f *fakeIndex) publish(rt models.ReleaseType, phase models.SupportPhase, rel models.Release) {
	f.mu.Lock()
	defer f.mu.Unlock()

	mm := models.MajorMinor(rel.ReleaseVersion)
	url := "https://example/" + mm + "/releases.json"
	f.releases[url] = append([]models.Release{rel}, f.releases[url]...)
	f.entries[mm] = models.ChannelIndex{
		MajorMinorVersion: mm,
		Major:             rel.ReleaseVersion.Major(),
		Minor:             rel.ReleaseVersion.Minor(),
		LatestSdk:         rel.Sdk.Version,
		LatestRelease:     rel.ReleaseVersion,
		LatestRuntime:     rel.Runtime.Version,
		ReleaseType:       rt,
		SupportPhase:      phase,
		ReleasesURL:       url,
	}
}

func (f *fakeIndex) FetchLatestIndex(ctx context.Context, feeds []string) ([]models.ChannelIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.indexCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ChannelIndex, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MajorMinorVersion < out[j].MajorMinorVersion })
	return out, nil
}

func (f *fakeIndex) FetchChannelReleases(ctx context.Context, url string) ([]models.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseCalls++
	rels, ok := f.releases[url]
	if !ok {
		return nil, fmt.Errorf("no releases at %s", url)
	}
	return append([]models.Release(nil), rels...), nil
}

func component(version string) models.Component {
	return models.Component{
		Version: models.MustParseVersion(version),
		Files: []models.File{{
			Name: "dotnet-sdk-" + version + "-" + testRid + ".tar.gz",
			Rid:  testRid,
			URL:  "https://example/dotnet-sdk-" + version + "-" + testRid + ".tar.gz",
			Hash: "00",
		}},
	}
}

// mkRelease 构造一个发布，sdks 中第一个作为主 SDK。
func mkRelease(version, runtime string, sdks ...string) models.Release {
	rel := models.Release{
		ReleaseVersion: models.MustParseVersion(version),
		Runtime:        models.Component{Version: models.MustParseVersion(runtime)},
		AspNetCore:     models.Component{Version: models.MustParseVersion(runtime)},
	}
	for _, s := range sdks {
		rel.Sdks = append(rel.Sdks, component(s))
	}
	rel.Sdk = rel.Sdks[0]
	return rel
}

// fakeInstaller 记录调用并在沙箱中创建 sdk/<version> 目录。
type fakeInstaller struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (f *fakeInstaller) InstallSdk(ctx context.Context, sdkDir string, sdk models.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, filepath.Base(sdkDir)+"/"+sdk.Version.String())
	if f.fail != nil {
		return f.fail
	}
	return os.MkdirAll(filepath.Join(sdkDir, "sdk", sdk.Version.String()), 0o755)
}

func (f *fakeInstaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingActivator struct {
	calls [][2]models.SdkDirName
	fail  error
}

func (a *recordingActivator) Activate(oldDir, newDir models.SdkDirName) error {
	if a.fail != nil {
		return a.fail
	}
	a.calls = append(a.calls, [2]models.SdkDirName{oldDir, newDir})
	return nil
}

type harness struct {
	root      string
	store     *storage.FileStorage
	index     *fakeIndex
	installer *fakeInstaller
	activator *recordingActivator
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	store := storage.NewFileStorage(models.Config{RootDir: root})
	h := &harness{
		root:      root,
		store:     store,
		index:     newFakeIndex(),
		installer: &fakeInstaller{},
		activator: &recordingActivator{},
	}
	h.deps = Deps{
		Workspace: NewWorkspace(store, WithLockTiming(time.Second, time.Millisecond), WithOwner("test")),
		Index:     h.index,
		Installer: h.installer,
		Remover:   NewComponentRemover(testRid, nil),
		Activator: h.activator,
	}
	return h
}

func (h *harness) manifest(t *testing.T) models.Manifest {
	t.Helper()
	m, err := h.store.ReadOrEmpty()
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	return m
}

// tarEntry 是测试归档中的一个文件。
type tarEntry struct {
	name    string
	content string
}

func createSdkArchive(t *testing.T, entries ...tarEntry) string {
	t.Helper()

	pathOnDisk := filepath.Join(t.TempDir(), "sdk.tar.gz")
	file, err := os.Create(pathOnDisk)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0o755,
			Size:     int64(len(e.content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write file header: %v", err)
		}
		if _, err := tw.Write([]byte(e.content)); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return pathOnDisk
}
