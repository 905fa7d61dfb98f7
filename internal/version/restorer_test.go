package version

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangyou/dnvm/internal/resolve"
	"github.com/liangyou/dnvm/pkg/models"
)

func writeGlobalJSON(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, GlobalJSONName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFindGlobalJSONWalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	want := writeGlobalJSON(t, root, `{"sdk":{"version":"8.0.100"}}`)
	nested := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindGlobalJSON(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadSdkRequirementDefaults(t *testing.T) {
	t.Parallel()

	path := writeGlobalJSON(t, t.TempDir(), `{"sdk":{"version":"8.0.100"}}`)
	req, err := ReadSdkRequirement(path)
	require.NoError(t, err)
	assert.Equal(t, resolve.LatestPatch, req.RollForward)
	assert.True(t, req.AllowPrerelease)

	path = writeGlobalJSON(t, t.TempDir(), `{"sdk":{"version":"8.0.100","rollForward":"latestFeature","allowPrerelease":false}}`)
	req, err = ReadSdkRequirement(path)
	require.NoError(t, err)
	assert.Equal(t, resolve.LatestFeature, req.RollForward)
	assert.False(t, req.AllowPrerelease)

	for _, bad := range []string{`{}`, `{"sdk":{"version":"eight"}}`, `{"sdk":{"version":"8.0.100","rollForward":"sideways"}}`, `{`} {
		path = writeGlobalJSON(t, t.TempDir(), bad)
		_, err = ReadSdkRequirement(path)
		assert.Error(t, err, bad)
	}
}

func TestRestoreUsesInstalledSdkWhenCompatible(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seedManifest(t, h, installedSdk("8.0.104", "8.0.4", "dn"))
	project := t.TempDir()
	writeGlobalJSON(t, project, `{"sdk":{"version":"8.0.100","rollForward":"latestPatch"}}`)

	res, err := NewRestorer(h.deps).Restore(context.Background(), project, "")
	require.NoError(t, err)
	assert.True(t, res.AlreadySatisfied)
	assert.Equal(t, "8.0.104", res.Sdk.SdkVersion.String())
	assert.Zero(t, h.index.indexCalls)
}

func TestRestoreInstallsFromIndex(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.index.publish(models.ReleaseTypeLts, models.SupportActive, mkRelease("8.0.1", "8.0.1", "8.0.101", "8.0.201"))
	h.index.publish(models.ReleaseTypeLts, models.SupportActive, mkRelease("8.0.2", "8.0.2", "8.0.102", "8.0.202"))
	h.index.publish(models.ReleaseTypeSts, models.SupportActive, mkRelease("9.0.0", "9.0.0", "9.0.100"))
	project := t.TempDir()
	writeGlobalJSON(t, project, `{"sdk":{"version":"8.0.200","rollForward":"latestPatch"}}`)

	res, err := NewRestorer(h.deps).Restore(context.Background(), project, "")
	require.NoError(t, err)
	assert.False(t, res.AlreadySatisfied)
	assert.Equal(t, "8.0.202", res.Sdk.SdkVersion.String())
	assert.Equal(t, 1, h.index.releaseCalls, "only the 8.0 channel can satisfy latestPatch")

	m := h.manifest(t)
	require.Len(t, m.InstalledSdks, 1)
	assert.Empty(t, m.RegisteredChannels)
}

func TestRestoreNoCompatibleVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.index.publish(models.ReleaseTypeLts, models.SupportActive, mkRelease("8.0.1", "8.0.1", "8.0.101"))
	project := t.TempDir()
	writeGlobalJSON(t, project, `{"sdk":{"version":"8.0.105","rollForward":"disable"}}`)

	_, err := NewRestorer(h.deps).Restore(context.Background(), project, "")
	assert.ErrorIs(t, err, resolve.ErrNoCompatibleVersion)
	assert.Zero(t, h.installer.count())
}
