package version

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangyou/dnvm/pkg/models"
)

func TestSelectSwitchesCurrentDir(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seedManifest(t, h, installedSdk("8.0.101", "8.0.1", "dn"), installedSdk("9.0.100", "9.0.0", "preview"))

	require.NoError(t, NewSelector(h.deps).Select(context.Background(), "preview"))
	assert.Equal(t, models.SdkDirName("preview"), h.manifest(t).CurrentSdkDir)
	assert.Equal(t, [][2]models.SdkDirName{{"dn", "preview"}}, h.activator.calls)
}

func TestSelectBadDirName(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seedManifest(t, h, installedSdk("8.0.101", "8.0.1", "dn"), installedSdk("9.0.100", "9.0.0", "preview"))

	err := NewSelector(h.deps).Select(context.Background(), "nightly")
	require.ErrorIs(t, err, ErrBadDirName)

	var bad *BadDirNameError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, []models.SdkDirName{"dn", "preview"}, bad.Valid)
	assert.Contains(t, err.Error(), "dn, preview")
	assert.Equal(t, models.DefaultSdkDirName, h.manifest(t).CurrentSdkDir)
	assert.Empty(t, h.activator.calls)
}

func TestSelectActivatorFailureKeepsManifest(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seedManifest(t, h, installedSdk("8.0.101", "8.0.1", "dn"), installedSdk("9.0.100", "9.0.0", "preview"))
	h.activator.fail = errors.New("permission denied")

	require.Error(t, NewSelector(h.deps).Select(context.Background(), "preview"))
	assert.Equal(t, models.DefaultSdkDirName, h.manifest(t).CurrentSdkDir)
}

func TestSymlinkActivatorSwapsLink(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink activation is not used on windows")
	}

	root := t.TempDir()
	activator := NewSymlinkActivator(root, "dotnet")

	require.NoError(t, activator.Activate("", "dn"))
	target, err := os.Readlink(activator.LinkPath())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("dn", "dotnet"), target)

	require.NoError(t, activator.Activate("dn", "preview"))
	target, err = os.Readlink(activator.LinkPath())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("preview", "dotnet"), target)

	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temporary link left behind: %s", e.Name())
	}
}

type recordingPaths struct {
	oldDir, newDir string
}

func (r *recordingPaths) SwitchUserPath(oldDir, newDir string) error {
	r.oldDir, r.newDir = oldDir, newDir
	return nil
}

func TestPathActivatorRewritesUserPath(t *testing.T) {
	t.Parallel()

	paths := &recordingPaths{}
	root := filepath.Join("home", "dnvm")
	require.NoError(t, NewPathActivator(root, paths).Activate("dn", "preview"))
	assert.Equal(t, filepath.Join(root, "dn"), paths.oldDir)
	assert.Equal(t, filepath.Join(root, "preview"), paths.newDir)
}
