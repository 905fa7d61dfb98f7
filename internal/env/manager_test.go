package env

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/liangyou/dnvm/internal/version"
	"github.com/liangyou/dnvm/pkg/models"
)

func TestConfigFileSelection(t *testing.T) {
	t.Parallel()

	temp := t.TempDir()
	mgr := NewManager(models.Config{}, NewMemoryPathStore(""))
	mgr.homeFn = func() (string, error) { return temp, nil }

	bashFile, err := mgr.configFileForShell("bash")
	if err != nil {
		t.Fatalf("configFileForShell bash err: %v", err)
	}
	if !strings.HasSuffix(bashFile, ".bashrc") && !strings.HasSuffix(bashFile, ".bash_profile") {
		t.Fatalf("bash config file invalid: %s", bashFile)
	}

	zshFile, err := mgr.configFileForShell("zsh")
	if err != nil {
		t.Fatalf("configFileForShell zsh err: %v", err)
	}
	if !strings.HasSuffix(zshFile, ".zshrc") {
		t.Fatalf("zsh config file invalid: %s", zshFile)
	}
}

func TestUpdateShellConfigCreatesAndReplacesBlock(t *testing.T) {
	t.Parallel()

	temp := t.TempDir()
	first := NewManager(models.Config{RootDir: "/tmp/dnvm"}, NewMemoryPathStore(""))
	first.homeFn = func() (string, error) { return temp, nil }

	configPath, err := first.configFileForShell("bash")
	if err != nil {
		t.Fatalf("configFileForShell err: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("alias ll='ls -l'\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if err := first.UpdateShellConfig("bash"); err != nil {
		t.Fatalf("UpdateShellConfig failed: %v", err)
	}
	second := NewManager(models.Config{RootDir: "/opt/dnvm"}, NewMemoryPathStore(""))
	second.homeFn = first.homeFn
	if err := second.UpdateShellConfig("bash"); err != nil {
		t.Fatalf("UpdateShellConfig second run failed: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	content := string(data)
	if strings.Count(content, blockStart) != 1 {
		t.Fatalf("expected single config block, got %d", strings.Count(content, blockStart))
	}
	if !strings.Contains(content, `export DNVM_HOME="/opt/dnvm"`) || strings.Contains(content, "/tmp/dnvm") {
		t.Fatalf("config not updated: %s", content)
	}
	if strings.Contains(content, "DOTNET_ROOT") {
		t.Fatalf("profile must not pin an sdk directory: %s", content)
	}
	if !strings.HasPrefix(content, "alias ll") {
		t.Fatalf("existing content lost: %s", content)
	}

	empty := NewManager(models.Config{}, NewMemoryPathStore(""))
	empty.homeFn = first.homeFn
	if err := empty.UpdateShellConfig("bash"); err == nil {
		t.Fatal("expected missing root to be rejected")
	}
}

// profilePath 展开配置块中的 PATH 行，$PATH 替换为 inherited。
func profilePath(t *testing.T, content, root, inherited string) []string {
	t.Helper()

	for _, line := range strings.Split(content, "\n") {
		value, ok := strings.CutPrefix(line, "export PATH=")
		if !ok {
			continue
		}
		expanded := os.Expand(strings.Trim(value, `"`), func(key string) string {
			switch key {
			case "DNVM_HOME":
				return root
			case "PATH":
				return inherited
			}
			return ""
		})
		return filepath.SplitList(expanded)
	}
	t.Fatalf("no PATH export in profile:\n%s", content)
	return nil
}

// lookDotnet 按 PATH 顺序返回第一个 dotnet 的内容。
func lookDotnet(t *testing.T, dirs []string) string {
	t.Helper()

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "dotnet"))
		if err == nil {
			return string(data)
		}
	}
	t.Fatalf("dotnet not found on %v", dirs)
	return ""
}

func TestProfileFollowsSelectedSdk(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("windows activates through the user PATH")
	}

	root := t.TempDir()
	for _, dir := range []string{"dn", "other"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(root, dir, "dotnet"), []byte(dir), 0o755); err != nil {
			t.Fatalf("seed dotnet: %v", err)
		}
	}

	home := t.TempDir()
	mgr := NewManager(models.Config{RootDir: root}, NewMemoryPathStore(""))
	mgr.homeFn = func() (string, error) { return home, nil }
	activator := version.NewSymlinkActivator(root, "dotnet")

	if err := activator.Activate("", "dn"); err != nil {
		t.Fatalf("activate dn: %v", err)
	}
	if err := mgr.UpdateShellConfig("zsh"); err != nil {
		t.Fatalf("UpdateShellConfig failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".zshrc"))
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	dirs := profilePath(t, string(data), root, "/usr/bin")

	if got := lookDotnet(t, dirs); got != "dn" {
		t.Fatalf("expected dn before select, got %q", got)
	}
	if err := activator.Activate("dn", "other"); err != nil {
		t.Fatalf("activate other: %v", err)
	}
	if got := lookDotnet(t, dirs); got != "other" {
		t.Fatalf("expected other after select, got %q", got)
	}
}

func TestDetectShell(t *testing.T) {
	t.Parallel()

	mgr := NewManager(models.Config{}, NewMemoryPathStore(""))
	mgr.envFn = func(key string) string {
		if key == "SHELL" {
			return "/bin/zsh"
		}
		return ""
	}

	shell, err := mgr.DetectShell()
	if err != nil {
		t.Fatalf("DetectShell error: %v", err)
	}
	if shell != "zsh" {
		t.Fatalf("expected zsh, got %s", shell)
	}

	mgr.envFn = func(string) string { return "/usr/bin/fish" }
	if _, err := mgr.DetectShell(); err == nil {
		t.Fatal("expected fish to be rejected")
	}
}

func TestRewritePath(t *testing.T) {
	t.Parallel()

	got := RewritePath("/usr/bin:/r/dn:/bin:/r/preview/", "/r/dn", "/r/preview", ":")
	if got != "/r/preview:/usr/bin:/bin" {
		t.Fatalf("unexpected PATH %q", got)
	}

	got = RewritePath("", "", "/r/dn", ":")
	if got != "/r/dn" {
		t.Fatalf("unexpected PATH %q", got)
	}
}

func TestSwitchUserPath(t *testing.T) {
	t.Parallel()

	sep := string(os.PathListSeparator)
	store := NewMemoryPathStore(strings.Join([]string{"a", "old", "b"}, sep))
	mgr := NewManager(models.Config{}, store)

	if err := mgr.SwitchUserPath("old", "new"); err != nil {
		t.Fatalf("SwitchUserPath failed: %v", err)
	}
	got, _ := store.Get()
	if got != strings.Join([]string{"new", "a", "b"}, sep) {
		t.Fatalf("unexpected PATH %q", got)
	}
}
