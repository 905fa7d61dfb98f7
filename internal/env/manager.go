package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liangyou/dnvm/pkg/models"
)

const (
	blockStart = "# >>> dnvm initialize >>>"
	blockEnd   = "# <<< dnvm initialize <<<"
)

// EnvManager 暴露环境配置能力。
type EnvManager interface {
	DetectShell() (string, error)
	UpdateShellConfig(shellType string) error
	SwitchUserPath(oldDir, newDir string) error
}

// Manager 实现 EnvManager。
type Manager struct {
	cfg   models.Config
	paths PathStore

	homeFn func() (string, error)
	envFn  func(string) string
}

// NewManager 构造环境配置服务。paths 为空时使用平台默认的用户 PATH 存储。
func NewManager(cfg models.Config, paths PathStore) *Manager {
	if paths == nil {
		paths = DefaultPathStore()
	}
	return &Manager{
		cfg:    cfg,
		paths:  paths,
		homeFn: os.UserHomeDir,
		envFn:  os.Getenv,
	}
}

// DetectShell 根据 SHELL 环境变量推断当前 shell。
func (m *Manager) DetectShell() (string, error) {
	shellPath := m.envFn("SHELL")
	if shellPath == "" {
		shellPath = "bash"
	}
	shell := filepath.Base(shellPath)
	switch shell {
	case "bash", "zsh":
		return shell, nil
	default:
		return "", fmt.Errorf("env: unsupported shell %q", shell)
	}
}

// UpdateShellConfig 对指定 shell 写入配置块，使安装根目录出现在 PATH 最前。
// 根目录下的 dotnet 链接由 select 切换，配置块本身不绑定任何 SDK 目录。
func (m *Manager) UpdateShellConfig(shellType string) error {
	if m.cfg.RootDir == "" {
		return errors.New("env: install root is required")
	}

	configPath, err := m.configFileForShell(shellType)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("env: ensure config dir: %w", err)
	}

	var existing []byte
	if data, err := os.ReadFile(configPath); err == nil {
		existing = data
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("env: read config: %w", err)
	}

	merged := mergeConfig(string(existing), m.buildConfigBlock())
	return os.WriteFile(configPath, []byte(merged), 0o644)
}

// SwitchUserPath 在持久化的用户 PATH 中用 newDir 替换 oldDir 并置于最前。
func (m *Manager) SwitchUserPath(oldDir, newDir string) error {
	current, err := m.paths.Get()
	if err != nil {
		return fmt.Errorf("env: read user PATH: %w", err)
	}
	updated := RewritePath(current, oldDir, newDir, string(os.PathListSeparator))
	if updated == current {
		return nil
	}
	if err := m.paths.Set(updated); err != nil {
		return fmt.Errorf("env: write user PATH: %w", err)
	}
	return nil
}

func (m *Manager) configFileForShell(shellType string) (string, error) {
	home, err := m.homeFn()
	if err != nil {
		return "", fmt.Errorf("env: home dir: %w", err)
	}

	switch shellType {
	case "bash":
		path := filepath.Join(home, ".bashrc")
		if fileExists(path) {
			return path, nil
		}
		return filepath.Join(home, ".bash_profile"), nil
	case "zsh":
		return filepath.Join(home, ".zshrc"), nil
	default:
		return "", fmt.Errorf("env: unsupported shell %q", shellType)
	}
}

func (m *Manager) buildConfigBlock() string {
	lines := []string{
		blockStart,
		fmt.Sprintf("export DNVM_HOME=\"%s\"", m.cfg.RootDir),
		"export PATH=\"$DNVM_HOME:$PATH\"",
		blockEnd,
	}
	return strings.Join(lines, "\n")
}

func mergeConfig(existing, block string) string {
	cleaned := strings.TrimRight(removeExistingBlock(existing), "\n")
	if strings.TrimSpace(cleaned) == "" {
		return block + "\n"
	}
	return cleaned + "\n\n" + block + "\n"
}

func removeExistingBlock(content string) string {
	var kept []string
	skipping := false
	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case blockStart:
			skipping = true
			continue
		case blockEnd:
			skipping = false
			continue
		}
		if skipping || (line == "" && len(kept) == 0) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Trim(strings.Join(kept, "\n"), "\n")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
