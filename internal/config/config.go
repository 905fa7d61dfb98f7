package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liangyou/dnvm/pkg/models"
)

const (
	// FileName 是安装根目录下的可选配置文件。
	FileName = "dnvm.yaml"

	EnvHome     = "DNVM_HOME"
	EnvFeedURL  = "DNVM_FEED_URL"
	EnvLogLevel = "DNVM_LOG_LEVEL"
)

// fileConfig 是 dnvm.yaml 的结构，未设置的字段保留默认值。
type fileConfig struct {
	Feeds          []string `yaml:"feeds"`
	DefaultSdkDir  string   `yaml:"defaultSdkDir"`
	LockTimeout    string   `yaml:"lockTimeout"`
	LockRetryDelay string   `yaml:"lockRetryDelay"`
	LogLevel       string   `yaml:"logLevel"`
	Rid            string   `yaml:"rid"`
}

// Loader 按 默认值 -> dnvm.yaml -> 环境变量 的顺序合成配置。
type Loader struct {
	getenv   func(string) string
	home     func() (string, error)
	goos     string
	rootFlag string
}

// NewLoader 创建使用进程环境的 Loader。
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv, home: os.UserHomeDir, goos: runtime.GOOS}
}

// WithRoot 用命令行指定的安装根目录覆盖 DNVM_HOME，dnvm.yaml 也从该目录读取。
func (l *Loader) WithRoot(dir string) *Loader {
	l.rootFlag = dir
	return l
}

// Default 返回不含安装根目录的默认配置。
func Default() models.Config {
	return models.Config{
		DefaultSdkDir:  string(models.DefaultSdkDirName),
		LockTimeout:    2 * time.Minute,
		LockRetryDelay: 10 * time.Millisecond,
	}
}

// Load 合成配置。
func (l *Loader) Load() (models.Config, error) {
	cfg := Default()

	root, err := l.root()
	if err != nil {
		return models.Config{}, err
	}
	cfg.RootDir = root

	if err := l.applyFile(&cfg, filepath.Join(root, FileName)); err != nil {
		return models.Config{}, err
	}

	if feeds := l.getenv(EnvFeedURL); feeds != "" {
		cfg.Feeds = splitList(feeds)
	}
	if level := l.getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// root 依次使用命令行参数、DNVM_HOME；否则 Windows 为 %LOCALAPPDATA%\dnvm，其余平台为 ~/.local/share/dnvm。
func (l *Loader) root() (string, error) {
	if l.rootFlag != "" {
		return filepath.Clean(l.rootFlag), nil
	}
	if home := l.getenv(EnvHome); home != "" {
		return filepath.Clean(home), nil
	}
	if l.goos == "windows" {
		if local := l.getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "dnvm"), nil
		}
	} else if data := l.getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "dnvm"), nil
	}
	home, err := l.home()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "dnvm"), nil
}

func (l *Loader) applyFile(cfg *models.Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if len(fc.Feeds) > 0 {
		cfg.Feeds = fc.Feeds
	}
	if fc.DefaultSdkDir != "" {
		if _, err := models.NewSdkDirName(fc.DefaultSdkDir); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
		cfg.DefaultSdkDir = strings.ToLower(fc.DefaultSdkDir)
	}
	if fc.LockTimeout != "" {
		if cfg.LockTimeout, err = time.ParseDuration(fc.LockTimeout); err != nil {
			return fmt.Errorf("config: %s: lockTimeout: %w", path, err)
		}
	}
	if fc.LockRetryDelay != "" {
		if cfg.LockRetryDelay, err = time.ParseDuration(fc.LockRetryDelay); err != nil {
			return fmt.Errorf("config: %s: lockRetryDelay: %w", path, err)
		}
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Rid != "" {
		cfg.Rid = fc.Rid
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
