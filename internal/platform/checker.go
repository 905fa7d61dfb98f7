package platform

import (
	"fmt"
	"os"
	"runtime"

	"github.com/liangyou/dnvm/pkg/models"
)

var osNames = map[string]string{
	"linux":   "linux",
	"darwin":  "osx",
	"windows": "win",
}

var archNames = map[string]string{
	"amd64": "x64",
	"arm64": "arm64",
	"386":   "x86",
}

// Checker 校验当前系统是否满足 dnvm 的运行要求，并给出下载所需的运行时标识。
type Checker struct {
	cfg    models.Config
	goos   func() string
	goarch func() string
}

// NewChecker 创建平台检测器。
func NewChecker(cfg models.Config) *Checker {
	return &Checker{
		cfg:    cfg,
		goos:   func() string { return runtime.GOOS },
		goarch: func() string { return runtime.GOARCH },
	}
}

// Validate 校验当前平台与安装目录权限。
func (c *Checker) Validate() error {
	if _, err := c.Rid(); err != nil {
		return err
	}
	if c.cfg.RootDir == "" {
		return fmt.Errorf("platform: install root is not configured")
	}
	if err := os.MkdirAll(c.cfg.RootDir, 0o755); err != nil {
		return fmt.Errorf("platform: cannot access install directory %s: %w", c.cfg.RootDir, err)
	}
	return nil
}

// Rid 返回当前平台的运行时标识，例如 linux-x64、osx-arm64。配置中的 Rid 优先。
func (c *Checker) Rid() (string, error) {
	if c.cfg.Rid != "" {
		return c.cfg.Rid, nil
	}
	osName, ok := osNames[c.goos()]
	if !ok {
		return "", fmt.Errorf("platform: unsupported operating system %s", c.goos())
	}
	arch, ok := archNames[c.goarch()]
	if !ok || (arch == "x86" && osName != "win") {
		return "", fmt.Errorf("platform: unsupported architecture %s/%s", c.goos(), c.goarch())
	}
	return osName + "-" + arch, nil
}

// ArchiveExt 返回发行包扩展名，Windows 使用 zip，其余平台使用 tar.gz。
func (c *Checker) ArchiveExt() string {
	if c.goos() == "windows" {
		return ".zip"
	}
	return ".tar.gz"
}

// SupportsSymlinks 表示当前 SDK 能否通过符号链接切换。
func (c *Checker) SupportsSymlinks() bool {
	return c.goos() != "windows"
}

// ExeName 返回带平台后缀的可执行文件名。
func (c *Checker) ExeName(name string) string {
	if c.goos() == "windows" {
		return name + ".exe"
	}
	return name
}
