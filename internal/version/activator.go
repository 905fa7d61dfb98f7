package version

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/liangyou/dnvm/pkg/models"
)

// Activator 把 "当前 SDK" 指向另一个沙箱目录。
type Activator interface {
	Activate(oldDir, newDir models.SdkDirName) error
}

// SymlinkActivator 维护 root/<exe> -> <dir>/<exe> 的符号链接，用临时链接加重命名原子替换。
type SymlinkActivator struct {
	root string
	exe  string
}

// NewSymlinkActivator 创建 SymlinkActivator。
func NewSymlinkActivator(root, exe string) *SymlinkActivator {
	return &SymlinkActivator{root: root, exe: exe}
}

// LinkPath 返回符号链接的位置。
func (a *SymlinkActivator) LinkPath() string {
	return filepath.Join(a.root, a.exe)
}

// Activate 实现 Activator。
func (a *SymlinkActivator) Activate(_, newDir models.SdkDirName) error {
	link := a.LinkPath()
	tmp := link + ".tmp-" + strconv.Itoa(os.Getpid())
	_ = os.Remove(tmp)

	if err := os.Symlink(filepath.Join(string(newDir), a.exe), tmp); err != nil {
		return fmt.Errorf("selector: create link: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("selector: replace link: %w", err)
	}
	return nil
}

// PathSwitcher 改写持久化的用户 PATH。
type PathSwitcher interface {
	SwitchUserPath(oldDir, newDir string) error
}

// PathActivator 在不支持可执行符号链接的平台上，把新目录放到用户 PATH 最前并移除旧目录。
type PathActivator struct {
	root  string
	paths PathSwitcher
}

// NewPathActivator 创建 PathActivator。
func NewPathActivator(root string, paths PathSwitcher) *PathActivator {
	return &PathActivator{root: root, paths: paths}
}

// Activate 实现 Activator。
func (a *PathActivator) Activate(oldDir, newDir models.SdkDirName) error {
	oldPath := ""
	if oldDir != "" {
		oldPath = filepath.Join(a.root, string(oldDir))
	}
	if err := a.paths.SwitchUserPath(oldPath, filepath.Join(a.root, string(newDir))); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	return nil
}
