package version

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

// SdkInstaller 把一个 SDK 组件安装到沙箱目录中。
type SdkInstaller interface {
	InstallSdk(ctx context.Context, sdkDir string, sdk models.Component) error
}

// ArchiveInstaller 下载发行包，解压到临时目录后合并进沙箱目录。
// 共享组件按版本分目录，已存在的版本目录合并后内容不变。
type ArchiveInstaller struct {
	downloader ArtifactDownloader
	rid        string
	ext        string
	logger     *zap.Logger
}

// NewArchiveInstaller 创建 ArchiveInstaller。ext 为 .tar.gz 或 .zip。
func NewArchiveInstaller(downloader ArtifactDownloader, rid, ext string, logger *zap.Logger) *ArchiveInstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveInstaller{downloader: downloader, rid: rid, ext: ext, logger: logger}
}

// InstallSdk 实现 SdkInstaller。
func (i *ArchiveInstaller) InstallSdk(ctx context.Context, sdkDir string, sdk models.Component) error {
	file, err := sdk.FileFor(i.rid, i.ext)
	if err != nil {
		return err
	}

	archivePath, err := i.downloader.Download(ctx, file)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if err := os.MkdirAll(sdkDir, 0o755); err != nil {
		return fmt.Errorf("installer: prepare sdk dir: %w", err)
	}
	tempDir, err := os.MkdirTemp(filepath.Dir(sdkDir), ".extract-*")
	if err != nil {
		return fmt.Errorf("installer: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.HasSuffix(archivePath, ".zip") {
		err = extractZip(archivePath, tempDir)
	} else {
		err = extractTarGz(archivePath, tempDir)
	}
	if err != nil {
		return err
	}

	if err := mergeTree(tempDir, sdkDir); err != nil {
		return err
	}
	i.logger.Info("sdk extracted", zap.String("sdk", sdk.Version.String()), zap.String("dir", sdkDir))
	return nil
}

func extractTarGz(archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("installer: open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("installer: gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("installer: read archive: %w", err)
		}

		relPath, skip := normalizeArchivePath(header.Name)
		if skip {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(relPath))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("installer: mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("installer: mkdir for link %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("installer: symlink %s: %w", target, err)
			}
		case tar.TypeXGlobalHeader:
			continue
		default:
			return fmt.Errorf("installer: unsupported tar entry %q", header.Name)
		}
	}
	return nil
}

func extractZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("installer: open archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		relPath, skip := normalizeArchivePath(f.Name)
		if skip {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(relPath))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("installer: mkdir %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("installer: open %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("installer: mkdir for file %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("installer: create file %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("installer: copy file %s: %w", target, err)
	}
	return f.Close()
}

func normalizeArchivePath(name string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, `\`, "/")), "./")
	if clean == "." || clean == "" || clean == "/" {
		return "", true
	}
	return clean, false
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("installer: illegal path %s", target)
	}
	return nil
}

// mergeTree 把 src 中的条目移动到 dst：目录递归合并，文件覆盖。
func mergeTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("installer: read %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("installer: mkdir %s: %w", dst, err)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		info, err := os.Lstat(to)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("installer: stat %s: %w", to, err)
		case entry.IsDir() && info.IsDir():
			if err := mergeTree(from, to); err != nil {
				return err
			}
			continue
		case entry.IsDir() != info.IsDir():
			if err := os.RemoveAll(to); err != nil {
				return fmt.Errorf("installer: replace %s: %w", to, err)
			}
		}

		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("installer: move %s: %w", to, err)
		}
	}
	return nil
}
