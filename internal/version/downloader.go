package version

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

// ProgressFunc 在下载过程中回调当前已完成的字节数以及总字节数。
type ProgressFunc func(downloaded, total int64)

// ArtifactDownloader 获取发行包并返回本地路径。
type ArtifactDownloader interface {
	Download(ctx context.Context, file models.File) (string, error)
}

// HTTPClient 定义 Downloader 所需的 HTTP 客户端能力。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader 负责下载发行包并进行 sha512 校验。
type Downloader struct {
	httpClient   HTTPClient
	downloadsDir string
	progressFunc ProgressFunc
	logger       *zap.Logger
}

// DownloaderOption 配置 Downloader。
type DownloaderOption func(*Downloader)

// WithHTTPClient 指定自定义 HTTP 客户端。
func WithHTTPClient(client HTTPClient) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithDownloadsDir 指定下载目录。
func WithDownloadsDir(dir string) DownloaderOption {
	return func(d *Downloader) {
		if dir != "" {
			d.downloadsDir = dir
		}
	}
}

// WithProgressFunc 指定进度回调。
func WithProgressFunc(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progressFunc = fn
	}
}

// WithDownloaderLogger 设置日志。
func WithDownloaderLogger(logger *zap.Logger) DownloaderOption {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDownloader 创建 Downloader，默认下载到系统临时目录下的进程私有目录。
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient:   http.DefaultClient,
		downloadsDir: filepath.Join(os.TempDir(), "dnvm-downloads"),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download 获取文件并校验 sha512，返回本地文件路径。调用方负责删除返回的文件。
func (d *Downloader) Download(ctx context.Context, file models.File) (string, error) {
	if file.URL == "" {
		return "", errors.New("downloader: empty url")
	}
	if err := os.MkdirAll(d.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("downloader: create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return "", fmt.Errorf("downloader: build request: %w", err)
	}

	d.logger.Info("downloading", zap.String("url", file.URL))
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloader: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloader: unexpected status %d for %s", resp.StatusCode, file.URL)
	}

	tempFile, err := os.CreateTemp(d.downloadsDir, "download-*"+archiveSuffix(file.URL))
	if err != nil {
		return "", fmt.Errorf("downloader: temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keep := false
	defer func() {
		tempFile.Close()
		if !keep {
			os.Remove(tempPath)
		}
	}()

	hasher := sha512.New()
	reader := d.wrapProgress(resp.Body, resp.ContentLength)
	if _, err := io.Copy(io.MultiWriter(tempFile, hasher), reader); err != nil {
		return "", fmt.Errorf("downloader: write file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("downloader: sync file: %w", err)
	}

	if err := verifyChecksum(hex.EncodeToString(hasher.Sum(nil)), file.Hash); err != nil {
		return "", err
	}

	keep = true
	return tempPath, nil
}

func (d *Downloader) wrapProgress(reader io.Reader, total int64) io.Reader {
	if d.progressFunc == nil {
		return reader
	}
	return &progressReader{r: reader, total: total, report: d.progressFunc}
}

func verifyChecksum(actual, expected string) error {
	if expected == "" {
		return errors.New("downloader: release metadata has no hash")
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("downloader: checksum mismatch, got %s want %s", actual, expected)
	}
	return nil
}

// archiveSuffix 保留 .tar.gz / .zip 后缀，解压时据此选择格式。
func archiveSuffix(rawURL string) string {
	name := path.Base(rawURL)
	if strings.HasSuffix(name, ".tar.gz") {
		return ".tar.gz"
	}
	return path.Ext(name)
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}
