package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

const (
	// ManifestFileName 是清单在安装根目录下的文件名。
	ManifestFileName = "dnvmManifest.json"
	// CurrentVersion 是当前清单 schema 版本号。
	CurrentVersion = 9
)

var (
	// ErrManifestNotFound 表示清单文件不存在，调用方通常将其视为空清单。
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrManifestCorrupted 表示清单内容无法通过 schema 校验。
	ErrManifestCorrupted = errors.New("manifest corrupted")
	// ErrManifestIO 表示读写清单时的文件系统错误。
	ErrManifestIO = errors.New("manifest io error")
)

// ManifestStore 定义清单的读写接口。
type ManifestStore interface {
	Read() (models.Manifest, error)
	Write(models.Manifest) error
	LockPath() string
	SdkDir(name models.SdkDirName) string
	RootDir() string
}

// FileStorage 通过安装根目录下的 JSON 文件持久化清单。
type FileStorage struct {
	root         string
	manifestPath string
	backupPath   string
	lockPath     string
	logger       *zap.Logger

	writeFile func(f *os.File, data []byte) (int, error)
}

// manifestFile 是磁盘上的清单结构，version 位于最前。
type manifestFile struct {
	Version int `json:"version"`
	models.Manifest
}

// Option 配置 FileStorage。
type Option func(*FileStorage)

// WithLogger 设置日志。
func WithLogger(logger *zap.Logger) Option {
	return func(s *FileStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStorage 构造一个文件系统存储实例。
func NewFileStorage(cfg models.Config, opts ...Option) *FileStorage {
	root := cfg.RootDir
	if root == "" {
		root = filepath.Join(os.TempDir(), "dnvm")
	}
	manifestPath := filepath.Join(root, ManifestFileName)
	s := &FileStorage{
		root:         root,
		manifestPath: manifestPath,
		backupPath:   manifestPath + ".backup",
		lockPath:     manifestPath + ".lock",
		logger:       zap.NewNop(),
		writeFile:    func(f *os.File, data []byte) (int, error) { return f.Write(data) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RootDir 返回安装根目录。
func (s *FileStorage) RootDir() string {
	return s.root
}

// ManifestPath 返回清单路径。
func (s *FileStorage) ManifestPath() string {
	return s.manifestPath
}

// BackupPath 返回清单备份路径。
func (s *FileStorage) BackupPath() string {
	return s.backupPath
}

// LockPath 返回与清单同目录的锁文件路径。
func (s *FileStorage) LockPath() string {
	return s.lockPath
}

// SdkDir 返回沙箱目录的绝对路径，总是 root/name。
func (s *FileStorage) SdkDir(name models.SdkDirName) string {
	return filepath.Join(s.root, string(name))
}

// Read 读取清单。文件不存在时返回 ErrManifestNotFound，内容非法时返回 ErrManifestCorrupted。
func (s *FileStorage) Read() (models.Manifest, error) {
	return s.readPath(s.manifestPath)
}

// ReadBackup 读取上一次写入前保留的备份。
func (s *FileStorage) ReadBackup() (models.Manifest, error) {
	return s.readPath(s.backupPath)
}

// ReadOrEmpty 读取清单，不存在时返回空清单。
func (s *FileStorage) ReadOrEmpty() (models.Manifest, error) {
	m, err := s.Read()
	if errors.Is(err, ErrManifestNotFound) {
		return models.EmptyManifest(), nil
	}
	return m, err
}

func (s *FileStorage) readPath(path string) (models.Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Manifest{}, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return models.Manifest{}, fmt.Errorf("%w: open %s: %w", ErrManifestIO, path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: read %s: %w", ErrManifestIO, path, err)
	}

	m, err := decodeManifest(data)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: %s: %v", ErrManifestCorrupted, path, err)
	}
	return m, nil
}

func decodeManifest(data []byte) (models.Manifest, error) {
	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return models.Manifest{}, fmt.Errorf("decode: %w", err)
	}
	if head.Version == nil {
		return models.Manifest{}, errors.New("missing version field")
	}

	upgraded, err := upgrade(data, *head.Version)
	if err != nil {
		return models.Manifest{}, err
	}

	var file manifestFile
	if err := json.Unmarshal(upgraded, &file); err != nil {
		return models.Manifest{}, fmt.Errorf("decode v%d: %w", CurrentVersion, err)
	}

	m := file.Manifest.Clone()
	if m.CurrentSdkDir == "" {
		m.CurrentSdkDir = models.DefaultSdkDirName
	}
	if err := m.Validate(); err != nil {
		return models.Manifest{}, err
	}
	return m, nil
}

// Write 以 写临时文件 -> 备份旧文件 -> 原子重命名 的顺序持久化清单。
func (s *FileStorage) Write(m models.Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("storage: refusing to write invalid manifest: %w", err)
	}

	data, err := json.MarshalIndent(manifestFile{Version: CurrentVersion, Manifest: m.Clone()}, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: ensure root: %w", ErrManifestIO, err)
	}

	tmp, err := os.CreateTemp(s.root, ManifestFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp manifest: %w", ErrManifestIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := s.writeFile(tmp, data); err != nil {
		return fmt.Errorf("%w: write temp manifest: %w", ErrManifestIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp manifest: %w", ErrManifestIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp manifest: %w", ErrManifestIO, err)
	}

	s.backup()

	if err := os.Rename(tmpPath, s.manifestPath); err != nil {
		return fmt.Errorf("%w: replace manifest: %w", ErrManifestIO, err)
	}
	committed = true
	return nil
}

func (s *FileStorage) backup() {
	previous, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("could not read manifest for backup", zap.Error(err))
		}
		return
	}
	if err := os.WriteFile(s.backupPath, previous, 0o644); err != nil {
		s.logger.Warn("could not write manifest backup", zap.String("path", s.backupPath), zap.Error(err))
	}
}
