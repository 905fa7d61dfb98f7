package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/lock"
	"github.com/liangyou/dnvm/internal/storage"
	"github.com/liangyou/dnvm/pkg/models"
)

// errNothingToWrite 由 Mutate 的回调返回，表示无需写入清单且不算失败。
var errNothingToWrite = errors.New("nothing to write")

// Workspace 把一次命令对清单的修改串行化：加锁、读取一次、计算新值、写入一次、释放锁。
type Workspace struct {
	store          storage.ManifestStore
	lockTimeout    time.Duration
	lockRetryDelay time.Duration
	owner          string
	logger         *zap.Logger
}

// WorkspaceOption 配置 Workspace。
type WorkspaceOption func(*Workspace)

// WithLockTiming 设置锁的超时与首次重试间隔。
func WithLockTiming(timeout, retryDelay time.Duration) WorkspaceOption {
	return func(w *Workspace) {
		w.lockTimeout = timeout
		if retryDelay > 0 {
			w.lockRetryDelay = retryDelay
		}
	}
}

// WithOwner 设置写入锁文件的调用标识。
func WithOwner(owner string) WorkspaceOption {
	return func(w *Workspace) {
		w.owner = owner
	}
}

// WithWorkspaceLogger 设置日志。
func WithWorkspaceLogger(logger *zap.Logger) WorkspaceOption {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorkspace 创建 Workspace。
func NewWorkspace(store storage.ManifestStore, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		store:          store,
		lockTimeout:    2 * time.Minute,
		lockRetryDelay: 10 * time.Millisecond,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Store 返回底层清单存储。
func (w *Workspace) Store() storage.ManifestStore {
	return w.store
}

// Read 不加锁读取清单，文件不存在时返回空清单。写入是原子重命名，读者不会看到半个文件。
func (w *Workspace) Read() (models.Manifest, error) {
	m, err := w.store.Read()
	if errors.Is(err, storage.ErrManifestNotFound) {
		return models.EmptyManifest(), nil
	}
	return m, err
}

// Mutate 在持有锁期间执行 fn。fn 返回错误时不写入清单；锁在任何路径上都会释放。
func (w *Workspace) Mutate(ctx context.Context, op string, fn func(models.Manifest) (models.Manifest, error)) error {
	l, err := lock.Acquire(ctx, w.store.LockPath(), w.lockTimeout, w.lockRetryDelay,
		lock.WithLogger(w.logger), lock.WithOwner(w.owner))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if rerr := l.Release(); rerr != nil {
			w.logger.Warn("release manifest lock", zap.String("op", op), zap.Error(rerr))
		}
	}()

	current, err := w.Read()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next, err := fn(current)
	if errors.Is(err, errNothingToWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := w.store.Write(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	w.logger.Debug("manifest written", zap.String("op", op),
		zap.Int("sdks", len(next.InstalledSdks)), zap.Int("channels", len(next.RegisteredChannels)))
	return nil
}
