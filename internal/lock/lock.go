package lock

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// MaxRetryDelay 是重试间隔的上限。
const MaxRetryDelay = time.Second

var (
	// ErrTimeout 表示在截止时间内未能获取锁。
	ErrTimeout = errors.New("lock: timed out waiting for lock")

	errContended = errors.New("lock: held by another process")
)

// fileLocker 抽象平台相关的非阻塞排他锁。
type fileLocker interface {
	Lock(f *os.File) error
	Unlock(f *os.File) error
}

// Lock 是一个已持有的跨进程文件锁。
type Lock struct {
	path   string
	file   *os.File
	locker fileLocker
	logger *zap.Logger
	once   sync.Once
}

// Holder 是写入锁文件的诊断信息。
type Holder struct {
	PID   int
	Owner string
}

type options struct {
	logger *zap.Logger
	owner  string
	locker fileLocker
}

// Option 配置 Acquire。
type Option func(*options)

// WithLogger 设置日志。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOwner 设置写入锁文件的调用标识。
func WithOwner(owner string) Option {
	return func(o *options) {
		o.owner = owner
	}
}

// Acquire 获取 path 上的排他锁。争用时按指数退避重试（上限 MaxRetryDelay），
// 超过 timeout 返回 ErrTimeout；ctx 取消时立即返回。
func Acquire(ctx context.Context, path string, timeout, baseRetryDelay time.Duration, opts ...Option) (*Lock, error) {
	o := options{logger: zap.NewNop(), locker: newPlatformLocker()}
	for _, opt := range opts {
		opt(&o)
	}
	if baseRetryDelay <= 0 {
		baseRetryDelay = 10 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock: ensure dir: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseRetryDelay
	policy.MaxInterval = MaxRetryDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.1

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.logger.Debug("lock contended, retrying", zap.String("path", path), zap.Duration("next", next))
		}),
	}
	if timeout > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(timeout))
	} else {
		retryOpts = append(retryOpts, backoff.WithMaxTries(1))
	}

	l, err := backoff.Retry(ctx, func() (*Lock, error) {
		return tryAcquire(path, o)
	}, retryOpts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", path, ctxErr)
		}
		if errors.Is(err, errContended) {
			holder := "unknown process"
			if h, herr := ReadHolder(path); herr == nil {
				holder = fmt.Sprintf("pid %d", h.PID)
			}
			return nil, fmt.Errorf("%w: %s is held by %s (waited %s)", ErrTimeout, path, holder, timeout)
		}
		return nil, err
	}
	o.logger.Debug("lock acquired", zap.String("path", path))
	return l, nil
}

func tryAcquire(path string, o options) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("lock: open %s: %w", path, err))
	}

	if err := o.locker.Lock(f); err != nil {
		f.Close()
		if errors.Is(err, errContended) {
			return nil, errContended
		}
		return nil, backoff.Permanent(fmt.Errorf("lock: lock %s: %w", path, err))
	}

	// 上一个持有者释放前会删除锁文件，锁住的可能是已被删除的旧文件。
	if !stillLinked(f, path) {
		_ = o.locker.Unlock(f)
		f.Close()
		return nil, errContended
	}

	if err := writeHolder(f, o.owner); err != nil {
		_ = o.locker.Unlock(f)
		f.Close()
		return nil, backoff.Permanent(err)
	}

	return &Lock{path: path, file: f, locker: o.locker, logger: o.logger}, nil
}

func stillLinked(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

func writeHolder(f *os.File, owner string) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("lock: truncate: %w", err)
	}
	line := strconv.Itoa(os.Getpid())
	if owner != "" {
		line += " " + owner
	}
	if _, err := f.WriteAt([]byte(line+"\n"), 0); err != nil {
		return fmt.Errorf("lock: write holder: %w", err)
	}
	return f.Sync()
}

// ReadHolder 读取锁文件中记录的持有者。
func ReadHolder(path string) (Holder, error) {
	f, err := os.Open(path)
	if err != nil {
		return Holder{}, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return Holder{}, fmt.Errorf("lock: read holder: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Holder{}, errors.New("lock: empty lock file")
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Holder{}, fmt.Errorf("lock: parse pid: %w", err)
	}
	h := Holder{PID: pid}
	if len(fields) > 1 {
		h.Owner = fields[1]
	}
	return h, nil
}

// Path 返回锁文件路径。
func (l *Lock) Path() string {
	return l.path
}

// Release 释放锁并尽力删除锁文件，可重复调用。删除失败不是错误，下一个获取者会重新创建。
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		// 先删除再解锁，等待者随后会发现自己锁住的文件已脱离路径而重试。
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			l.logger.Debug("lock file not removed", zap.String("path", l.path), zap.Error(rmErr))
		}
		if uerr := l.locker.Unlock(l.file); uerr != nil {
			err = fmt.Errorf("lock: unlock %s: %w", l.path, uerr)
		}
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("lock: close %s: %w", l.path, cerr)
		}
	})
	return err
}
