package models

import "time"

// Config 保存 dnvm 的全局配置。
type Config struct {
	RootDir        string        // 安装根目录，对应 DNVM_HOME
	Feeds          []string      // 发布索引地址，按顺序尝试
	DefaultSdkDir  string        // 默认 SDK 目录名，默认 dn
	LockTimeout    time.Duration // 获取清单锁的超时时间
	LockRetryDelay time.Duration // 首次重试间隔
	LogLevel       string        // debug/info/warn/error
	Rid            string        // 覆盖自动探测的运行时标识，例如 linux-x64
}
