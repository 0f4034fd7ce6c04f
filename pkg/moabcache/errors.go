package moabcache

import (
	"github.com/any-hub/moab-cache/internal/cache"
	"github.com/any-hub/moab-cache/internal/pathcodec"
	"github.com/any-hub/moab-cache/internal/rootdir"
)

var (
	// ErrInvalidKey 表示 key 为空或超出长度上限，会同步返回给调用方。
	ErrInvalidKey = pathcodec.ErrInvalidKey
	// ErrInvalidName 表示缓存名为空、包含路径分隔符或以 "." 开头。
	ErrInvalidName = cache.ErrInvalidName
	// ErrDirectoryIsFile 表示实例目录位置已被普通文件占用，构造失败。
	ErrDirectoryIsFile = cache.ErrDirectoryIsFile
	// ErrNotFound 表示磁盘层不存在该条目；ObjectForKey 会将其视为未命中。
	ErrNotFound = cache.ErrNotFound
	// ErrReadFailed 与 ErrWriteFailed 包装磁盘 I/O 故障，仅通过 ErrorObserver 与日志暴露。
	ErrReadFailed  = cache.ErrReadFailed
	ErrWriteFailed = cache.ErrWriteFailed
)

// Operation names carried by ErrorEvent.
const (
	OpWrite     = "write"
	OpDelete    = "delete"
	OpRead      = "read"
	OpDecode    = "decode"
	OpRemoveAll = "remove_all"
)

// ErrorEvent 描述一次未同步返回给调用方的磁盘层故障。
type ErrorEvent struct {
	Op    string
	Cache string
	Kind  rootdir.Kind
	Key   string
	Path  string
	Err   error
}

// ErrorObserver 接收异步写入等带外错误；实现需自行保证并发安全。
type ErrorObserver func(ErrorEvent)
