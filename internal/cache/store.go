package cache

import (
	"context"
	"errors"
)

// Store 负责单个缓存名目录下的读写。磁盘布局遵循：
//
//	<platformRoot>/<rootKindDir>/<cacheName>/<encodedKey>
//
// 没有索引文件，目录列表即是磁盘上存在哪些 key 的唯一依据。
type Store interface {
	// Write 以临时文件 + rename 的方式原子写入，失败时清理临时文件。
	Write(ctx context.Context, rel string, data []byte) error

	// Read 读取完整正文。不存在时返回 ErrNotFound，I/O 故障包装 ErrReadFailed。
	Read(ctx context.Context, rel string) ([]byte, error)

	// Delete 删除单个条目，文件不存在不视为错误。
	Delete(ctx context.Context, rel string) error

	// DeleteAll 删除整个实例根目录，可重复调用。
	DeleteAll(ctx context.Context) error

	// Exists 判断条目文件当前是否存在。
	Exists(rel string) bool

	// Path 返回条目在宿主文件系统中的绝对路径（不检查是否存在）。
	Path(rel string) string

	// Root 返回实例根目录的绝对路径。
	Root() string

	// TotalSize 递归统计实例根目录下所有文件大小。
	TotalSize() (int64, error)
}

var (
	// ErrNotFound 表示缓存条目不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrDirectoryIsFile 表示实例根目录位置已被普通文件占用。
	ErrDirectoryIsFile = errors.New("cache directory is a regular file")
	// ErrReadFailed 包装读取过程中的 I/O 故障。
	ErrReadFailed = errors.New("cache read failed")
	// ErrWriteFailed 包装写入过程中的 I/O 故障。
	ErrWriteFailed = errors.New("cache write failed")
	// ErrInvalidName 表示缓存名或相对路径不合法。
	ErrInvalidName = errors.New("invalid cache name")
)
