package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Root 代表一个根目录类别（如 Caches）下的全部缓存名目录。
type Root struct {
	fs billy.Filesystem
}

// OpenRoot 以宿主目录 dir 构建 Root；目录不存在时延迟到首次写入再创建。
func OpenRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, errors.New("root directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root directory: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryIsFile, abs)
	}
	return &Root{fs: osfs.New(abs)}, nil
}

// NewRoot 直接包装任意 billy 文件系统，测试中可传入 memfs。
func NewRoot(fsys billy.Filesystem) *Root {
	return &Root{fs: fsys}
}

// Dir 返回根目录的宿主路径。
func (r *Root) Dir() string {
	return r.fs.Root()
}

// Store 打开（必要时创建）名为 name 的实例目录。
func (r *Root) Store(name string) (Store, error) {
	return newFileStore(r.fs, name)
}

// Names 枚举磁盘上现存的缓存名目录，反映的是磁盘状态而非进程内实例。
func (r *Root) Names() ([]string, error) {
	entries, err := r.fs.ReadDir("/")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// RemoveName 删除指定缓存名的整个目录树，不存在时视为成功。
func (r *Root) RemoveName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := util.RemoveAll(r.fs, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// TotalSize 统计整个类别目录下所有缓存名的文件大小总和。
func (r *Root) TotalSize() (int64, error) {
	return treeSize(r.fs, "/")
}
