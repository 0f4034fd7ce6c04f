package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const tempPrefix = ".moab-"

// newFileStore 在 fsys 中以 name 为实例目录构建 Store，目录位置被普通文件占用时返回 ErrDirectoryIsFile。
func newFileStore(fsys billy.Filesystem, name string) (*fileStore, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	info, err := fsys.Stat(name)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%w: %s", ErrDirectoryIsFile, filepath.Join(fsys.Root(), name))
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat cache directory: %w", err)
	}

	if err := fsys.MkdirAll(name, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &fileStore{
		fs:    fsys,
		name:  name,
		locks: make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一路径并发读写，tree 锁让 DeleteAll 与单条目操作互斥。
type fileStore struct {
	fs   billy.Filesystem
	name string

	tree sync.RWMutex

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entryPath, err := s.entryPath(rel)
	if err != nil {
		return nil, err
	}

	s.tree.RLock()
	defer s.tree.RUnlock()
	unlock := s.lockEntry(rel)
	defer unlock()

	info, err := s.fs.Stat(entryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, rel, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := s.fs.Open(entryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, rel, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, rel, err)
	}
	return data, nil
}

func (s *fileStore) Write(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entryPath, err := s.entryPath(rel)
	if err != nil {
		return err
	}

	s.tree.RLock()
	defer s.tree.RUnlock()
	unlock := s.lockEntry(rel)
	defer unlock()

	dir := filepath.Dir(entryPath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, rel, err)
	}

	tempFile, err := s.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, rel, err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.fs.Remove(tempName)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, rel, err)
	}

	if err := s.fs.Rename(tempName, entryPath); err != nil {
		s.fs.Remove(tempName)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, rel, err)
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entryPath, err := s.entryPath(rel)
	if err != nil {
		return err
	}

	s.tree.RLock()
	defer s.tree.RUnlock()
	unlock := s.lockEntry(rel)
	defer unlock()

	if err := s.fs.Remove(entryPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tree.Lock()
	defer s.tree.Unlock()

	if err := util.RemoveAll(s.fs, s.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) Exists(rel string) bool {
	entryPath, err := s.entryPath(rel)
	if err != nil {
		return false
	}
	info, err := s.fs.Stat(entryPath)
	return err == nil && !info.IsDir()
}

func (s *fileStore) Path(rel string) string {
	entryPath, err := s.entryPath(rel)
	if err != nil {
		return ""
	}
	return filepath.Join(s.fs.Root(), entryPath)
}

func (s *fileStore) Root() string {
	return filepath.Join(s.fs.Root(), s.name)
}

func (s *fileStore) TotalSize() (int64, error) {
	return treeSize(s.fs, s.name)
}

func (s *fileStore) lockEntry(rel string) func() {
	s.mu.Lock()
	lock := s.locks[rel]
	if lock == nil {
		lock = &entryLock{}
		s.locks[rel] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, rel)
		}
		s.mu.Unlock()
	}
}

// entryPath 将相对路径限制在实例目录内，拒绝越界与隐藏文件名。
func (s *fileStore) entryPath(rel string) (string, error) {
	if rel == "" || strings.ContainsAny(rel, `/\`) || rel == "." || rel == ".." || strings.HasPrefix(rel, ".") {
		return "", fmt.Errorf("%w: entry %q", ErrInvalidName, rel)
	}
	return s.fs.Join(s.name, rel), nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// treeSize 递归统计 dir 下普通文件大小之和，目录不存在时返回 0。
func treeSize(fsys billy.Filesystem, dir string) (int64, error) {
	var total int64
	err := util.Walk(fsys, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
