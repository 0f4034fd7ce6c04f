package rootdir

import (
	"errors"
	"fmt"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// Resolver 将类别解析为 `<platformRoot>/<kindDir>` 绝对路径，由宿主环境注入。
type Resolver interface {
	Dir(kind Kind) (string, error)
}

// ResolverFunc 允许以函数形式注入 Resolver。
type ResolverFunc func(Kind) (string, error)

// Dir 使 ResolverFunc 满足 Resolver。
func (f ResolverFunc) Dir(kind Kind) (string, error) {
	return f(kind)
}

// Fixed 以固定目录作为 platformRoot，常用于配置了 StoragePath 的部署与测试。
type Fixed string

// Dir 返回 base/<kindDir>。
func (f Fixed) Dir(kind Kind) (string, error) {
	if f == "" {
		return "", errors.New("root path required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unknown root kind %d", int(kind))
	}
	abs, err := filepath.Abs(string(f))
	if err != nil {
		return "", fmt.Errorf("resolve root path: %w", err)
	}
	return filepath.Join(abs, kind.DirName()), nil
}

// Platform 基于 go-app-paths 的用户作用域目录：缓存类目录落在 CacheDir，
// 其余类别落在首个 DataDir。
type Platform struct {
	App string
}

// Dir 返回平台目录下的类别目录。
func (p Platform) Dir(kind Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown root kind %d", int(kind))
	}
	app := p.App
	if app == "" {
		app = "moab-cache"
	}
	scope := gap.NewScope(gap.User, app)

	if kind == Caches {
		dir, err := scope.CacheDir()
		if err != nil {
			return "", fmt.Errorf("resolve platform cache dir: %w", err)
		}
		return filepath.Join(dir, kind.DirName()), nil
	}

	dirs, err := scope.DataDirs()
	if err != nil {
		return "", fmt.Errorf("resolve platform data dir: %w", err)
	}
	if len(dirs) == 0 {
		return "", errors.New("platform data dir unavailable")
	}
	return filepath.Join(dirs[0], kind.DirName()), nil
}
