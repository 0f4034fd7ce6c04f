package moabcache

import (
	"context"
	"fmt"

	"github.com/any-hub/moab-cache/internal/cache"
)

// failingStore 让写入总是失败，用于验证带外错误上报。
type failingStore struct {
	cache.Store
}

func (failingStore) Write(context.Context, string, []byte) error {
	return fmt.Errorf("%w: disk full", cache.ErrWriteFailed)
}
