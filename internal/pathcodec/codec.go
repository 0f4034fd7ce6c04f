// Package pathcodec 将任意字符串 key 映射为可安全落盘的文件名。
package pathcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxKeyLength 是未显式配置时允许的最大 key 字节数（哈希前）。
const DefaultMaxKeyLength = 1024

// prefixLength 控制文件名中保留的可读前缀长度，仅用于排查问题。
const prefixLength = 16

// ErrInvalidKey 表示 key 为空或超出长度上限。
var ErrInvalidKey = errors.New("invalid cache key")

// Codec 负责 key → 相对文件名的正向映射，不支持反向解析。
type Codec struct {
	MaxKeyLength int
}

// New 构造 Codec，maxKeyLength <= 0 时使用默认上限。
func New(maxKeyLength int) Codec {
	if maxKeyLength <= 0 {
		maxKeyLength = DefaultMaxKeyLength
	}
	return Codec{MaxKeyLength: maxKeyLength}
}

// Validate 校验 key 是否可被编码。
func (c Codec) Validate(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	limit := c.MaxKeyLength
	if limit <= 0 {
		limit = DefaultMaxKeyLength
	}
	if len(key) > limit {
		return fmt.Errorf("%w: key length %d exceeds %d", ErrInvalidKey, len(key), limit)
	}
	return nil
}

// Encode 输出 `<前缀>-<sha256 hex>` 形式的文件名；前缀为空时仅保留哈希。
// 唯一性完全由哈希保证，前缀可能在不同 key 之间重复。
func (c Codec) Encode(key string) (string, error) {
	if err := c.Validate(key); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])

	prefix := sanitizePrefix(key)
	if prefix == "" {
		return digest, nil
	}
	return prefix + "-" + digest, nil
}

func sanitizePrefix(key string) string {
	var b strings.Builder
	for _, r := range key {
		if b.Len() >= prefixLength {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
