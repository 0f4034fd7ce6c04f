package moabcache

import (
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Codec 定义值与字节序列之间的转换，是持久化边界上的唯一契约。
type Codec[V any] interface {
	Marshal(V) ([]byte, error)
	Unmarshal([]byte) (V, error)
}

// Coster 由值自行提供内存成本（例如图片像素数）；未实现时成本为 1。
type Coster interface {
	MemoryCost() int64
}

// BytesCodec 原样保存字节切片，编解码时复制以隔离调用方缓冲区。
type BytesCodec struct{}

func (BytesCodec) Marshal(v []byte) ([]byte, error) {
	return append([]byte(nil), v...), nil
}

func (BytesCodec) Unmarshal(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// StringCodec 以 UTF-8 字节保存字符串。
type StringCodec struct{}

func (StringCodec) Marshal(v string) ([]byte, error) {
	return []byte(v), nil
}

func (StringCodec) Unmarshal(data []byte) (string, error) {
	return string(data), nil
}

// JSONCodec 使用 go-json 编解码任意可 JSON 序列化的类型。
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Marshal(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			zstdErr = fmt.Errorf("create zstd encoder: %w", zstdErr)
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
		if zstdErr != nil {
			zstdErr = fmt.Errorf("create zstd decoder: %w", zstdErr)
		}
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Compressed 在 inner 之外包一层 zstd 帧，适合体积较大的可压缩负载。
func Compressed[V any](inner Codec[V]) Codec[V] {
	return compressedCodec[V]{inner: inner}
}

type compressedCodec[V any] struct {
	inner Codec[V]
}

func (c compressedCodec[V]) Marshal(v V) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

func (c compressedCodec[V]) Unmarshal(data []byte) (V, error) {
	var zero V
	_, dec, err := zstdCoders()
	if err != nil {
		return zero, err
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return zero, fmt.Errorf("zstd decode: %w", err)
	}
	return c.inner.Unmarshal(raw)
}
