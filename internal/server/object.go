package server

import "github.com/any-hub/moab-cache/pkg/moabcache"

// Object 是对象 API 存取的原始字节，内存成本按字节数计算。
type Object []byte

// MemoryCost 让内存层按对象大小而不是条目数计费。
func (o Object) MemoryCost() int64 {
	return int64(len(o))
}

type objectCodec struct{}

func (objectCodec) Marshal(o Object) ([]byte, error) {
	return []byte(o), nil
}

func (objectCodec) Unmarshal(data []byte) (Object, error) {
	out := make(Object, len(data))
	copy(out, data)
	return out, nil
}

// ObjectCodec 返回对象编解码器；compress 为 true 时使用 zstd 帧封装。
func ObjectCodec(compress bool) moabcache.Codec[Object] {
	if compress {
		return moabcache.Compressed[Object](objectCodec{})
	}
	return objectCodec{}
}
