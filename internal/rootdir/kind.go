// Package rootdir 描述缓存实例所在的根目录类别，以及把类别解析为平台目录的 Resolver。
package rootdir

import (
	"fmt"
	"strings"
)

// Kind 对应平台定义的一类基础目录。
type Kind int

const (
	// Caches 为默认类别，对应平台缓存目录。
	Caches Kind = iota
	ApplicationSupport
	Documents
)

var kindNames = map[Kind]string{
	Caches:             "Caches",
	ApplicationSupport: "ApplicationSupport",
	Documents:          "Documents",
}

// Kinds 返回所有已知类别，按枚举顺序。
func Kinds() []Kind {
	return []Kind{Caches, ApplicationSupport, Documents}
}

// DirName 返回该类别在 platformRoot 下使用的目录名。
func (k Kind) DirName() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind%d", int(k))
}

func (k Kind) String() string {
	return strings.ToLower(k.DirName())
}

// Valid 判断类别是否为已知枚举值。
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind 忽略大小写解析类别，兼容 application-support / application_support 写法。
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	if normalized == "" {
		return Caches, nil
	}
	for kind, name := range kindNames {
		if strings.ToLower(name) == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown root kind: %s", raw)
}

// UnmarshalText 使 viper/mapstructure 可以直接解码配置中的字符串。
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText 输出小写名称，供 JSON 诊断接口使用。
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
