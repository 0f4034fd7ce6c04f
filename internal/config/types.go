package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/moab-cache/internal/rootdir"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有缓存实例共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	// StoragePath 为 platformRoot；留空时使用 go-app-paths 解析的用户目录。
	StoragePath         string   `mapstructure:"StoragePath"`
	AppName             string   `mapstructure:"AppName"`
	MaxKeyLength        int      `mapstructure:"MaxKeyLength"`
	MaxObjectSize       int64    `mapstructure:"MaxObjectSize"`
	ShutdownTimeout     Duration `mapstructure:"ShutdownTimeout"`
	OrphanSweepSchedule string   `mapstructure:"OrphanSweepSchedule"`
	SizeReportSchedule  string   `mapstructure:"SizeReportSchedule"`
}

// CacheConfig 声明一个由服务托管的缓存实例。
type CacheConfig struct {
	Name                string       `mapstructure:"Name"`
	RootKind            rootdir.Kind `mapstructure:"RootKind"`
	MaxMemoryCost       int64        `mapstructure:"MaxMemoryCost"`
	MaxMemoryCountLimit int          `mapstructure:"MaxMemoryCountLimit"`
	Compress            bool         `mapstructure:"Compress"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig  `mapstructure:",squash"`
	Caches []CacheConfig `mapstructure:"Cache"`
}

// Resolver 根据 StoragePath 选择固定目录或平台目录。
func (g GlobalConfig) Resolver() rootdir.Resolver {
	if g.StoragePath != "" {
		return rootdir.Fixed(g.StoragePath)
	}
	return rootdir.Platform{App: g.AppName}
}

// CacheSummaries 返回所有缓存的 kind/name 摘要，例如 caches/images，供启动日志使用。
func CacheSummaries(caches []CacheConfig) []string {
	if len(caches) == 0 {
		return nil
	}
	result := make([]string, len(caches))
	for i, c := range caches {
		result[i] = fmt.Sprintf("%s/%s", c.RootKind, c.Name)
	}
	return result
}
