package config

import (
	"errors"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.MaxKeyLength < 0 {
		return newFieldError("Global.MaxKeyLength", "不能为负数")
	}
	if g.MaxObjectSize < 0 {
		return newFieldError("Global.MaxObjectSize", "不能为负数")
	}
	if g.ShutdownTimeout.DurationValue() < 0 {
		return newFieldError("Global.ShutdownTimeout", "不能为负数")
	}
	if err := validateSchedule(g.OrphanSweepSchedule); err != nil {
		return newFieldError("Global.OrphanSweepSchedule", err.Error())
	}
	if err := validateSchedule(g.SizeReportSchedule); err != nil {
		return newFieldError("Global.SizeReportSchedule", err.Error())
	}

	if len(c.Caches) == 0 {
		return errors.New("至少需要配置一个 Cache")
	}

	seen := map[string]struct{}{}
	for i := range c.Caches {
		entry := &c.Caches[i]
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return newFieldError("Cache[].Name", "不能为空")
		}
		if strings.ContainsAny(entry.Name, `/\`) || strings.HasPrefix(entry.Name, ".") {
			return newFieldError(cacheField(entry.Name, "Name"), "不能包含路径分隔符或以 . 开头")
		}
		if _, exists := seen[entry.Name]; exists {
			return newFieldError(cacheField(entry.Name, "Name"), "重复")
		}
		seen[entry.Name] = struct{}{}

		if !entry.RootKind.Valid() {
			return newFieldError(cacheField(entry.Name, "RootKind"), "仅支持 caches|application-support|documents")
		}
		if entry.MaxMemoryCost < 0 {
			return newFieldError(cacheField(entry.Name, "MaxMemoryCost"), "不能为负数")
		}
		if entry.MaxMemoryCountLimit < 0 {
			return newFieldError(cacheField(entry.Name, "MaxMemoryCountLimit"), "不能为负数")
		}
	}

	return nil
}

// Lookup 按名称查找缓存配置。
func (c *Config) Lookup(name string) (CacheConfig, bool) {
	for _, entry := range c.Caches {
		if entry.Name == name {
			return entry, true
		}
	}
	return CacheConfig{}, false
}

func validateSchedule(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return err
	}
	return nil
}
