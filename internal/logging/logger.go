package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/any-hub/moab-cache/internal/config"
)

const defaultAppName = "moab-cache"

// InitLogger 根据全局配置初始化 JSON 结构化日志。每条日志都带上 app 字段，
// 便于多个缓存服务共用同一个日志收集端时区分来源。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	app := strings.TrimSpace(cfg.AppName)
	if app == "" {
		app = defaultAppName
	}

	path := logFilePath(cfg.LogFilePath, app)
	output, outErr := buildOutput(cfg, path)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(appFieldHook{app: app})

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   path,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// logFilePath 在 LogFilePath 指向目录（以分隔符结尾）时补上 <app>.log 文件名。
func logFilePath(raw, app string) string {
	if raw == "" {
		return ""
	}
	if strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, string(os.PathSeparator)) {
		return filepath.Join(raw, app+".log")
	}
	return raw
}

// buildOutput 根据配置创建日志输出 Writer；失败时降级到 stdout 并返回错误。
func buildOutput(cfg config.GlobalConfig, path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

// appFieldHook 为每条日志补充 app 字段，调用方显式设置时不覆盖。
type appFieldHook struct {
	app string
}

func (h appFieldHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h appFieldHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["app"]; !ok {
		entry.Data["app"] = h.app
	}
	return nil
}
