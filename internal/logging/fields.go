package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 提供缓存名/根目录类别/key 字段，供缓存读写日志复用。key 为空时省略。
func CacheFields(action, cache, rootKind, key string) logrus.Fields {
	fields := logrus.Fields{
		"action":    action,
		"cache":     cache,
		"root_kind": rootKind,
	}
	if key != "" {
		fields["key"] = key
	}
	return fields
}

// RequestFields 提供 HTTP 请求维度字段，供对象 API 日志复用。
func RequestFields(requestID, method, cache string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"cache":      cache,
		"status":     status,
	}
}
