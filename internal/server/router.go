package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/logging"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger        *logrus.Logger
	Catalog       *Catalog
	MaxObjectSize int64
	ListenPort    int
}

const (
	contextKeyEntry     = "_moab_cache_entry"
	contextKeyRequestID = "_moab_request_id"
)

// NewApp builds a Fiber application with request ID and access log middleware
// and structured error handling. Routes are attached by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("cache catalog is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	cfg := fiber.Config{
		CaseSensitive: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
		ErrorHandler:  errorHandler(opts.Logger),
	}
	if opts.MaxObjectSize > 0 {
		cfg.BodyLimit = int(opts.MaxObjectSize)
	}
	app := fiber.New(cfg)

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		logger.WithFields(logging.RequestFields(reqID, c.Method(), c.Params("name"), status)).
			WithFields(logrus.Fields{
				"action":  "access",
				"path":    string(c.Request().URI().Path()),
				"elapsed": time.Since(started).String(),
			}).Debug("request served")
		return err
	}
}

// RequireCache 根据 :name 参数解析缓存实例；未配置的名称直接返回 404。
func RequireCache(catalog *Catalog) fiber.Handler {
	return func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		entry, ok := catalog.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "cache_not_found",
				"cache": name,
			})
		}
		c.Locals(contextKeyEntry, entry)
		return c.Next()
	}
}

// EntryFromContext 返回 RequireCache 存入的缓存实例。
func EntryFromContext(c fiber.Ctx) (*CacheEntry, bool) {
	if value := c.Locals(contextKeyEntry); value != nil {
		if entry, ok := value.(*CacheEntry); ok {
			return entry, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		label := "internal_error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			switch code {
			case fiber.StatusRequestEntityTooLarge:
				label = "object_too_large"
			case fiber.StatusNotFound:
				label = "not_found"
			case fiber.StatusMethodNotAllowed:
				label = "method_not_allowed"
			default:
				label = strings.ToLower(strings.ReplaceAll(fe.Message, " ", "_"))
			}
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"action":     "request_error",
				"request_id": RequestID(c),
			}).Error(err.Error())
		}
		return c.Status(code).JSON(fiber.Map{"error": label})
	}
}
