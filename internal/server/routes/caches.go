package routes

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/logging"
	"github.com/any-hub/moab-cache/internal/server"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

// RegisterCacheRoutes 暴露 /caches/:name 下的对象读写接口。key 取路径剩余部分并做百分号解码，
// 因此 key 中可以包含 "/"。
func RegisterCacheRoutes(app *fiber.App, catalog *server.Catalog, logger *logrus.Logger) {
	if app == nil || catalog == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &cacheHandlers{logger: logger}
	requireCache := server.RequireCache(catalog)

	app.Head("/caches/:name/objects/*", requireCache, h.headObject)
	app.Get("/caches/:name/objects/*", requireCache, h.getObject)
	app.Put("/caches/:name/objects/*", requireCache, h.putObject)
	app.Delete("/caches/:name/objects/*", requireCache, h.deleteObject)
	app.Get("/caches/:name/paths/*", requireCache, h.objectPath)

	app.Delete("/caches/:name", requireCache, h.removeAll)
	app.Post("/caches/:name/clear-memory", requireCache, h.clearMemory)
	app.Post("/caches/:name/flush", requireCache, h.flush)
}

type cacheHandlers struct {
	logger *logrus.Logger
}

type pathPayload struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

func (h *cacheHandlers) headObject(c fiber.Ctx) error {
	entry, key, ok := resolveObject(c)
	if !ok {
		return nil
	}
	if !entry.Cache.ObjectExistsForKey(key) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *cacheHandlers) getObject(c fiber.Ctx) error {
	entry, key, ok := resolveObject(c)
	if !ok {
		return nil
	}
	value, found := entry.Cache.ObjectForKey(key)
	if !found {
		return objectNotFound(c, key)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(value)
}

func (h *cacheHandlers) putObject(c fiber.Ctx) error {
	entry, key, ok := resolveObject(c)
	if !ok {
		return nil
	}

	body := c.Body()
	if len(body) == 0 {
		// 空 body 等价于写入 nil，即删除。
		if err := entry.Cache.SetObject(key, nil); err != nil {
			return h.writeFailed(c, entry, key, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}

	// fasthttp 会复用请求缓冲区，写入前必须复制。
	value := append(server.Object(nil), body...)
	if err := entry.Cache.SetObject(key, value); err != nil {
		return h.writeFailed(c, entry, key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandlers) deleteObject(c fiber.Ctx) error {
	entry, key, ok := resolveObject(c)
	if !ok {
		return nil
	}
	if err := entry.Cache.RemoveObjectForKey(key); err != nil {
		return h.writeFailed(c, entry, key, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandlers) objectPath(c fiber.Ctx) error {
	entry, key, ok := resolveObject(c)
	if !ok {
		return nil
	}
	path, exists, err := entry.Cache.PathForObjectForKey(key)
	if err != nil {
		return invalidKey(c)
	}
	if !exists {
		return objectNotFound(c, key)
	}
	return c.JSON(pathPayload{Key: key, Path: path})
}

func (h *cacheHandlers) removeAll(c fiber.Ctx) error {
	entry, _ := server.EntryFromContext(c)
	entry.Cache.RemoveAllObjects()

	fields := logging.CacheFields("remove_all", entry.Config.Name, entry.Config.RootKind.String(), "")
	fields["request_id"] = server.RequestID(c)
	h.logger.WithFields(fields).Info("缓存实例已清空")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandlers) clearMemory(c fiber.Ctx) error {
	entry, _ := server.EntryFromContext(c)
	entry.Cache.ClearMemory()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandlers) flush(c fiber.Ctx) error {
	entry, _ := server.EntryFromContext(c)
	entry.Cache.Flush()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandlers) writeFailed(c fiber.Ctx, entry *server.CacheEntry, key string, err error) error {
	if errors.Is(err, moabcache.ErrInvalidKey) {
		return invalidKey(c)
	}
	fields := logging.CacheFields("object_write", entry.Config.Name, entry.Config.RootKind.String(), key)
	fields["request_id"] = server.RequestID(c)
	h.logger.WithFields(fields).Error(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "write_failed"})
}

// resolveObject 取出 RequireCache 解析的实例，并解码、校验 key。
// 返回 false 时响应已经写好，调用方直接返回 nil。
func resolveObject(c fiber.Ctx) (*server.CacheEntry, string, bool) {
	entry, ok := server.EntryFromContext(c)
	if !ok {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache_not_found"})
		return nil, "", false
	}
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || entry.Cache.ValidateKey(key) != nil {
		_ = invalidKey(c)
		return nil, "", false
	}
	return entry, key, true
}

func invalidKey(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_key"})
}

func objectNotFound(c fiber.Ctx, key string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "object_not_found",
		"key":   key,
	})
}
