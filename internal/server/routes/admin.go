package routes

import (
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/internal/server"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

// RegisterAdminRoutes 暴露 /-/ 下的诊断与维护接口，供运维查询实例状态、清理无主目录。
func RegisterAdminRoutes(app *fiber.App, catalog *server.Catalog, logger *logrus.Logger) {
	if app == nil || catalog == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/caches", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"caches":    encodeCaches(catalog.List()),
			"instances": catalog.Manager().Instances(),
		})
	})

	app.Get("/-/stats", func(c fiber.Ctx) error {
		kind, ok := queryKind(c)
		if !ok {
			return nil
		}
		manager := catalog.Manager()
		size, err := manager.StatisticsFolderSizeByRootKind(kind)
		if err != nil {
			return adminFailure(c, logger, "folder_size", err)
		}
		names, err := manager.ListNamesUnder(kind)
		if err != nil {
			return adminFailure(c, logger, "list_names", err)
		}
		return c.JSON(statsPayload{
			RootKind: kind,
			Bytes:    size,
			Human:    humanize.IBytes(uint64(size)),
			Names:    names,
		})
	})

	app.Post("/-/sweep", func(c fiber.Ctx) error {
		kind, ok := queryKind(c)
		if !ok {
			return nil
		}
		removed, err := catalog.Manager().RemoveAllNameCacheByRootKind(kind)
		if err != nil {
			return adminFailure(c, logger, "remove_orphans", err)
		}
		if removed == nil {
			removed = []string{}
		}
		return c.JSON(fiber.Map{
			"root_kind": kind,
			"removed":   removed,
		})
	})

	app.Post("/-/memory-pressure", func(c fiber.Ctx) error {
		evicted := make(map[string]int)
		total := 0
		for _, entry := range catalog.List() {
			n := entry.Cache.HandleMemoryPressure()
			evicted[entry.Config.Name] = n
			total += n
		}
		return c.JSON(fiber.Map{
			"evicted": evicted,
			"total":   total,
		})
	})
}

type cachePayload struct {
	Name      string          `json:"name"`
	RootKind  rootdir.Kind    `json:"root_kind"`
	Dir       string          `json:"dir"`
	Compress  bool            `json:"compress"`
	Memory    moabcache.Stats `json:"memory"`
	DiskBytes int64           `json:"disk_bytes"`
	DiskHuman string          `json:"disk_human"`
	Faults    int64           `json:"disk_faults"`
	LastFault string          `json:"last_fault,omitempty"`
}

type statsPayload struct {
	RootKind rootdir.Kind `json:"root_kind"`
	Bytes    int64        `json:"bytes"`
	Human    string       `json:"human"`
	Names    []string     `json:"names"`
}

func encodeCaches(entries []*server.CacheEntry) []cachePayload {
	result := make([]cachePayload, 0, len(entries))
	for _, entry := range entries {
		size, err := entry.Cache.DiskSize()
		if err != nil {
			size = 0
		}
		faults, last := entry.Faults()
		result = append(result, cachePayload{
			Name:      entry.Config.Name,
			RootKind:  entry.Config.RootKind,
			Dir:       entry.Cache.Dir(),
			Compress:  entry.Config.Compress,
			Memory:    entry.Cache.Stats(),
			DiskBytes: size,
			DiskHuman: humanize.IBytes(uint64(size)),
			Faults:    faults,
			LastFault: last,
		})
	}
	return result
}

// queryKind 解析 ?kind=，缺省为 caches；非法值直接写 400 响应并返回 false。
func queryKind(c fiber.Ctx) (rootdir.Kind, bool) {
	kind, err := rootdir.ParseKind(c.Query("kind"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_root_kind"})
		return 0, false
	}
	return kind, true
}

func adminFailure(c fiber.Ctx, logger *logrus.Logger, action string, err error) error {
	logger.WithFields(logrus.Fields{
		"action":     action,
		"request_id": server.RequestID(c),
	}).Error(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": action + "_failed"})
}
