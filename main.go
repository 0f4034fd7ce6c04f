package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/config"
	"github.com/any-hub/moab-cache/internal/logging"
	"github.com/any-hub/moab-cache/internal/maintenance"
	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/internal/server"
	"github.com/any-hub/moab-cache/internal/server/routes"
	"github.com/any-hub/moab-cache/internal/version"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["caches"] = config.CacheSummaries(cfg.Caches)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → Manager → Catalog → 维护任务 → Fiber server”顺序，
	// 保证请求与定时清理共享同一个实例注册表。
	manager, err := moabcache.NewManager(moabcache.ManagerOptions{
		Resolver:     cfg.Global.Resolver(),
		Logger:       logger,
		MaxKeyLength: cfg.Global.MaxKeyLength,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存管理器失败: %v\n", err)
		return 1
	}

	catalog, err := server.NewCatalog(cfg, manager, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "打开缓存实例失败: %v\n", err)
		return 1
	}

	scheduler, err := maintenance.New(maintenance.Options{
		Manager:             manager,
		Logger:              logger,
		Kinds:               configuredKinds(cfg.Caches),
		OrphanSweepSchedule: cfg.Global.OrphanSweepSchedule,
		SizeReportSchedule:  cfg.Global.SizeReportSchedule,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化维护任务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["caches"] = config.CacheSummaries(cfg.Caches)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["maintenance_jobs"] = scheduler.Jobs()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	scheduler.Start()
	err = startHTTPServer(cfg, catalog, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.ShutdownTimeout.DurationValue())
	defer cancel()
	if stopErr := scheduler.Stop(ctx); stopErr != nil {
		logger.WithField("action", "shutdown").Warn(stopErr.Error())
	}
	catalog.Flush()
	logger.WithField("action", "shutdown").Info("待落盘写入已完成")

	if err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("moab-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MOAB_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MOAB_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startHTTPServer 阻塞到监听失败或收到 SIGINT/SIGTERM 后完成优雅关闭。
func startHTTPServer(cfg *config.Config, catalog *server.Catalog, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Catalog:       catalog,
		MaxObjectSize: cfg.Global.MaxObjectSize,
		ListenPort:    port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, catalog, logger)
	routes.RegisterAdminRoutes(app, catalog, logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号")
		if err := app.ShutdownWithTimeout(cfg.Global.ShutdownTimeout.DurationValue()); err != nil {
			logger.WithField("action", "shutdown").Warn(err.Error())
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}

// configuredKinds 返回配置中出现过的根目录类别，维护任务只处理这些类别。
func configuredKinds(caches []config.CacheConfig) []rootdir.Kind {
	kinds := make([]rootdir.Kind, 0, len(caches))
	for _, entry := range caches {
		kinds = append(kinds, entry.RootKind)
	}
	return kinds
}
