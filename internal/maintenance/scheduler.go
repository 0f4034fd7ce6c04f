// Package maintenance 按 cron 表达式周期性执行目录级维护：清理无主缓存目录、上报目录大小。
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

// Options 描述调度器需要的依赖与计划。计划为空表示不启用对应任务。
type Options struct {
	Manager             *moabcache.Manager
	Logger              *logrus.Logger
	Kinds               []rootdir.Kind
	OrphanSweepSchedule string
	SizeReportSchedule  string
}

// Scheduler 包装 robfig/cron，任务之间互不重叠。
type Scheduler struct {
	cron    *cron.Cron
	manager *moabcache.Manager
	logger  *logrus.Logger
	kinds   []rootdir.Kind

	mu      sync.Mutex
	jobs    int
	started bool
}

// New 构建调度器并注册配置中启用的任务。
func New(opts Options) (*Scheduler, error) {
	if opts.Manager == nil {
		return nil, errors.New("manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	kinds := dedupeKinds(opts.Kinds)
	if len(kinds) == 0 {
		kinds = []rootdir.Kind{rootdir.Caches}
	}

	cronLogger := cron.PrintfLogger(logger)
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		manager: opts.Manager,
		logger:  logger,
		kinds:   kinds,
	}

	if err := s.add("orphan_sweep", opts.OrphanSweepSchedule, func() { s.SweepOrphans() }); err != nil {
		return nil, err
	}
	if err := s.add("size_report", opts.SizeReportSchedule, func() { s.ReportSizes() }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, fn func()) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.jobs++
	s.mu.Unlock()
	s.logger.WithFields(logrus.Fields{
		"action":   "schedule",
		"job":      name,
		"schedule": spec,
	}).Info("维护任务已注册")
	return nil
}

// Jobs 返回已注册的任务数量。
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs
}

// Start 启动调度；没有任务时什么也不做。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.jobs == 0 {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop 停止调度并等待正在执行的任务结束，或直到 ctx 到期。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepOrphans 对每个类别删除没有存活实例的缓存目录，返回按类别汇总的已删除名称。
func (s *Scheduler) SweepOrphans() map[rootdir.Kind][]string {
	result := make(map[rootdir.Kind][]string, len(s.kinds))
	for _, kind := range s.kinds {
		removed, err := s.manager.RemoveAllNameCacheByRootKind(kind)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"action":    "orphan_sweep",
				"root_kind": kind.String(),
			}).Warn(err.Error())
		}
		result[kind] = removed
	}
	return result
}

// ReportSizes 统计每个类别的目录大小并写入日志。
func (s *Scheduler) ReportSizes() map[rootdir.Kind]int64 {
	result := make(map[rootdir.Kind]int64, len(s.kinds))
	for _, kind := range s.kinds {
		fields := logrus.Fields{
			"action":    "size_report",
			"root_kind": kind.String(),
		}
		size, err := s.manager.StatisticsFolderSizeByRootKind(kind)
		if err != nil {
			s.logger.WithFields(fields).Warn(err.Error())
			continue
		}
		fields["bytes"] = size
		fields["human"] = humanize.IBytes(uint64(size))
		s.logger.WithFields(fields).Info("缓存目录大小")
		result[kind] = size
	}
	return result
}

func dedupeKinds(kinds []rootdir.Kind) []rootdir.Kind {
	seen := make(map[rootdir.Kind]struct{}, len(kinds))
	out := make([]rootdir.Kind, 0, len(kinds))
	for _, kind := range kinds {
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out
}
