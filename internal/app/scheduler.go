package app

import (
	"context"
	"errors"
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 定时任务，目前只有合作方状态同步
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 注册同步任务。上一次同步未结束时本次直接跳过
func NewScheduler(spec string, syncService *service.PartnerSyncService) (*Scheduler, error) {
	cronLogger := logger.CronLogger{L: logger.Log}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, cancel: cancel}

	_, err := c.AddFunc(spec, func() {
		s.runSync(syncService)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) runSync(syncService *service.PartnerSyncService) {
	_, err := syncService.RunOnce(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, util.ErrSyncInProgress):
		logger.Log.Info("Partner sync skipped, previous run still in progress")
	case errors.Is(err, context.Canceled):
	default:
		logger.Log.Error("Partner sync tick failed", zap.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Log.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 取消正在执行的同步并等待其退出
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
