// 手动触发一次合作方状态同步
//
// 主应用按 partner.sync_schedule 定时执行同步。
// 此脚本用于手动补跑，例如合作方故障恢复后或新登记合作方之后。
//
// 用法: go run scripts/sync_partners.go

package main

import (
	"context"
	"log"
	"partner_hub_backend/internal/config"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/service"
	"partner_hub_backend/pkg/database"
	"partner_hub_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	completion := service.NewCompletionService(repository.NewCompletedCourseRepository(db), userRepo)
	syncService := service.NewPartnerSyncService(
		repository.NewPartnerSourceRepository(db),
		enrollmentRepo,
		completion,
		service.NewPartnerClient(cfg.Partner.RequestTimeout),
		service.NewLocalEnrollmentLocker(),
		service.NewNotifier(&cfg.Notification, userRepo),
	)

	log.Println("手动触发合作方同步...")
	report, err := syncService.RunOnce(context.Background())
	if err != nil {
		log.Fatalf("同步失败: %v", err)
	}
	log.Printf("完成！合作方 %d 个，检查报名 %d 条，新完成 %d 条", len(report.Sources), report.Checked, report.Completed)
}
