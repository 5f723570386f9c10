package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"partner_hub_backend/internal/config"
	"partner_hub_backend/internal/controller"
	"partner_hub_backend/internal/repository"
	"partner_hub_backend/internal/service"
	"partner_hub_backend/internal/util"
	"partner_hub_backend/pkg/configwatcher"
	"partner_hub_backend/pkg/database"
	"partner_hub_backend/pkg/logger"
	"partner_hub_backend/pkg/monitoring"
	"partner_hub_backend/pkg/security"
	"partner_hub_backend/pkg/tracing"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigPath      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	scheduler       *Scheduler
	tracer          *sdktrace.TracerProvider
	bgCtx           context.Context
	stopBackground  context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user            *repository.UserRepository
	enrollment      *repository.EnrollmentRepository
	completedCourse *repository.CompletedCourseRepository
	partnerSource   *repository.PartnerSourceRepository
}

type services struct {
	storage       *service.StorageService
	notifier      service.Notifier
	locker        service.EnrollmentLocker
	partnerClient *service.RestyPartnerClient
	completion    *service.CompletionService
	enrollment    *service.EnrollmentService
	webhook       *service.WebhookService
	partnerSource *service.PartnerSourceService
	partnerSync   *service.PartnerSyncService
}

type controllers struct {
	enrollment      *controller.EnrollmentController
	webhook         *controller.WebhookController
	completedCourse *controller.CompletedCourseController
	partnerSource   *controller.PartnerSourceController
	health          *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:            repository.NewUserRepository(db),
		enrollment:      repository.NewEnrollmentRepository(db),
		completedCourse: repository.NewCompletedCourseRepository(db),
		partnerSource:   repository.NewPartnerSourceRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.notifier = service.NewNotifier(&cfg.Notification, repos.user)

	if rdb != nil {
		s.locker = service.NewRedisEnrollmentLocker(rdb, cfg.Partner.LockTTL)
	} else {
		s.locker = service.NewLocalEnrollmentLocker()
	}

	s.partnerClient = service.NewPartnerClient(cfg.Partner.RequestTimeout)
	s.completion = service.NewCompletionService(repos.completedCourse, repos.user)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.user, s.completion, s.locker, s.notifier)
	s.webhook = service.NewWebhookService(repos.enrollment, repos.user, s.completion, s.storage, s.locker, s.notifier)
	s.partnerSource = service.NewPartnerSourceService(repos.partnerSource, repos.user)
	s.partnerSync = service.NewPartnerSyncService(
		repos.partnerSource,
		repos.enrollment,
		s.completion,
		s.partnerClient,
		s.locker,
		s.notifier,
	)

	// 超时可以在运行时调整
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.partnerClient.SetTimeout(newCfg.Partner.RequestTimeout)
		logger.Log.Info("Partner request timeout updated", zap.Duration("timeout", newCfg.Partner.RequestTimeout))
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		enrollment:      controller.NewEnrollmentController(s.enrollment),
		webhook:         controller.NewWebhookController(s.webhook),
		completedCourse: controller.NewCompletedCourseController(s.completion),
		partnerSource:   controller.NewPartnerSourceController(s.partnerSource, s.partnerSync),
		health:          controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.bgCtx, security.RateLimitOptions{
		MaxRequests:    cfg.RateLimit.MaxRequests,
		Window:         time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
		ExemptPrefixes: cfg.RateLimit.ExemptPaths,
	}))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	if !a.Config.Partner.SyncEnabled {
		logger.Log.Info("Partner sync disabled")
		return
	}

	scheduler, err := NewScheduler(a.Config.Partner.SyncSchedule, s.partnerSync)
	if err != nil {
		logger.Log.Fatal("Invalid partner sync schedule",
			zap.String("schedule", a.Config.Partner.SyncSchedule), zap.Error(err))
	}
	a.scheduler = scheduler
	a.scheduler.Start()
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != "release" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	app := &App{
		Config:         cfg,
		ConfigPath:     configPath,
		DB:             db,
		bgCtx:          bgCtx,
		stopBackground: stopBackground,
	}
	if cfg.MigrateOnly {
		return app
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("partner-hub", cfg.Tracing.CollectorEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	configFile := filepath.Join(a.ConfigPath, "config.yaml")
	err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go a.watchConfig(a.bgCtx)

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.stopBackground()
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
