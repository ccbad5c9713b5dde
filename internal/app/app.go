package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnpath_backend/internal/config"
	"learnpath_backend/internal/controller"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/service"
	"learnpath_backend/pkg/database"
	"learnpath_backend/pkg/events"
	"learnpath_backend/pkg/logger"
	"learnpath_backend/pkg/monitoring"
	"learnpath_backend/pkg/security"
	"learnpath_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Notifier events.Notifier

	reviewService  *service.ReviewService
	tracerProvider interface {
		Shutdown(ctx context.Context) error
	}
}

// ReloadReview 配置热更新回调：复习参数经服务内部锁替换，
// 与请求协程的读取不构成数据竞争。
func (a *App) ReloadReview(cfg config.ReviewConfig) {
	a.reviewService.Reload(cfg)
}

type repositories struct {
	course   *repository.CourseRepository
	section  *repository.SectionRepository
	stage    *repository.StageRepository
	content  *repository.ContentRepository
	progress *repository.ProgressRepository
}

type services struct {
	storage  *service.StorageService
	review   *service.ReviewService
	course   *service.CourseService
	section  *service.SectionService
	stage    *service.StageService
	content  *service.ContentService
	progress *service.ProgressService
}

type controllers struct {
	course   *controller.CourseController
	section  *controller.SectionController
	stage    *controller.StageController
	content  *controller.ContentController
	progress *controller.ProgressController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		course:   repository.NewCourseRepository(db),
		section:  repository.NewSectionRepository(db),
		stage:    repository.NewStageRepository(db),
		content:  repository.NewContentRepository(db),
		progress: repository.NewProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client, notifier events.Notifier) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.review = service.NewReviewService(cfg.Review)
	s.course = service.NewCourseService(repos.course, db)
	s.section = service.NewSectionService(repos.section, repos.course, db, notifier)
	s.stage = service.NewStageService(repos.stage, repos.section, repos.content, db, notifier)
	s.content = service.NewContentService(repos.content, repos.course, s.storage, db, notifier)
	s.progress = service.NewProgressService(repos.progress, repos.stage, repos.content, s.review, db, rdb, cfg.Redis.ProgressCacheTTL)

	// 内容集合变更后丢弃受影响 Stage 的进度快照
	s.stage.Cache = s.progress
	s.section.Cache = s.progress

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		course:   controller.NewCourseController(s.course),
		section:  controller.NewSectionController(s.section),
		stage:    controller.NewStageController(s.stage, s.progress),
		content:  controller.NewContentController(s.content),
		progress: controller.NewProgressController(s.progress),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存不可用时降级运行，进度快照直接回源数据库
		logger.Log.Warn("Redis unavailable, progress cache disabled", zap.Error(err))
		rdb = nil
	}

	var notifier events.Notifier = events.NoopNotifier{}
	if cfg.RabbitMQ.URI != "" {
		rabbit, err := events.NewRabbitNotifier(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Log.Warn("RabbitMQ unavailable, association events disabled", zap.Error(err))
		} else {
			notifier = rabbit
		}
	}

	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Notifier: notifier,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, db, rdb, notifier)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	controllers := app.initControllers(services, db, rdb)
	app.reviewService = services.review

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("learnpath-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if err := a.Notifier.Close(); err != nil {
		logger.Log.Error("Failed to close event notifier", zap.Error(err))
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
