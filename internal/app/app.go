package app

import (
	"active_learn_backend/internal/config"
	"active_learn_backend/internal/controller"
	"active_learn_backend/internal/repository"
	"active_learn_backend/internal/service"
	"active_learn_backend/pkg/database"
	"active_learn_backend/pkg/logger"
	"active_learn_backend/pkg/monitoring"
	"active_learn_backend/pkg/security"
	"active_learn_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config         *config.Config
	Router         *gin.Engine
	DB             *gorm.DB
	Redis          *redis.Client
	tracerProvider *sdktrace.TracerProvider
}

type repositories struct {
	user       *repository.UserRepository
	session    *repository.SessionRepository
	quest      *repository.QuestRepository
	graceToken *repository.GraceTokenRepository
	board      *repository.LeaderboardRepository
}

type services struct {
	session    *service.SessionService
	quest      *service.QuestService
	graceToken *service.GraceTokenService
	board      *service.LeaderboardService
	profile    *service.ProfileService
}

type controllers struct {
	session    *controller.SessionController
	quest      *controller.QuestController
	graceToken *controller.GraceTokenController
	board      *controller.LeaderboardController
	profile    *controller.ProfileController
	admin      *controller.AdminController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		session:    repository.NewSessionRepository(db),
		quest:      repository.NewQuestRepository(db),
		graceToken: repository.NewGraceTokenRepository(db),
		board:      repository.NewLeaderboardRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.session = service.NewSessionService(repos.session)
	s.quest = service.NewQuestService(repos.quest, repos.session, repos.graceToken)
	s.graceToken = service.NewGraceTokenService(repos.graceToken)
	s.board = service.NewLeaderboardService(repos.board)
	s.profile = service.NewProfileService(
		repos.user,
		s.session,
		s.quest,
		s.graceToken,
		rdb,
		cfg.Gamification.ProfileCacheSeconds,
	)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		session:    controller.NewSessionController(s.session),
		quest:      controller.NewQuestController(s.quest),
		graceToken: controller.NewGraceTokenController(s.graceToken, a.Config),
		board:      controller.NewLeaderboardController(s.board, a.Config),
		profile:    controller.NewProfileController(s.profile),
		admin:      controller.NewAdminController(s.board, repos.session, repos.quest, repos.graceToken, a.Config),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	// 仅迁移模式：建表即返回，不启动其余组件
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, repos, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("active-learn-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)

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

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
