package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/database"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/config"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/handlers"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/metrics"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/middleware"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/otp"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/payments"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/routes"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/validator"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/workers"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies - внешние системы приложения. Тесты подставляют fake-шлюз, mock-почту и часы.
type Dependencies struct {
	Email   email.Provider
	Gateway payments.Gateway
	OTP     otp.Store
	Metrics *metrics.Metrics
	Clock   func() time.Time

	// Checks - дополнительные проверки для /health (кроме БД)
	Checks map[string]handlers.Pinger
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	apperrors.SetDebug(!cfg.IsProduction())
	if cfg.IsProduction() && (cfg.JWT.Secret == "" || cfg.JWT.Secret == "change-me") {
		logger.Fatal("JWT secret must be set in production")
	}
	auth.Configure(cfg.JWT.Secret, cfg.AccessTTL())

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if err := database.AutoMigrate(gormDB); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}

	if _, err := database.SeedAdmin(gormDB, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		// Если не удалось создать админа - не запускаем сервер
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	deps, closeDeps, err := BuildDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", "error", err)
	}
	defer closeDeps()

	ginRouter, container, err := SetupRouter(cfg, gormDB, deps)
	if err != nil {
		logger.Fatal("Failed to set up router", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startWorkers(ctx, cfg, gormDB, container, deps)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(fmt.Sprintf("🚀 Server starting on %s", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// BuildDependencies выбирает реализации по конфигу. close освобождает соединения.
func BuildDependencies(cfg *config.Config) (Dependencies, func(), error) {
	deps := Dependencies{
		Metrics: metrics.New(),
		Clock:   time.Now,
		Checks:  make(map[string]handlers.Pinger),
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Email.Provider {
	case "smtp":
		provider := email.NewGomailProvider(&email.SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			UseTLS:    cfg.Email.UseTLS,
			Timeout:   30 * time.Second,
		}, nil)
		if err := provider.Validate(); err != nil {
			return deps, closeAll, fmt.Errorf("email provider: %w", err)
		}
		deps.Email = provider
		closers = append(closers, func() { _ = provider.Close() })
	default:
		logger.Warn("Email provider is mock, messages are only logged")
		deps.Email = email.NewMockProvider()
	}

	switch cfg.OTP.Store {
	case "valkey":
		store, err := otp.NewValkeyStore(otp.ValkeyConfig{
			Address:  cfg.Valkey.Addr,
			Password: cfg.Valkey.Password,
			DB:       cfg.Valkey.DB,
		})
		if err != nil {
			closeAll()
			return deps, func() {}, fmt.Errorf("otp store: %w", err)
		}
		deps.OTP = store
		deps.Checks["valkey"] = store
		closers = append(closers, store.Close)
	default:
		deps.OTP = otp.NewMemoryStore()
	}

	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		if cfg.IsProduction() {
			closeAll()
			return deps, func() {}, errors.New("razorpay keys are required in production")
		}
		logger.Warn("Razorpay keys are not set, using fake gateway")
		deps.Gateway = payments.NewFakeGateway("rzp_test_fake")
	} else {
		deps.Gateway = payments.NewRazorpayGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	}

	return deps, closeAll, nil
}

// SetupRouter собирает сервисы, хэндлеры и gin.Engine
func SetupRouter(cfg *config.Config, gormDB *gorm.DB, deps Dependencies) (*gin.Engine, *services.ServiceContainer, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	// 1. Сервисы
	serviceContainer, err := initializeServices(cfg, deps)
	if err != nil {
		return nil, nil, err
	}

	// 2. Хэндлеры
	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	for name, check := range deps.Checks {
		checks[name] = check
	}
	appHandlers := initializeHandlers(serviceContainer, deps.Clock, checks)

	// 3. Gin
	ginRouter := initializeGinRouter(cfg, gormDB, deps.Metrics)

	// 4. Маршруты
	routes.RegisterRoutes(ginRouter, appHandlers, deps.Metrics)

	return ginRouter, serviceContainer, nil
}

// Calculator - политика жизненного цикла из конфига
func Calculator(cfg *config.Config) (lifecycle.Calculator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return lifecycle.Calculator{}, err
	}
	return lifecycle.New(loc, cfg.Subscription.MaxPausedDays), nil
}

func initializeServices(cfg *config.Config, deps Dependencies) (*services.ServiceContainer, error) {
	calc, err := Calculator(cfg)
	if err != nil {
		return nil, err
	}

	// --- Репозитории ---
	userRepo := repositories.NewUserRepository()
	refreshTokenRepo := repositories.NewRefreshTokenRepository()
	addressRepo := repositories.NewAddressRepository()
	planRepo := repositories.NewPlanRepository()
	subscriptionRepo := repositories.NewSubscriptionRepository()
	eventRepo := repositories.NewEventRepository()
	paymentRepo := repositories.NewPaymentRepository()

	// --- Сервисы ---
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg.AccessTTL(), cfg.RefreshTTL())
	userService := services.NewUserService(userRepo, addressRepo)
	otpService := services.NewOTPService(deps.OTP, userRepo, deps.Email, deps.Metrics, cfg.OTPTTL(), cfg.OTP.MaxAttempts)
	planService := services.NewPlanService(planRepo)
	operatorAlert := services.OperatorAlert{Provider: deps.Email, To: cfg.Email.OperatorTo}
	subscriptionService := services.NewSubscriptionService(
		subscriptionRepo, eventRepo, userRepo, calc, deps.Metrics, operatorAlert,
	)
	paymentService := services.NewPaymentService(
		deps.Gateway,
		services.PaymentSecrets{
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
			Currency:      cfg.Razorpay.Currency,
		},
		paymentRepo, planRepo, addressRepo, userRepo, subscriptionRepo, eventRepo,
		deps.Email, calc, deps.Metrics, operatorAlert,
	)
	adminService := services.NewAdminService(userRepo, subscriptionRepo, paymentRepo, calc, cfg.Subscription.ExpiringDays)

	return &services.ServiceContainer{
		AuthService:         authService,
		UserService:         userService,
		OTPService:          otpService,
		PlanService:         planService,
		SubscriptionService: subscriptionService,
		PaymentService:      paymentService,
		AdminService:        adminService,
		EmailService:        deps.Email,
	}, nil
}

func initializeHandlers(container *services.ServiceContainer, clock func() time.Time, checks map[string]handlers.Pinger) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New()).WithClock(clock)

	return &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, container.AuthService, container.OTPService),
		UserHandler:         handlers.NewUserHandler(baseHandler, container.UserService),
		PlanHandler:         handlers.NewPlanHandler(baseHandler, container.PlanService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, container.SubscriptionService),
		PaymentHandler:      handlers.NewPaymentHandler(baseHandler, container.PaymentService),
		AdminHandler:        handlers.NewAdminHandler(baseHandler, container.AdminService, container.PlanService, container.SubscriptionService),
		HealthHandler:       handlers.NewHealthHandler(checks),
	}
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB, m *metrics.Metrics) *gin.Engine {
	switch cfg.Server.Env {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.DBMiddleware(db))
	return router
}

func startWorkers(ctx context.Context, cfg *config.Config, db *gorm.DB, container *services.ServiceContainer, deps Dependencies) {
	if !cfg.Subscription.WorkerEnabled {
		logger.Info("Subscription worker disabled, relying on lazy expiry")
	} else {
		interval := time.Duration(cfg.Subscription.SweepInterval) * time.Minute
		workers.NewSubscriptionWorker(db, container.SubscriptionService, interval).Start(ctx)
	}

	var otpExpirer workers.Expirer
	if store, ok := deps.OTP.(*otp.MemoryStore); ok {
		otpExpirer = store
	}
	workers.NewCleanupWorker(db, repositories.NewRefreshTokenRepository(), otpExpirer, time.Hour).Start(ctx)
}
