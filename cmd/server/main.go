package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "biblioteca/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"biblioteca/internal/auth"
	"biblioteca/internal/cache"
	"biblioteca/internal/config"
	"biblioteca/internal/db"
	"biblioteca/internal/handler"
	"biblioteca/internal/repository"
	"biblioteca/internal/router"
	"biblioteca/internal/service"
	"biblioteca/internal/validation"
)

// @title Biblioteca API
// @version 1.0
// @description Library catalog and loan service with role-gated administration and JWT sessions.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())

	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN(), cfg.DBLogLevel)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Println("RESET_DB=true detected, dropping all tables...")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Printf("redis unavailable at %s: %v", cfg.RedisAddr, err)
	}

	// Initialize repositories
	bookRepo := repository.NewBookRepository(gormDB)
	loanRepo := repository.NewLoanRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)
	profileRepo := repository.NewProfileRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	v := validation.New()
	catalogService := service.NewCatalogService(bookRepo, loanRepo, v)
	loanService := service.NewLoanService(loanRepo)
	authService := service.NewAuthService(userRepo, profileRepo, jwtService, tokenStore, v)
	userService := service.NewUserService(userRepo, cacheClient, v)

	loginLimiter := router.NewLoginLimiterStore(cfg.LoginRatePerMinute, cfg.LoginRateBurst)
	loginLimiter.StartJanitor(ctx, 2*time.Minute)

	// Register routes
	router.Register(e, cfg, router.Handlers{
		Home: handler.NewHomeHandler(catalogService),
		Book: handler.NewBookHandler(catalogService, loanService),
		Loan: handler.NewLoanHandler(loanService),
		Auth: handler.NewAuthHandler(authService, cfg.CookieSecure),
		User: handler.NewUserHandler(userService),
	}, router.Deps{
		AuthService:  authService,
		JWTService:   jwtService,
		TokenStore:   tokenStore,
		LoginLimiter: loginLimiter,
	})

	log.Printf("Swagger documentation available at: %s", swaggerURL(cfg))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if len(host) >= 7 && host[:7] == "http://" || len(host) >= 8 && host[:8] == "https://" {
		return host + "/swagger/index.html"
	}
	return "http://" + host + "/swagger/index.html"
}
