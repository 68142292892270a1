package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/user-service/internal/adapters/auth"
	"github.com/ogurasousui/user-service/internal/adapters/http/handler"
	"github.com/ogurasousui/user-service/internal/adapters/messaging/rabbitmq"
	"github.com/ogurasousui/user-service/internal/adapters/repository/postgres"
	"github.com/ogurasousui/user-service/internal/core/registration"
	"github.com/ogurasousui/user-service/internal/core/user"
	"github.com/ogurasousui/user-service/internal/platform/config"
	pg "github.com/ogurasousui/user-service/internal/platform/db/postgres"
	"github.com/ogurasousui/user-service/internal/platform/logger"
	"github.com/ogurasousui/user-service/internal/platform/server"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	authClient, closeAuth, err := newAuthClient(cfg.Auth)
	if err != nil {
		return err
	}
	defer closeAuth()

	var reporter registration.CompensationReporter
	if cfg.Reconciliation.Enabled {
		pub, err := rabbitmq.Dial(cfg.Reconciliation.AMQPURL, cfg.Reconciliation.Queue)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		reporter = pub
	}

	userRepo := postgres.NewUserRepository(dbPool)
	txManager := pg.NewTransactionManager(dbPool, pg.IsolationLevel(cfg.Database.Isolation))
	userSvc := user.NewService(userRepo, nil, txManager)
	registrationSvc := registration.NewService(userSvc, authClient, reporter, zl.Named("registration"))

	router := handler.NewRouter(
		handler.NewUserHandler(userSvc, registrationSvc, zl.Named("http")),
		handler.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer),
		zl.Named("access"),
	)

	zl.Info("starting user service",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("auth_transport", cfg.Auth.Transport),
		zap.Bool("reconciliation", cfg.Reconciliation.Enabled),
	)

	return server.New(cfg.Server, router, zl.Named("server")).Run(ctx)
}

func newAuthClient(cfg config.AuthConfig) (registration.AuthClient, func(), error) {
	switch cfg.Transport {
	case config.AuthTransportGRPC:
		conn, err := auth.DialGRPC(cfg.GRPCTarget)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewGRPCClient(conn, cfg.Timeout), func() { _ = conn.Close() }, nil
	default:
		return auth.NewHTTPClient(cfg.BaseURL, cfg.Timeout, nil), func() {}, nil
	}
}
