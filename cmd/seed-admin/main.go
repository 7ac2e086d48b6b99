// Command seed-admin creates the initial admin identity. It is idempotent:
// when the configured email already exists nothing is changed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/config"
	mongodb "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/identity-service/internal/infrastructure/security"
	"github.com/99minutos/identity-service/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: cfg.ServiceName,
	}).With().Str("command", "seed-admin").Logger()

	if cfg.Admin.Password == "" {
		log.Fatal().Msg("ADMIN_PASSWORD is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  cfg.ServiceName + "-seed",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure indexes failed")
	}

	hasher, err := security.NewHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("password hasher")
	}
	tokens, err := security.NewJWTIssuer(security.JWTConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.JWTIssuer,
		DefaultTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}

	auditRepo := mongodb.NewAuditRepository(db)
	svc, err := service.NewAuthService(mongodb.NewCredentialStore(db), hasher, tokens, log,
		service.WithRoles(cfg.RoleList()...),
		service.WithAudit(syncAudit{ctx: ctx, repo: auditRepo}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}

	admin, created, err := svc.SeedAdmin(ctx, ports.RegisterInput{
		Username: cfg.Admin.Username,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed admin failed")
	}

	if !created {
		log.Info().Str("email", admin.Email).Str("role", string(admin.Role)).Msg("admin already exists, nothing to do")
		return
	}
	log.Info().Str("id", admin.ID).Str("email", admin.Email).Msg("admin created")
}
