package main

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/musicfy-storefront/internal/authz"
	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/identity/local"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/models"
	"github.com/musicfy-storefront/internal/repository"
)

type seedAccount struct {
	Email    string
	Password string
	Name     string
	Operator bool
}

func main() {
	var (
		email    string
		password string
		name     string
		operator bool
	)
	flag.StringVar(&email, "email", "", "账号邮箱，留空时写入演示账号")
	flag.StringVar(&password, "password", "", "账号密码")
	flag.StringVar(&name, "name", "", "显示名")
	flag.BoolVar(&operator, "operator", false, "授予运营角色")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	accounts := []seedAccount{
		{Email: "cliente@musicfy.test", Password: "cliente123", Name: "Cliente Demo"},
		{Email: "operador@musicfy.test", Password: "operador123", Name: "Operador Demo", Operator: true},
	}
	if email != "" {
		accounts = []seedAccount{{Email: email, Password: password, Name: name, Operator: operator}}
	}

	repo := repository.NewLocalAccountRepository(models.DB)
	provider, err := local.New(repo, cfg.Identity.Local)
	if err != nil {
		stdLog.Fatalf("Failed to init local identity: %v", err)
	}
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	ctx := context.Background()
	for _, account := range accounts {
		subject, err := provider.SignUpWithPassword(ctx, identity.SignUpInput{
			Email:       account.Email,
			Password:    account.Password,
			DisplayName: account.Name,
		})
		switch {
		case errors.Is(err, identity.ErrEmailInUse):
			stdLog.Printf("Account already exists: %s", account.Email)
			existing, lookupErr := repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(account.Email)))
			if lookupErr != nil || existing == nil {
				stdLog.Printf("Failed to load account %s: %v", account.Email, lookupErr)
				continue
			}
			subject.SubjectID = existing.UID
		case err != nil:
			stdLog.Printf("Failed to create account %s: %v", account.Email, err)
			continue
		default:
			stdLog.Printf("Created account: %s (%s)", account.Email, subject.SubjectID)
		}

		if !account.Operator {
			continue
		}
		if err := authzService.AddSubjectRole(subject.SubjectID, constants.RoleOperator); err != nil {
			stdLog.Printf("Failed to grant operator role to %s: %v", account.Email, err)
			continue
		}
		stdLog.Printf("Granted operator role: %s", account.Email)
	}
}
