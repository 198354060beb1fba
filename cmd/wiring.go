package cmd

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
	"github.com/vibast-solutions/ms-go-billing-bff/app/auth"
	"github.com/vibast-solutions/ms-go-billing-bff/app/billingapi"
	"github.com/vibast-solutions/ms-go-billing-bff/app/repository"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
	"github.com/vibast-solutions/ms-go-billing-bff/config"
)

func mustCreateBillingAPI(ctx context.Context, cfg *config.Config) *billingapi.API {
	tokens, err := auth.NewTokenSource(ctx, auth.Config{
		StaticToken:  cfg.Auth.StaticToken,
		IssuerURL:    cfg.Auth.IssuerURL,
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
	})
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		logrus.Debug("No service token source configured; backend calls rely on forwarded bearer tokens")
		tokens = nil
	case err != nil:
		logrus.WithError(err).Fatal("Failed to initialize auth token source")
	}

	client := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, tokens)
	return billingapi.New(client, cfg.API.CacheTTL)
}

// mustOpenLedger returns nil when MYSQL_DSN is unset.
func mustOpenLedger(ctx context.Context, cfg *config.Config) (*repository.MismatchRepository, func()) {
	if cfg.MySQL.DSN == "" {
		return nil, func() {}
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	repo := repository.NewMismatchRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ensure mismatch ledger schema")
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}
	return repo, cleanup
}

// mustOpenTabState uses Redis when REDIS_ADDR is set, otherwise an in-process store.
// sweep is non-nil only for the in-process store.
func mustOpenTabState(ctx context.Context, cfg *config.Config) (store tabstate.Store, sweep func() int, cleanup func()) {
	if cfg.Redis.Addr == "" {
		memory := tabstate.NewMemoryStore(cfg.Checkout.TabTTL)
		logrus.Info("Tab state kept in memory")
		return memory, memory.Sweep, func() {}
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}
	logrus.WithField("addr", cfg.Redis.Addr).Info("Tab state kept in redis")

	cleanup = func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
	return tabstate.NewRedisStore(client, cfg.Checkout.TabTTL), nil, cleanup
}
