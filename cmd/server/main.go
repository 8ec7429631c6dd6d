package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"salonpos/backend/internal/cartstore"
	"salonpos/backend/internal/config"
	"salonpos/backend/internal/httpapi"
	"salonpos/backend/internal/logging"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/sequence"
	"salonpos/backend/internal/service"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/store/memory"
	pgstore "salonpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogPretty)
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.BusinessTimezone).Msg("invalid BUSINESS_TIMEZONE")
	}
	rates, err := pricing.LoadTaxTable(cfg.TaxRatesFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.TaxRatesFile).Msg("cannot load tax table")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if cfg.DatabaseAutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("schema migration failed")
			}
			log.Info().Msg("schema applied")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	var carts cartstore.Store = cartstore.NewMemory()
	if cfg.RedisAddr != "" {
		redisCarts := cartstore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CartTTL())
		if err := redisCarts.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, keeping carts in memory")
		} else {
			carts = redisCarts
			closers = append(closers, redisCarts.Close)
			log.Info().Dur("ttl", cfg.CartTTL()).Msg("carts: redis")
		}
	} else {
		log.Info().Msg("carts: memory")
	}

	sequencer := sequence.New(repo, cfg.RegisterID, cfg.ReceiptPrefix, cfg.ReceiptStart)
	svc := service.New(repo, carts, sequencer, service.Options{
		TaxRates: rates,
		Pricing:  pricing.Options{AllowFractionalServices: cfg.AllowFractionalServices},
		Location: loc,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.RegisterID)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("register", cfg.RegisterID).Str("timezone", loc.String()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" && cfg.DatabaseURL != "" {
		return fmt.Errorf("ALLOWED_ORIGIN must name the POS frontend when running against postgres")
	}
	return nil
}
