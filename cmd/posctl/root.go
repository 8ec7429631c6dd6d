package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"salonpos/backend/internal/cartstore"
	"salonpos/backend/internal/config"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/logging"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/sequence"
	"salonpos/backend/internal/service"
	pgstore "salonpos/backend/internal/store/postgres"
)

// backend is what a posctl command runs against. admin is nil when the
// repository is not postgres.
type backend struct {
	svc   *service.Service
	admin *pgstore.Store
	close func() error
}

type opener func(ctx context.Context, cfg config.Config) (*backend, error)

type cli struct {
	cfg   config.Config
	open  opener
	actor string
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{cfg: config.Load(), open: open}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Operator tool for the salon POS backend",
		Long:          "posctl runs day close, cash ledger and receipt sequence operations directly against the POS database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitWithWriter(cmd.ErrOrStderr(), c.cfg.LogLevel, true)
		},
	}
	root.PersistentFlags().StringVar(&c.cfg.DatabaseURL, "database-url", c.cfg.DatabaseURL, "postgres connection string (defaults to DATABASE_URL)")
	root.PersistentFlags().StringVar(&c.actor, "actor", "posctl", "username recorded in the audit log")

	root.AddCommand(
		c.dayCloseCmd(),
		c.ledgerCmd(),
		c.sequenceCmd(),
		c.migrateCmd(),
		c.userCmd(),
		c.catalogCmd(),
	)
	return root
}

// run opens the backend, runs fn as a manager and closes the backend again.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, b *backend) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	b, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	ctx = service.WithActor(ctx, domain.Actor{Username: c.actor, Role: domain.RoleManager})
	out, err := fn(ctx, b)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func openPostgres(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("no database configured: pass --database-url or set DATABASE_URL")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}
	rates, err := pricing.LoadTaxTable(cfg.TaxRatesFile)
	if err != nil {
		return nil, err
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sequencer := sequence.New(pg, cfg.RegisterID, cfg.ReceiptPrefix, cfg.ReceiptStart)
	svc := service.New(pg, cartstore.NewMemory(), sequencer, service.Options{
		TaxRates: rates,
		Pricing:  pricing.Options{AllowFractionalServices: cfg.AllowFractionalServices},
		Location: loc,
	})
	return &backend{svc: svc, admin: pg, close: pg.Close}, nil
}

func (b *backend) requireAdmin() (*pgstore.Store, error) {
	if b.admin == nil {
		return nil, errors.New("this command needs a postgres database")
	}
	return b.admin, nil
}
