package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/httpapi"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				pg, err := b.requireAdmin()
				if err != nil {
					return nil, err
				}
				if err := pg.Migrate(ctx); err != nil {
					return nil, err
				}
				return map[string]any{"ok": true}, nil
			})
		},
	}
}

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	var username, password, role string
	var inactive bool
	put := &cobra.Command{
		Use:   "put",
		Short: "Create or replace an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != domain.RoleManager && role != domain.RoleCashier {
				return fmt.Errorf("--role must be %s or %s", domain.RoleManager, domain.RoleCashier)
			}
			hash, err := httpapi.HashPassword(password)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				pg, err := b.requireAdmin()
				if err != nil {
					return nil, err
				}
				account := domain.UserAccount{
					Username:     strings.ToLower(strings.TrimSpace(username)),
					PasswordHash: hash,
					Role:         role,
					Active:       !inactive,
				}
				if err := pg.PutUser(ctx, account); err != nil {
					return nil, err
				}
				return account, nil
			})
		},
	}
	put.Flags().StringVar(&username, "username", "", "login name")
	put.Flags().StringVar(&password, "password", "", "initial password")
	put.Flags().StringVar(&role, "role", domain.RoleCashier, "manager or cashier")
	put.Flags().BoolVar(&inactive, "inactive", false, "create the account disabled")
	_ = put.MarkFlagRequired("username")
	_ = put.MarkFlagRequired("password")

	cmd.AddCommand(put)
	return cmd
}

func (c *cli) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain services and products",
	}

	var kind, id, name, price, taxCode string
	var inactive bool
	put := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a catalog item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lineKind, err := domain.ParseLineKind(kind)
			if err != nil {
				return err
			}
			unitPrice, err := parseAmount("--price", price)
			if err != nil {
				return err
			}
			if !unitPrice.IsPositive() {
				return domain.Invalid(domain.ReasonInvalidPrice, "--price must be positive")
			}
			item := domain.CatalogItem{
				Kind:      lineKind,
				ID:        strings.TrimSpace(id),
				Name:      strings.TrimSpace(name),
				UnitPrice: unitPrice,
				TaxCode:   strings.TrimSpace(taxCode),
				Active:    !inactive,
			}
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				pg, err := b.requireAdmin()
				if err != nil {
					return nil, err
				}
				if err := pg.PutCatalogItem(ctx, item); err != nil {
					return nil, err
				}
				return item, nil
			})
		},
	}
	put.Flags().StringVar(&kind, "kind", "", "service or product")
	put.Flags().StringVar(&id, "id", "", "catalog id")
	put.Flags().StringVar(&name, "name", "", "display name")
	put.Flags().StringVar(&price, "price", "", "gross unit price")
	put.Flags().StringVar(&taxCode, "tax-code", "CH-7.7", "tax code")
	put.Flags().BoolVar(&inactive, "inactive", false, "hide the item from checkout")
	for _, f := range []string{"kind", "id", "name", "price"} {
		_ = put.MarkFlagRequired(f)
	}

	cmd.AddCommand(put)
	return cmd
}
