package main

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"salonpos/backend/internal/domain"
)

func (c *cli) ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and edit the cash ledger",
	}

	var showDate string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger entry and movements for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.CashLedger(ctx, showDate)
			})
		},
	}
	show.Flags().StringVar(&showDate, "date", "", "business date YYYY-MM-DD (defaults to today)")

	var floatDate, floatAmount string
	float := &cobra.Command{
		Use:   "float",
		Short: "Set the opening float",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("--amount", floatAmount)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.SetOpeningFloat(ctx, domain.OpeningFloatRequest{Date: floatDate, Amount: amount})
			})
		},
	}
	float.Flags().StringVar(&floatDate, "date", "", "business date YYYY-MM-DD (defaults to today)")
	float.Flags().StringVar(&floatAmount, "amount", "", "opening float")
	_ = float.MarkFlagRequired("amount")

	var moveDate, moveKind, moveAmount, moveNote string
	move := &cobra.Command{
		Use:   "move",
		Short: "Record a cash-in or cash-out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("--amount", moveAmount)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.RecordCashMovement(ctx, domain.CashMovementRequest{
					Date: moveDate, Kind: moveKind, Amount: amount, Note: moveNote,
				})
			})
		},
	}
	move.Flags().StringVar(&moveDate, "date", "", "business date YYYY-MM-DD (defaults to today)")
	move.Flags().StringVar(&moveKind, "kind", "", "in or out")
	move.Flags().StringVar(&moveAmount, "amount", "", "amount moved")
	move.Flags().StringVar(&moveNote, "note", "", "free text")
	_ = move.MarkFlagRequired("kind")
	_ = move.MarkFlagRequired("amount")

	cmd.AddCommand(show, float, move)
	return cmd
}

func parseAmount(flag string, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, domain.Invalid(domain.ReasonInvalidAmount, "%s must be a decimal amount: %v", flag, err)
	}
	return amount, nil
}
