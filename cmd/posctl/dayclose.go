package main

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"salonpos/backend/internal/domain"
)

func (c *cli) dayCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dayclose",
		Short: "Preview or finalize the day close",
	}

	var date string
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the day close report without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.PreviewDayClose(ctx, date)
			})
		},
	}
	preview.Flags().StringVar(&date, "date", "", "business date YYYY-MM-DD (defaults to today)")

	var finalizeDate, counted string
	finalize := &cobra.Command{
		Use:   "finalize",
		Short: "Record the counted cash and persist the day close",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(counted)
			if err != nil {
				return domain.Invalid(domain.ReasonInvalidAmount, "--counted must be a decimal amount: %v", err)
			}
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.FinalizeDayClose(ctx, domain.FinalizeRequest{Date: finalizeDate, CountedCash: amount})
			})
		},
	}
	finalize.Flags().StringVar(&finalizeDate, "date", "", "business date YYYY-MM-DD (defaults to today)")
	finalize.Flags().StringVar(&counted, "counted", "", "counted cash in the drawer")
	_ = finalize.MarkFlagRequired("counted")

	cmd.AddCommand(preview, finalize)
	return cmd
}
