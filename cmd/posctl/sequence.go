package main

import (
	"context"

	"github.com/spf13/cobra"

	"salonpos/backend/internal/domain"
)

func (c *cli) sequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Show or move the receipt number sequence",
	}

	var showRegister string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the sequence of a register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.ReceiptSequence(ctx, showRegister)
			})
		},
	}
	show.Flags().StringVar(&showRegister, "register", "", "register id (defaults to REGISTER_ID)")

	var setRegister, prefix string
	var next int64
	set := &cobra.Command{
		Use:   "set",
		Short: "Move the sequence forward or change its prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b *backend) (any, error) {
				return b.svc.ConfigureReceiptSequence(ctx, domain.ReceiptSequenceUpdate{
					RegisterID: setRegister, Prefix: prefix, Next: next,
				})
			})
		},
	}
	set.Flags().StringVar(&setRegister, "register", "", "register id (defaults to REGISTER_ID)")
	set.Flags().StringVar(&prefix, "prefix", "", "receipt prefix (keeps the current one when empty)")
	set.Flags().Int64Var(&next, "next", 0, "next number to issue; may not be below the current value")
	_ = set.MarkFlagRequired("next")

	cmd.AddCommand(show, set)
	return cmd
}
