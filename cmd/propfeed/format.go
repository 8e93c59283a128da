package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"propfeed/internal/bot"
	"propfeed/internal/currency"
)

func formatCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "format <amount>...",
		Short: "Render amounts in the short Indian notation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := currency.Formatter{ThousandLabel: label}
			for _, arg := range args {
				v, err := bot.ParseAmount(arg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, f.FormatFloat(v))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "thousand", "k", "label for thousands")
	return cmd
}
