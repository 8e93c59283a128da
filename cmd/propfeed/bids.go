package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"propfeed/internal/bids"
	"propfeed/internal/bot"
)

type account struct {
	user  string
	token string
}

func (acc *account) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&acc.user, "user", "", "catalog user ID")
	cmd.Flags().StringVar(&acc.token, "token", "", "bearer token")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("token")
}

func (a *app) bidsCmd() *cobra.Command {
	var (
		acc  account
		view string
	)
	cmd := &cobra.Command{
		Use:   "bids",
		Short: "List the latest bid of every enquiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := parseView(view)
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}

			book, err := bids.LoadBook(cmd.Context(), a.client(cfg).WithToken(acc.token), acc.user, v, a.logger())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bot.FormatBook(book, v, money(cfg)))
			return nil
		},
	}
	acc.register(cmd)
	cmd.Flags().StringVar(&view, "view", "bids", "bids or enquiries")
	return cmd
}

func (a *app) bidCmd() *cobra.Command {
	var (
		acc    account
		lead   string
		amount string
	)
	cmd := &cobra.Command{
		Use:   "bid",
		Short: "Place a bid on a lead",
		Long: `Place a bid anchored on the latest known bid of a lead.

Amounts accept plain numbers and the suffixes k, L (lakh) and Cr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bot.ParseAmount(amount)
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}

			client := a.client(cfg).WithToken(acc.token)
			book, err := bids.LoadBook(cmd.Context(), client, acc.user, bids.ViewBids, a.logger())
			if err != nil {
				return err
			}
			l := book.Find(lead)
			if l == nil {
				return fmt.Errorf("lead %s not found", lead)
			}
			if err := l.Submit(cmd.Context(), client, v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bid of %s placed on lead %s.\n", money(cfg).FormatFloat(v), lead)
			return nil
		},
	}
	acc.register(cmd)
	cmd.Flags().StringVar(&lead, "lead", "", "lead ID")
	cmd.Flags().StringVar(&amount, "amount", "", "bid amount")
	_ = cmd.MarkFlagRequired("lead")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseView(s string) (bids.View, error) {
	switch s {
	case "bids":
		return bids.ViewBids, nil
	case "enquiries":
		return bids.ViewEnquiries, nil
	}
	return 0, errors.New("view must be bids or enquiries")
}
