package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/orderfile"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "orderctl",
		Short:        "Offline tools for the fiber order funnel",
		Version:      Version,
		SilenceUsage: true,
	}

	root.AddCommand(quoteCmd())
	root.AddCommand(vetCmd())
	return root
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [order.yaml]",
		Short: "Replay an order file against a catalog and print the contract summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogPath, _ := cmd.Flags().GetString("catalog")
			asJSON, _ := cmd.Flags().GetBool("json")
			sum, err := quote(cmd.Context(), catalogPath, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			return printSummary(cmd.OutOrStdout(), sum)
		},
	}

	cmd.Flags().StringP("catalog", "c", "", "Catalog seed file (CUE)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func vetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vet [catalog.cue]",
		Short: "Validate a catalog seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.LoadSeed(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", args[0])
			fmt.Fprintf(out, "  tariffs     %d\n", len(c.Tariffs))
			fmt.Fprintf(out, "  addons      %d\n", len(c.Addons))
			fmt.Fprintf(out, "  addresses   %d\n", len(c.Addresses))
			fmt.Fprintf(out, "  promotions  %d\n", len(c.Promotions))
			fmt.Fprintf(out, "  promo codes %d\n", len(c.PromoCodes))
			return nil
		},
	}
}

func quote(ctx context.Context, catalogPath, orderPath string) (order.Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := catalog.LoadSeed(catalogPath)
	if err != nil {
		return order.Summary{}, err
	}
	provider, err := catalog.NewMemoryCatalog(c)
	if err != nil {
		return order.Summary{}, err
	}

	f, err := os.Open(orderPath)
	if err != nil {
		return order.Summary{}, err
	}
	defer f.Close()
	file, err := orderfile.Parse(f)
	if err != nil {
		return order.Summary{}, fmt.Errorf("%s: %w", orderPath, err)
	}

	s := session.NewManager(session.Options{Policy: types.DefaultPolicy()}, provider, nil, nil).Create(ctx)
	if _, err := file.Apply(ctx, s); err != nil {
		return order.Summary{}, err
	}
	var sum order.Summary
	s.View(func(o *order.Order) { sum = o.Summary() })
	return sum, nil
}

func printSummary(w io.Writer, sum order.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tMONTHLY\tONE-TIME")
	for _, l := range sum.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", l.Name, l.Quantity, types.FormatCents(l.MonthlyCents), types.FormatCents(l.OneTimeCents))
	}
	fmt.Fprintf(tw, "Total\t\t%s\t%s\n", sum.Monthly, sum.OneTime)
	if err := tw.Flush(); err != nil {
		return err
	}
	if sum.Confirmed {
		fmt.Fprintf(w, "\nOrder number: %s\n", sum.OrderNumber)
	}
	return nil
}
