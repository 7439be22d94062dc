package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func init() {
	rootCmd.AddCommand(balancesCmd)
}

var balancesCmd = &cobra.Command{
	Use:   "balances GROUP_ID",
	Short: "Print a group's balances and settlement plan",
	Long: `Compute every member's net balance from the group's expenses and
settlements, followed by the transfers that settle the group. Reads the
database directly; no server needs to be running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadStorageConfig()
		if err != nil {
			return err
		}
		store, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		return printBalances(cmd.Context(), cmd.OutOrStdout(), store, args[0])
	},
}

func printBalances(ctx context.Context, out io.Writer, store storage.Store, groupID string) error {
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	expenses, err := store.ListGroupExpenses(ctx, groupID)
	if err != nil {
		return err
	}
	users, err := store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		return err
	}
	name := func(id string) string {
		if u, ok := users[id]; ok {
			return u.DisplayName
		}
		return id
	}

	balances, transfers := calculator.CalculateGroupBalances(group.Members, expenses)

	fmt.Fprintf(out, "%s (%d expenses)\n\n", group.Name, len(expenses))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "MEMBER\tPAID\tOWED\tNET\t")
	for _, b := range balances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", name(b.MemberID), b.TotalPaid, b.TotalOwed, b.Net)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if len(transfers) == 0 {
		fmt.Fprintln(out, "All settled up.")
		return nil
	}
	for _, t := range transfers {
		fmt.Fprintf(out, "%s pays %s %s\n", name(t.From), name(t.To), t.Amount)
	}
	return nil
}
