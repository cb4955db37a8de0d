package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/scoring"
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"lb"},
	Short:   "Rank the regiment's logistics contributors",
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		period, _ := cmd.Flags().GetString("period")
		window, ok := scoring.ParseWindow(period)
		if !ok {
			return fmt.Errorf("unknown period %q: use all, weekly or war", period)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		lb, err := svc.Leaderboard(cmd.Context(), scoring.Request{RegimentID: regiment, Window: window, Limit: limit, UserID: user})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(lb)
		}

		switch {
		case lb.Degraded:
			fmt.Println("War service unavailable, showing all-time points.")
		case lb.WarNumber != nil:
			fmt.Printf("War %d\n", *lb.WarNumber)
		case lb.Since != nil:
			fmt.Printf("Since %s\n", lb.Since.Format("Mon Jan 02"))
		}
		if len(lb.Unavailable) > 0 {
			fmt.Printf("Missing from the totals: %s\n", strings.Join(lb.Unavailable, ", "))
		}
		if len(lb.Entries) == 0 {
			fmt.Println("No contributions yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tUSER\tPOINTS\tSCANS\tPRODUCTION\tREFRESHES")
		rows := lb.Entries
		if lb.CurrentUserRank != nil {
			rows = append(rows, *lb.CurrentUserRank)
		}
		for i, e := range rows {
			if i == len(lb.Entries) {
				fmt.Fprintln(w, "...\t\t\t\t\t")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", e.Rank, e.UserName, items.Quantity(e.TotalPoints), items.Quantity(e.ScanPoints), items.Quantity(e.ProductionPoints), e.RefreshCount)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	leaderboardCmd.Flags().String("period", "all", "Scoring window: all, weekly or war")
	leaderboardCmd.Flags().Int("limit", 10, "Number of entries to show")
	leaderboardCmd.Flags().StringP("user", "u", "", "Also show the rank of this user id")
}
