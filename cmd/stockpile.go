package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/history"
	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
)

var stockpileCmd = &cobra.Command{
	Use:     "stockpile",
	Aliases: []string{"sp"},
	Short:   "Manage the regiment's stockpiles",
}

var stockpileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a stockpile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		req := logistics.StockpileRequest{Name: args[0]}
		req.Type, _ = cmd.Flags().GetString("type")
		req.Hex, _ = cmd.Flags().GetString("hex")
		req.LocationName, _ = cmd.Flags().GetString("location")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		var sp *logistics.StockpileView
		err = withDBLock(cmd, func() error {
			sp, err = svc.CreateStockpile(cmd.Context(), regiment, req)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(sp)
		}
		fmt.Printf("Created %s %s (%s) in %s\n", items.StockpileTypeLabel(string(sp.Type)), sp.Name, sp.ID, sp.Hex)
		return nil
	},
}

var stockpileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stockpiles with their refresh countdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		hex, _ := cmd.Flags().GetString("hex")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		list, err := svc.Stockpiles(cmd.Context(), regiment, hex)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No stockpiles yet.")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tHEX\tUPDATED\tEXPIRY")
		for _, sp := range list {
			expiry := string(sp.Status)
			if sp.ExpiresAt != nil && sp.ExpiresAt.After(now) {
				expiry = fmt.Sprintf("%s (%s)", sp.Status, items.Duration(sp.ExpiresAt.Sub(now)))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", sp.ID, sp.Name, items.StockpileTypeLabel(string(sp.Type)), sp.Hex, items.RelativeTime(sp.UpdatedAt, now), expiry)
		}
		return w.Flush()
	},
}

var stockpileGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a stockpile with its current items and latest scans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		d, err := svc.StockpileDetail(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(d)
		}

		now := time.Now()
		fmt.Printf("%s %s in %s", items.StockpileTypeLabel(string(d.Type)), d.Name, d.Hex)
		if d.LocationName != "" {
			fmt.Printf(" (%s)", d.LocationName)
		}
		fmt.Printf(", %s\n", d.Status)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ITEM\tCRATED\tQUANTITY")
		for _, it := range d.Items {
			fmt.Fprintf(w, "%s\t%t\t%s\n", items.DisplayName(it.ItemCode), it.Crated, items.Quantity(it.Quantity))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%s items in total\n", items.Quantity(d.TotalQuantity))
		for _, sc := range d.RecentScans {
			fmt.Printf("  scanned %s by %s, %d items\n", items.RelativeTime(sc.CreatedAt, now), sc.ScannedByUserID, sc.ItemCount)
		}
		return nil
	},
}

var stockpileRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a stockpile with its items and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		return withDBLock(cmd, func() error {
			return svc.DeleteStockpile(cmd.Context(), regiment, args[0])
		})
	},
}

var stockpileRefreshCmd = &cobra.Command{
	Use:   "refresh <id>",
	Short: "Record a stockpile refresh and reset its expiry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		var view *logistics.StockpileView
		err = withDBLock(cmd, func() error {
			_, view, err = svc.RefreshStockpile(cmd.Context(), regiment, args[0], user)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(view)
		}
		fmt.Printf("Refreshed %s, expires in %s\n", view.Name, items.Duration(logistics.StockpileLifetime))
		return nil
	},
}

var stockpileHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show a stockpile's scans with what changed in each",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		scans, err := svc.ScanHistory(cmd.Context(), regiment, logistics.HistoryQuery{StockpileID: args[0], Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(scans)
		}
		now := time.Now()
		for _, s := range scans {
			printScan(s, now)
		}
		return nil
	},
}

func printScan(s history.ScanWithDiff, now time.Time) {
	fmt.Printf("%s  %s  by %s  %d items\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"), items.RelativeTime(s.CreatedAt, now), s.ScannedByUserID, s.ItemCount)
	if !s.DiffAvailable {
		fmt.Printf("    changes unavailable: %s\n", s.DiffError)
		return
	}
	for _, c := range s.Changes {
		label := items.DisplayName(c.ItemCode)
		if c.Crated {
			label += " (crated)"
		}
		fmt.Printf("    %+6d  %s  %s -> %s\n", c.Change, label, items.Quantity(c.PreviousQuantity), items.Quantity(c.CurrentQuantity))
	}
	fmt.Printf("    +%s / -%s (net %+d)\n", items.Quantity(s.TotalAdded), items.Quantity(s.TotalRemoved), s.NetChange)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func init() {
	rootCmd.AddCommand(stockpileCmd)
	stockpileCmd.AddCommand(stockpileAddCmd, stockpileListCmd, stockpileGetCmd, stockpileRmCmd, stockpileRefreshCmd, stockpileHistoryCmd)

	stockpileAddCmd.Flags().String("type", "STORAGE_DEPOT", "Stockpile type: SEAPORT or STORAGE_DEPOT")
	stockpileAddCmd.Flags().String("hex", "", "Map region the stockpile is in")
	stockpileAddCmd.Flags().String("location", "", "Town or landmark of the stockpile")

	stockpileListCmd.Flags().String("hex", "", "Only list stockpiles whose region contains this text")

	stockpileRefreshCmd.Flags().StringP("user", "u", "", "User id credited with the refresh")

	stockpileHistoryCmd.Flags().Int("limit", 20, "Number of scans to show")
	stockpileHistoryCmd.Flags().Int("offset", 0, "Number of newest scans to skip")
}
