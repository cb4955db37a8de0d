package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/inventory"
	"github.com/regiment-logi/quartermaster/pkg/items"
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "Query what the regiment currently holds",
}

var inventorySearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Aggregate current items, optionally filtered by name, code or tag",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		f := inventory.Filter{}
		f.Limit, _ = cmd.Flags().GetInt("limit")
		if len(args) == 1 && args[0] != "" {
			f.Search = &args[0]
		}
		if c, _ := cmd.Flags().GetString("category"); c != "" {
			cat, ok := items.ParseCategory(c)
			if !ok {
				return fmt.Errorf("unknown category %q", c)
			}
			f.Category = &cat
		}
		if sp, _ := cmd.Flags().GetString("stockpile"); sp != "" {
			f.StockpileID = &sp
		}

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		res, err := svc.Inventory(cmd.Context(), regiment, f)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(res)
		}
		if len(res.Items) == 0 {
			fmt.Println("Nothing found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ITEM\tTOTAL\tLOOSE\tCRATED\tLOCATIONS")
		for _, it := range res.Items {
			name := it.DisplayName
			if it.MatchedTag != nil {
				name += " [" + *it.MatchedTag + "]"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", name, items.Quantity(it.TotalQuantity), items.Quantity(it.LooseQuantity), items.Quantity(it.CratedQuantity), it.LocationCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(res.Items) < res.TotalUniqueItems {
			fmt.Printf("Showing %d of %d items.\n", len(res.Items), res.TotalUniqueItems)
		}
		return nil
	},
}

var inventoryLocationsCmd = &cobra.Command{
	Use:   "locations <item-code>",
	Short: "Show which stockpiles hold an item",
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

		res, err := svc.ItemLocations(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(res)
		}

		fmt.Printf("%s: %s total (%s loose, %s crated)\n", res.DisplayName, items.Quantity(res.TotalQuantity), items.Quantity(res.LooseQuantity), items.Quantity(res.CratedQuantity))
		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		for _, l := range res.Stockpiles {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\tupdated %s\n", l.Hex, l.Name, items.Quantity(l.TotalQuantity), items.StockpileTypeLabel(string(l.Type)), items.RelativeTime(l.UpdatedAt, now))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventorySearchCmd, inventoryLocationsCmd)

	inventorySearchCmd.Flags().String("category", "", "Only items of this category: vehicles, weapons, ammo, resources, supplies, other")
	inventorySearchCmd.Flags().String("stockpile", "", "Only items of this stockpile id")
	inventorySearchCmd.Flags().Int("limit", 0, "Maximum number of items to show (0 = all)")
}
