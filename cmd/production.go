package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

var productionCmd = &cobra.Command{
	Use:     "production",
	Aliases: []string{"prod"},
	Short:   "Track production orders",
}

// productionAddCmd reads a production order:
//
//	{"name": "Rifles for the front", "userId": "...", "priority": 1, "items": [{"itemCode": "rifle", "quantityRequired": 200}]}
var productionAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Create a production order from a JSON file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		var req logistics.ProductionRequest
		if err := readJSON(firstArg(args), &req); err != nil {
			return err
		}

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		var o *storage.ProductionOrder
		err = withDBLock(cmd, func() error {
			o, err = svc.CreateProductionOrder(cmd.Context(), regiment, req)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(o)
		}
		fmt.Printf("Created %s production order %s (%s)\n", items.PriorityLabel(o.Priority), o.Name, o.ID)
		return nil
	},
}

// productionProgressCmd reads absolute produced quantities:
//
//	{"userId": "...", "items": [{"itemCode": "rifle", "quantityProduced": 120}]}
var productionProgressCmd = &cobra.Command{
	Use:   "progress <order-id> [file]",
	Short: "Set produced quantities of an order, crediting the increase to the user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		var req logistics.ProgressRequest
		if err := readJSON(firstArg(args[1:]), &req); err != nil {
			return err
		}
		if user, _ := cmd.Flags().GetString("user"); user != "" {
			req.UserID = user
		}

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		var p *logistics.ProductionProgress
		err = withDBLock(cmd, func() error {
			p, err = svc.UpdateProduction(cmd.Context(), regiment, args[0], req)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(p)
		}
		for _, c := range p.Contributions {
			fmt.Printf("  +%s %s\n", items.Quantity(c.Quantity), items.DisplayName(c.ItemCode))
		}
		fmt.Printf("%s is %s, %d%% produced\n", p.Order.Name, p.Order.Status, p.ProgressPercent)
		return nil
	},
}

var productionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List production orders, highest priority first",
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		var f logistics.OrderFilter
		f.Status, _ = cmd.Flags().GetString("status")
		f.War, _ = cmd.Flags().GetString("war")
		f.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("mpf") {
			v, _ := cmd.Flags().GetBool("mpf")
			f.IsMPF = &v
		}
		if cmd.Flags().Changed("standing") {
			v, _ := cmd.Flags().GetBool("standing")
			f.IsStandingOrder = &v
		}

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		list, err := svc.ListProductionOrders(cmd.Context(), regiment, f)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No production orders.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tSTATUS\tKIND\tPROGRESS")
		for _, o := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%% (%s/%s)\n", o.ID, o.Name, o.PriorityLabel, o.Status, orderKind(o.ProductionOrder), o.ProgressPercent, items.Quantity(o.TotalProduced), items.Quantity(o.TotalRequired))
		}
		return w.Flush()
	},
}

var productionGetCmd = &cobra.Command{
	Use:   "get <order-id>",
	Short: "Show a production order with its items",
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

		o, err := svc.ProductionOrder(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(o)
		}
		fmt.Printf("%s %s order %s (%s), %d%% produced\n", o.PriorityLabel, orderKind(o.ProductionOrder), o.Name, o.Status, o.ProgressPercent)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ITEM\tPRODUCED\tREQUIRED")
		for _, it := range o.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", items.DisplayName(it.ItemCode), items.Quantity(it.QuantityProduced), items.Quantity(it.QuantityRequired))
		}
		return w.Flush()
	},
}

func orderKind(o storage.ProductionOrder) string {
	switch {
	case o.IsStandingOrder:
		return "standing"
	case o.IsMPF:
		return "MPF"
	}
	return "regular"
}

var productionDeficitCmd = &cobra.Command{
	Use:   "deficit <order-id>",
	Short: "Compare an order's items with current stock",
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

		res, err := svc.OrderDeficit(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(res)
		}
		if res.StockpileID != nil {
			fmt.Printf("Standing order %s (stockpile %s)\n", res.Order.Name, *res.StockpileID)
		} else {
			fmt.Printf("Production order %s\n", res.Order.Name)
		}
		return printDeficit(res.Result)
	},
}

func init() {
	rootCmd.AddCommand(productionCmd)
	productionCmd.AddCommand(productionAddCmd, productionListCmd, productionGetCmd, productionProgressCmd, productionDeficitCmd)

	productionListCmd.Flags().String("status", "", "Only list orders in this status")
	productionListCmd.Flags().Bool("mpf", false, "Only list MPF orders (--mpf=false for the others)")
	productionListCmd.Flags().Bool("standing", false, "Only list standing orders (--standing=false for the others)")
	productionListCmd.Flags().String("war", "", "Only list orders of a war: a war number or current")
	productionListCmd.Flags().Int("limit", 20, "Maximum number of orders")
	productionProgressCmd.Flags().StringP("user", "u", "", "User id credited with the production (overrides userId of the input)")
}
