package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/deficit"
	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

var operationCmd = &cobra.Command{
	Use:     "operation",
	Aliases: []string{"op"},
	Short:   "Plan operations and check what is still missing",
}

// operationAddCmd reads an operation request:
//
//	{"name": "Push on Abandoned Ward", "userId": "...", "requirements": [{"itemCode": "bmat", "quantity": 500, "priority": 2}]}
var operationAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Create an operation from a JSON file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		var req logistics.OperationRequest
		if err := readJSON(firstArg(args), &req); err != nil {
			return err
		}

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		var op *storage.Operation
		err = withDBLock(cmd, func() error {
			op, err = svc.CreateOperation(cmd.Context(), regiment, req)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(op)
		}
		fmt.Printf("Created operation %s (%s) with %d requirements\n", op.Name, op.ID, len(op.Requirements))
		return nil
	},
}

var operationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the regiment's operations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		var f logistics.OperationFilter
		f.Status, _ = cmd.Flags().GetString("status")
		f.War, _ = cmd.Flags().GetString("war")
		f.Limit, _ = cmd.Flags().GetInt("limit")

		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		list, err := svc.ListOperations(cmd.Context(), regiment, f)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No operations.")
			return nil
		}
		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tLOCATION\tREQUIREMENTS\tCREATED")
		for _, op := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", op.ID, op.Name, op.Status, op.Location, len(op.Requirements), items.RelativeTime(op.CreatedAt, now))
		}
		return w.Flush()
	},
}

var operationGetCmd = &cobra.Command{
	Use:   "get <operation-id>",
	Short: "Show an operation with its requirements",
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

		op, err := svc.Operation(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(op)
		}
		fmt.Printf("Operation %s (%s)\n", op.Name, op.Status)
		if op.Description != "" {
			fmt.Println(op.Description)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ITEM\tPRIORITY\tQUANTITY")
		for _, r := range op.Requirements {
			fmt.Fprintf(w, "%s\t%s\t%s\n", items.DisplayName(r.ItemCode), items.PriorityLabel(r.Priority), items.Quantity(r.Quantity))
		}
		return w.Flush()
	},
}

var operationDeficitCmd = &cobra.Command{
	Use:   "deficit <operation-id>",
	Short: "Compare an operation's requirements with the regiment's stock",
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

		res, err := svc.OperationDeficit(cmd.Context(), regiment, args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(res)
		}
		fmt.Printf("Operation %s\n", res.Operation.Name)
		return printDeficit(res.Result)
	},
}

func printDeficit(res deficit.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ITEM\tPRIORITY\tREQUIRED\tAVAILABLE\tMISSING\tSTATUS")
	for _, r := range res.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s (%d%%)\n", r.DisplayName, r.PriorityLabel, items.Quantity(r.Required), items.Quantity(r.Available), items.Quantity(r.Deficit), r.Status, r.FulfillmentPercent)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	s := res.Summary
	fmt.Printf("%d%% fulfilled, %s missing (%d fulfilled, %d partial, %d critical)\n", s.FulfillmentPercent, items.Quantity(s.TotalDeficit), s.FulfilledCount, s.PartialCount, s.CriticalCount)
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	rootCmd.AddCommand(operationCmd)
	operationCmd.AddCommand(operationAddCmd, operationListCmd, operationGetCmd, operationDeficitCmd)

	operationListCmd.Flags().String("status", "", "Only list operations in this status: PLANNING, ACTIVE, COMPLETED or CANCELLED")
	operationListCmd.Flags().String("war", "", "Only list operations of a war: a war number or current")
	operationListCmd.Flags().Int("limit", 20, "Maximum number of operations")
}
