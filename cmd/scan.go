package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/history"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Record stockpile scans",
}

// scanIngestCmd implements: quartermaster scan ingest <stockpile-id> [file]
//
// The input is a JSON scan request:
//
//	{"userId": "...", "userName": "...", "items": [{"itemCode": "rifle", "quantity": 40, "crated": true}]}
var scanIngestCmd = &cobra.Command{
	Use:   "ingest <stockpile-id> [file]",
	Short: "Store a recognized stockpile scan read from a JSON file or stdin",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		regiment, err := regimentID()
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		var req logistics.ScanRequest
		if err := readJSON(path, &req); err != nil {
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

		var res *history.ScanWithDiff
		err = withDBLock(cmd, func() error {
			res, err = svc.IngestScan(cmd.Context(), regiment, args[0], req)
			return err
		})
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(res)
		}
		printScan(*res, time.Now())
		if len(res.Changes) == 0 && res.DiffAvailable {
			fmt.Println("    no changes")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.AddCommand(scanIngestCmd)
	scanIngestCmd.Flags().StringP("user", "u", "", "User id of the scanner (overrides userId of the input)")
}
