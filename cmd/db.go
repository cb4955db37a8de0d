package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/regiment-logi/quartermaster/pkg/items"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the quartermaster database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("db.path")

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints the dashboard counters of the regiment.",
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

		stats, err := svc.Stats(cmd.Context(), regiment)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Stockpiles\t%s\n", items.Quantity(stats.StockpileCount))
		fmt.Fprintf(w, "Items stored\t%s\n", items.Quantity(stats.TotalItems))
		fmt.Fprintf(w, "Active operations\t%s\n", items.Quantity(stats.ActiveOperationCount))
		fmt.Fprintf(w, "Open production orders\t%s\n", items.Quantity(stats.PendingProductionCount))
		fmt.Fprintf(w, "Scans (24h)\t%s\n", items.Quantity(stats.ScansLast24Hours))
		if stats.LastUpdatedAt != nil {
			fmt.Fprintf(w, "Last updated\t%s (%s)\n", stats.LastUpdatedStockpile, items.RelativeTime(*stats.LastUpdatedAt, time.Now()))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
}
