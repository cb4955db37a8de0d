package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/pkg/items"
)

var warCmd = &cobra.Command{
	Use:   "war",
	Short: "Show the current war",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		war, err := svc.War(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(war)
		}

		now := time.Now()
		fmt.Printf("War %d\n", war.WarNumber)
		if war.ConquestStartTime != nil {
			fmt.Printf("Conquest started %s (%s)\n", items.RelativeTime(*war.ConquestStartTime, now), war.ConquestStartTime.Local().Format("2006-01-02 15:04"))
		} else {
			fmt.Println("Conquest has not started yet")
		}
		if war.ConquestEndTime != nil {
			fmt.Printf("Ended %s, won by %s\n", items.RelativeTime(*war.ConquestEndTime, now), war.Winner)
		}
		if war.RequiredVictoryTowns > 0 {
			fmt.Printf("Victory towns required: %d\n", war.RequiredVictoryTowns)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(warCmd)
}
