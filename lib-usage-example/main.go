package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/regiment-logi/quartermaster/pkg/deficit"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
	"github.com/regiment-logi/quartermaster/pkg/scoring"
	"github.com/regiment-logi/quartermaster/pkg/storage"
	"github.com/regiment-logi/quartermaster/pkg/warapi"
)

func main() {
	// Usage: go run *.go -db example.sqlite

	dbFlag := flag.String("db", "example.sqlite", "SQLite database to use")
	flag.Parse()

	db, err := storage.Open(*dbFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer db.Close()

	// The war service is optional: without it "war" leaderboards fall back to all time.
	war := warapi.NewCache(&warapi.Client{}, 0, nil)
	svc := logistics.New(db, war, nil)
	ctx := context.Background()

	sp, err := svc.CreateStockpile(ctx, "example", logistics.StockpileRequest{Name: fmt.Sprintf("Depot %d", os.Getpid()), Type: "STORAGE_DEPOT", Hex: "Westgate"})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, qty := range []int{120, 80} {
		scan, err := svc.IngestScan(ctx, "example", sp.ID, logistics.ScanRequest{
			UserID:   "42",
			UserName: "quartermaster",
			Items:    []logistics.ScanLine{{ItemCode: "Cloth", Quantity: qty}, {ItemCode: "RifleW", Quantity: 20, Crated: true}},
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Printf("scan %s: +%d -%d\n", scan.ID, scan.TotalAdded, scan.TotalRemoved)
	}

	res, err := svc.Deficit(ctx, "example", sp.ID, []deficit.Requirement{{ItemCode: "Cloth", Quantity: 500, Priority: 3}})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("bmats: %d%% of what we need\n", res.Summary.FulfillmentPercent)

	lb, err := svc.Leaderboard(ctx, scoring.Request{RegimentID: "example", Window: scoring.War})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	for _, e := range lb.Entries {
		fmt.Println(e.Rank, e.UserName, e.TotalPoints)
	}
}
