package inventory

import (
	"testing"

	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

func strPtr(s string) *string { return &s }

func TestAggregateTagSearch(t *testing.T) {
	rows := []storage.ItemRow{
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 300},
		{StockpileID: "B", ItemCode: "Cloth", Quantity: 50, Crated: true},
		{StockpileID: "A", ItemCode: "RifleC", Quantity: 20, Crated: true},
	}
	res := Aggregate(rows, Filter{Search: strPtr("bmat")})

	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %+v", res.Items)
	}
	it := res.Items[0]
	if it.ItemCode != "Cloth" || it.TotalQuantity != 350 || it.CratedQuantity != 50 || it.LooseQuantity != 300 || it.LocationCount != 2 {
		t.Fatalf("unexpected aggregate: %+v", it)
	}
	if it.MatchedTag == nil || *it.MatchedTag != "BMAT" {
		t.Fatalf("expected matched tag BMAT, got %v", it.MatchedTag)
	}
	if res.TotalUniqueItems != 2 {
		t.Fatalf("expected 2 unique items, got %d", res.TotalUniqueItems)
	}
}

func TestAggregateNameSearchHasNoTag(t *testing.T) {
	rows := []storage.ItemRow{{StockpileID: "A", ItemCode: "Cloth", Quantity: 10}}
	res := Aggregate(rows, Filter{Search: strPtr("basic")})
	if len(res.Items) != 1 || res.Items[0].MatchedTag != nil {
		t.Fatalf("expected a name match without tag, got %+v", res.Items)
	}
	res = Aggregate(rows, Filter{Search: strPtr("clo")})
	if len(res.Items) != 1 {
		t.Fatalf("expected a code match, got %+v", res.Items)
	}
}

func TestAggregateLimitAfterFilter(t *testing.T) {
	rows := []storage.ItemRow{
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 1000},
		{StockpileID: "A", ItemCode: "LightTankW", Quantity: 2},
		{StockpileID: "A", ItemCode: "TruckW", Quantity: 5},
	}
	vehicles := items.Vehicles
	res := Aggregate(rows, Filter{Category: &vehicles, Limit: 1})
	if len(res.Items) != 1 || res.Items[0].ItemCode != "TruckW" {
		t.Fatalf("expected TruckW only, got %+v", res.Items)
	}
}

func TestAggregateLocationCountIgnoresZeroRows(t *testing.T) {
	rows := []storage.ItemRow{
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 10},
		{StockpileID: "B", ItemCode: "Cloth", Quantity: 0},
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 5, Crated: true},
	}
	res := Aggregate(rows, Filter{})
	if res.Items[0].LocationCount != 1 {
		t.Fatalf("expected 1 location, got %d", res.Items[0].LocationCount)
	}
}

func TestAggregateStockpileScope(t *testing.T) {
	rows := []storage.ItemRow{
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 10},
		{StockpileID: "B", ItemCode: "Wood", Quantity: 3},
	}
	res := Aggregate(rows, Filter{StockpileID: strPtr("B")})
	if len(res.Items) != 1 || res.Items[0].ItemCode != "Wood" {
		t.Fatalf("expected Wood only, got %+v", res.Items)
	}
}

func TestLocations(t *testing.T) {
	stockpiles := []storage.Stockpile{
		{ID: "A", Name: "Port", Type: storage.Seaport},
		{ID: "B", Name: "Depot", Type: storage.StorageDepot},
	}
	rows := []storage.ItemRow{
		{StockpileID: "A", ItemCode: "Cloth", Quantity: 10},
		{StockpileID: "B", ItemCode: "Cloth", Quantity: 40, Crated: true},
		{StockpileID: "B", ItemCode: "Cloth", Quantity: 5},
		{StockpileID: "A", ItemCode: "Wood", Quantity: 99},
	}
	res := Locations("Cloth", rows, stockpiles)
	if res.TotalQuantity != 55 || res.CratedQuantity != 40 || res.LooseQuantity != 15 {
		t.Fatalf("unexpected totals: %+v", res)
	}
	if len(res.Stockpiles) != 2 || res.Stockpiles[0].Name != "Depot" || res.Stockpiles[0].TotalQuantity != 45 {
		t.Fatalf("unexpected breakdown: %+v", res.Stockpiles)
	}
}

func TestTotals(t *testing.T) {
	got := Totals([]storage.ItemRow{
		{ItemCode: "Cloth", Quantity: 10},
		{ItemCode: "Cloth", Quantity: 4, Crated: true},
	})
	if got["Cloth"] != 14 {
		t.Fatalf("expected 14, got %d", got["Cloth"])
	}
}
