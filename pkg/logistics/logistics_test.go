package logistics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/deficit"
	"github.com/regiment-logi/quartermaster/pkg/inventory"
	"github.com/regiment-logi/quartermaster/pkg/scoring"
	"github.com/regiment-logi/quartermaster/pkg/storage"
	"github.com/regiment-logi/quartermaster/pkg/warapi"
)

type fakeWar struct {
	n           int
	err         error
	invalidated int
}

func (f *fakeWar) Current(context.Context) (warapi.War, error) {
	if f.err != nil {
		return warapi.War{}, f.err
	}
	return warapi.War{WarNumber: f.n, Winner: "NONE"}, nil
}

func (f *fakeWar) CurrentNumber(ctx context.Context) (int, error) {
	w, err := f.Current(ctx)
	return w.WarNumber, err
}

func (f *fakeWar) Invalidate() { f.invalidated++ }

func newTestService(t *testing.T, war WarSource) *Service {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "logistics.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, war, nil)
}

func mustStockpile(t *testing.T, s *Service, regiment, name string) *StockpileView {
	t.Helper()
	sp, err := s.CreateStockpile(context.Background(), regiment, StockpileRequest{Name: name, Type: "SEAPORT", Hex: "Westgate Hex"})
	if err != nil {
		t.Fatalf("create stockpile: %v", err)
	}
	return sp
}

func TestIngestScanDiffsAgainstPrevious(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakeWar{n: 121})
	sp := mustStockpile(t, s, "reg", "Main")

	first, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u1", UserName: "Alice", Items: []ScanLine{{ItemCode: "Cloth", Quantity: 100}}})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.TotalAdded != 100 || first.WarNumber == nil || *first.WarNumber != 121 {
		t.Fatalf("unexpected first scan: %+v", first)
	}

	second, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u2", Items: []ScanLine{
		{ItemCode: "Cloth", Quantity: 150},
		{ItemCode: "Components", Quantity: 30},
	}})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.TotalAdded != 80 || second.TotalRemoved != 0 || len(second.Changes) != 2 {
		t.Fatalf("expected +80 over two items, got %+v", second)
	}
	if second.Changes[0].ItemCode != "Cloth" || second.Changes[0].Change != 50 {
		t.Fatalf("expected Cloth +50 first, got %+v", second.Changes[0])
	}

	hist, err := s.ScanHistory(ctx, "reg", HistoryQuery{StockpileID: sp.ID, Limit: 1})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != second.ID || hist[0].TotalAdded != 80 {
		t.Fatalf("expected the newest scan diffed against its predecessor, got %+v", hist)
	}
}

func TestIngestScanRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	sp := mustStockpile(t, s, "reg", "Main")

	_, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "Cloth", Quantity: -5}}})
	var verr *ValidationError
	if !errors.Is(err, ErrValidation) || !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 1 {
		t.Fatalf("expected one failing field, got %v", verr.Fields)
	}

	if _, err := s.IngestScan(ctx, "other", sp.ID, ScanRequest{UserID: "u1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another regiment's stockpile, got %v", err)
	}
	hist, _ := s.ScanHistory(ctx, "reg", HistoryQuery{StockpileID: sp.ID})
	if len(hist) != 0 {
		t.Fatalf("expected no scans after rejected input, got %d", len(hist))
	}
}

func TestInventoryAndLocations(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	a := mustStockpile(t, s, "reg", "A")
	b := mustStockpile(t, s, "reg", "B")

	if _, err := s.IngestScan(ctx, "reg", a.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "Cloth", Quantity: 300}}}); err != nil {
		t.Fatalf("scan a: %v", err)
	}
	if _, err := s.IngestScan(ctx, "reg", b.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "Cloth", Quantity: 50, Crated: true}}}); err != nil {
		t.Fatalf("scan b: %v", err)
	}

	search := "bmat"
	res, err := s.Inventory(ctx, "reg", inventory.Filter{Search: &search})
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %+v", res.Items)
	}
	it := res.Items[0]
	if it.TotalQuantity != 350 || it.CratedQuantity != 50 || it.LooseQuantity != 300 || it.LocationCount != 2 || it.MatchedTag == nil || *it.MatchedTag != "BMAT" {
		t.Fatalf("unexpected aggregate: %+v", it)
	}

	loc, err := s.ItemLocations(ctx, "reg", "Cloth")
	if err != nil {
		t.Fatalf("locations: %v", err)
	}
	if len(loc.Stockpiles) != 2 || loc.Stockpiles[0].Name != "A" {
		t.Fatalf("expected A first, got %+v", loc.Stockpiles)
	}

	missing := "nope"
	if _, err := s.Inventory(ctx, "reg", inventory.Filter{StockpileID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stockpile scope, got %v", err)
	}
}

func TestOperationDeficit(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	sp := mustStockpile(t, s, "reg", "Front")
	if _, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "BattleTankAmmo", Quantity: 120}}}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	op, err := s.CreateOperation(ctx, "reg", OperationRequest{
		Name:         "Push",
		UserID:       "u1",
		Requirements: []deficit.Requirement{{ItemCode: "BattleTankAmmo", Quantity: 500, Priority: 3}},
	})
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}
	d, err := s.OperationDeficit(ctx, "reg", op.ID)
	if err != nil {
		t.Fatalf("deficit: %v", err)
	}
	if d.Items[0].Deficit != 380 || d.Items[0].Fulfilled || d.Summary.FulfillmentPercent != 24 {
		t.Fatalf("unexpected deficit: %+v", d.Result)
	}

	if _, err := s.OperationDeficit(ctx, "other", op.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across regiments, got %v", err)
	}
	_, err = s.CreateOperation(ctx, "reg", OperationRequest{Name: "Empty", UserID: "u1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without requirements, got %v", err)
	}
	_, err = s.CreateOperation(ctx, "reg", OperationRequest{Name: "Bad", UserID: "u1", Requirements: []deficit.Requirement{{ItemCode: "Cloth", Quantity: 1, Priority: 7}}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for priority 7, got %v", err)
	}
}

func TestStandingOrderUsesLinkedStockpile(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	linked := mustStockpile(t, s, "reg", "Linked")
	other := mustStockpile(t, s, "reg", "Other")
	s.IngestScan(ctx, "reg", linked.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "RifleAmmo", Quantity: 40}}})
	s.IngestScan(ctx, "reg", other.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "RifleAmmo", Quantity: 1000}}})

	o, err := s.CreateProductionOrder(ctx, "reg", ProductionRequest{
		Name:              "Keep ammo",
		Priority:          2,
		IsStandingOrder:   true,
		LinkedStockpileID: &linked.ID,
		UserID:            "u1",
		Items:             []ProductionItem{{ItemCode: "RifleAmmo", QuantityRequired: 100}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	d, err := s.OrderDeficit(ctx, "reg", o.ID)
	if err != nil {
		t.Fatalf("deficit: %v", err)
	}
	if d.StockpileID == nil || *d.StockpileID != linked.ID {
		t.Fatalf("expected linked stockpile scope, got %v", d.StockpileID)
	}
	if d.Items[0].Available != 40 || d.Items[0].Deficit != 60 || d.Items[0].Priority != 2 {
		t.Fatalf("unexpected row: %+v", d.Items[0])
	}

	_, err = s.CreateProductionOrder(ctx, "reg", ProductionRequest{Name: "x", IsStandingOrder: true, UserID: "u1", Items: []ProductionItem{{ItemCode: "Cloth", QuantityRequired: 1}}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for standing order without stockpile, got %v", err)
	}
}

func TestProductionProgressFeedsLeaderboard(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakeWar{n: 121})
	o, err := s.CreateProductionOrder(ctx, "reg", ProductionRequest{
		Name:   "Rifles",
		UserID: "u1",
		Items:  []ProductionItem{{ItemCode: "RifleC", QuantityRequired: 100}, {ItemCode: "RifleAmmo", QuantityRequired: 100}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	p, err := s.UpdateProduction(ctx, "reg", o.ID, ProgressRequest{UserID: "u2", Items: []ProgressLine{{ItemCode: "RifleC", QuantityProduced: 150}}})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.ProgressPercent != 50 || p.Order.Status != storage.OrderInProgress {
		t.Fatalf("expected 50%% in progress, got %d %s", p.ProgressPercent, p.Order.Status)
	}
	if len(p.Contributions) != 1 || p.Contributions[0].WarNumber == nil || *p.Contributions[0].WarNumber != 121 {
		t.Fatalf("expected one contribution in war 121, got %+v", p.Contributions)
	}

	board, err := s.Leaderboard(ctx, scoring.Request{RegimentID: "reg", Window: scoring.War, UserID: "u2"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].ProductionPoints != 150 || board.CurrentUserRank != nil {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}
}

func TestLeaderboardDegradesWithoutWar(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &fakeWar{err: warapi.ErrUnavailable})
	sp := mustStockpile(t, s, "reg", "Main")
	if _, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "Cloth", Quantity: 10}}}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, _, err := s.RefreshStockpile(ctx, "reg", sp.ID, "u2"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	all, err := s.Leaderboard(ctx, scoring.Request{RegimentID: "reg", Window: scoring.AllTime})
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	war, err := s.Leaderboard(ctx, scoring.Request{RegimentID: "reg", Window: scoring.War})
	if err != nil {
		t.Fatalf("war: %v", err)
	}
	if !war.Degraded || len(war.Entries) != len(all.Entries) || len(all.Entries) != 2 {
		t.Fatalf("expected degraded board equal to all time, got %+v vs %+v", war, all)
	}
	for i := range all.Entries {
		if all.Entries[i] != war.Entries[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, all.Entries[i], war.Entries[i])
		}
	}
}

func TestFreshnessAt(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	at := func(hoursAgo float64) *time.Time {
		t := now.Add(-time.Duration(hoursAgo * float64(time.Hour)))
		return &t
	}
	cases := []struct {
		last *time.Time
		want FreshnessStatus
	}{
		{nil, Unknown},
		{at(1), Fresh},
		{at(30), Aging},
		{at(45), ExpiringSoon},
		{at(50), Expired},
		{at(80), Expired},
	}
	for _, c := range cases {
		if got := FreshnessAt(c.last, now); got.Status != c.want {
			t.Fatalf("expected %s, got %s", c.want, got.Status)
		}
	}
	f := FreshnessAt(at(30), now)
	if f.HoursUntilExpiry == nil || *f.HoursUntilExpiry != 20 {
		t.Fatalf("expected 20 hours left, got %v", f.HoursUntilExpiry)
	}
}

func TestWarPassthrough(t *testing.T) {
	w := &fakeWar{n: 121}
	s := newTestService(t, w)
	got, err := s.War(context.Background())
	if err != nil || got.WarNumber != 121 {
		t.Fatalf("expected war 121, got %+v (%v)", got, err)
	}
	s.InvalidateWar()
	if w.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", w.invalidated)
	}

	none := newTestService(t, nil)
	if _, err := none.War(context.Background()); !errors.Is(err, warapi.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without a war source, got %v", err)
	}
}

func TestProductionOrderViews(t *testing.T) {
	ctx := context.Background()
	war := &fakeWar{n: 121}
	s := newTestService(t, war)

	rifles, err := s.CreateProductionOrder(ctx, "reg", ProductionRequest{Name: "Rifles", Priority: 3, UserID: "u1",
		Items: []ProductionItem{{ItemCode: "RifleC", QuantityRequired: 100}, {ItemCode: "RifleAmmo", QuantityRequired: 100}}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := s.UpdateProduction(ctx, "reg", rifles.ID, ProgressRequest{UserID: "u2", Items: []ProgressLine{{ItemCode: "RifleC", QuantityProduced: 150}}}); err != nil {
		t.Fatalf("progress: %v", err)
	}
	war.n = 122
	if _, err := s.CreateProductionOrder(ctx, "reg", ProductionRequest{Name: "Tanks", IsMPF: true, UserID: "u1",
		Items: []ProductionItem{{ItemCode: "LightTank", QuantityRequired: 3}}}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	v, err := s.ProductionOrder(ctx, "reg", rifles.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	// Overproduced rifles count only up to their own requirement.
	if v.PriorityLabel != "Critical" || v.ProgressPercent != 50 || v.TotalProduced != 150 || v.TotalRequired != 200 || v.ItemCount != 2 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if _, err := s.ProductionOrder(ctx, "other", rifles.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across regiments, got %v", err)
	}

	list, err := s.ListProductionOrders(ctx, "reg", OrderFilter{War: "current"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Tanks" || list[0].PriorityLabel != "Low" {
		t.Fatalf("expected only Tanks in the current war, got %+v", list)
	}
	list, _ = s.ListProductionOrders(ctx, "reg", OrderFilter{War: "121"})
	if len(list) != 1 || list[0].ID != rifles.ID {
		t.Fatalf("expected only Rifles in war 121, got %+v", list)
	}

	war.err = errors.New("down")
	list, err = s.ListProductionOrders(ctx, "reg", OrderFilter{War: "current"})
	if err != nil || len(list) != 2 {
		t.Fatalf("expected every order without a war service, got %d (%v)", len(list), err)
	}

	if _, err := s.ListProductionOrders(ctx, "reg", OrderFilter{Status: "DONE"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for status DONE, got %v", err)
	}
	if _, err := s.ListProductionOrders(ctx, "reg", OrderFilter{War: "latest"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for war latest, got %v", err)
	}
}

func TestOperationViews(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	op, err := s.CreateOperation(ctx, "reg", OperationRequest{Name: "Push", UserID: "u1",
		Requirements: []deficit.Requirement{{ItemCode: "Cloth", Quantity: 10, Priority: 1}}})
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}

	list, err := s.ListOperations(ctx, "reg", OperationFilter{Status: "PLANNING"})
	if err != nil || len(list) != 1 || list[0].ID != op.ID {
		t.Fatalf("expected the planned operation, got %+v (%v)", list, err)
	}
	if list, _ := s.ListOperations(ctx, "reg", OperationFilter{Status: "ACTIVE"}); len(list) != 0 {
		t.Fatalf("expected no active operations, got %+v", list)
	}
	got, err := s.Operation(ctx, "reg", op.ID)
	if err != nil || len(got.Requirements) != 1 || got.Requirements[0].ItemCode != "Cloth" {
		t.Fatalf("unexpected operation %+v (%v)", got, err)
	}
	if _, err := s.Operation(ctx, "other", op.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across regiments, got %v", err)
	}
}

func TestStockpileDetail(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)
	sp := mustStockpile(t, s, "reg", "Front")
	for _, qty := range []int{10, 20} {
		if _, err := s.IngestScan(ctx, "reg", sp.ID, ScanRequest{UserID: "u1", Items: []ScanLine{{ItemCode: "Cloth", Quantity: qty}, {ItemCode: "RifleAmmo", Quantity: 50}}}); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}

	d, err := s.StockpileDetail(ctx, "reg", sp.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Items) != 2 || d.Items[0].ItemCode != "RifleAmmo" || d.TotalQuantity != 70 {
		t.Fatalf("unexpected items: %+v", d.Items)
	}
	if len(d.RecentScans) != 2 || d.Name != "Front" {
		t.Fatalf("expected 2 recent scans of Front, got %+v", d)
	}
	if _, err := s.StockpileDetail(ctx, "other", sp.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across regiments, got %v", err)
	}
}
