package history

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/diff"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

type fakeSource struct {
	scans    []storage.Scan // every scan known to the store
	items    map[string][]storage.ScanItem
	prevErr  map[string]error // by stockpile
	itemsErr map[string]error // by stockpile
}

func (f *fakeSource) FindPreviousScan(_ context.Context, s storage.Scan) (*storage.Scan, error) {
	if err := f.prevErr[s.StockpileID]; err != nil {
		return nil, err
	}
	var best *storage.Scan
	for i := range f.scans {
		c := f.scans[i]
		if c.StockpileID != s.StockpileID || !c.Before(s) {
			continue
		}
		if best == nil || best.Before(c) {
			best = &f.scans[i]
		}
	}
	return best, nil
}

func (f *fakeSource) FindScanItems(_ context.Context, ids ...string) (map[string][]storage.ScanItem, error) {
	out := map[string][]storage.ScanItem{}
	for _, id := range ids {
		for _, s := range f.scans {
			if s.ID == id {
				if err := f.itemsErr[s.StockpileID]; err != nil {
					return nil, err
				}
			}
		}
		out[id] = f.items[id]
	}
	return out, nil
}

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func (f *fakeSource) add(id, stockpile string, hour int, lines ...storage.ScanItem) storage.Scan {
	if f.items == nil {
		f.items = map[string][]storage.ScanItem{}
	}
	s := storage.Scan{ID: id, Seq: int64(len(f.scans) + 1), StockpileID: stockpile, ScannedByUserID: "u-" + id, CreatedAt: base.Add(time.Duration(hour) * time.Hour)}
	f.scans = append(f.scans, s)
	f.items[id] = lines
	return s
}

func loose(code string, qty int) storage.ScanItem {
	return storage.ScanItem{ItemCode: code, Quantity: qty}
}

func TestReconcileFoldMatchesPairwiseDiffs(t *testing.T) {
	src := &fakeSource{}
	s1 := src.add("s1", "L", 1, loose("Cloth", 100))
	s2 := src.add("s2", "L", 2, loose("Cloth", 150), loose("Components", 30))
	s3 := src.add("s3", "L", 3, loose("Components", 10))

	r := &Reconciler{Source: src}
	got, err := r.Reconcile(context.Background(), []storage.Scan{s3, s1, s2})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	want := map[string][]diff.ItemDelta{
		"s1": diff.Compute(snapshotOf(src.items["s1"]), nil),
		"s2": diff.Compute(snapshotOf(src.items["s2"]), snapshotOf(src.items["s1"])),
		"s3": diff.Compute(snapshotOf(src.items["s3"]), snapshotOf(src.items["s2"])),
	}
	if got[0].ID != "s3" || got[1].ID != "s1" || got[2].ID != "s2" {
		t.Fatalf("expected input order to be kept, got %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	for _, g := range got {
		if !g.DiffAvailable {
			t.Fatalf("expected diff for %s, got error %q", g.ID, g.DiffError)
		}
		if !reflect.DeepEqual(g.Changes, want[g.ID]) {
			t.Fatalf("%s: expected %+v, got %+v", g.ID, want[g.ID], g.Changes)
		}
	}
	if got[2].TotalAdded != 80 || got[2].TotalRemoved != 0 {
		t.Fatalf("expected s2 totals 80/0, got %d/%d", got[2].TotalAdded, got[2].TotalRemoved)
	}
	if got[0].TotalRemoved != 170 || got[0].NetChange != -170 {
		t.Fatalf("expected s3 to remove 170, got %+v", got[0])
	}
}

func TestReconcileSeedsFromPredecessorOutsidePage(t *testing.T) {
	src := &fakeSource{}
	src.add("s1", "L", 1, loose("Cloth", 100))
	s2 := src.add("s2", "L", 2, loose("Cloth", 120))

	r := &Reconciler{Source: src}
	got, err := r.Reconcile(context.Background(), []storage.Scan{s2})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(got[0].Changes) != 1 || got[0].Changes[0].Change != 20 {
		t.Fatalf("expected +20 against the earlier scan, got %+v", got[0].Changes)
	}
}

func TestReconcilePredecessorFailureMarksOnlyOldest(t *testing.T) {
	src := &fakeSource{prevErr: map[string]error{"L": errors.New("disk on fire")}}
	src.add("s1", "L", 1, loose("Cloth", 100))
	s2 := src.add("s2", "L", 2, loose("Cloth", 120))
	s3 := src.add("s3", "L", 3, loose("Cloth", 90))
	other := src.add("o1", "M", 1, loose("Wood", 5))

	r := &Reconciler{Source: src}
	got, err := r.Reconcile(context.Background(), []storage.Scan{s3, s2, other})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got[1].DiffAvailable || got[1].DiffError == "" || len(got[1].Changes) != 0 {
		t.Fatalf("expected s2 to be unavailable, got %+v", got[1])
	}
	if !got[0].DiffAvailable || got[0].TotalRemoved != 30 {
		t.Fatalf("expected s3 diff of -30, got %+v", got[0])
	}
	if !got[2].DiffAvailable || got[2].TotalAdded != 5 {
		t.Fatalf("expected other stockpile unaffected, got %+v", got[2])
	}
}

func TestReconcileItemFailureIsPerStockpile(t *testing.T) {
	src := &fakeSource{itemsErr: map[string]error{"L": errors.New("timeout")}}
	s1 := src.add("s1", "L", 1, loose("Cloth", 100))
	o1 := src.add("o1", "M", 1, loose("Wood", 5))

	r := &Reconciler{Source: src, Concurrency: 1}
	got, err := r.Reconcile(context.Background(), []storage.Scan{s1, o1})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got[0].DiffAvailable {
		t.Fatalf("expected L scan unavailable")
	}
	if !got[1].DiffAvailable || got[1].TotalAdded != 5 {
		t.Fatalf("expected M scan available, got %+v", got[1])
	}
}

func TestReconcileCancelled(t *testing.T) {
	src := &fakeSource{}
	s1 := src.add("s1", "L", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Reconciler{Source: src}
	if _, err := r.Reconcile(ctx, []storage.Scan{s1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReconcileEmpty(t *testing.T) {
	r := &Reconciler{Source: &fakeSource{}}
	got, err := r.Reconcile(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v (%v)", got, err)
	}
}

func TestReconcileAgainstStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	sp := &storage.Stockpile{RegimentID: "reg", Name: "Main", Type: storage.StorageDepot, Hex: "Westgate"}
	if err := db.CreateStockpile(ctx, sp); err != nil {
		t.Fatalf("stockpile: %v", err)
	}
	snapshots := [][]storage.ScanItem{
		{{ItemCode: "RifleC", Crated: true, Quantity: 50}},
		{{ItemCode: "RifleC", Crated: true, Quantity: 20}},
	}
	for i, lines := range snapshots {
		if _, err := db.ReplaceCurrentItems(ctx, storage.ScanInput{StockpileID: sp.ID, ScannedByUserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Minute), Items: lines}); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	// Only the newest scan is requested; its baseline comes from the store.
	scans, err := db.FindScans(ctx, "reg", storage.ScanQuery{StockpileID: sp.ID, Limit: 1})
	if err != nil {
		t.Fatalf("find scans: %v", err)
	}
	r := &Reconciler{Source: db}
	got, err := r.Reconcile(ctx, scans)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(got) != 1 || len(got[0].Changes) != 1 || got[0].Changes[0].Change != -30 {
		t.Fatalf("expected one -30 change, got %+v", got)
	}
	if got[0].TotalAdded+got[0].TotalRemoved != 30 {
		t.Fatalf("expected magnitude 30, got %+v", got[0])
	}
}
