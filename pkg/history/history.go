// Package history replays stockpile scan histories through the diff engine.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/regiment-logi/quartermaster/pkg/diff"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Source is the part of the snapshot store the reconciler reads.
type Source interface {
	// FindPreviousScan returns the scan right before s in its stockpile, or
	// nil when s is the stockpile's first scan.
	FindPreviousScan(ctx context.Context, s storage.Scan) (*storage.Scan, error)
	FindScanItems(ctx context.Context, scanIDs ...string) (map[string][]storage.ScanItem, error)
}

// ScanWithDiff is a scan together with its changes against the previous
// scan of the same stockpile. When DiffAvailable is false the changes could
// not be computed and DiffError says why.
type ScanWithDiff struct {
	storage.Scan
	Changes       []diff.ItemDelta `json:"changes"`
	TotalAdded    int              `json:"totalAdded"`
	TotalRemoved  int              `json:"totalRemoved"`
	NetChange     int              `json:"netChange"`
	DiffAvailable bool             `json:"diffAvailable"`
	DiffError     string           `json:"diffError,omitempty"`
}

// Reconciler computes per-scan diffs. Stockpiles are processed
// concurrently; scans of one stockpile are always folded oldest first.
type Reconciler struct {
	Source      Source
	Concurrency int    // defaults to 5 if <= 0
	Log         Logger // optional; nil = no logging
}

// Reconcile returns one ScanWithDiff per input scan, in input order.
// Store failures degrade the affected scans instead of failing the call;
// an error is returned only when ctx is done.
func (r *Reconciler) Reconcile(ctx context.Context, scans []storage.Scan) ([]ScanWithDiff, error) {
	if r.Source == nil {
		return nil, errors.New("history: nil source")
	}
	log := r.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	out := make([]ScanWithDiff, len(scans))
	var order []string
	parts := map[string][]int{}
	for i, s := range scans {
		out[i].Scan = s
		if _, ok := parts[s.StockpileID]; !ok {
			order = append(order, s.StockpileID)
		}
		parts[s.StockpileID] = append(parts[s.StockpileID], i)
	}
	if len(order) == 0 {
		return out, nil
	}

	partChan := make(chan []int, len(order))
	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(order); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range partChan {
				if ctx.Err() != nil {
					continue
				}
				// Each partition writes only its own indexes of out.
				r.reconcilePartition(ctx, scans, idx, out, log)
			}
		}()
	}
	for _, id := range order {
		partChan <- parts[id]
	}
	close(partChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reconciler) reconcilePartition(ctx context.Context, scans []storage.Scan, idx []int, out []ScanWithDiff, log Logger) {
	sort.SliceStable(idx, func(a, b int) bool { return scans[idx[a]].Before(scans[idx[b]]) })
	oldest := scans[idx[0]]

	prev, seedErr := r.Source.FindPreviousScan(ctx, oldest)
	if seedErr != nil {
		log.Warnf("Could not find the scan before %s in stockpile %s: %v", oldest.ID, oldest.StockpileID, seedErr)
		prev = nil
	}

	ids := make([]string, 0, len(idx)+1)
	if prev != nil {
		ids = append(ids, prev.ID)
	}
	for _, i := range idx {
		ids = append(ids, scans[i].ID)
	}
	lines, err := r.Source.FindScanItems(ctx, ids...)
	if err != nil {
		log.Warnf("Could not load scan items for stockpile %s: %v", oldest.StockpileID, err)
		for _, i := range idx {
			markUnavailable(&out[i], fmt.Errorf("loading scan items: %w", err))
		}
		return
	}

	var previous diff.Snapshot
	if prev != nil {
		previous = snapshotOf(lines[prev.ID])
	}
	for n, i := range idx {
		current := snapshotOf(lines[scans[i].ID])
		if n == 0 && seedErr != nil {
			// Without the predecessor every item would look like an addition.
			markUnavailable(&out[i], fmt.Errorf("finding previous scan: %w", seedErr))
		} else {
			setChanges(&out[i], diff.Compute(current, previous))
		}
		previous = current
	}
}

func snapshotOf(lines []storage.ScanItem) diff.Snapshot {
	s := make(diff.Snapshot, len(lines))
	for _, l := range lines {
		s.Add(l.ItemCode, l.Crated, l.Quantity)
	}
	return s
}

func setChanges(s *ScanWithDiff, changes []diff.ItemDelta) {
	t := diff.Summarize(changes)
	s.Changes = changes
	s.TotalAdded = t.Added
	s.TotalRemoved = t.Removed
	s.NetChange = t.Net
	s.DiffAvailable = true
	s.DiffError = ""
}

func markUnavailable(s *ScanWithDiff, err error) {
	s.Changes = []diff.ItemDelta{}
	s.TotalAdded, s.TotalRemoved, s.NetChange = 0, 0, 0
	s.DiffAvailable = false
	s.DiffError = err.Error()
}
