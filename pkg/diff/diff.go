// Package diff computes signed per-item changes between two stockpile snapshots.
package diff

import "sort"

// Key identifies one line of a snapshot. Loose and crated stock of the same
// item are tracked separately.
type Key struct {
	ItemCode string
	Crated   bool
}

// Snapshot maps item keys to quantities.
type Snapshot map[Key]int

// Add accumulates qty for the given item.
func (s Snapshot) Add(itemCode string, crated bool, qty int) {
	s[Key{ItemCode: itemCode, Crated: crated}] += qty
}

// ItemDelta is the change of one item between two snapshots.
type ItemDelta struct {
	ItemCode         string `json:"itemCode"`
	Crated           bool   `json:"crated"`
	PreviousQuantity int    `json:"previousQuantity"`
	CurrentQuantity  int    `json:"currentQuantity"`
	Change           int    `json:"change"`
}

// Totals summarizes a delta set. Removed is a magnitude.
type Totals struct {
	Added   int `json:"totalAdded"`
	Removed int `json:"totalRemoved"`
	Net     int `json:"netChange"`
}

// Compute returns the non-zero changes from previous to current. A nil
// previous is an empty baseline, so every current item is an addition.
//
// Additions come first; inside each group larger changes come first.
func Compute(current, previous Snapshot) []ItemDelta {
	out := make([]ItemDelta, 0, len(current))
	for k, cur := range current {
		prev := previous[k]
		if cur == prev {
			continue
		}
		out = append(out, ItemDelta{ItemCode: k.ItemCode, Crated: k.Crated, PreviousQuantity: prev, CurrentQuantity: cur, Change: cur - prev})
	}
	for k, prev := range previous {
		if _, ok := current[k]; ok || prev == 0 {
			continue
		}
		out = append(out, ItemDelta{ItemCode: k.ItemCode, Crated: k.Crated, PreviousQuantity: prev, Change: -prev})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Change > 0) != (b.Change > 0) {
			return a.Change > 0
		}
		if abs(a.Change) != abs(b.Change) {
			return abs(a.Change) > abs(b.Change)
		}
		// Map iteration order is random; keep the output deterministic.
		if a.ItemCode != b.ItemCode {
			return a.ItemCode < b.ItemCode
		}
		return !a.Crated && b.Crated
	})
	return out
}

// Summarize totals a delta set.
func Summarize(deltas []ItemDelta) Totals {
	var t Totals
	for _, d := range deltas {
		if d.Change > 0 {
			t.Added += d.Change
		} else {
			t.Removed -= d.Change
		}
	}
	t.Net = t.Added - t.Removed
	return t
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
