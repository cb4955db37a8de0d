// Package deficit compares declared requirements with available stock.
package deficit

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/regiment-logi/quartermaster/pkg/items"
)

// Requirement is a needed quantity of one item. Priority runs from 0 (low) to 3 (critical).
type Requirement struct {
	ItemCode string `json:"itemCode" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=0"`
	Priority int    `json:"priority" validate:"min=0,max=3"`
}

type Status string

const (
	Fulfilled Status = "fulfilled"
	Partial   Status = "partial"
	Critical  Status = "critical"
)

// Row is the evaluation of one requirement. Available is the full stock, it
// is not capped at the required quantity.
type Row struct {
	ItemCode           string `json:"itemCode"`
	DisplayName        string `json:"displayName"`
	Required           int    `json:"required"`
	Available          int    `json:"available"`
	Deficit            int    `json:"deficit"`
	Fulfilled          bool   `json:"fulfilled"`
	FulfillmentPercent int    `json:"fulfillmentPercent"`
	Status             Status `json:"status"`
	Priority           int    `json:"priority"`
	PriorityLabel      string `json:"priorityLabel"`
}

type Summary struct {
	TotalRequired      int `json:"totalRequired"`
	TotalAvailable     int `json:"totalAvailable"`
	TotalDeficit       int `json:"totalDeficit"`
	FulfillmentPercent int `json:"fulfillmentPercent"`
	FulfilledCount     int `json:"fulfilledCount"`
	PartialCount       int `json:"partialCount"`
	CriticalCount      int `json:"criticalCount"`
}

type Result struct {
	Items   []Row   `json:"items"`
	Summary Summary `json:"summary"`
}

// Compute evaluates reqs against available stock keyed by item code.
// Rows are ordered by priority, then by deficit, both descending.
//
// The summary counts at most the required quantity of each item as
// available, so the overall percentage never exceeds 100.
func Compute(reqs []Requirement, available map[string]int) Result {
	res := Result{Items: make([]Row, 0, len(reqs))}
	for _, r := range reqs {
		avail := available[r.ItemCode]
		row := Row{
			ItemCode:      r.ItemCode,
			DisplayName:   items.DisplayName(r.ItemCode),
			Required:      r.Quantity,
			Available:     avail,
			Deficit:       max(0, r.Quantity-avail),
			Priority:      r.Priority,
			PriorityLabel: items.PriorityLabel(r.Priority),
		}
		row.Fulfilled = row.Deficit == 0
		row.FulfillmentPercent = min(100, Percent(avail, r.Quantity))
		row.Status = statusOf(row)

		res.Summary.TotalRequired += r.Quantity
		res.Summary.TotalAvailable += max(0, min(avail, r.Quantity))
		res.Summary.TotalDeficit += row.Deficit
		switch row.Status {
		case Fulfilled:
			res.Summary.FulfilledCount++
		case Partial:
			res.Summary.PartialCount++
		default:
			res.Summary.CriticalCount++
		}
		res.Items = append(res.Items, row)
	}
	res.Summary.FulfillmentPercent = Percent(res.Summary.TotalAvailable, res.Summary.TotalRequired)

	sort.SliceStable(res.Items, func(i, j int) bool {
		a, b := res.Items[i], res.Items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Deficit > b.Deficit
	})
	return res
}

func statusOf(r Row) Status {
	switch {
	case r.Fulfilled:
		return Fulfilled
	case r.FulfillmentPercent >= 50:
		return Partial
	}
	return Critical
}

// Percent returns round(100 * part / whole) using half-to-even rounding,
// and 100 when whole is zero.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 100
	}
	p := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 8).
		RoundBank(0)
	return int(p.IntPart())
}
