// Package inventory aggregates current stockpile rows into per-item totals.
package inventory

import (
	"sort"
	"strings"

	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// Filter narrows an aggregation. Nil fields are not applied.
type Filter struct {
	Search      *string
	Category    *items.Category
	StockpileID *string
	Limit       int
}

type Item struct {
	ItemCode       string  `json:"itemCode"`
	DisplayName    string  `json:"displayName"`
	TotalQuantity  int     `json:"totalQuantity"`
	CratedQuantity int     `json:"cratedQuantity"`
	LooseQuantity  int     `json:"looseQuantity"`
	LocationCount  int     `json:"locationCount"`
	MatchedTag     *string `json:"matchedTag"`
}

type Result struct {
	Items            []Item `json:"items"`
	TotalUniqueItems int    `json:"totalUniqueItems"`
}

type group struct {
	item      Item
	locations map[string]struct{}
}

// Aggregate groups rows by item code and applies f. The limit is applied
// after filtering and sorting. TotalUniqueItems counts the distinct items of
// the whole row set, before any filter other than the stockpile scope.
func Aggregate(rows []storage.ItemRow, f Filter) Result {
	var order []string
	groups := map[string]*group{}
	for _, r := range rows {
		if f.StockpileID != nil && r.StockpileID != *f.StockpileID {
			continue
		}
		g, ok := groups[r.ItemCode]
		if !ok {
			g = &group{
				item:      Item{ItemCode: r.ItemCode, DisplayName: items.DisplayName(r.ItemCode)},
				locations: map[string]struct{}{},
			}
			groups[r.ItemCode] = g
			order = append(order, r.ItemCode)
		}
		if r.Crated {
			g.item.CratedQuantity += r.Quantity
		} else {
			g.item.LooseQuantity += r.Quantity
		}
		g.item.TotalQuantity += r.Quantity
		if r.Quantity != 0 {
			g.locations[r.StockpileID] = struct{}{}
		}
	}

	m := newMatcher(f.Search)
	out := make([]Item, 0, len(order))
	for _, code := range order {
		g := groups[code]
		if f.Category != nil && !items.InCategory(code, *f.Category) {
			continue
		}
		it := g.item
		it.LocationCount = len(g.locations)
		if m != nil {
			ok, tag := m.match(it)
			if !ok {
				continue
			}
			it.MatchedTag = tag
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalQuantity > out[j].TotalQuantity })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return Result{Items: out, TotalUniqueItems: len(order)}
}

type matcher struct {
	term   string
	tag    string
	tagged map[string]struct{}
}

func newMatcher(search *string) *matcher {
	if search == nil || strings.TrimSpace(*search) == "" {
		return nil
	}
	term := strings.TrimSpace(*search)
	m := &matcher{term: strings.ToLower(term), tag: strings.ToUpper(term), tagged: map[string]struct{}{}}
	for _, c := range items.TagToCodes(term) {
		m.tagged[c] = struct{}{}
	}
	return m
}

func (m *matcher) match(it Item) (bool, *string) {
	if _, ok := m.tagged[it.ItemCode]; ok {
		tag := m.tag
		return true, &tag
	}
	if strings.Contains(strings.ToLower(it.DisplayName), m.term) || strings.Contains(strings.ToLower(it.ItemCode), m.term) {
		return true, nil
	}
	return false, nil
}

// Totals sums quantities per item code, loose and crated together.
func Totals(rows []storage.ItemRow) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[r.ItemCode] += r.Quantity
	}
	return out
}
