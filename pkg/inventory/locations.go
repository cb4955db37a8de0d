package inventory

import (
	"sort"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/items"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// Location is one stockpile's holding of an item.
type Location struct {
	StockpileID    string                `json:"id"`
	Name           string                `json:"name"`
	Type           storage.StockpileType `json:"type"`
	Hex            string                `json:"hex"`
	LocationName   string                `json:"locationName"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	LooseQuantity  int                   `json:"looseQuantity"`
	CratedQuantity int                   `json:"cratedQuantity"`
	TotalQuantity  int                   `json:"totalQuantity"`
}

type ItemLocations struct {
	ItemCode       string     `json:"itemCode"`
	DisplayName    string     `json:"displayName"`
	TotalQuantity  int        `json:"totalQuantity"`
	CratedQuantity int        `json:"cratedQuantity"`
	LooseQuantity  int        `json:"looseQuantity"`
	Stockpiles     []Location `json:"stockpiles"`
}

// Locations breaks one item down by stockpile, largest holding first.
// Rows of stockpiles missing from stockpiles are ignored.
func Locations(itemCode string, rows []storage.ItemRow, stockpiles []storage.Stockpile) ItemLocations {
	byID := make(map[string]storage.Stockpile, len(stockpiles))
	for _, s := range stockpiles {
		byID[s.ID] = s
	}

	res := ItemLocations{ItemCode: itemCode, DisplayName: items.DisplayName(itemCode), Stockpiles: []Location{}}
	index := map[string]int{}
	for _, r := range rows {
		if r.ItemCode != itemCode {
			continue
		}
		s, ok := byID[r.StockpileID]
		if !ok {
			continue
		}
		i, seen := index[s.ID]
		if !seen {
			i = len(res.Stockpiles)
			index[s.ID] = i
			res.Stockpiles = append(res.Stockpiles, Location{
				StockpileID:  s.ID,
				Name:         s.Name,
				Type:         s.Type,
				Hex:          s.Hex,
				LocationName: s.LocationName,
				UpdatedAt:    s.UpdatedAt,
			})
		}
		loc := &res.Stockpiles[i]
		if r.Crated {
			loc.CratedQuantity += r.Quantity
			res.CratedQuantity += r.Quantity
		} else {
			loc.LooseQuantity += r.Quantity
			res.LooseQuantity += r.Quantity
		}
		loc.TotalQuantity += r.Quantity
		res.TotalQuantity += r.Quantity
	}
	sort.SliceStable(res.Stockpiles, func(i, j int) bool {
		return res.Stockpiles[i].TotalQuantity > res.Stockpiles[j].TotalQuantity
	})
	return res
}
