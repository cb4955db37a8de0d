package logistics

import (
	"context"

	"github.com/regiment-logi/quartermaster/pkg/inventory"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// Inventory aggregates the regiment's current items.
func (s *Service) Inventory(ctx context.Context, regimentID string, f inventory.Filter) (*inventory.Result, error) {
	scope := ""
	if f.StockpileID != nil {
		if _, err := s.store.GetStockpile(ctx, regimentID, *f.StockpileID); err != nil {
			return nil, err
		}
		scope = *f.StockpileID
	}
	rows, err := s.store.FindCurrentItems(ctx, regimentID, scope)
	if err != nil {
		return nil, err
	}
	res := inventory.Aggregate(rows, f)
	return &res, nil
}

// ItemLocations shows where the regiment keeps an item.
func (s *Service) ItemLocations(ctx context.Context, regimentID, itemCode string) (*inventory.ItemLocations, error) {
	itemCode = storage.NormalizeItemCode(itemCode)
	if itemCode == "" {
		return nil, invalid("itemCode", "required")
	}
	rows, err := s.store.FindCurrentItems(ctx, regimentID, "")
	if err != nil {
		return nil, err
	}
	stockpiles, err := s.store.ListStockpiles(ctx, regimentID, "")
	if err != nil {
		return nil, err
	}
	res := inventory.Locations(itemCode, rows, stockpiles)
	return &res, nil
}

// available sums current stock per item code, over one stockpile when
// stockpileID is set and over the whole regiment otherwise.
func (s *Service) available(ctx context.Context, regimentID, stockpileID string) (map[string]int, error) {
	rows, err := s.store.FindCurrentItems(ctx, regimentID, stockpileID)
	if err != nil {
		return nil, err
	}
	return inventory.Totals(rows), nil
}
