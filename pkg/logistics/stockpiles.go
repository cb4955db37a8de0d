package logistics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// StockpileLifetime is how long a stockpile survives without a refresh.
const StockpileLifetime = 50 * time.Hour

const (
	defaultListLimit = 20
	recentScans      = 5
)

type FreshnessStatus string

const (
	Fresh        FreshnessStatus = "fresh"
	Aging        FreshnessStatus = "aging"
	ExpiringSoon FreshnessStatus = "expiring_soon"
	Expired      FreshnessStatus = "expired"
	Unknown      FreshnessStatus = "unknown"
)

type Freshness struct {
	Status           FreshnessStatus `json:"freshnessStatus"`
	HoursUntilExpiry *float64        `json:"hoursUntilExpiry"`
	ExpiresAt        *time.Time      `json:"expiresAt"`
}

// FreshnessAt evaluates the refresh countdown at now.
func FreshnessAt(lastRefreshed *time.Time, now time.Time) Freshness {
	if lastRefreshed == nil {
		return Freshness{Status: Unknown}
	}
	expires := lastRefreshed.Add(StockpileLifetime)
	left := math.Max(0, expires.Sub(now).Hours())
	rounded := math.Round(left*10) / 10
	f := Freshness{HoursUntilExpiry: &rounded, ExpiresAt: &expires}
	switch {
	case left > 24:
		f.Status = Fresh
	case left > 6:
		f.Status = Aging
	case left > 0:
		f.Status = ExpiringSoon
	default:
		f.Status = Expired
	}
	return f
}

type StockpileView struct {
	storage.Stockpile
	Freshness
}

type StockpileRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Type         string `json:"type" validate:"required,oneof=SEAPORT STORAGE_DEPOT"`
	Hex          string `json:"hex" validate:"required"`
	LocationName string `json:"locationName"`
}

func (s *Service) CreateStockpile(ctx context.Context, regimentID string, req StockpileRequest) (*StockpileView, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	sp := &storage.Stockpile{
		RegimentID:   regimentID,
		Name:         req.Name,
		Type:         storage.StockpileType(req.Type),
		Hex:          req.Hex,
		LocationName: req.LocationName,
	}
	if err := s.store.CreateStockpile(ctx, sp); err != nil {
		return nil, err
	}
	s.log.Infof("Created stockpile %s - %s in regiment %s", sp.Hex, sp.Name, regimentID)
	return s.view(*sp), nil
}

func (s *Service) Stockpile(ctx context.Context, regimentID, id string) (*StockpileView, error) {
	sp, err := s.store.GetStockpile(ctx, regimentID, id)
	if err != nil {
		return nil, err
	}
	return s.view(*sp), nil
}

// StockpileDetail is a stockpile with its current items, largest first, and
// its latest scans.
type StockpileDetail struct {
	StockpileView
	Items         []storage.ItemRow `json:"items"`
	TotalQuantity int               `json:"totalQuantity"`
	RecentScans   []storage.Scan    `json:"recentScans"`
}

func (s *Service) StockpileDetail(ctx context.Context, regimentID, id string) (*StockpileDetail, error) {
	view, err := s.Stockpile(ctx, regimentID, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.FindCurrentItems(ctx, regimentID, id)
	if err != nil {
		return nil, err
	}
	scans, err := s.store.FindScans(ctx, regimentID, storage.ScanQuery{StockpileID: id, Limit: recentScans})
	if err != nil {
		return nil, err
	}
	d := &StockpileDetail{StockpileView: *view, Items: rows, RecentScans: scans}
	if d.Items == nil {
		d.Items = []storage.ItemRow{}
	}
	if d.RecentScans == nil {
		d.RecentScans = []storage.Scan{}
	}
	sort.SliceStable(d.Items, func(i, j int) bool { return d.Items[i].Quantity > d.Items[j].Quantity })
	for _, r := range d.Items {
		d.TotalQuantity += r.Quantity
	}
	return d, nil
}

// Stockpiles lists the regiment's stockpiles with their refresh countdown.
func (s *Service) Stockpiles(ctx context.Context, regimentID, hexFilter string) ([]StockpileView, error) {
	list, err := s.store.ListStockpiles(ctx, regimentID, hexFilter)
	if err != nil {
		return nil, err
	}
	out := make([]StockpileView, 0, len(list))
	for _, sp := range list {
		out = append(out, *s.view(sp))
	}
	return out, nil
}

func (s *Service) DeleteStockpile(ctx context.Context, regimentID, id string) error {
	if err := s.store.DeleteStockpile(ctx, regimentID, id); err != nil {
		return err
	}
	s.log.Infof("Deleted stockpile %s in regiment %s", id, regimentID)
	return nil
}

// RefreshStockpile resets the stockpile's expiry countdown and records the
// refresh for the leaderboard.
func (s *Service) RefreshStockpile(ctx context.Context, regimentID, stockpileID, userID string) (*storage.Refresh, *StockpileView, error) {
	if userID == "" {
		return nil, nil, invalid("userId", "required")
	}
	ref, err := s.store.RecordRefresh(ctx, regimentID, stockpileID, userID, s.currentWarNumber(ctx))
	if err != nil {
		return nil, nil, err
	}
	view, err := s.Stockpile(ctx, regimentID, stockpileID)
	if err != nil {
		return nil, nil, err
	}
	return ref, view, nil
}

func (s *Service) view(sp storage.Stockpile) *StockpileView {
	return &StockpileView{Stockpile: sp, Freshness: FreshnessAt(sp.LastRefreshedAt, s.now())}
}
