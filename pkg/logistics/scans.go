package logistics

import (
	"context"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/history"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

type ScanLine struct {
	ItemCode   string   `json:"itemCode" validate:"required"`
	Quantity   int      `json:"quantity" validate:"min=0"`
	Crated     bool     `json:"crated"`
	Confidence *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
}

// ScanRequest is a recognized stockpile screenshot.
type ScanRequest struct {
	UserID   string     `json:"userId" validate:"required"`
	UserName string     `json:"userName"`
	Items    []ScanLine `json:"items" validate:"dive"`
}

// IngestScan records a scan and makes it the stockpile's current inventory.
// The returned diff is against the stockpile's previous scan.
func (s *Service) IngestScan(ctx context.Context, regimentID, stockpileID string, req ScanRequest) (*history.ScanWithDiff, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetStockpile(ctx, regimentID, stockpileID); err != nil {
		return nil, err
	}
	if req.UserName != "" {
		if err := s.store.UpsertUser(ctx, req.UserID, req.UserName); err != nil {
			return nil, err
		}
	}

	in := storage.ScanInput{
		StockpileID:     stockpileID,
		ScannedByUserID: req.UserID,
		WarNumber:       s.currentWarNumber(ctx),
		CreatedAt:       s.now(),
		Items:           make([]storage.ScanItem, 0, len(req.Items)),
	}
	for _, l := range req.Items {
		in.Items = append(in.Items, storage.ScanItem{ItemCode: l.ItemCode, Quantity: l.Quantity, Crated: l.Crated, Confidence: l.Confidence})
	}
	scan, err := s.store.ReplaceCurrentItems(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Stored scan %s of stockpile %s with %d items", scan.ID, stockpileID, scan.ItemCount)

	out, err := s.reconciler().Reconcile(ctx, []storage.Scan{scan})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

type HistoryQuery struct {
	StockpileID string
	Since       time.Time
	Limit       int
	Offset      int
}

// ScanHistory returns a page of the stockpile's scans, newest first, each
// with its changes against the scan before it.
func (s *Service) ScanHistory(ctx context.Context, regimentID string, q HistoryQuery) ([]history.ScanWithDiff, error) {
	if q.StockpileID != "" {
		if _, err := s.store.GetStockpile(ctx, regimentID, q.StockpileID); err != nil {
			return nil, err
		}
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	scans, err := s.store.FindScans(ctx, regimentID, storage.ScanQuery{StockpileID: q.StockpileID, Since: q.Since, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, err
	}
	return s.reconciler().Reconcile(ctx, scans)
}

func (s *Service) reconciler() *history.Reconciler {
	return &history.Reconciler{Source: s.store, Concurrency: s.Concurrency, Log: s.log}
}
