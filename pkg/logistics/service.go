// Package logistics is the entry point used by the CLI and the HTTP API. It
// validates input, resolves the current war and runs the reconciliation,
// scoring, aggregation and deficit engines over the snapshot store.
package logistics

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/regiment-logi/quartermaster/pkg/history"
	"github.com/regiment-logi/quartermaster/pkg/scoring"
	"github.com/regiment-logi/quartermaster/pkg/storage"
	"github.com/regiment-logi/quartermaster/pkg/warapi"
)

type Logger = history.Logger

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Store is the snapshot store. *storage.DB implements it.
type Store interface {
	scoring.Store

	CreateStockpile(ctx context.Context, s *storage.Stockpile) error
	GetStockpile(ctx context.Context, regimentID, id string) (*storage.Stockpile, error)
	ListStockpiles(ctx context.Context, regimentID, hexFilter string) ([]storage.Stockpile, error)
	DeleteStockpile(ctx context.Context, regimentID, id string) error

	FindCurrentItems(ctx context.Context, regimentID, stockpileID string) ([]storage.ItemRow, error)
	ReplaceCurrentItems(ctx context.Context, in storage.ScanInput) (storage.Scan, error)
	RecordRefresh(ctx context.Context, regimentID, stockpileID, userID string, warNumber *int) (*storage.Refresh, error)

	CreateProductionOrder(ctx context.Context, o *storage.ProductionOrder) error
	GetProductionOrder(ctx context.Context, regimentID, id string) (*storage.ProductionOrder, error)
	ListProductionOrders(ctx context.Context, regimentID string, q storage.OrderQuery) ([]storage.ProductionOrder, error)
	ApplyProductionProgress(ctx context.Context, regimentID, orderID, userID string, warNumber *int, updates []storage.ProgressUpdate) (*storage.ProductionOrder, []storage.Contribution, error)

	CreateOperation(ctx context.Context, op *storage.Operation) error
	GetOperation(ctx context.Context, regimentID, id string) (*storage.Operation, error)
	ListOperations(ctx context.Context, regimentID string, q storage.OperationQuery) ([]storage.Operation, error)

	UpsertUser(ctx context.Context, id, name string) error
	GetStats(ctx context.Context, regimentID string) (*storage.RegimentStats, error)
}

// WarSource is the cached war oracle. *warapi.Cache implements it.
type WarSource interface {
	Current(ctx context.Context) (warapi.War, error)
	CurrentNumber(ctx context.Context) (int, error)
	Invalidate()
}

type Service struct {
	store    Store
	war      WarSource
	log      Logger
	validate *validator.Validate
	now      func() time.Time

	// Concurrency bounds the per-stockpile history workers.
	Concurrency int
}

// New returns a service over store. war may be nil, in which case war
// scoped reads fall back to all time and new records carry no war number.
func New(store Store, war WarSource, log Logger) *Service {
	if log == nil {
		log = nopLogger{}
	}
	return &Service{
		store:    store,
		war:      war,
		log:      log,
		validate: validator.New(),
		now:      time.Now,
	}
}

// warOracle returns war as a scoring.WarOracle, keeping a nil interface nil.
func (s *Service) warOracle() scoring.WarOracle {
	if s.war == nil {
		return nil
	}
	return s.war
}

// currentWarNumber stamps new records. Failures only cost the stamp.
func (s *Service) currentWarNumber(ctx context.Context) *int {
	if s.war == nil {
		return nil
	}
	n, err := s.war.CurrentNumber(ctx)
	if err != nil {
		s.log.Warnf("Recording without war number: %v", err)
		return nil
	}
	return &n
}

// warFilter resolves the war filter of a list view: empty for every war,
// "current" for the running war or an explicit war number. When the war
// service is unreachable the current war filter is dropped.
func (s *Service) warFilter(ctx context.Context, war string) (*int, error) {
	switch war {
	case "":
		return nil, nil
	case "current":
		if s.war == nil {
			return nil, nil
		}
		n, err := s.war.CurrentNumber(ctx)
		if err != nil {
			s.log.Warnf("Listing every war, current war unknown: %v", err)
			return nil, nil
		}
		return &n, nil
	}
	n, err := strconv.Atoi(war)
	if err != nil || n <= 0 {
		return nil, invalid("war", "war")
	}
	return &n, nil
}

// War returns the current war, possibly from cache.
func (s *Service) War(ctx context.Context) (warapi.War, error) {
	if s.war == nil {
		return warapi.War{}, warapi.ErrUnavailable
	}
	return s.war.Current(ctx)
}

// InvalidateWar forgets the cached war, e.g. after a war transition.
func (s *Service) InvalidateWar() {
	if s.war != nil {
		s.war.Invalidate()
		s.log.Infof("War cache invalidated")
	}
}

// Leaderboard ranks the regiment's contributors.
func (s *Service) Leaderboard(ctx context.Context, req scoring.Request) (*scoring.Leaderboard, error) {
	l := &scoring.Ledger{Store: s.store, War: s.warOracle(), Log: s.log, Concurrency: s.Concurrency, Now: s.now}
	return l.Leaderboard(ctx, req)
}

// Stats returns the regiment's dashboard counters.
func (s *Service) Stats(ctx context.Context, regimentID string) (*storage.RegimentStats, error) {
	return s.store.GetStats(ctx, regimentID)
}
