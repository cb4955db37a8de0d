// Package scoring folds scans, production and refreshes into per-user
// points and ranks contributors.
package scoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/history"
	"github.com/regiment-logi/quartermaster/pkg/storage"
)

// RefreshPoints is the value of one stockpile refresh.
const RefreshPoints = 10

const (
	defaultLimit = 10
	unknownUser  = "Unknown"
)

type Logger = history.Logger

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Store is the part of the snapshot store the ledger reads.
type Store interface {
	history.Source
	FindScans(ctx context.Context, regimentID string, q storage.ScanQuery) ([]storage.Scan, error)
	FindProductionContributions(ctx context.Context, regimentID string, q storage.EventQuery) ([]storage.Contribution, error)
	FindRefreshEvents(ctx context.Context, regimentID string, q storage.EventQuery) ([]storage.Refresh, error)
	UserNames(ctx context.Context, ids []string) (map[string]string, error)
}

type Ledger struct {
	Store       Store
	War         WarOracle // optional; war windows degrade without it
	Log         Logger    // optional
	Concurrency int       // passed to the history reconciler
	Now         func() time.Time
}

type Request struct {
	RegimentID string
	Window     Window
	Limit      int    // defaults to 10 if <= 0
	UserID     string // optional; requesting user
}

type Entry struct {
	Rank              int    `json:"rank"`
	UserID            string `json:"userId"`
	UserName          string `json:"userName"`
	ScanPoints        int    `json:"scanPoints"`
	ProductionPoints  int    `json:"productionPoints"`
	RefreshPoints     int    `json:"refreshPoints"`
	TotalPoints       int    `json:"totalPoints"`
	ScanCount         int    `json:"scanCount"`
	ContributionCount int    `json:"contributionCount"`
	RefreshCount      int    `json:"refreshCount"`
}

type Leaderboard struct {
	Window          Window     `json:"period"`
	WarNumber       *int       `json:"warNumber,omitempty"`
	Since           *time.Time `json:"since,omitempty"`
	Degraded        bool       `json:"degraded"`
	Unavailable     []string   `json:"unavailable,omitempty"`
	Entries         []Entry    `json:"entries"`
	CurrentUserRank *Entry     `json:"currentUserRank"`
}

// Stream names reported in Leaderboard.Unavailable.
const (
	StreamScans      = "scans"
	StreamProduction = "production"
	StreamRefreshes  = "refreshes"
)

type tally struct {
	order  []string
	byUser map[string]*Entry
}

func (t *tally) get(userID string) *Entry {
	e, ok := t.byUser[userID]
	if !ok {
		e = &Entry{UserID: userID}
		t.byUser[userID] = e
		t.order = append(t.order, userID)
	}
	return e
}

// Leaderboard ranks the regiment's contributors over req.Window.
//
// The three point streams are read independently. A stream whose store
// query fails is left out and named in Unavailable instead of failing the
// request.
func (l *Ledger) Leaderboard(ctx context.Context, req Request) (*Leaderboard, error) {
	log := l.Log
	if log == nil {
		log = nopLogger{}
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	scope := Resolve(ctx, req.Window, now(), l.War, log)
	board := &Leaderboard{Window: scope.Window, WarNumber: scope.WarNumber, Degraded: scope.Degraded, Entries: []Entry{}}
	if !scope.Since.IsZero() {
		since := scope.Since
		board.Since = &since
	}

	var (
		scans    []history.ScanWithDiff
		contribs []storage.Contribution
		refresh  []storage.Refresh
		errs     = map[string]error{}
		mu       sync.Mutex
		wg       sync.WaitGroup
	)
	fail := func(stream string, err error) {
		mu.Lock()
		errs[stream] = err
		mu.Unlock()
	}
	events := storage.EventQuery{Since: scope.Since, WarNumber: scope.WarNumber}

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if scans, err = l.scanStream(ctx, req.RegimentID, scope, log); err != nil {
			fail(StreamScans, err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if contribs, err = l.Store.FindProductionContributions(ctx, req.RegimentID, events); err != nil {
			fail(StreamProduction, err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if refresh, err = l.Store.FindRefreshEvents(ctx, req.RegimentID, events); err != nil {
			fail(StreamRefreshes, err)
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, stream := range []string{StreamScans, StreamProduction, StreamRefreshes} {
		if err, ok := errs[stream]; ok {
			log.Warnf("Leaderboard for %s: %s stream unavailable: %v", req.RegimentID, stream, err)
			board.Unavailable = append(board.Unavailable, stream)
		}
	}

	t := &tally{byUser: map[string]*Entry{}}
	for _, s := range scans {
		e := t.get(s.ScannedByUserID)
		e.ScanCount++
		if s.DiffAvailable {
			e.ScanPoints += s.TotalAdded + s.TotalRemoved
		}
	}
	for _, c := range contribs {
		e := t.get(c.UserID)
		e.ContributionCount++
		e.ProductionPoints += c.Quantity
	}
	for _, r := range refresh {
		e := t.get(r.RefreshedByUserID)
		e.RefreshCount++
		e.RefreshPoints += RefreshPoints
	}

	ranked := rank(t)
	if len(ranked) == 0 {
		return board, nil
	}
	names := l.userNames(ctx, ranked, req.UserID, log)
	for i := range ranked {
		ranked[i].UserName = displayName(names, ranked[i].UserID)
	}

	if len(ranked) > limit {
		board.Entries = ranked[:limit]
	} else {
		board.Entries = ranked
	}
	board.CurrentUserRank = currentUserRank(ranked, board.Entries, req.UserID)
	if board.CurrentUserRank != nil {
		board.CurrentUserRank.UserName = displayName(names, req.UserID)
	}
	return board, nil
}

// scanStream reconciles the window's scans. The reconciler looks up the scan
// right before each stockpile's first in-window scan, so that scan is diffed
// against its real predecessor rather than an empty baseline.
//
// A war window reconciles every scan of a stockpile from its first in-war scan
// on, stamped or not, and keeps only the war's scans afterwards. Scans stored
// while the war service was down carry no war number but still sit between
// two in-war scans.
func (l *Ledger) scanStream(ctx context.Context, regimentID string, scope Scope, log Logger) ([]history.ScanWithDiff, error) {
	scans, err := l.Store.FindScans(ctx, regimentID, storage.ScanQuery{Since: scope.Since, WarNumber: scope.WarNumber})
	if err != nil {
		return nil, err
	}
	if scope.WarNumber != nil {
		if scans, err = l.warChains(ctx, regimentID, scans); err != nil {
			return nil, err
		}
	}
	r := &history.Reconciler{Source: l.Store, Concurrency: l.Concurrency, Log: log}
	out, err := r.Reconcile(ctx, scans)
	if err != nil || scope.WarNumber == nil {
		return out, err
	}
	kept := out[:0]
	for _, s := range out {
		if s.WarNumber != nil && *s.WarNumber == *scope.WarNumber {
			kept = append(kept, s)
		}
	}
	// Newest first across stockpiles, as FindScans returns them.
	sort.SliceStable(kept, func(i, j int) bool { return kept[j].Before(kept[i].Scan) })
	return kept, nil
}

// warChains widens the war's scans to the full history of their stockpiles,
// starting at each stockpile's earliest in-war scan.
func (l *Ledger) warChains(ctx context.Context, regimentID string, scans []storage.Scan) ([]storage.Scan, error) {
	first := map[string]time.Time{}
	var order []string
	for _, s := range scans {
		t, ok := first[s.StockpileID]
		if !ok {
			order = append(order, s.StockpileID)
		}
		if !ok || s.CreatedAt.Before(t) {
			first[s.StockpileID] = s.CreatedAt
		}
	}
	var out []storage.Scan
	for _, id := range order {
		chain, err := l.Store.FindScans(ctx, regimentID, storage.ScanQuery{StockpileID: id, Since: first[id]})
		if err != nil {
			return nil, err
		}
		out = append(out, chain...)
	}
	return out, nil
}

// rank drops users without points and orders the rest by total, keeping
// first-seen order between equal totals.
func rank(t *tally) []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		e := t.byUser[id]
		e.TotalPoints = e.ScanPoints + e.ProductionPoints + e.RefreshPoints
		if e.TotalPoints > 0 {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func currentUserRank(ranked, shown []Entry, userID string) *Entry {
	if userID == "" {
		return nil
	}
	for _, e := range shown {
		if e.UserID == userID {
			return nil
		}
	}
	for _, e := range ranked[len(shown):] {
		if e.UserID == userID {
			e := e
			return &e
		}
	}
	// No points in this window: ranked after everyone who has some.
	return &Entry{Rank: len(ranked) + 1, UserID: userID}
}

func (l *Ledger) userNames(ctx context.Context, ranked []Entry, userID string, log Logger) map[string]string {
	ids := make([]string, 0, len(ranked)+1)
	for _, e := range ranked {
		ids = append(ids, e.UserID)
	}
	if userID != "" {
		ids = append(ids, userID)
	}
	names, err := l.Store.UserNames(ctx, ids)
	if err != nil {
		log.Warnf("Could not resolve user names: %v", err)
	}
	return names
}

func displayName(names map[string]string, userID string) string {
	if n := names[userID]; n != "" {
		return n
	}
	return unknownUser
}
