package scoring

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/storage"
)

type memStore struct {
	scans    []storage.Scan
	items    map[string][]storage.ScanItem
	contribs []storage.Contribution
	refresh  []storage.Refresh
	names    map[string]string

	scanErr, contribErr, refreshErr error
}

func inScope(createdAt time.Time, war *int, since time.Time, want *int) bool {
	if !since.IsZero() && createdAt.Before(since) {
		return false
	}
	if want != nil && (war == nil || *war != *want) {
		return false
	}
	return true
}

func (m *memStore) FindScans(_ context.Context, _ string, q storage.ScanQuery) ([]storage.Scan, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var out []storage.Scan
	for _, s := range m.scans {
		if q.StockpileID != "" && s.StockpileID != q.StockpileID {
			continue
		}
		if inScope(s.CreatedAt, s.WarNumber, q.Since, q.WarNumber) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Before(out[i]) })
	return out, nil
}

func (m *memStore) FindPreviousScan(_ context.Context, s storage.Scan) (*storage.Scan, error) {
	var best *storage.Scan
	for i := range m.scans {
		c := m.scans[i]
		if c.StockpileID == s.StockpileID && c.Before(s) && (best == nil || best.Before(c)) {
			best = &m.scans[i]
		}
	}
	return best, nil
}

func (m *memStore) FindScanItems(_ context.Context, ids ...string) (map[string][]storage.ScanItem, error) {
	out := map[string][]storage.ScanItem{}
	for _, id := range ids {
		out[id] = m.items[id]
	}
	return out, nil
}

func (m *memStore) FindProductionContributions(_ context.Context, _ string, q storage.EventQuery) ([]storage.Contribution, error) {
	if m.contribErr != nil {
		return nil, m.contribErr
	}
	var out []storage.Contribution
	for _, c := range m.contribs {
		if inScope(c.CreatedAt, c.WarNumber, q.Since, q.WarNumber) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) FindRefreshEvents(_ context.Context, _ string, q storage.EventQuery) ([]storage.Refresh, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	var out []storage.Refresh
	for _, r := range m.refresh {
		if inScope(r.CreatedAt, r.WarNumber, q.Since, q.WarNumber) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) UserNames(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if n, ok := m.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func intp(n int) *int { return &n }

// now is Wednesday 2025-03-05 12:00 UTC; the week started on Sunday 2025-03-02.
var now = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

func (m *memStore) scan(id, stockpile, user string, at time.Time, war *int, lines ...storage.ScanItem) {
	if m.items == nil {
		m.items = map[string][]storage.ScanItem{}
	}
	m.scans = append(m.scans, storage.Scan{ID: id, Seq: int64(len(m.scans) + 1), StockpileID: stockpile, ScannedByUserID: user, CreatedAt: at, WarNumber: war})
	m.items[id] = lines
}

func cloth(qty int) storage.ScanItem { return storage.ScanItem{ItemCode: "Cloth", Quantity: qty} }

func fixture() *memStore {
	m := &memStore{names: map[string]string{"alice": "Alice", "bob": "Bob", "carol": "Carol"}}
	lastWeek := now.AddDate(0, 0, -7)
	m.scan("s1", "L", "alice", lastWeek, intp(120), cloth(100))
	m.scan("s2", "L", "bob", now.Add(-time.Hour), intp(121), cloth(150))
	m.contribs = []storage.Contribution{
		{UserID: "carol", Quantity: 40, WarNumber: intp(121), CreatedAt: now.Add(-2 * time.Hour)},
		{UserID: "alice", Quantity: 5, WarNumber: intp(120), CreatedAt: lastWeek},
	}
	m.refresh = []storage.Refresh{
		{RefreshedByUserID: "bob", WarNumber: intp(121), CreatedAt: now.Add(-time.Hour)},
		{RefreshedByUserID: "dave", WarNumber: intp(120), CreatedAt: lastWeek},
	}
	return m
}

type fixedWar struct {
	n   int
	err error
}

func (f fixedWar) CurrentNumber(context.Context) (int, error) { return f.n, f.err }

func ledger(m *memStore, war WarOracle) *Ledger {
	return &Ledger{Store: m, War: war, Now: func() time.Time { return now }}
}

func points(entries []Entry) map[string]int {
	out := map[string]int{}
	for _, e := range entries {
		out[e.UserID] = e.TotalPoints
	}
	return out
}

func TestLeaderboardAllTime(t *testing.T) {
	b, err := ledger(fixture(), nil).Leaderboard(context.Background(), Request{RegimentID: "r", Window: AllTime})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// alice: 100 (first scan, empty baseline) + 5 produced; bob: 50 + 10; carol: 40; dave: 10
	want := map[string]int{"alice": 105, "bob": 60, "carol": 40, "dave": 10}
	if got := points(b.Entries); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if b.Entries[0].UserID != "alice" || b.Entries[0].Rank != 1 || b.Entries[0].UserName != "Alice" {
		t.Fatalf("unexpected leader: %+v", b.Entries[0])
	}
	if b.Entries[3].UserName != "Unknown" {
		t.Fatalf("expected unknown name for dave, got %q", b.Entries[3].UserName)
	}
}

func TestLeaderboardWeeklyUsesOutOfWindowBaseline(t *testing.T) {
	b, err := ledger(fixture(), nil).Leaderboard(context.Background(), Request{RegimentID: "r", Window: Weekly})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// bob's scan is diffed against alice's scan from last week: +50, not +150.
	want := map[string]int{"bob": 60, "carol": 40}
	if got := points(b.Entries); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if b.Since == nil || !b.Since.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected week start Sunday 2025-03-02, got %v", b.Since)
	}
}

func TestLeaderboardWar(t *testing.T) {
	b, err := ledger(fixture(), fixedWar{n: 121}).Leaderboard(context.Background(), Request{RegimentID: "r", Window: War})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if b.Window != War || b.WarNumber == nil || *b.WarNumber != 121 || b.Degraded {
		t.Fatalf("unexpected scope: %+v", b)
	}
	want := map[string]int{"bob": 60, "carol": 40}
	if got := points(b.Entries); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLeaderboardWarKeepsUnstampedScansInChain(t *testing.T) {
	m := &memStore{}
	m.scan("s1", "L", "alice", now.Add(-3*time.Hour), intp(121), cloth(100))
	m.scan("s2", "L", "bob", now.Add(-2*time.Hour), nil, cloth(40))
	m.scan("s3", "L", "carol", now.Add(-time.Hour), intp(121), cloth(100))

	all, err := ledger(m, nil).Leaderboard(context.Background(), Request{RegimentID: "r", Window: AllTime})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if got, want := points(all.Entries), map[string]int{"alice": 100, "bob": 60, "carol": 60}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	war, err := ledger(m, fixedWar{n: 121}).Leaderboard(context.Background(), Request{RegimentID: "r", Window: War})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// carol's scan is diffed against bob's unstamped scan, bob scores nothing in the war.
	if got, want := points(war.Entries), map[string]int{"alice": 100, "carol": 60}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLeaderboardWarSeedsFromPreviousWar(t *testing.T) {
	m := &memStore{}
	m.scan("s1", "L", "alice", now.AddDate(0, 0, -10), intp(120), cloth(100))
	m.scan("s2", "L", "bob", now.Add(-2*time.Hour), nil, cloth(70))
	m.scan("s3", "L", "carol", now.Add(-time.Hour), intp(121), cloth(90))
	m.scan("s4", "M", "dave", now.Add(-time.Hour), intp(121), cloth(5))

	b, err := ledger(m, fixedWar{n: 121}).Leaderboard(context.Background(), Request{RegimentID: "r", Window: War})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// carol's scan is the first of war 121 and still diffs against bob's scan before it.
	if got, want := points(b.Entries), map[string]int{"carol": 20, "dave": 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLeaderboardWarDegradesToAllTime(t *testing.T) {
	ctx := context.Background()
	all, _ := ledger(fixture(), nil).Leaderboard(ctx, Request{RegimentID: "r", Window: AllTime, UserID: "dave", Limit: 2})

	for _, oracle := range []WarOracle{nil, fixedWar{err: errors.New("unreachable")}} {
		war, err := ledger(fixture(), oracle).Leaderboard(ctx, Request{RegimentID: "r", Window: War, UserID: "dave", Limit: 2})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !war.Degraded || war.Window != AllTime {
			t.Fatalf("expected degraded all-time board, got %+v", war)
		}
		if !reflect.DeepEqual(war.Entries, all.Entries) || !reflect.DeepEqual(war.CurrentUserRank, all.CurrentUserRank) {
			t.Fatalf("expected war board to equal all-time board")
		}
	}
}

func TestLeaderboardCurrentUserRankOnlyWhenHidden(t *testing.T) {
	ctx := context.Background()
	users := []string{"alice", "bob", "carol", "dave", "erin"}
	for _, w := range []Window{AllTime, Weekly, War} {
		for limit := 1; limit <= 5; limit++ {
			for _, u := range users {
				b, err := ledger(fixture(), fixedWar{n: 121}).Leaderboard(ctx, Request{RegimentID: "r", Window: w, Limit: limit, UserID: u})
				if err != nil {
					t.Fatalf("leaderboard: %v", err)
				}
				shown := false
				for _, e := range b.Entries {
					if e.UserID == u {
						shown = true
					}
				}
				if shown == (b.CurrentUserRank != nil) {
					t.Fatalf("%s/limit %d/%s: shown=%v but currentUserRank=%+v", w, limit, u, shown, b.CurrentUserRank)
				}
			}
		}
	}
}

func TestLeaderboardCurrentUserRankIsExact(t *testing.T) {
	b, _ := ledger(fixture(), nil).Leaderboard(context.Background(), Request{RegimentID: "r", Window: AllTime, Limit: 1, UserID: "carol"})
	if len(b.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(b.Entries))
	}
	if b.CurrentUserRank == nil || b.CurrentUserRank.Rank != 3 || b.CurrentUserRank.TotalPoints != 40 || b.CurrentUserRank.UserName != "Carol" {
		t.Fatalf("expected carol at rank 3 with 40 points, got %+v", b.CurrentUserRank)
	}

	b, _ = ledger(fixture(), nil).Leaderboard(context.Background(), Request{RegimentID: "r", Window: AllTime, UserID: "erin"})
	if b.CurrentUserRank == nil || b.CurrentUserRank.Rank != 5 || b.CurrentUserRank.TotalPoints != 0 {
		t.Fatalf("expected erin ranked after everyone with 0 points, got %+v", b.CurrentUserRank)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	b, err := ledger(&memStore{}, nil).Leaderboard(context.Background(), Request{RegimentID: "r", UserID: "alice"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if b.Entries == nil || len(b.Entries) != 0 || b.CurrentUserRank != nil {
		t.Fatalf("expected empty entries and nil rank, got %+v", b)
	}
}

func TestLeaderboardTiesKeepFirstSeenOrder(t *testing.T) {
	m := &memStore{}
	m.refresh = []storage.Refresh{
		{RefreshedByUserID: "zed", CreatedAt: now},
		{RefreshedByUserID: "amy", CreatedAt: now},
	}
	b, _ := ledger(m, nil).Leaderboard(context.Background(), Request{RegimentID: "r"})
	if b.Entries[0].UserID != "zed" || b.Entries[1].UserID != "amy" || b.Entries[1].Rank != 2 {
		t.Fatalf("expected stable order zed, amy; got %+v", b.Entries)
	}
}

func TestLeaderboardStreamFailureIsIsolated(t *testing.T) {
	m := fixture()
	m.contribErr = fmt.Errorf("production table locked")
	b, err := ledger(m, nil).Leaderboard(context.Background(), Request{RegimentID: "r"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(b.Unavailable, []string{StreamProduction}) {
		t.Fatalf("expected production stream unavailable, got %v", b.Unavailable)
	}
	want := map[string]int{"alice": 100, "bob": 60, "dave": 10}
	if got := points(b.Entries); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLeaderboardMixedChangeScoresMagnitude(t *testing.T) {
	m := &memStore{}
	m.scan("a", "L", "u1", now.Add(-2*time.Hour), nil, storage.ScanItem{ItemCode: "RifleC", Crated: true, Quantity: 50})
	m.scan("b", "L", "u2", now.Add(-time.Hour), nil, storage.ScanItem{ItemCode: "RifleC", Crated: true, Quantity: 20})
	b, _ := ledger(m, nil).Leaderboard(context.Background(), Request{RegimentID: "r"})
	if got := points(b.Entries)["u2"]; got != 30 {
		t.Fatalf("expected 30 points for removal, got %d", got)
	}
}

func TestStartOfWeek(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	cases := []struct{ in, want time.Time }{
		{time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 8, 23, 59, 0, 0, loc), time.Date(2025, 3, 2, 0, 0, 0, 0, loc)},
	}
	for _, c := range cases {
		if got := StartOfWeek(c.in); !got.Equal(c.want) {
			t.Fatalf("StartOfWeek(%v): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]Window{"": AllTime, "ALL_TIME": AllTime, "weekly": Weekly, " War ": War} {
		if got, ok := ParseWindow(in); !ok || got != want {
			t.Fatalf("ParseWindow(%q): expected %s, got %s", in, want, got)
		}
	}
	if _, ok := ParseWindow("monthly"); ok {
		t.Fatalf("expected monthly to be rejected")
	}
}
