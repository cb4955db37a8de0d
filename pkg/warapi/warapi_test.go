package warapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/regiment-logi/quartermaster/pkg/whttp"
)

const warDoc = `{"warId":"abc","warNumber":121,"winner":"NONE","conquestStartTime":1735689600000,"conquestEndTime":null,"resistanceStartTime":null,"requiredVictoryTowns":32}`

func TestParse(t *testing.T) {
	w, err := Parse(warDoc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w.WarNumber != 121 || w.WarID != "abc" || w.Winner != "NONE" || w.RequiredVictoryTowns != 32 {
		t.Fatalf("unexpected war: %+v", w)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if w.ConquestStartTime == nil || !w.ConquestStartTime.Equal(want) {
		t.Fatalf("expected conquest start %v, got %v", want, w.ConquestStartTime)
	}
	if w.ResistanceStartTime != nil || w.ConquestEndTime != nil {
		t.Fatalf("expected null times to stay nil")
	}

	for _, bad := range []string{"", "not json", `{"warId":"x"}`} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(warDoc))
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, HTTP: whttp.NewClient("", time.Second)}
	w, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if w.WarNumber != 121 {
		t.Fatalf("expected war 121, got %d", w.WarNumber)
	}
}

func TestClientFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, HTTP: whttp.NewClient("", time.Second)}
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 404")
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	war   int
	err   error
	delay time.Duration
}

func (f *fakeFetcher) Fetch(context.Context) (*War, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &War{WarNumber: f.war}, nil
}

func (f *fakeFetcher) set(war int, err error) {
	f.mu.Lock()
	f.war, f.err = war, err
	f.mu.Unlock()
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCache(f Fetcher) (*Cache, *time.Time) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(f, 5*time.Minute, nil)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheTTL(t *testing.T) {
	f := &fakeFetcher{war: 120}
	c, now := newTestCache(f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if n, err := c.CurrentNumber(ctx); err != nil || n != 120 {
			t.Fatalf("expected 120, got %d (%v)", n, err)
		}
	}
	if f.count() != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", f.count())
	}

	f.set(121, nil)
	*now = now.Add(5 * time.Minute)
	if n, _ := c.CurrentNumber(ctx); n != 121 {
		t.Fatalf("expected refreshed war 121, got %d", n)
	}
	if f.count() != 2 {
		t.Fatalf("expected 2 fetches, got %d", f.count())
	}
}

func TestCacheServesStaleOnFailure(t *testing.T) {
	f := &fakeFetcher{war: 120}
	c, now := newTestCache(f)
	ctx := context.Background()

	if _, err := c.Current(ctx); err != nil {
		t.Fatalf("current: %v", err)
	}
	f.set(0, errors.New("connection refused"))
	*now = now.Add(time.Hour)
	w, err := c.Current(ctx)
	if err != nil || w.WarNumber != 120 {
		t.Fatalf("expected stale war 120, got %d (%v)", w.WarNumber, err)
	}
}

func TestCacheUnavailableWithoutValue(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	c, _ := newTestCache(f)
	if _, err := c.Current(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCacheInvalidate(t *testing.T) {
	f := &fakeFetcher{war: 120}
	c, _ := newTestCache(f)
	ctx := context.Background()

	c.Current(ctx)
	f.set(121, nil)
	c.Invalidate()
	if n, _ := c.CurrentNumber(ctx); n != 121 {
		t.Fatalf("expected war 121 after invalidation, got %d", n)
	}

	f.set(0, errors.New("down"))
	c.Invalidate()
	if _, err := c.Current(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after invalidation, got %v", err)
	}
}

func TestCacheCollapsesConcurrentFetches(t *testing.T) {
	f := &fakeFetcher{war: 120, delay: 50 * time.Millisecond}
	c, _ := newTestCache(f)

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n, err := c.CurrentNumber(context.Background()); err != nil || n != 120 {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()
	if failures != 0 {
		t.Fatalf("expected all callers to get war 120, %d failed", failures)
	}
	if f.count() != 1 {
		t.Fatalf("expected a single fetch, got %d", f.count())
	}
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (f *blockingFetcher) Fetch(ctx context.Context) (*War, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 {
		close(f.started)
	}
	<-f.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &War{WarNumber: 121}, nil
}

func TestCacheFetchOutlivesCancelledCaller(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	c, _ := newTestCache(f)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Current(ctx)
		first <- err
	}()
	<-f.started

	second := make(chan int, 1)
	go func() {
		n, _ := c.CurrentNumber(context.Background())
		second <- n
	}()
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(f.release)

	if err := <-first; err != nil {
		t.Fatalf("expected the shared fetch to succeed, got %v", err)
	}
	if n := <-second; n != 121 {
		t.Fatalf("expected war 121 for the waiting caller, got %d", n)
	}
	if calls := atomic.LoadInt32(&f.calls); calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}
