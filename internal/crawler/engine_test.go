package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/webnoise/internal/config"
	"github.com/nao1215/webnoise/internal/model"
)

// testConfig returns a configuration tuned for fast deterministic tests:
// no sleeping, a short run budget, and the given server as the only seed.
func testConfig(serverURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.RootURLs = []string{serverURL}
	cfg.MinSleep = config.DurationFrom(0)
	cfg.MaxSleep = config.DurationFrom(0)
	cfg.Timeout = config.DurationFrom(150 * time.Millisecond)
	cfg.RequestTimeout = config.DurationFrom(2 * time.Second)
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42)) //nolint:gosec // Deterministic walk for tests
}

// linkFarm serves a page with n links at every path, so the frontier never
// runs dry.
func linkFarm(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < n; i++ {
			fmt.Fprintf(w, `<a href="%s/page%d">link</a>`, r.URL.Path, i)
		}
		fmt.Fprint(w, "</body></html>")
	}
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid configuration before any request", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
		}))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.MinSleep = config.DurationFrom(10 * time.Second)
		cfg.MaxSleep = config.DurationFrom(1 * time.Second)

		if _, err := NewEngine(cfg, nil); !errors.Is(err, config.ErrInvertedSleepBounds) {
			t.Errorf("NewEngine() error = %v, want %v", err, config.ErrInvertedSleepBounds)
		}
		if got := requests.Load(); got != 0 {
			t.Errorf("server received %d requests before validation failed, want 0", got)
		}
	})

	t.Run("rejects empty root URLs", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		if _, err := NewEngine(cfg, nil); !errors.Is(err, config.ErrNoRootURLs) {
			t.Errorf("NewEngine() error = %v, want %v", err, config.ErrNoRootURLs)
		}
	})

	t.Run("starts idle", func(t *testing.T) {
		t.Parallel()

		engine, err := NewEngine(testConfig("https://example.com/"), nil)
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}
		if got := engine.State(); got != StateIdle {
			t.Errorf("State() = %v, want %v", got, StateIdle)
		}
	})
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	t.Run("times out and reports the walk", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(4))
		defer ts.Close()

		engine, err := NewEngine(testConfig(ts.URL), nil,
			WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.Outcome != model.OutcomeTimedOut {
			t.Errorf("Outcome = %v, want %v", report.Outcome, model.OutcomeTimedOut)
		}
		if got := engine.State(); got != StateTimedOut {
			t.Errorf("State() = %v, want %v", got, StateTimedOut)
		}
		if report.Iterations == 0 {
			t.Error("Iterations = 0, want at least one")
		}
		if report.PagesFetched == 0 {
			t.Error("PagesFetched = 0, want at least one")
		}
		if len(report.Visits) != report.Iterations {
			t.Errorf("len(Visits) = %d, want %d (one per iteration)",
				len(report.Visits), report.Iterations)
		}
		if report.Elapsed() < 150*time.Millisecond {
			t.Errorf("Elapsed() = %v, want at least the configured budget", report.Elapsed())
		}
		if report.EndTime.Before(report.StartTime) {
			t.Error("EndTime precedes StartTime")
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(3))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.Timeout = config.DurationFrom(0) // unbounded, only the context ends it

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		report, err := engine.Run(ctx)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.Outcome != model.OutcomeStopped {
			t.Errorf("Outcome = %v, want %v", report.Outcome, model.OutcomeStopped)
		}
		if got := engine.State(); got != StateStopped {
			t.Errorf("State() = %v, want %v", got, StateStopped)
		}
	})

	t.Run("cancellation interrupts a long sleep", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(2))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.Timeout = config.DurationFrom(0)
		cfg.MinSleep = config.DurationFrom(time.Hour)
		cfg.MaxSleep = config.DurationFrom(time.Hour)

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		done := make(chan struct{})
		var report *model.RunReport
		go func() {
			defer close(done)
			report, _ = engine.Run(ctx)
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("Run() did not return after cancellation during sleep")
		}
		if report.Outcome != model.OutcomeStopped {
			t.Errorf("Outcome = %v, want %v", report.Outcome, model.OutcomeStopped)
		}
	})

	t.Run("fetch errors are recoverable", func(t *testing.T) {
		t.Parallel()

		// Every second response is a 500; the walk must keep going.
		var calls atomic.Int64
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1)%2 == 0 {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			linkFarm(3)(w, r)
		}))
		defer ts.Close()

		engine, err := NewEngine(testConfig(ts.URL), nil,
			WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.Outcome != model.OutcomeTimedOut {
			t.Errorf("Outcome = %v, want %v", report.Outcome, model.OutcomeTimedOut)
		}
		if report.FetchErrors == 0 {
			t.Error("FetchErrors = 0, want some from the failing server")
		}
		if report.Iterations <= report.FetchErrors {
			t.Errorf("Iterations = %d with %d errors; the run should have continued past failures",
				report.Iterations, report.FetchErrors)
		}

		failed := 0
		for _, v := range report.Visits {
			if v.Failed {
				failed++
				if v.BodyHash != "" {
					t.Errorf("failed visit of %s carries a body hash", v.URL)
				}
				if v.LinksFound != 0 {
					t.Errorf("failed visit of %s yielded %d links, want 0", v.URL, v.LinksFound)
				}
			}
		}
		if failed != report.FetchErrors {
			t.Errorf("failed visits = %d, FetchErrors = %d", failed, report.FetchErrors)
		}
	})

	t.Run("unreachable seed still runs to timeout", func(t *testing.T) {
		t.Parallel()

		// A closed server: every fetch is a transport error with status 0.
		ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		seedURL := ts.URL
		ts.Close()

		engine, err := NewEngine(testConfig(seedURL), nil,
			WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.Outcome != model.OutcomeTimedOut {
			t.Errorf("Outcome = %v, want %v", report.Outcome, model.OutcomeTimedOut)
		}
		if report.PagesFetched != 0 {
			t.Errorf("PagesFetched = %d, want 0", report.PagesFetched)
		}
		if report.FetchErrors != report.Iterations {
			t.Errorf("FetchErrors = %d, want %d (every iteration failed)",
				report.FetchErrors, report.Iterations)
		}
		for _, v := range report.Visits {
			if v.StatusCode != 0 {
				t.Errorf("transport-failed visit has StatusCode = %d, want 0", v.StatusCode)
			}
		}
	})

	t.Run("resets to a seed when the pool runs dry", func(t *testing.T) {
		t.Parallel()

		// Pages with no links at all: every iteration exhausts the frontier.
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html><body>nothing to follow</body></html>")
		}))
		defer ts.Close()

		engine, err := NewEngine(testConfig(ts.URL), nil,
			WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if report.SeedResets != report.Iterations {
			t.Errorf("SeedResets = %d, want %d (pool was empty every iteration)",
				report.SeedResets, report.Iterations)
		}
		for _, v := range report.Visits {
			if v.URL != ts.URL+"/" && v.URL != ts.URL {
				t.Errorf("visited %q, want only the seed", v.URL)
			}
		}
	})

	t.Run("reselects a seed every Nth iteration", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(8))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.ReselectEvery = 3

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		// With a rich frontier, resets come only from the frequency: one per
		// full group of 3 iterations, give or take the final partial group.
		wantMin := report.Iterations / cfg.ReselectEvery
		if report.SeedResets < wantMin {
			t.Errorf("SeedResets = %d over %d iterations, want at least %d",
				report.SeedResets, report.Iterations, wantMin)
		}
	})

	t.Run("never revisits a URL by default", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(5))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.ReselectEvery = 1000 // keep the walk inside one subtree

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		seen := make(map[string]int)
		seedKey := NormalizeURL(ts.URL)
		for _, v := range report.Visits {
			key := NormalizeURL(v.URL)
			seen[key]++
			// Seeds bypass dedup so resets always have somewhere to go.
			if key != seedKey && seen[key] > 1 {
				t.Errorf("URL %q visited %d times, want at most once", v.URL, seen[key])
			}
		}
	})

	t.Run("rotates the configured user agents", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		agents := make(map[string]struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			agents[r.UserAgent()] = struct{}{}
			mu.Unlock()
			linkFarm(4)(w, r)
		}))
		defer ts.Close()

		cfg := testConfig(ts.URL)
		cfg.UserAgents = []string{"agent-a", "agent-b", "agent-c"}

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		for agent := range agents {
			if agent != "agent-a" && agent != "agent-b" && agent != "agent-c" {
				t.Errorf("request sent unexpected User-Agent %q", agent)
			}
		}
		if len(agents) < 2 {
			t.Errorf("saw %d distinct User-Agents across the run, want rotation", len(agents))
		}
	})

	t.Run("bare config without user agents still runs", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		agents := make(map[string]struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			agents[r.UserAgent()] = struct{}{}
			mu.Unlock()
			linkFarm(3)(w, r)
		}))
		defer ts.Close()

		// Hand-built configuration that never went through NewConfig or
		// Normalize, so UserAgents is empty while Validate still passes.
		cfg := &config.Config{
			RootURLs:       []string{ts.URL},
			Timeout:        config.DurationFrom(100 * time.Millisecond),
			RequestTimeout: config.DurationFrom(2 * time.Second),
			ReselectEvery:  config.DefaultReselectEvery,
			MaxBodySize:    config.DefaultMaxBodySize,
		}

		engine, err := NewEngine(cfg, nil, WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		report, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if report.PagesFetched == 0 {
			t.Error("PagesFetched = 0, want at least one")
		}

		defaults := make(map[string]struct{}, len(config.DefaultUserAgents))
		for _, ua := range config.DefaultUserAgents {
			defaults[ua] = struct{}{}
		}
		mu.Lock()
		defer mu.Unlock()
		if len(agents) == 0 {
			t.Fatal("server saw no requests")
		}
		for agent := range agents {
			if _, ok := defaults[agent]; !ok {
				t.Errorf("request sent User-Agent %q, want one of the defaults", agent)
			}
		}
	})

	t.Run("rejects a second run", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(2))
		defer ts.Close()

		engine, err := NewEngine(testConfig(ts.URL), nil,
			WithLogger(testLogger()), WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if _, err := engine.Run(context.Background()); !errors.Is(err, ErrNotIdle) {
			t.Errorf("second Run() error = %v, want %v", err, ErrNotIdle)
		}
	})

	t.Run("fixed seed yields a deterministic walk", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(linkFarm(6))
		defer ts.Close()

		walk := func() []string {
			cfg := testConfig(ts.URL)
			cfg.Timeout = config.DurationFrom(0)
			cfg.UserAgents = []string{"fixed"}

			engine, err := NewEngine(cfg, nil,
				WithLogger(testLogger()),
				WithRand(rand.New(rand.NewSource(7)))) //nolint:gosec // Fixed seed on purpose
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan *model.RunReport, 1)
			go func() {
				report, _ := engine.Run(ctx)
				done <- report
			}()

			// Let a handful of iterations happen, then stop.
			time.Sleep(100 * time.Millisecond)
			cancel()
			report := <-done

			urls := make([]string, 0, len(report.Visits))
			for _, v := range report.Visits {
				urls = append(urls, v.URL)
			}
			return urls
		}

		first := walk()
		second := walk()

		n := len(first)
		if len(second) < n {
			n = len(second)
		}
		if n == 0 {
			t.Fatal("no iterations completed")
		}
		for i := 0; i < n; i++ {
			if first[i] != second[i] {
				t.Fatalf("walk diverged at iteration %d: %q vs %q with identical seeds",
					i, first[i], second[i])
			}
		}
	})
}

func TestEngine_sleepDuration(t *testing.T) {
	t.Parallel()

	t.Run("stays within the configured bounds", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig("https://example.com/")
		cfg.MinSleep = config.DurationFrom(20 * time.Millisecond)
		cfg.MaxSleep = config.DurationFrom(50 * time.Millisecond)

		engine, err := NewEngine(cfg, nil, WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		for i := 0; i < 1000; i++ {
			d := engine.sleepDuration()
			if d < 20*time.Millisecond || d > 50*time.Millisecond {
				t.Fatalf("sleepDuration() = %v, want within [20ms, 50ms]", d)
			}
		}
	})

	t.Run("equal bounds yield a fixed duration", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig("https://example.com/")
		cfg.MinSleep = config.DurationFrom(30 * time.Millisecond)
		cfg.MaxSleep = config.DurationFrom(30 * time.Millisecond)

		engine, err := NewEngine(cfg, nil, WithRand(testRand()))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}

		for i := 0; i < 100; i++ {
			if d := engine.sleepDuration(); d != 30*time.Millisecond {
				t.Fatalf("sleepDuration() = %v, want 30ms", d)
			}
		}
	})
}
