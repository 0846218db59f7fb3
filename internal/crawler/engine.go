package crawler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/nao1215/webnoise/internal/config"
	"github.com/nao1215/webnoise/internal/model"
)

// State describes the lifecycle of an Engine.
type State int

const (
	// StateIdle means the engine was constructed but Run was not called yet.
	StateIdle State = iota

	// StateRunning means the crawl loop is executing.
	StateRunning

	// StateTimedOut means the run ended because the wall-clock budget elapsed.
	StateTimedOut

	// StateStopped means the run ended on an external stop request.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTimedOut:
		return "timed out"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrNotIdle is returned by Run when the engine has already run.
// An Engine owns exactly one run; construct a new one for the next run.
var ErrNotIdle = errors.New("engine has already run")

// redirectLimit caps redirect chains on the default HTTP client to prevent
// loops while allowing normal redirects.
const redirectLimit = 10

// frontierEntry is a discovered-but-unvisited link together with the page
// that yielded it.
type frontierEntry struct {
	url    string
	source string
}

// Engine owns a single noise-generation run. It is strictly sequential:
// one fetch, one extraction, one sleep, one selection per iteration, with
// the randomized sleep as the only suspension point. Nothing here needs a
// lock because the engine instance is the sole owner of its state.
type Engine struct {
	// cfg is the validated, read-only run configuration.
	cfg *config.Config

	// client issues the HTTP GETs. It may route through a SOCKS proxy.
	client *http.Client

	// logger receives the run's log stream: lifecycle events at Info,
	// per-request events at Debug.
	logger *slog.Logger

	// rng is the single source of randomness for seed selection, link
	// selection, sleep durations, and User-Agent rotation. Tests inject a
	// fixed-seed source to get deterministic walks.
	rng *rand.Rand

	// extractor turns page bodies into followable links.
	extractor *Extractor

	// userAgents is the User-Agent rotation pool. Never empty: NewEngine
	// falls back to the config defaults, so a hand-built Config that skipped
	// Normalize cannot leave the rotation without an agent to pick.
	userAgents []string

	// state tracks the IDLE -> RUNNING -> (TIMED_OUT | STOPPED) lifecycle.
	state State

	// visited holds history-membership keys for O(1) dedup. The ordered
	// history itself lives in report.Visits.
	visited map[string]struct{}

	// frontier is the pool of discovered links not yet visited, with
	// frontierSet mirroring it for O(1) duplicate suppression.
	frontier    []frontierEntry
	frontierSet map[string]struct{}

	// report accumulates the run summary and ordered visit history.
	report *model.RunReport
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger receiving the run's log stream.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRand sets the random source used for every randomized decision the
// engine makes. Injecting rand.New(rand.NewSource(k)) makes a run fully
// deterministic given fixed server responses.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithExtractor replaces the default link extractor.
func WithExtractor(extractor *Extractor) Option {
	return func(e *Engine) {
		e.extractor = extractor
	}
}

// NewEngine creates an Engine for the given configuration.
//
// The configuration is validated here: an empty seed list, inverted sleep
// bounds, or a non-positive request timeout reject the run before any
// network call is made.
//
// client may be nil, in which case a default client with the configured
// request timeout is used. Callers routing traffic through a proxy pass
// their own pre-configured client, matching how the extractor and logger
// are injected.
func NewEngine(cfg *config.Config, client *http.Client, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if client == nil {
		client = &http.Client{
			Timeout: cfg.RequestTimeout.Duration,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= redirectLimit {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	e := &Engine{
		cfg:         cfg,
		client:      client,
		logger:      slog.Default(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Pacing jitter, not cryptography
		visited:     make(map[string]struct{}),
		frontier:    make([]frontierEntry, 0),
		frontierSet: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.extractor == nil {
		e.extractor = NewExtractor(WithBlacklist(cfg.BlacklistedURLs))
	}

	e.userAgents = cfg.UserAgents
	if len(e.userAgents) == 0 {
		e.userAgents = config.DefaultUserAgents
	}

	return e, nil
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Run executes the crawl until the configured wall-clock budget elapses or
// ctx is cancelled. It returns the run report in both cases: an interrupt
// is an orderly stop, not a failure. The only error conditions are calling
// Run twice on the same engine.
//
// Cancellation is observed at the top of every iteration as well as during
// the sleep, so a long configured sleep cannot delay shutdown.
func (e *Engine) Run(ctx context.Context) (*model.RunReport, error) {
	if e.state != StateIdle {
		return nil, ErrNotIdle
	}
	e.state = StateRunning

	start := time.Now()
	e.report = model.NewRunReport(start)

	current := frontierEntry{url: e.randomSeed()}
	e.logger.Info("run started",
		"url", current.url,
		"seeds", len(e.cfg.RootURLs),
		"timeout", e.cfg.Timeout.Duration.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return e.finish(model.OutcomeStopped), nil
		default:
		}

		e.report.Iterations++
		e.step(ctx, current)

		if !e.sleep(ctx) {
			return e.finish(model.OutcomeStopped), nil
		}

		current = e.next()

		if t := e.cfg.Timeout.Duration; t > 0 && time.Since(start) >= t {
			return e.finish(model.OutcomeTimedOut), nil
		}
	}
}

// step performs one fetch-extract-record cycle for the given entry.
// Every failure mode in here is recoverable: a dead page is recorded as a
// visit with zero links and the run continues.
func (e *Engine) step(ctx context.Context, entry frontierEntry) {
	visit := model.Visit{
		URL:    entry.url,
		Source: entry.source,
		Time:   time.Now(),
	}

	// The URL counts as visited whether or not the fetch succeeds; a failed
	// fetch is never retried within the run.
	e.visited[e.visitKey(entry.url, entry.source)] = struct{}{}

	e.logger.Debug("requesting", "url", entry.url)

	status, body, err := e.fetch(ctx, entry.url)
	visit.StatusCode = status

	switch {
	case err != nil:
		visit.Failed = true
		e.report.FetchErrors++
		e.logger.Debug("fetch failed", "url", entry.url, "error", err)
	case status < 200 || status > 299:
		visit.Failed = true
		e.report.FetchErrors++
		e.logger.Debug("fetch failed", "url", entry.url, "status", status)
	default:
		visit.BodyHash = model.HashBody(body)
		visit.LinksFound = e.discover(body, entry.url)
		e.report.PagesFetched++
		e.report.LinksDiscovered += visit.LinksFound
		e.logger.Debug("response received",
			"url", entry.url,
			"status", status,
			"links", visit.LinksFound,
			"pool", len(e.frontier),
		)
	}

	e.report.Visits = append(e.report.Visits, visit)
}

// fetch issues one HTTP GET with the configured request timeout and a
// randomly selected User-Agent, returning the status code and the body
// capped at the configured size.
func (e *Engine) fetch(ctx context.Context, pageURL string) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("User-Agent", e.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

// discover extracts links from a page body and adds the fresh ones to the
// frontier, filtered against the visit history so the pool never holds a
// URL the run already fetched. Returns the number of entries added.
func (e *Engine) discover(body []byte, pageURL string) int {
	links := e.extractor.ExtractLinks(bytes.NewReader(body), pageURL)

	added := 0
	for _, link := range links {
		key := e.visitKey(link, pageURL)
		if _, seen := e.visited[key]; seen {
			continue
		}
		if _, queued := e.frontierSet[key]; queued {
			continue
		}
		e.frontierSet[key] = struct{}{}
		e.frontier = append(e.frontier, frontierEntry{url: link, source: pageURL})
		added++
	}
	return added
}

// next selects the URL for the following iteration. Every Nth iteration,
// or when the pool has run dry, the engine abandons the current subtree and
// restarts from a random seed; otherwise it picks uniformly at random from
// the frontier.
func (e *Engine) next() frontierEntry {
	if e.report.Iterations%e.cfg.ReselectEvery == 0 || len(e.frontier) == 0 {
		e.report.SeedResets++
		// Restarting the subtree drops the old pool; keeping it would pull
		// the walk straight back into the graph we just left.
		e.frontier = e.frontier[:0]
		e.frontierSet = make(map[string]struct{})

		seed := e.randomSeed()
		e.logger.Debug("reselecting seed", "url", seed, "iteration", e.report.Iterations)
		return frontierEntry{url: seed}
	}

	idx := e.rng.Intn(len(e.frontier))
	entry := e.frontier[idx]
	e.frontier = append(e.frontier[:idx], e.frontier[idx+1:]...)
	delete(e.frontierSet, e.visitKey(entry.url, entry.source))
	return entry
}

// sleep pauses for a duration drawn uniformly from the configured
// [MinSleep, MaxSleep] range. The randomized pause is what makes the
// traffic look like a person browsing; a fixed interval would be a
// detectable fixed-rate pattern. Returns false when ctx was cancelled
// before the pause completed.
func (e *Engine) sleep(ctx context.Context) bool {
	d := e.sleepDuration()
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// sleepDuration draws the next pause uniformly from [MinSleep, MaxSleep],
// both bounds inclusive.
func (e *Engine) sleepDuration() time.Duration {
	minD := e.cfg.MinSleep.Duration
	maxD := e.cfg.MaxSleep.Duration
	if maxD <= minD {
		return minD
	}
	return minD + time.Duration(e.rng.Int63n(int64(maxD-minD)+1))
}

// randomSeed picks a root URL uniformly at random. Seeds deliberately
// bypass history dedup: the reset behavior must always have somewhere to
// go, even late in a long run when every root has been fetched before.
func (e *Engine) randomSeed() string {
	return e.cfg.RootURLs[e.rng.Intn(len(e.cfg.RootURLs))]
}

// userAgent picks one of the rotation pool's User-Agent strings at random.
func (e *Engine) userAgent() string {
	return e.userAgents[e.rng.Intn(len(e.userAgents))]
}

// visitKey builds the history-membership key for a URL. When AllowRevisit
// is enabled the key includes the referrer, so the same page reached from a
// different page may be fetched again; otherwise membership is by
// normalized URL alone.
func (e *Engine) visitKey(link, source string) string {
	if e.cfg.AllowRevisit {
		return source + "\x00" + NormalizeURL(link)
	}
	return NormalizeURL(link)
}

// finish closes out the run: sets the terminal state, stamps the report,
// and emits the run-end event. The caller is responsible for flushing any
// buffered sink; the engine's own stream is line-buffered stderr.
func (e *Engine) finish(outcome model.Outcome) *model.RunReport {
	switch outcome {
	case model.OutcomeTimedOut:
		e.state = StateTimedOut
	default:
		e.state = StateStopped
	}

	e.report.Outcome = outcome
	e.report.EndTime = time.Now()

	e.logger.Info("run finished",
		"outcome", outcome.String(),
		"elapsed", e.report.Elapsed().Round(time.Millisecond).String(),
		"iterations", e.report.Iterations,
		"pages", e.report.PagesFetched,
		"errors", e.report.FetchErrors,
		"resets", e.report.SeedResets,
	)

	return e.report
}
