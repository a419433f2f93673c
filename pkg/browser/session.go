package browser

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for session state transitions.
var (
	sessionFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_session_fetches_total",
		Help: "Fetches issued by browser sessions by kind (search, page)",
	}, []string{"kind"})

	staleDiscardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_session_stale_discards_total",
		Help: "Fetch results discarded because a newer fetch was issued",
	})

	loadMoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_session_load_more_total",
		Help: "Load-more triggers by outcome",
	}, []string{"outcome"})
)

const (
	fetchKindSearch = "search"
	fetchKindPage   = "page"
)

// Gateway fetches one page of search results. Implementations must not
// fail: an unavailable page is reported as an empty PageResult.
type Gateway interface {
	FetchPage(ctx context.Context, q character.SearchQuery) character.PageResult
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, q character.SearchQuery) character.PageResult

// FetchPage calls f.
func (f GatewayFunc) FetchPage(ctx context.Context, q character.SearchQuery) character.PageResult {
	return f(ctx, q)
}

// Config holds optional session settings.
type Config struct {
	// FetchTimeout bounds each fetch. Zero means no timeout, in which case a
	// hung gateway leaves the session loading until Close.
	FetchTimeout time.Duration

	// DismissInput is called by ClearSearch to hide any input method UI.
	DismissInput func()
}

// State is a snapshot of what the presentation layer renders.
type State struct {
	// Query is the current term and page.
	Query character.SearchQuery

	// Display is the merged, ordered list.
	Display []character.Character

	// Accumulated is the number of raw records held for the current term.
	Accumulated int

	// TotalCount is the server's claimed total for the current term.
	TotalCount int

	// Loading is true while a fetch for the current query is in flight.
	Loading bool

	// Empty is true when there is nothing to show and nothing loading.
	Empty bool

	// Revision increases with every state change. Observers may use it to
	// drop snapshots that arrive out of order.
	Revision uint64
}

// Session is the pagination state of one search view. It is safe for
// concurrent use; intents never block on the network.
type Session struct {
	gateway Gateway
	config  Config
	gate    LoadGate
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	query       character.SearchQuery
	accumulated []character.Character
	display     []character.Character
	totalCount  int
	seq         uint64 // sequence number of the latest issued fetch
	loading     bool
	revision    uint64
	closed      bool
	subscribers []func(State)
}

// NewSession creates an idle session for the blank term. No fetch is issued
// until the first intent.
func NewSession(gateway Gateway, cfg Config) *Session {
	if gateway == nil {
		panic("browser: gateway cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		gateway: gateway,
		config:  cfg,
		logger:  logging.NewLogger("browser"),
		ctx:     ctx,
		cancel:  cancel,
		query:   character.NewSearchQuery(""),
	}
}

// OnSearchTextChanged handles a change of the search input.
func (s *Session) OnSearchTextChanged(text string) {
	s.SetSearchTerm(text)
}

// OnClearPressed handles the clear button.
func (s *Session) OnClearPressed() {
	s.ClearSearch()
}

// OnScrollNearEnd handles the list scrolling close to its end. It reports
// whether a fetch for the next page was issued.
func (s *Session) OnScrollNearEnd() bool {
	return s.AdvancePage()
}

// SetSearchTerm starts a new search: page 1 of term, with the accumulated
// list cleared before the fetch is issued. Any fetch still in flight is
// superseded and its result will be discarded.
func (s *Session) SetSearchTerm(term string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.query = character.NewSearchQuery(term)
	s.accumulated = nil
	s.display = nil
	s.totalCount = 0
	s.issueLocked(fetchKindSearch)

	s.logger.Debug().
		Str("term", term).
		Uint64("seq", s.seq).
		Msg("Search term changed")

	s.publishLocked()
}

// ClearSearch resets the term to blank and asks the presentation layer to
// dismiss its input method.
func (s *Session) ClearSearch() {
	s.SetSearchTerm("")
	if s.config.DismissInput != nil {
		s.config.DismissInput()
	}
}

// AdvancePage requests the next page of the current term if the load gate
// allows it, and reports whether it did.
func (s *Session) AdvancePage() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	outcome := s.gate.Evaluate(s.loading, s.totalCount, len(s.accumulated))
	loadMoreTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != LoadAllowed {
		s.logger.Debug().
			Str("outcome", string(outcome)).
			Int("total_count", s.totalCount).
			Int("accumulated", len(s.accumulated)).
			Msg("Load more suppressed")
		s.mu.Unlock()
		return false
	}

	s.query = s.query.Next()
	s.issueLocked(fetchKindPage)

	s.logger.Debug().
		Str("term", s.query.Term).
		Int("page", s.query.Page).
		Uint64("seq", s.seq).
		Msg("Advancing page")

	s.publishLocked()
	return true
}

// issueLocked starts a fetch for the current query. s.mu must be held.
func (s *Session) issueLocked(kind string) {
	s.seq++
	s.loading = true
	sessionFetchesTotal.WithLabelValues(kind).Inc()

	seq, q := s.seq, s.query
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result := s.fetch(q)
		s.onPageLoaded(seq, q, result)
	}()
}

// fetch calls the gateway, treating a panic as an unavailable page.
func (s *Session) fetch(q character.SearchQuery) (result character.PageResult) {
	ctx := s.ctx
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("term", q.Term).
				Int("page", q.Page).
				Msg("Gateway panicked - treating page as unavailable")
			result = character.PageResult{}
		}
	}()

	return s.gateway.FetchPage(ctx, q)
}

// onPageLoaded applies a settled fetch unless a newer one has been issued.
func (s *Session) onPageLoaded(seq uint64, q character.SearchQuery, result character.PageResult) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if seq != s.seq {
		staleDiscardsTotal.Inc()
		s.logger.Debug().
			Str("term", q.Term).
			Int("page", q.Page).
			Uint64("seq", seq).
			Uint64("current_seq", s.seq).
			Msg("Discarding stale page")
		s.mu.Unlock()
		return
	}

	s.loading = false
	if result.TotalCount > 0 {
		s.totalCount = result.TotalCount
	}

	switch {
	case !result.IsEmpty():
		s.accumulated = append(s.accumulated, result.Characters...)
	case q.Page == 1 && strings.TrimSpace(q.Term) != "":
		// No match for the term: show an explicit empty state.
		s.accumulated = nil
	}
	// An empty later page leaves the list as it was.
	s.display = character.Merge(s.accumulated)

	s.logger.Debug().
		Str("term", q.Term).
		Int("page", q.Page).
		Int("received", len(result.Characters)).
		Int("accumulated", len(s.accumulated)).
		Int("total_count", s.totalCount).
		Msg("Page applied")

	s.publishLocked()
}

// publishLocked bumps the revision, then unlocks s.mu and notifies
// subscribers outside the lock.
func (s *Session) publishLocked() {
	s.revision++
	state := s.stateLocked()
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}

func (s *Session) stateLocked() State {
	return State{
		Query:       s.query,
		Display:     append([]character.Character(nil), s.display...),
		Accumulated: len(s.accumulated),
		TotalCount:  s.totalCount,
		Loading:     s.loading,
		Empty:       len(s.display) == 0 && !s.loading,
		Revision:    s.revision,
	}
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn to be called with a snapshot after every state
// change. Calls happen outside the session lock, possibly from fetch
// goroutines.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Wait blocks until every fetch issued so far has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight fetches and waits for them to return. Intents
// after Close are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
