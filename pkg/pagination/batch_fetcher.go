package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PageSize is the fixed number of results SWAPI returns per page.
const PageSize = 10

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns a configuration that stays polite to the public API
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Searcher fetches one page and reports failures.
type Searcher interface {
	Search(ctx context.Context, q character.SearchQuery) (character.PageResult, error)
}

// PageError records a page that could not be fetched.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	searcher Searcher
	config   Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(searcher Searcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &BatchFetcher{
		searcher: searcher,
		config:   config,
	}
}

// PageCount returns how many pages hold totalCount results.
func PageCount(totalCount int) int {
	if totalCount <= 0 {
		return 1
	}
	return (totalCount + PageSize - 1) / PageSize
}

// FetchAll fetches every page of term and returns the characters in page
// order. If some pages fail, the characters of the others are returned
// together with an error joining one *PageError per failed page.
func (bf *BatchFetcher) FetchAll(ctx context.Context, term string) ([]character.Character, error) {
	start := time.Now()

	first, err := bf.fetch(ctx, character.NewSearchQuery(term))
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := PageCount(first.TotalCount)
	log.Info().
		Str("term", term).
		Int("total_count", first.TotalCount).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	if totalPages == 1 {
		log.Info().
			Str("term", term).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Characters, nil
	}

	pages := make([][]character.Character, totalPages)
	pages[0] = first.Characters

	var (
		mu       sync.Mutex
		failures []error
	)
	fetched := 1

	var g errgroup.Group
	g.SetLimit(bf.config.MaxConcurrency)
	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			mu.Lock()
			failures = append(failures, &PageError{Page: page, Err: ctx.Err()})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			result, err := bf.fetch(ctx, character.SearchQuery{Term: term, Page: page})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().
					Err(err).
					Str("term", term).
					Int("page", page).
					Msg("Page fetch failed")
				failures = append(failures, &PageError{Page: page, Err: err})
				return nil
			}
			pages[page-1] = result.Characters
			fetched++
			return nil
		})
	}
	_ = g.Wait()

	var out []character.Character
	for _, p := range pages {
		out = append(out, p...)
	}

	if len(failures) > 0 {
		log.Warn().
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Some pages failed - returning partial results")
		return out, fmt.Errorf("partial data (%d/%d pages): %w", fetched, totalPages, errors.Join(failures...))
	}

	log.Info().
		Str("term", term).
		Int("pages", fetched).
		Int("characters", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return out, nil
}

func (bf *BatchFetcher) fetch(ctx context.Context, q character.SearchQuery) (character.PageResult, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.searcher.Search(pageCtx, q)
}
