// Package pagination fetches every page of a SWAPI search in parallel.
//
// SWAPI reports the total match count on each page and serves a fixed page
// size, so the number of pages is known after the first request. The batch
// fetcher uses that to fan the remaining pages out over a bounded number of
// goroutines.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(swapiClient, pagination.DefaultConfig())
//	people, err := fetcher.FetchAll(ctx, "sky")
//
// The batch fetcher:
//   - Fetches the first page to determine the page count
//   - Fetches the remaining pages with at most MaxConcurrency in flight
//   - Returns characters in page order
//   - Skips failed pages and reports them alongside the partial data
package pagination
