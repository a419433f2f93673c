package browser

// LoadOutcome is the result of evaluating a load-more trigger.
type LoadOutcome string

const (
	// LoadAllowed means the next page should be requested.
	LoadAllowed LoadOutcome = "allowed"

	// LoadBusy means a fetch is already in flight.
	LoadBusy LoadOutcome = "busy"

	// LoadExhausted means every known record has been loaded.
	LoadExhausted LoadOutcome = "exhausted"

	// LoadNoData means there is nothing to paginate from yet; the first page
	// comes from a term change, not from load-more.
	LoadNoData LoadOutcome = "no_data"
)

// LoadGate decides whether a load-more trigger may advance the page.
// Suppressed triggers are dropped, not queued.
type LoadGate struct{}

// Evaluate applies the load-more rule: not loading, more records known to
// exist than are held, and at least one record held.
func (LoadGate) Evaluate(loading bool, totalCount, accumulated int) LoadOutcome {
	switch {
	case loading:
		return LoadBusy
	case accumulated == 0:
		return LoadNoData
	case totalCount <= accumulated:
		return LoadExhausted
	default:
		return LoadAllowed
	}
}

// CanLoadMore reports whether Evaluate would allow a load.
func (g LoadGate) CanLoadMore(loading bool, totalCount, accumulated int) bool {
	return g.Evaluate(loading, totalCount, accumulated) == LoadAllowed
}
