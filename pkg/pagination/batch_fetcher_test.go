package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/swapi-search/internal/testutil"
	"github.com/Sternrassler/swapi-search/pkg/character"
	"github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedSearcher serves total generated characters PageSize at a time.
type pagedSearcher struct {
	total    int
	failPage map[int]bool
	delay    time.Duration

	mu       sync.Mutex
	pages    []int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *pagedSearcher) Search(ctx context.Context, q character.SearchQuery) (character.PageResult, error) {
	s.mu.Lock()
	s.pages = append(s.pages, q.Page)
	s.mu.Unlock()

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if s.failPage[q.Page] {
		return character.PageResult{}, fmt.Errorf("boom on page %d", q.Page)
	}

	var chars []character.Character
	for i := (q.Page - 1) * PageSize; i < min(q.Page*PageSize, s.total); i++ {
		chars = append(chars, character.Character{Name: fmt.Sprintf("c%03d", i)})
	}
	return character.PageResult{Characters: chars, TotalCount: s.total}, nil
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{1, 1},
		{10, 1},
		{11, 2},
		{82, 9},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total); got != tt.want {
			t.Errorf("PageCount(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&pagedSearcher{}, Config{})
	assert.Equal(t, DefaultConfig(), bf.config)
}

func TestFetchAll_SinglePage(t *testing.T) {
	s := &pagedSearcher{total: 7}
	bf := NewBatchFetcher(s, DefaultConfig())

	out, err := bf.FetchAll(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, out, 7)
	assert.Equal(t, []int{1}, s.pages)
}

func TestFetchAll_PageOrder(t *testing.T) {
	s := &pagedSearcher{total: 82, delay: 5 * time.Millisecond}
	bf := NewBatchFetcher(s, Config{MaxConcurrency: 3, Timeout: time.Second})

	out, err := bf.FetchAll(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, out, 82)
	for i, c := range out {
		assert.Equal(t, fmt.Sprintf("c%03d", i), c.Name)
	}
	assert.Len(t, s.pages, 9)
	assert.LessOrEqual(t, s.peak.Load(), int32(3))
}

func TestFetchAll_PartialFailure(t *testing.T) {
	s := &pagedSearcher{total: 35, failPage: map[int]bool{3: true}}
	bf := NewBatchFetcher(s, DefaultConfig())

	out, err := bf.FetchAll(context.Background(), "x")
	require.Error(t, err)
	assert.Len(t, out, 25)
	assert.Contains(t, err.Error(), "partial data (3/4 pages)")

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr))
	assert.Equal(t, 3, pageErr.Page)
}

func TestFetchAll_FirstPageFails(t *testing.T) {
	s := &pagedSearcher{total: 35, failPage: map[int]bool{1: true}}
	bf := NewBatchFetcher(s, DefaultConfig())

	out, err := bf.FetchAll(context.Background(), "x")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "fetch first page")
}

func TestFetchAll_AgainstMockSWAPI(t *testing.T) {
	mock := testutil.NewMockSWAPI(testutil.SamplePeople())
	defer mock.Close()
	mock.SetPageSize(PageSize)

	cfg := client.DefaultConfig(nil, "swapi-search-test/1.0")
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	require.NoError(t, err)
	defer c.Close()

	out, err := NewBatchFetcher(c, DefaultConfig()).FetchAll(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, out, len(testutil.SamplePeople()))
	assert.Equal(t, 2, mock.GetRequestCount())
	assert.Equal(t, "Luke Skywalker", out[0].Name)
	assert.Equal(t, "Anakin Skywalker", out[10].Name)
}
