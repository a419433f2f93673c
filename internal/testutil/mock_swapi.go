// Package testutil provides testing utilities for the SWAPI search client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/swapi-search/pkg/character"
)

// PeoplePath is the path the mock serves people search on.
const PeoplePath = "/api/people/"

// DefaultPageSize matches SWAPI's fixed page size.
const DefaultPageSize = 10

// MockSWAPIResponse defines a canned response for one request.
type MockSWAPIResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSWAPI is a configurable mock of the SWAPI people endpoint. By default
// it filters People by a case-insensitive substring match on the name and
// paginates them DefaultPageSize at a time, like the real API.
type MockSWAPI struct {
	server *httptest.Server
	mu     sync.RWMutex

	people   []character.Character
	pageSize int
	queue    []MockSWAPIResponse
	handler  http.HandlerFunc

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	Queries           []character.SearchQuery
}

// NewMockSWAPI creates a new mock serving people.
func NewMockSWAPI(people []character.Character) *MockSWAPI {
	mock := &MockSWAPI{
		people:   people,
		pageSize: DefaultPageSize,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, character.SearchQuery{
			Term: r.URL.Query().Get("search"),
			Page: page,
		})
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		var canned *MockSWAPIResponse
		if len(mock.queue) > 0 {
			canned = &mock.queue[0]
			mock.queue = mock.queue[1:]
		}
		handler := mock.handler
		mock.mu.Unlock()

		switch {
		case canned != nil:
			writeCanned(w, *canned)
		case handler != nil:
			handler(w, r)
		default:
			mock.peopleHandler(w, r)
		}
	}))

	return mock
}

// URL returns the mock people endpoint URL.
func (m *MockSWAPI) URL() string {
	return m.server.URL + PeoplePath
}

// Close shuts down the mock server.
func (m *MockSWAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and queued responses.
func (m *MockSWAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
	m.queue = nil
}

// SetPageSize changes how many people are returned per page.
func (m *MockSWAPI) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetHandler replaces the default people handler.
func (m *MockSWAPI) SetHandler(handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Enqueue makes the next requests return the given responses in order,
// before falling back to the handler.
func (m *MockSWAPI) Enqueue(responses ...MockSWAPIResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSWAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockSWAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetQueries returns the search/page pairs received so far.
func (m *MockSWAPI) GetQueries() []character.SearchQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]character.SearchQuery(nil), m.Queries...)
}

// peopleHandler filters and paginates the configured people. Out-of-range
// pages get a 404 like the real API.
func (m *MockSWAPI) peopleHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	people := m.people
	size := m.pageSize
	m.mu.RUnlock()

	term := strings.ToLower(r.URL.Query().Get("search"))
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	var matches []character.Character
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Name), term) {
			matches = append(matches, p)
		}
	}

	start := (page - 1) * size
	if start > 0 && start >= len(matches) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found"}`))
		return
	}
	end := min(start+size, len(matches))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", fmt.Sprintf(`"%s-%d-%d"`, term, page, len(matches)))
	w.Header().Set("Cache-Control", "max-age=300")
	json.NewEncoder(w).Encode(PeoplePage(matches[start:end], len(matches)))
}

// PeoplePage builds a SWAPI-shaped page payload.
func PeoplePage(results []character.Character, count int) map[string]any {
	if results == nil {
		results = []character.Character{}
	}
	return map[string]any{
		"count":    count,
		"next":     nil,
		"previous": nil,
		"results":  results,
	}
}

func writeCanned(w http.ResponseWriter, resp MockSWAPIResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockSWAPIResponse {
	return MockSWAPIResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter int) MockSWAPIResponse {
	return MockSWAPIResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  strconv.Itoa(retryAfter),
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockSWAPIResponse {
	return MockSWAPIResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// SamplePeople returns a handful of characters modelled on SWAPI records.
func SamplePeople() []character.Character {
	return []character.Character{
		{Name: "Luke Skywalker", EyeColor: "blue", Gender: "male", Created: "2014-12-09T13:50:51.644000Z"},
		{Name: "C-3PO", EyeColor: "yellow", Gender: "n/a", Created: "2014-12-10T15:10:51.357000Z"},
		{Name: "R2-D2", EyeColor: "red", Gender: "n/a", Created: "2014-12-10T15:11:50.376000Z"},
		{Name: "Darth Vader", EyeColor: "yellow", Gender: "male", Created: "2014-12-10T15:18:20.704000Z"},
		{Name: "Leia Organa", EyeColor: "brown", Gender: "female", Created: "2014-12-10T15:20:09.791000Z"},
		{Name: "Owen Lars", EyeColor: "blue", Gender: "male", Created: "2014-12-10T15:52:14.024000Z"},
		{Name: "Beru Whitesun lars", EyeColor: "blue", Gender: "female", Created: "2014-12-10T15:53:41.121000Z"},
		{Name: "R5-D4", EyeColor: "red", Gender: "n/a", Created: "2014-12-10T15:57:50.959000Z"},
		{Name: "Biggs Darklighter", EyeColor: "brown", Gender: "male", Created: "2014-12-10T15:59:50.509000Z"},
		{Name: "Obi-Wan Kenobi", EyeColor: "blue-gray", Gender: "male", Created: "2014-12-10T16:16:29.192000Z"},
		{Name: "Anakin Skywalker", EyeColor: "blue", Gender: "male", Created: "2014-12-10T16:20:44.310000Z"},
		{Name: "Wilhuff Tarkin", EyeColor: "blue", Gender: "male", Created: "2014-12-10T16:26:56.138000Z"},
	}
}
