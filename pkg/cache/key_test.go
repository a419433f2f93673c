package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint only",
			key:  CacheKey{Endpoint: "/api/people/"},
			want: "swapi:api/people",
		},
		{
			name: "search page",
			key: KeyFor("/api/people/", url.Values{
				"search": []string{"luke"},
				"page":   []string{"2"},
			}),
			want: "swapi:api/people:page=2:search=luke",
		},
		{
			name: "empty term",
			key: KeyFor("/api/people/", url.Values{
				"search": []string{""},
				"page":   []string{"1"},
			}),
			want: "swapi:api/people:page=1:search=",
		},
		{
			name: "no endpoint",
			key:  CacheKey{},
			want: "swapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := KeyFor("/api/people/", url.Values{"search": {"r2"}, "page": {"3"}})
	b := KeyFor("api/people", url.Values{"page": {"3"}, "search": {"r2"}})

	for i := 0; i < 20; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}

func TestCacheKey_DistinguishesTermsAndPages(t *testing.T) {
	keys := map[string]bool{}
	for _, term := range []string{"luke", "Luke", "leia"} {
		for _, page := range []string{"1", "2"} {
			k := KeyFor("/api/people/", url.Values{"search": {term}, "page": {page}}).String()
			if keys[k] {
				t.Errorf("duplicate key %q", k)
			}
			keys[k] = true
		}
	}
}
