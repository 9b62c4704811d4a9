package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"flexify/models"
	"flexify/services/api"
)

func TestAPISearcher(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/providers/search/nearby" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`[{"_id":"p1","category":"plumber","rating":4.2,"location":{"type":"Point","coordinates":[72.8777,19.076]}}]`))
	}))
	defer srv.Close()

	searcher := &APISearcher{Client: api.NewClient(api.Options{BaseURL: srv.URL})}
	got, err := searcher.Search(context.Background(), SearchQuery{
		Category:      "plumber",
		Origin:        models.Coordinates{Lat: 19.076, Lng: 72.8777},
		MaxDistanceKm: 10,
		VerifiedOnly:  true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("providers = %+v", got)
	}
	if pos, ok := got[0].Location.Position(); !ok || pos.Lat != 19.076 {
		t.Fatalf("position = %+v", got[0].Location)
	}

	want := map[string]string{
		"category":    "plumber",
		"latitude":    "19.076",
		"longitude":   "72.8777",
		"maxDistance": "10",
		"verified":    "true",
		"available":   "true",
	}
	for k, v := range want {
		if query[k] != v {
			t.Errorf("query %s = %q, want %q", k, query[k], v)
		}
	}
}

func TestCachedSearcherWithoutCache(t *testing.T) {
	next := &gatedSearcher{results: map[models.Coordinates][]models.ProviderCandidate{placeA: {candidateNear("p", placeA)}}}
	s := &CachedSearcher{Next: next}
	got, err := s.Search(context.Background(), SearchQuery{Category: "plumber", Origin: placeA})
	if err != nil || len(got) != 1 {
		t.Fatalf("Search = %+v, %v", got, err)
	}
}

func TestSearchCacheKeyRoundsOrigin(t *testing.T) {
	a, _ := searchCacheKey(SearchQuery{Category: "cook", Origin: models.Coordinates{Lat: 19.07601, Lng: 72.87771}})
	b, _ := searchCacheKey(SearchQuery{Category: "cook", Origin: models.Coordinates{Lat: 19.07604, Lng: 72.87774}})
	c, _ := searchCacheKey(SearchQuery{Category: "maid", Origin: models.Coordinates{Lat: 19.07601, Lng: 72.87771}})
	if a != b {
		t.Fatal("nearby origins produced different keys")
	}
	if a == c {
		t.Fatal("different categories share a key")
	}
}
