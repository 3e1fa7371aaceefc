package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lookout/internal/geo"
)

func newWikiServer(t *testing.T, handler http.HandlerFunc) *WikipediaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWikipediaProvider(srv.URL, "lookout-test/1.0", 2*time.Second)
}

func TestWikipediaSearch_ParsesGeosearch(t *testing.T) {
	var gotQuery string
	var gotUA string
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"batchcomplete":"","query":{"geosearch":[
			{"pageid":3957,"ns":0,"title":"Big Ben","lat":51.5007,"lon":-0.1245,"dist":12.3,"primary":""},
			{"pageid":123,"ns":0,"title":"Westminster Bridge","lat":51.5008,"lon":-0.1217,"dist":210.5,"primary":""}
		]}}`))
	})

	places, err := p.Search(context.Background(), geo.Coordinate{Lat: 51.5, Lng: -0.12}, 500, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
	if places[0].ID != "3957" || places[0].Title != "Big Ben" || places[0].DistanceM != 12.3 {
		t.Errorf("unexpected first place: %+v", places[0])
	}
	if places[1].Position.Lng != -0.1217 {
		t.Errorf("unexpected longitude: %v", places[1].Position.Lng)
	}
	for _, want := range []string{"list=geosearch", "gsradius=500", "gslimit=50"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if gotUA != "lookout-test/1.0" {
		t.Errorf("expected user agent to be forwarded, got %q", gotUA)
	}
}

func TestWikipediaSearch_ClampsRadius(t *testing.T) {
	var gotQuery string
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"query":{"geosearch":[]}}`))
	})

	if _, err := p.Search(context.Background(), geo.Coordinate{}, 50000, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "gsradius=10000") {
		t.Errorf("expected radius clamped to 10000, query %q", gotQuery)
	}
}

func TestWikipediaSearch_APIError(t *testing.T) {
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"invalid-coord","info":"Invalid coordinate provided"}}`))
	})

	if _, err := p.Search(context.Background(), geo.Coordinate{}, 100, 10); err == nil {
		t.Fatal("expected error for API error payload")
	}
}

func TestWikipediaSearch_BadStatus(t *testing.T) {
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := p.Search(context.Background(), geo.Coordinate{}, 100, 10); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestWikipediaDetail_ParsesExtractAndThumbnail(t *testing.T) {
	var gotQuery string
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"query":{"pages":{"3957":{"pageid":3957,"title":"Big Ben",
			"extract":"Big Ben is the nickname for the Great Bell.",
			"thumbnail":{"source":"https://upload.wikimedia.org/bigben.jpg","width":300,"height":400}}}}}`))
	})

	info, err := p.Detail(context.Background(), "3957")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Extract != "Big Ben is the nickname for the Great Bell." {
		t.Errorf("unexpected extract %q", info.Extract)
	}
	if info.Thumbnail != "https://upload.wikimedia.org/bigben.jpg" {
		t.Errorf("unexpected thumbnail %q", info.Thumbnail)
	}
	for _, want := range []string{"pageids=3957", "exsentences=3", "pithumbsize=300"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestWikipediaDetail_MissingPage(t *testing.T) {
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"pages":{"-1":{"ns":0,"title":"x","missing":true}}}}`))
	})

	if _, err := p.Detail(context.Background(), "999"); err == nil {
		t.Fatal("expected error for missing page")
	}
}

func TestWikipediaDetail_ThroughClientDegrades(t *testing.T) {
	p := newWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	d, err := NewClient(p, 0).FetchDetail(context.Background(), Candidate{ID: "1", Title: "Odd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Extract != PlaceholderExtract {
		t.Errorf("expected placeholder, got %q", d.Extract)
	}
}
