package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lookout/internal/geo"
)

const (
	// DefaultWikipediaEndpoint is the English Wikipedia action API.
	DefaultWikipediaEndpoint = "https://en.wikipedia.org/w/api.php"

	extractSentences = 3
	thumbnailSize    = 300

	// geosearch rejects radii outside this range.
	minSearchRadiusM = 10
	maxSearchRadiusM = 10000
)

// WikipediaProvider queries the MediaWiki geosearch and extracts APIs.
type WikipediaProvider struct {
	endpoint  string
	userAgent string
	http      *http.Client
}

// NewWikipediaProvider returns a Provider for the given action API endpoint.
// Wikimedia rejects anonymous clients, so userAgent must identify the caller.
func NewWikipediaProvider(endpoint, userAgent string, timeout time.Duration) *WikipediaProvider {
	if endpoint == "" {
		endpoint = DefaultWikipediaEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WikipediaProvider{
		endpoint:  endpoint,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

type geoSearchResponse struct {
	Query struct {
		GeoSearch []struct {
			PageID int64   `json:"pageid"`
			Title  string  `json:"title"`
			Lat    float64 `json:"lat"`
			Lon    float64 `json:"lon"`
			Dist   float64 `json:"dist"`
		} `json:"geosearch"`
	} `json:"query"`
	Error *apiError `json:"error,omitempty"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Missing   *bool  `json:"missing,omitempty"`
			Thumbnail *struct {
				Source string `json:"source"`
			} `json:"thumbnail,omitempty"`
		} `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// Search lists pages geotagged within radiusM of center, nearest first.
func (p *WikipediaProvider) Search(ctx context.Context, center geo.Coordinate, radiusM float64, limit int) ([]Place, error) {
	radius := int(radiusM)
	if radius < minSearchRadiusM {
		radius = minSearchRadiusM
	}
	if radius > maxSearchRadiusM {
		radius = maxSearchRadiusM
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "geosearch")
	q.Set("gscoord", fmt.Sprintf("%f|%f", center.Lat, center.Lng))
	q.Set("gsradius", strconv.Itoa(radius))
	q.Set("gslimit", strconv.Itoa(limit))
	q.Set("format", "json")

	var resp geoSearchResponse
	if err := p.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("wikipedia: geosearch: %s: %s", resp.Error.Code, resp.Error.Info)
	}

	places := make([]Place, 0, len(resp.Query.GeoSearch))
	for _, r := range resp.Query.GeoSearch {
		places = append(places, Place{
			ID:        strconv.FormatInt(r.PageID, 10),
			Title:     r.Title,
			Position:  geo.Coordinate{Lat: r.Lat, Lng: r.Lon},
			DistanceM: r.Dist,
		})
	}
	return places, nil
}

// Detail returns the intro extract and thumbnail for page id.
func (p *WikipediaProvider) Detail(ctx context.Context, id string) (PageInfo, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("pageids", id)
	q.Set("prop", "extracts|pageimages")
	q.Set("exintro", "1")
	q.Set("explaintext", "1")
	q.Set("exsentences", strconv.Itoa(extractSentences))
	q.Set("piprop", "thumbnail")
	q.Set("pithumbsize", strconv.Itoa(thumbnailSize))
	q.Set("format", "json")

	var resp extractResponse
	if err := p.get(ctx, q, &resp); err != nil {
		return PageInfo{}, err
	}
	if resp.Error != nil {
		return PageInfo{}, fmt.Errorf("wikipedia: extracts: %s: %s", resp.Error.Code, resp.Error.Info)
	}

	page, ok := resp.Query.Pages[id]
	if !ok || page.Missing != nil {
		return PageInfo{}, fmt.Errorf("wikipedia: page %s not found", id)
	}
	info := PageInfo{Extract: page.Extract}
	if page.Thumbnail != nil {
		info.Thumbnail = page.Thumbnail.Source
	}
	return info, nil
}

func (p *WikipediaProvider) get(ctx context.Context, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("wikipedia: build request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wikipedia: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("wikipedia: unmarshal response: %w", err)
	}
	return nil
}
