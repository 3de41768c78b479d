// Package overpass fetches raw geospatial features from an Overpass-style
// HTTP query endpoint, tiling large bounding boxes adaptively and retrying
// transient failures with backoff.
package overpass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/resilience"
)

// Dataset selects one of the query templates.
type Dataset string

const (
	DatasetRoads     Dataset = "roads"
	DatasetBuildings Dataset = "buildings"
	DatasetPlaces    Dataset = "places"
)

// Datasets lists all fetchable datasets in processing order.
var Datasets = []Dataset{DatasetRoads, DatasetBuildings, DatasetPlaces}

// Validate reports whether d names a known dataset.
func (d Dataset) Validate() error {
	switch d {
	case DatasetRoads, DatasetBuildings, DatasetPlaces:
		return nil
	}
	return eris.Errorf("overpass: unknown dataset %q", string(d))
}

const queryTimeoutSecs = 180

// Query renders the Overpass QL query for the dataset over the given box.
// Overpass bbox order is (south, west, north, east).
func (d Dataset) Query(b model.Bounds) string {
	bbox := fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	switch d {
	case DatasetRoads:
		return fmt.Sprintf(
			`[out:json][timeout:%d];(way["highway"~"motorway|trunk|primary|secondary|tertiary|residential|unclassified"](%s););out tags geom;`,
			queryTimeoutSecs, bbox)
	case DatasetBuildings:
		return fmt.Sprintf(
			`[out:json][timeout:%d];(way["building"](%s););out tags bb;`,
			queryTimeoutSecs, bbox)
	case DatasetPlaces:
		return fmt.Sprintf(
			`[out:json][timeout:%d];(node["place"~"^(neighbourhood|quarter|suburb|hamlet|village)$"](%s);way["aeroway"="terminal"](%s);relation["aeroway"="terminal"](%s););out tags center bb;`,
			queryTimeoutSecs, bbox, bbox, bbox)
	default:
		return ""
	}
}

// DecodeError marks a malformed or truncated response body. Unlike transport
// failures it is not retried or absorbed by subdivision: downstream totals
// cannot be trusted after a partial decode, so it aborts the dataset fetch.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether the error chain contains a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// ClientConfig configures the HTTP client for the remote data source.
type ClientConfig struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	// RatePerSec caps outgoing requests. Overpass instances are shared
	// infrastructure; the default is deliberately low.
	RatePerSec float64
	Burst      int
}

// Client issues bounded-size spatial queries against the remote source.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Duration(queryTimeoutSecs+30) * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "demandgen/1.0"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

// FetchTile performs one query for the dataset over the box and returns the
// decoded features. Transient failures and rate limiting are reported via
// the resilience error types so callers can retry with the right backoff;
// malformed bodies are reported as DecodeError.
func (c *Client) FetchTile(ctx context.Context, dataset Dataset, b model.Bounds) ([]model.RawFeature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limiter wait")
	}

	form := url.Values{"data": {dataset.Query(b)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "overpass: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(eris.Errorf("overpass: rate limited (%d)", resp.StatusCode))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("overpass: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("overpass: unexpected status %d", resp.StatusCode)
	}

	feats, remark, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if remark != "" {
		// Server-side warnings (e.g. partial results) are logged but do not
		// trigger recovery beyond the zero-result heuristic.
		zap.L().Warn("overpass remark",
			zap.String("dataset", string(dataset)),
			zap.String("remark", remark),
			zap.Float64("min_lon", b.MinLon),
			zap.Float64("min_lat", b.MinLat),
		)
	}
	return feats, nil
}

func toRawFeature(el element) (model.RawFeature, bool) {
	f := model.RawFeature{
		ID:   el.ID,
		Kind: model.FeatureKind(el.Type),
		Tags: el.Tags,
	}
	switch f.Kind {
	case model.FeatureNode:
		f.Geometry = []orb.Point{{el.Lon, el.Lat}}
	case model.FeatureWay, model.FeatureRelation:
		if el.Bounds != nil {
			f.Bounds = &model.Bounds{
				MinLon: el.Bounds.MinLon,
				MinLat: el.Bounds.MinLat,
				MaxLon: el.Bounds.MaxLon,
				MaxLat: el.Bounds.MaxLat,
			}
		}
		for _, p := range el.Geometry {
			f.Geometry = append(f.Geometry, orb.Point{p.Lon, p.Lat})
		}
		if len(f.Geometry) == 0 && el.Center != nil {
			f.Geometry = []orb.Point{{el.Center.Lon, el.Center.Lat}}
		}
		if f.Bounds == nil && len(f.Geometry) == 0 {
			return model.RawFeature{}, false
		}
	default:
		return model.RawFeature{}, false
	}
	return f, true
}
