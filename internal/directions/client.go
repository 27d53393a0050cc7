// Package directions requests bicycle routes from an OSRM-compatible backend.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/config"
	"bikestreets_backend/platform/logger"
)

// Query is one route request as handed to the Recorder.
type Query struct {
	Origin          osrm.Coordinate
	Destination     osrm.Coordinate
	OriginName      string
	DestinationName string
}

// Recorder receives every successfully decoded response. Failures are logged
// and never reach the caller of RequestRoute.
type Recorder interface {
	Record(ctx context.Context, query Query, response *osrm.RouteServiceResponse) error
}

// Client performs route requests. It is safe for concurrent use.
type Client struct {
	scheme   string
	host     string
	profile  string
	http     *http.Client
	recorder Recorder
	log      *logger.Logger
	pending  sync.WaitGroup
}

// NewClient builds a Client for the configured backend. A nil httpClient uses
// http.DefaultClient, or a client with the configured timeout when one is set.
// recorder may be nil.
func NewClient(cfg config.DirectionsConfig, httpClient *http.Client, recorder Recorder, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
		if cfg.GetDirectionsTimeout() > 0 {
			httpClient = &http.Client{Timeout: cfg.GetDirectionsTimeout()}
		}
	}
	return &Client{
		scheme:   cfg.GetDirectionsScheme(),
		host:     cfg.GetDirectionsHost(),
		profile:  cfg.GetDirectionsProfile(),
		http:     httpClient,
		recorder: recorder,
		log:      log.WithComponent("directions"),
	}
}

// RouteURL returns the request URL for a pair of endpoints.
func (c *Client) RouteURL(origin, destination osrm.Coordinate) string {
	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "geojson")
	params.Set("alternatives", "true")
	params.Set("steps", "true")
	params.Set("annotations", "true")

	u := url.URL{
		Scheme:   c.scheme,
		Host:     c.host,
		Path:     fmt.Sprintf("/route/v1/%s/%s;%s", c.profile, origin, destination),
		RawQuery: params.Encode(),
	}
	return u.String()
}

// RequestRoute issues a single GET for the route between origin and
// destination. The HTTP status is not inspected: any body that decodes as a
// route service response is a success.
func (c *Client) RequestRoute(ctx context.Context, origin, destination osrm.Coordinate, originName, destinationName string) (*osrm.RouteServiceResponse, error) {
	reqURL := c.RouteURL(origin, destination)
	log := c.log.WithContext(ctx)
	log.RouteRequest(reqURL, originName, destinationName)

	start := time.Now()
	resp, err := c.fetch(ctx, reqURL)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		log.RouteResponse("", 0, latency, err)
		return nil, err
	}
	log.RouteResponse(resp.Code, len(resp.Routes), latency, nil)

	if c.recorder != nil {
		query := Query{
			Origin:          origin,
			Destination:     destination,
			OriginName:      originName,
			DestinationName: destinationName,
		}
		recordCtx := context.WithoutCancel(ctx)
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			if err := c.recorder.Record(recordCtx, query, resp); err != nil {
				log.Warn("debug log record failed", "error", err)
			}
		}()
	}

	return resp, nil
}

// Wait blocks until every in-flight Recorder call has returned.
func (c *Client) Wait() {
	c.pending.Wait()
}

func (c *Client) fetch(ctx context.Context, reqURL string) (*osrm.RouteServiceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &RequestError{Kind: ErrTransport, URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: ErrTransport, URL: reqURL, Err: err}
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RequestError{Kind: ErrTransport, URL: reqURL, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &RequestError{Kind: ErrEmptyData, URL: reqURL}
	}

	var out osrm.RouteServiceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &RequestError{Kind: ErrDecode, URL: reqURL, Err: err}
	}
	return &out, nil
}
