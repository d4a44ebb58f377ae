// Package mast provides a client for the MAST (Mikulski Archive for Space
// Telescopes) portal API.
package mast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	serviceFiltered = "Mast.Caom.Filtered"
	serviceProducts = "Mast.Caom.Products"

	statusComplete  = "COMPLETE"
	statusExecuting = "EXECUTING"
	statusError     = "ERROR"
)

// Client defines the MAST portal operations.
type Client interface {
	// QueryCriteria searches the CAOM observation table.
	QueryCriteria(ctx context.Context, c Criteria) ([]Observation, error)
	// ProductList returns the data products attached to one observation.
	ProductList(ctx context.Context, obsid string) ([]Product, error)
	// DownloadURL returns the HTTP URL serving the file behind dataURI.
	DownloadURL(dataURI string) string
}

// Criteria are the column filters of a Mast.Caom.Filtered query. Empty
// fields are not sent.
type Criteria struct {
	Collection      string
	TargetName      string
	InstrumentName  string
	DataProductType string
}

func (c Criteria) filters() []filter {
	var fs []filter
	add := func(param, value string) {
		if value != "" {
			fs = append(fs, filter{ParamName: param, Values: []string{value}})
		}
	}
	add("obs_collection", c.Collection)
	add("target_name", c.TargetName)
	add("instrument_name", c.InstrumentName)
	add("dataproduct_type", c.DataProductType)
	return fs
}

// ID is an observation identifier. MAST returns obsid either as a JSON
// string or as a bare number depending on the service.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return eris.Wrap(err, "mast: decode id")
		}
		*id = ID(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return eris.Wrap(err, "mast: decode id")
		}
		*id = ID(n.String())
	}
	return nil
}

// Observation is one row of the CAOM observation table.
type Observation struct {
	ObsID           ID     `json:"obsid"`
	ObsIDName       string `json:"obs_id"`
	Collection      string `json:"obs_collection"`
	TargetName      string `json:"target_name"`
	InstrumentName  string `json:"instrument_name"`
	DataProductType string `json:"dataproduct_type"`
}

// Product is one row of the CAOM product table.
type Product struct {
	ObsID        ID     `json:"obsID"`
	ObsIDName    string `json:"obs_id"`
	Collection   string `json:"obs_collection"`
	Filename     string `json:"productFilename"`
	DataURI      string `json:"dataURI"`
	SubGroup     string `json:"productSubGroupDescription"`
	ProductType  string `json:"productType"`
	Description  string `json:"description"`
	Size         int64  `json:"size"`
	CalibLevel   int    `json:"calib_level"`
	ProductGroup string `json:"productGroupDescription"`
}

type filter struct {
	ParamName string   `json:"paramName"`
	Values    []string `json:"values"`
}

type request struct {
	Service  string `json:"service"`
	Format   string `json:"format"`
	Params   any    `json:"params"`
	PageSize int    `json:"pagesize,omitempty"`
	Page     int    `json:"page,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
}

type response struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// Option configures the MAST client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithMaxAttempts sets how many times a request is sent when the server
// answers with a transient status. The default is a single attempt.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithPollInterval sets the wait between polls of a query MAST is still
// executing.
func WithPollInterval(d time.Duration) Option {
	return func(c *httpClient) {
		c.pollInterval = d
	}
}

type httpClient struct {
	baseURL      string
	userAgent    string
	http         *http.Client
	maxAttempts  int
	pollInterval time.Duration
	maxPolls     int
	pageSize     int
}

// NewClient creates a new MAST portal client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:      "https://mast.stsci.edu",
		userAgent:    "hubble-cli/1.0",
		maxAttempts:  1,
		pollInterval: 2 * time.Second,
		maxPolls:     30,
		pageSize:     50000,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) QueryCriteria(ctx context.Context, crit Criteria) ([]Observation, error) {
	params := map[string]any{
		"columns": "*",
		"filters": crit.filters(),
	}
	var out []Observation
	if err := c.invoke(ctx, serviceFiltered, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) ProductList(ctx context.Context, obsid string) ([]Product, error) {
	if obsid == "" {
		return nil, eris.New("mast: obsid is required")
	}
	var out []Product
	if err := c.invoke(ctx, serviceProducts, map[string]any{"obsid": obsid}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) DownloadURL(dataURI string) string {
	return c.baseURL + "/api/v0.1/Download/file?uri=" + url.QueryEscape(dataURI)
}

// invoke posts a service request and decodes its data rows into dst,
// polling while the portal reports the query as still executing.
func (c *httpClient) invoke(ctx context.Context, service string, params any, dst any) error {
	payload, err := json.Marshal(request{
		Service:  service,
		Format:   "json",
		Params:   params,
		PageSize: c.pageSize,
		Page:     1,
		Timeout:  30,
	})
	if err != nil {
		return eris.Wrap(err, "mast: marshal request")
	}
	form := url.Values{"request": {string(payload)}}.Encode()

	for poll := 0; ; poll++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/invoke", bytes.NewBufferString(form))
		if err != nil {
			return eris.Wrap(err, "mast: create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		body, statusCode, err := c.retryDo(ctx, req)
		if err != nil {
			return eris.Wrapf(err, "mast: %s request failed", service)
		}
		if statusCode != http.StatusOK {
			return eris.Errorf("mast: %s unexpected status %d: %s", service, statusCode, truncate(body, 200))
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			return eris.Wrapf(err, "mast: unmarshal %s response", service)
		}

		switch resp.Status {
		case statusComplete, "":
			if len(resp.Data) == 0 || string(resp.Data) == "null" {
				return nil
			}
			if err := json.Unmarshal(resp.Data, dst); err != nil {
				return eris.Wrapf(err, "mast: unmarshal %s data", service)
			}
			return nil
		case statusExecuting:
			if poll+1 >= c.maxPolls {
				return eris.Errorf("mast: %s still executing after %d polls", service, poll+1)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.pollInterval):
			}
		case statusError:
			return eris.Errorf("mast: %s failed: %s", service, resp.Msg)
		default:
			return eris.Errorf("mast: %s returned status %q", service, resp.Status)
		}
	}
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// retryDo executes a request with exponential backoff on transient
// failures, up to maxAttempts sends.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, 0, eris.Wrap(err, "mast: rewind request body")
			}
			retryReq.Body = b
		}

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < c.maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "mast: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < c.maxAttempts {
			lastErr = eris.Errorf("mast: status %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes)", b[:n], len(b))
}
