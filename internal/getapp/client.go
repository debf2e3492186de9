// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package getapp is an instrumented client for the GetApp map delivery API.
package getapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/metrics"
	"github.com/ManuGH/getprobe/internal/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 8 << 20
	maxErrorBody   = 512
)

var errRateLimited = errors.New("client rate limit")

// ResponseValidator checks a successful response against an API contract.
type ResponseValidator interface {
	ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error
}

// Options tunes a Client. The zero value is usable.
type Options struct {
	Timeout time.Duration
	// HTTPClient replaces the default traced client (tests).
	HTTPClient *http.Client
	// Breaker is shared across clients so that state survives between runs.
	Breaker *resilience.CircuitBreaker
	// Limiter paces outbound requests. Nil means unlimited.
	Limiter *rate.Limiter
	// Validator checks 2xx JSON responses. Violations fail the request only when StrictContract is set.
	Validator      ResponseValidator
	StrictContract bool
}

// Client talks to one GetApp deployment. It is safe for concurrent use.
type Client struct {
	base      string
	http      *http.Client
	breaker   *resilience.CircuitBreaker
	limiter   *rate.Limiter
	validator ResponseValidator
	strict    bool

	mu    sync.RWMutex
	token string
}

// New creates a client for baseURL. Trailing slashes are stripped.
func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		base := http.DefaultTransport.(*http.Transport).Clone()
		hc = &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(base,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "getapp " + r.Method + " " + r.URL.Path
				}),
			),
		}
	}
	return &Client{
		base:      strings.TrimRight(baseURL, "/"),
		http:      hc,
		breaker:   opts.Breaker,
		limiter:   opts.Limiter,
		validator: opts.Validator,
		strict:    opts.StrictContract,
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ResolveURL turns an endpoint into an absolute URL. Values starting with
// "http" are used as-is; anything else is joined to the base URL with exactly one slash.
func (c *Client) ResolveURL(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	return c.base + "/" + strings.TrimLeft(endpoint, "/")
}

// JSONSidecarURL returns the metadata URL that accompanies a GeoPackage download.
func JSONSidecarURL(gpkgURL string) string {
	return strings.ReplaceAll(gpkgURL, ".gpkg", ".json")
}

// NewBreaker returns a circuit breaker that only trips on upstream failures.
// A panic while handling a response also counts as one.
func NewBreaker(threshold int, reset time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker("getapp", threshold, reset,
		resilience.WithFailurePredicate(tripsBreaker),
		resilience.WithPanicRecovery(true))
}

// call describes one request. route is the metric label; target is the
// concrete path or absolute URL.
type call struct {
	op     string
	method string
	route  string
	target string
	body   any
	out    any
	sink   io.Writer
}

// do sends the request through the limiter and breaker, records metrics and
// decodes the response. It returns the number of body bytes written to sink.
func (c *Client) do(ctx context.Context, cl call) (int64, error) {
	logger := log.WithComponentFromContext(ctx, "getapp")
	target := c.ResolveURL(cl.target)

	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return 0, fmt.Errorf("getapp: %s: encode request: %w", cl.op, err)
		}
		metrics.ObserveRequestSize(len(payload))
	}

	logger.Info().
		Str(log.FieldEvent, "getapp.request").
		Str(log.FieldMethod, cl.method).
		Str(log.FieldURL, target).
		Msgf("making %s request to %s", cl.method, target)

	var (
		n   int64
		err error
	)
	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			err = transportError(cl.op, cl.route, fmt.Errorf("%w: %w", errRateLimited, werr))
		}
	}
	if err == nil {
		exec := func() error {
			var rerr error
			n, rerr = c.roundTrip(ctx, cl, target, payload)
			return rerr
		}
		if c.breaker != nil {
			err = c.breaker.Execute(exec)
		} else {
			err = exec()
		}
		if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				err = transportError(cl.op, cl.route, err)
			}
		}
	}

	if err != nil {
		status := StatusCode(err)
		errType := ErrorType(err)
		if status >= 400 || status == 0 {
			metrics.IncFailedRequest(cl.route, status, errType)
		}
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "getapp.request_failed").
			Str(log.FieldMethod, cl.method).
			Str(log.FieldEndpoint, cl.route).
			Str(log.FieldURL, target).
			Int(log.FieldStatusCode, status).
			Str(log.FieldErrorType, errType).
			Msg("request failed")
		return n, err
	}
	return n, nil
}

func (c *Client) roundTrip(ctx context.Context, cl call, target string, payload []byte) (int64, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return 0, transportError(cl.op, cl.route, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	done := metrics.RequestStarted()
	defer done()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, transportError(cl.op, cl.route, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.IncRequest(cl.route, cl.method)

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.ObserveRequestDuration(cl.route, time.Since(start))
		return 0, statusError(cl.op, cl.route, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if cl.sink != nil {
		n, err := io.Copy(cl.sink, resp.Body)
		metrics.ObserveRequestDuration(cl.route, time.Since(start))
		if err != nil {
			return n, transportError(cl.op, cl.route, err)
		}
		return n, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObserveRequestDuration(cl.route, time.Since(start))
	if err != nil {
		return 0, transportError(cl.op, cl.route, err)
	}

	if c.validator != nil && len(data) > 0 {
		if verr := c.validator.ValidateResponse(ctx, req, resp.StatusCode, resp.Header, data); verr != nil {
			metrics.IncContractViolation(cl.route)
			log.WithComponentFromContext(ctx, "getapp").Warn().
				Err(verr).
				Str(log.FieldEvent, "getapp.contract_violation").
				Str(log.FieldEndpoint, cl.route).
				Bool("strict", c.strict).
				Msg("response does not match API contract")
			if c.strict {
				return 0, &APIError{Sentinel: ErrBadResponse, Op: cl.op, Endpoint: cl.route,
					Status: resp.StatusCode, Type: ErrorTypeContract, Err: verr}
			}
		}
	}

	if cl.out != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return 0, &APIError{Sentinel: ErrBadResponse, Op: cl.op, Endpoint: cl.route,
				Status: resp.StatusCode, Type: ErrorTypeDecode, Err: errors.New("empty body")}
		}
		if err := json.Unmarshal(data, cl.out); err != nil {
			return 0, &APIError{Sentinel: ErrBadResponse, Op: cl.op, Endpoint: cl.route,
				Status: resp.StatusCode, Type: ErrorTypeDecode, Err: err}
		}
	}
	return int64(len(data)), nil
}
