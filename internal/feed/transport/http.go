package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// DefaultBackoff is used when an Opener is built without one.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Options configure an Opener.
type Options struct {
	Name    string
	Backoff BackoffConfig
	// RequestsPerSecond caps outbound requests. Zero disables the limit.
	RequestsPerSecond float64
	UserAgent         string
}

// Opener opens microWFS responses over HTTP. Only opening the connection is
// retried; a body that breaks mid-read is reported to the reader as is.
type Opener struct {
	name      string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

// NewOpener returns an Opener sharing client.
func NewOpener(client *http.Client, opts Options) *Opener {
	if opts.Name == "" {
		opts.Name = "microwfs"
	}
	if opts.Backoff == (BackoffConfig{}) {
		opts.Backoff = DefaultBackoff
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A 4xx says the request was wrong, not that the source is down.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUnexpected)
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Opener{
		name:      opts.Name,
		userAgent: opts.UserAgent,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff,
		},
		circuit: cb,
		limiter: limiter,
	}
}

// Pool hands out one Opener per source endpoint, so each endpoint has its
// own circuit breaker and rate limit.
type Pool struct {
	mu      sync.Mutex
	client  *http.Client
	opts    Options
	openers map[string]*Opener
}

// NewPool returns a Pool whose openers share client and opts.
func NewPool(client *http.Client, opts Options) *Pool {
	if opts.Name == "" {
		opts.Name = "microwfs"
	}
	return &Pool{client: client, opts: opts, openers: make(map[string]*Opener)}
}

// For returns the Opener for endpoint, creating it on first use.
func (p *Pool) For(endpoint string) *Opener {
	p.mu.Lock()
	defer p.mu.Unlock()

	if o, ok := p.openers[endpoint]; ok {
		return o
	}
	opts := p.opts
	opts.Name = p.opts.Name + " " + endpoint
	o := NewOpener(p.client, opts)
	p.openers[endpoint] = o
	return o
}

// Open issues a GET for url and returns the response body.
func (o *Opener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/xml, application/xml")
		if o.userAgent != "" {
			req.Header.Set("User-Agent", o.userAgent)
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, o.httpCfg, o.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				switch {
				case resp.StatusCode == http.StatusTooManyRequests:
					return nil, errRateLimited
				case resp.StatusCode >= 500:
					return nil, errServerError
				default:
					return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
				}
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		// Client errors other than 429 will not succeed on retry.
		if errors.Is(err, errUnexpected) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
