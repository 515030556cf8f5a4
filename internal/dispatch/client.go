package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"dialer-platform/pkg/logger"
)

// Sibling functions notified after a call is processed.
const (
	FunctionDispositionRouter     = "disposition-router"
	FunctionAnalyzeCallTranscript = "analyze-call-transcript"
)

var ErrInvalidArgument = errors.New("dispatch: invalid argument")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Function string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dispatch: %s returned %d: %s", e.Function, e.Code, e.Body)
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration

	RetryAttempts uint
	RetryMin      time.Duration
	RetryMax      time.Duration

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryMin <= 0 {
		c.RetryMin = 200 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = time.Minute
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// DispatchObserver receives one observation per Invoke.
type DispatchObserver interface {
	ObserveDispatch(function string, ok bool)
}

// Client invokes sibling serverless functions over HTTP.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	obs     DispatchObserver
}

func NewClient(cfg Config, obs DispatchObserver) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrInvalidArgument
	}
	cfg = cfg.withDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker(cfg),
		obs:     obs,
	}, nil
}

func newBreaker(cfg Config) *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:     "functions",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.From(context.Background()).Warn("circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

// Invoke POSTs payload as JSON to <base>/<function>. The response body is discarded.
func (c *Client) Invoke(ctx context.Context, function string, payload any) error {
	if function == "" {
		return ErrInvalidArgument
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatch: encode %s payload: %w", function, err)
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, function, body)
	})
	if c.obs != nil {
		c.obs.ObserveDispatch(function, err == nil)
	}
	if err != nil {
		logger.From(ctx).Warn("function dispatch failed", "function", function, "err", err)
		return err
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, function string, body []byte) ([]byte, error) {
	var out []byte
	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b, err := c.do(ctx, function, body)
			if err != nil {
				return err
			}
			out = b
			return nil
		},
		retry.Attempts(c.cfg.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(c.cfg.RetryMin),
		retry.MaxDelay(c.cfg.RetryMax),
		retry.LastErrorOnly(true),
		retry.RetryIf(shouldRetry),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func (c *Client) do(ctx context.Context, function string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+function, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Function: function, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}
