// Package sheets talks to the spreadsheet-backed vendor directory: an
// RPC-style web script that searches vendors and banks, adds vendors and
// generates remittance workbooks.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/paydesk/remitsheet/internal/metrics"
)

const (
	actionSearch     = "search"
	actionSearchBank = "searchBank"
	actionAdd        = "add"
	actionUpdateMain = "updateMainData"
	actionDownload   = "download"

	maxResponseBytes = 32 << 20
)

// Options configures a Client.
type Options struct {
	ScriptURL         string
	HTTPClient        *http.Client // defaults to a client with Timeout
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables throttling
	Burst             int
	BankCacheTTL      time.Duration // <= 0 disables the bank cache
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Client calls the spreadsheet script.
type Client struct {
	scriptURL string
	http      *http.Client
	limiter   *rate.Limiter
	banks     *cache.Cache
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	var banks *cache.Cache
	if opts.BankCacheTTL > 0 {
		banks = cache.New(opts.BankCacheTTL, 2*opts.BankCacheTTL)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		scriptURL: strings.TrimSpace(opts.ScriptURL),
		http:      hc,
		limiter:   limiter,
		banks:     banks,
		log:       log.Named("sheets"),
		metrics:   opts.Metrics,
	}
}

type request struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// call posts {action, payload} to the script and decodes the envelope's data
// into out.
func (c *Client) call(ctx context.Context, action string, payload, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveCall(action, outcome(err), time.Since(start))
		if err != nil {
			c.log.Warn("script call failed", zap.String("action", action), zap.Error(err))
		}
	}()

	if !strings.HasPrefix(c.scriptURL, "https://") {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: waiting for rate limiter: %w", action, err)
	}

	body, err := json.Marshal(request{Action: action, Payload: payload})
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scriptURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", action, err)
	}
	// text/plain keeps browsers from preflighting; the script expects it.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Action: action, Code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return fmt.Errorf("%s: decoding response: %w", action, err)
	}
	if !env.Success {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = "an unknown error occurred in the script execution"
		}
		return &RemoteError{Action: action, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decoding data: %w", action, err)
	}
	return nil
}

// Download fetches the bytes behind a generated artifact URL.
func (c *Client) Download(ctx context.Context, url string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveCall(actionDownload, outcome(err), time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download: building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Action: actionDownload, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Action: actionDownload, Code: resp.StatusCode}
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Action: actionDownload, Err: err}
	}
	return data, nil
}

func outcome(err error) string {
	var (
		statusErr *StatusError
		remoteErr *RemoteError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsConnectivity(err):
		return metrics.OutcomeConnectivity
	case errors.As(err, &statusErr):
		return metrics.OutcomeStatus
	case errors.As(err, &remoteErr):
		return metrics.OutcomeRemote
	}
	return metrics.OutcomeError
}
