// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package tokeninfo fetches token protocol limits from indexer HTTP API.
package tokeninfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/amount"
)

const (
	// DefaultTimeout defines single request deadline.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheTTL defines how long fetched token limits are kept.
	DefaultCacheTTL = 5 * time.Minute

	// defaultDecimals is used when token does not report its decimals.
	defaultDecimals int32 = 8
)

// ErrTokenNotFound defines that indexer does not know the ticker.
var ErrTokenNotFound = errors.New("token not found")

// Config defines configurable values of token info client.
type Config struct {
	BaseURL  string        `yaml:"baseURL"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Limit describes per-mint amount cap of a token.
type Limit struct {
	Ticker   string
	Amount   uint64 // in token units.
	Decimals int32
}

// String returns limit in token display units.
func (l Limit) String() string {
	return amount.Format(l.Amount, l.Decimals, l.Decimals)
}

// Minted returns amount minted by iterations successful mints, in token display units.
func (l Limit) Minted(iterations uint64) (string, error) {
	total, err := numbers.Mul(l.Amount, iterations)
	if err != nil {
		return "", err
	}

	return amount.Format(total, l.Decimals, l.Decimals), nil
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets http client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// Client is a token info API client.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	cache   *ttlcache.Cache[string, Limit]
}

// New is a constructor for Client.
func New(config Config, opts ...Option) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}

	c := &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		timeout: config.Timeout,
		http:    http.DefaultClient,
		cache: ttlcache.New[string, Limit](
			ttlcache.WithTTL[string, Limit](config.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, Limit](),
		),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// tokenResponse is a token endpoint response body.
type tokenResponse struct {
	Message string `json:"message"`
	Result  []struct {
		Tick string `json:"tick"`
		Max  string `json:"max"`
		Lim  string `json:"lim"`
		Dec  string `json:"dec"`
	} `json:"result"`
}

// MintLimit returns per-mint amount cap of the ticker.
func (c *Client) MintLimit(ctx context.Context, ticker string) (Limit, error) {
	ticker = strings.ToUpper(ticker)
	if item := c.cache.Get(ticker); item != nil {
		return item.Value(), nil
	}

	limit, err := c.fetch(ctx, ticker)
	if err != nil {
		return Limit{}, err
	}

	c.cache.Set(ticker, limit, ttlcache.DefaultTTL)

	return limit, nil
}

// fetch requests token data of the ticker.
func (c *Client) fetch(ctx context.Context, ticker string) (Limit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/krc20/token/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Limit{}, fmt.Errorf("%w: %w", ledger.ErrExternalService, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Limit{}, fmt.Errorf("%w: token %s: %w", ledger.ErrExternalService, ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Limit{}, fmt.Errorf("%w: token %s: unexpected status %d", ledger.ErrExternalService, ticker, resp.StatusCode)
	}

	var body tokenResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Limit{}, fmt.Errorf("%w: token %s: decode response: %w", ledger.ErrExternalService, ticker, err)
	}

	if len(body.Result) == 0 {
		return Limit{}, fmt.Errorf("%w: %w: %s", ledger.ErrExternalService, ErrTokenNotFound, ticker)
	}

	token := body.Result[0]
	decimals := defaultDecimals
	if token.Dec != "" {
		dec, err := strconv.ParseInt(token.Dec, 10, 32)
		if err != nil {
			return Limit{}, fmt.Errorf("%w: token %s: invalid decimals %q", ledger.ErrExternalService, ticker, token.Dec)
		}
		decimals = int32(dec)
	}

	lim, err := strconv.ParseUint(token.Lim, 10, 64)
	if err != nil {
		return Limit{}, fmt.Errorf("%w: token %s: invalid limit %q", ledger.ErrExternalService, ticker, token.Lim)
	}

	return Limit{Ticker: ticker, Amount: lim, Decimals: decimals}, nil
}
