package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/pkg/httputil"
	"github.com/creco/imaikura/pkg/logger"
)

const exchangeRatesPath = "/api/v3/exchange_rates"

// Client fetches exchange rates from the CoinGecko exchange_rates endpoint
// ⭐ SSOT: 為替レート API 呼び出しはこのクライアントでのみ
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new CoinGecko client. baseURL has no trailing path,
// e.g. https://api.coingecko.com.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name identifies the provider in cache keys and logs
func (c *Client) Name() string {
	return "coingecko"
}

// exchangeRatesResponse is the envelope of /exchange_rates
type exchangeRatesResponse struct {
	Rates json.RawMessage `json:"rates"`
}

// FetchRates fetches the current rate set and checks that every required
// currency is present.
func (c *Client) FetchRates(ctx context.Context) (rates.RateSet, error) {
	var resp exchangeRatesResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+exchangeRatesPath, &resp); err != nil {
		var apiErr *httputil.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		// JSON として読めない
		return nil, &rates.PayloadError{Err: fmt.Errorf("%w: %v", rates.ErrInvalidPayload, err)}
	}

	set, err := decodeRates(resp.Rates)
	if err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	c.logger.WithField("currencies", len(set)).Debug("CoinGecko rates decoded")
	return set, nil
}

func decodeRates(raw json.RawMessage) (rates.RateSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &rates.PayloadError{Err: rates.ErrInvalidPayload}
	}

	var set rates.RateSet
	if err := json.Unmarshal(trimmed, &set); err != nil {
		return nil, &rates.PayloadError{Err: fmt.Errorf("%w: %v", rates.ErrInvalidPayload, err)}
	}
	return set, nil
}
