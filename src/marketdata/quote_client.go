package marketdata

// REST client for the market-data collaborator that serves premarket
// reference prices (LTP). Resty only, internal retry.

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 4
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// QuoteResponse is the market-data service's answer for one symbol.
type QuoteResponse struct {
	Symbol string  `json:"symbol"`
	LTP    float64 `json:"ltp"`
	AsOf   string  `json:"as_of,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// QuoteClient fetches last-traded prices over REST.
type QuoteClient struct {
	baseURL string
	http    *resty.Client
}

// NewQuoteClient builds a client for the given market-data base URL.
func NewQuoteClient(baseURL string) *QuoteClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &QuoteClient{baseURL: baseURL, http: httpClient}
}

// isRetryableResp retries on transport errors, rate limiting and 5xx.
func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == 429 || code >= 500
}

// LastTradedPrice returns the current LTP for a symbol. A missing or invalid
// quote is an error; premarket adjustment skips that symbol and moves on.
func (c *QuoteClient) LastTradedPrice(symbol string) (float64, error) {
	var quote QuoteResponse

	resp, err := c.http.R().
		SetQueryParam("symbol", symbol).
		SetResult(&quote).
		Get("/quotes/ltp")

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "QuoteClient",
			"symbol":    symbol,
		}).WithError(err).Error("LTP request failed")

		return 0, err
	}

	if resp.IsError() {
		return 0, fmt.Errorf("ltp request for %s: status %d", symbol, resp.StatusCode())
	}

	if quote.Error != "" {
		return 0, fmt.Errorf("ltp request for %s: %s", symbol, quote.Error)
	}

	if quote.LTP <= 0 {
		return 0, fmt.Errorf("no usable quote for %s", symbol)
	}

	return quote.LTP, nil
}

// PriceFunc adapts the client to the premarket adjuster's lookup signature.
func (c *QuoteClient) PriceFunc() func(symbol string) (float64, error) {
	return c.LastTradedPrice
}
