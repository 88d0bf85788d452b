package marketdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"signalreconciler/src/mapper"
)

// FeedClient pulls the latest recommendation batch from the signal engine.
// The payload shape is open-ended; normalization happens in the mapper.
type FeedClient struct {
	baseURL string
	http    *resty.Client
}

// NewFeedClient builds a client for the given signal-feed base URL.
func NewFeedClient(baseURL string) *FeedClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &FeedClient{baseURL: baseURL, http: httpClient}
}

// FetchLatest returns the engine's current batch of raw signal payloads.
func (c *FeedClient) FetchLatest() ([]mapper.SignalPayload, error) {
	var payloads []mapper.SignalPayload

	resp, err := c.http.R().
		SetResult(&payloads).
		Get("/signals/latest")

	if err != nil {
		logger.WithField("component", "FeedClient").
			WithError(err).Error("Signal feed request failed")

		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("signal feed: status %d", resp.StatusCode())
	}

	logger.WithFields(map[string]interface{}{
		"component":  "FeedClient",
		"batch_size": len(payloads),
	}).Debug("Fetched signal batch")

	return payloads, nil
}
