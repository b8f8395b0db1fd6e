// Package ns pulls recent glucose entries from a Nightscout instance,
// as a continuous companion to the one-shot health export import.
package ns

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"glyko/diary/defs"

	"go.uber.org/zap"
)

const (
	entriesEndpoint = "/api/v1/entries/sgv"

	// One day's worth at five-minute sampling.
	CountLimit = 288

	mgdlPerMmol = 18
)

type Source interface {
	Readings(ctx context.Context, maxCount int) ([]*defs.GlucoseReading, error)
}

type Client struct {
	client    *http.Client
	logger    *zap.Logger
	baseURL   string
	apiSecret string
}

// entry is a Nightscout sgv document; Date is unix milliseconds and
// Sgv is mg/dL.
type entry struct {
	Date      int64   `json:"date"`
	Sgv       float64 `json:"sgv"`
	Direction string  `json:"direction"`
}

func New(cfg defs.NightscoutConfig, logger *zap.Logger) *Client {
	return &Client{
		client:    &http.Client{},
		logger:    logger,
		baseURL:   cfg.URL,
		apiSecret: cfg.APISecret,
	}
}

// Readings fetches the latest entries, oldest first.
func (c *Client) Readings(ctx context.Context, maxCount int) ([]*defs.GlucoseReading, error) {
	if maxCount > CountLimit {
		return nil, fmt.Errorf("window too large: maxCount %d", maxCount)
	}

	params := url.Values{
		"count": {strconv.Itoa(maxCount)},
	}

	c.logger.Debug("making entries request",
		zap.String("baseURL", c.baseURL),
		zap.Int("maximum count", maxCount),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+entriesEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entries request failed: %s", resp.Status)
	}

	var entries []entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		c.logger.Debug("failed to decode entries response")
		return nil, err
	}

	c.logger.Debug("received entries",
		zap.Int("count", len(entries)),
	)

	// Nightscout returns newest first; reverse into load order.
	grs := make([]*defs.GlucoseReading, len(entries))
	for i, e := range entries {
		grs[len(entries)-1-i] = transform(e)
	}

	return grs, nil
}

func transform(e entry) *defs.GlucoseReading {
	return &defs.GlucoseReading{
		Time: time.Unix(e.Date/1000, 0),
		Mmol: e.Sgv / mgdlPerMmol,
	}
}

// hashSecret hashes the API secret the way legacy Nightscout auth
// expects it.
func hashSecret(secret string) string {
	h := sha1.New()
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
