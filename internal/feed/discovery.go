package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Feed key naming conventions on the Adafruit IO account.
const (
	LEDPrefix = "dadn-led"
	FanPrefix = "dadn-fan"
)

// Info describes a discovered LED or fan feed.
type Info struct {
	Key         string
	Description string
	LastValue   string
}

// SensorInfo describes a discovered sensor feed. Sensors are read-only and
// carry a unit alongside the numeric value.
type SensorInfo struct {
	Key         string
	Description string
	LastValue   float64
	Unit        string
}

// sensorCatalog maps the fixed sensor feed keys to display metadata.
var sensorCatalog = map[string]struct {
	description string
	unit        string
}{
	"dadn-temp":  {"Temperature", "°C"},
	"dadn-light": {"Light", "%"},
	"dadn-humi":  {"Humidity", "%"},
}

// Discoverer enumerates an account's feeds by kind.
//
// An account with no matching feeds yields an empty slice, not an error.
// Network and auth failures surface as errors wrapping ErrDiscoveryFailed;
// the registry isolates those per kind.
type Discoverer interface {
	LEDFeeds(ctx context.Context, account Account) ([]Info, error)
	FanFeeds(ctx context.Context, account Account) ([]Info, error)
	SensorFeeds(ctx context.Context, account Account) ([]SensorInfo, error)
}

// HTTPDiscovery queries the Adafruit IO REST feed-listing endpoint.
type HTTPDiscovery struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDiscovery creates a discoverer against the given REST base URL
// (normally https://io.adafruit.com/api/v2). Every request is bounded by
// the given timeout.
func NewHTTPDiscovery(baseURL string, timeout time.Duration) *HTTPDiscovery {
	return &HTTPDiscovery{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// apiFeed is the wire shape of a feed record in the listing response.
type apiFeed struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	LastValue   string `json:"last_value"`
}

// fetchFeeds retrieves the account's full feed list.
func (d *HTTPDiscovery) fetchFeeds(ctx context.Context, account Account) ([]apiFeed, error) {
	url := fmt.Sprintf("%s/%s/feeds", d.baseURL, account.Username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	req.Header.Set("X-AIO-Key", account.Key)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed listing returned %d", ErrDiscoveryFailed, resp.StatusCode)
	}

	var feeds []apiFeed
	if err := json.NewDecoder(resp.Body).Decode(&feeds); err != nil {
		return nil, fmt.Errorf("%w: decoding feed list: %w", ErrDiscoveryFailed, err)
	}

	return feeds, nil
}

// LEDFeeds returns the account's feeds whose keys start with the LED prefix.
func (d *HTTPDiscovery) LEDFeeds(ctx context.Context, account Account) ([]Info, error) {
	return d.feedsByPrefix(ctx, account, LEDPrefix)
}

// FanFeeds returns the account's feeds whose keys start with the fan prefix.
func (d *HTTPDiscovery) FanFeeds(ctx context.Context, account Account) ([]Info, error) {
	return d.feedsByPrefix(ctx, account, FanPrefix)
}

func (d *HTTPDiscovery) feedsByPrefix(ctx context.Context, account Account, prefix string) ([]Info, error) {
	feeds, err := d.fetchFeeds(ctx, account)
	if err != nil {
		return nil, err
	}

	matched := make([]Info, 0, len(feeds))
	for _, f := range feeds {
		if strings.HasPrefix(f.Key, prefix) {
			matched = append(matched, Info{
				Key:         f.Key,
				Description: f.Description,
				LastValue:   f.LastValue,
			})
		}
	}
	return matched, nil
}

// SensorFeeds returns the account's sensor feeds. Only the fixed sensor
// keys are recognised; descriptions and units come from the catalog, not
// the broker.
func (d *HTTPDiscovery) SensorFeeds(ctx context.Context, account Account) ([]SensorInfo, error) {
	feeds, err := d.fetchFeeds(ctx, account)
	if err != nil {
		return nil, err
	}

	matched := make([]SensorInfo, 0, len(sensorCatalog))
	for _, f := range feeds {
		meta, ok := sensorCatalog[f.Key]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(f.LastValue, 64)
		if err != nil {
			value = 0
		}
		matched = append(matched, SensorInfo{
			Key:         f.Key,
			Description: meta.description,
			LastValue:   value,
			Unit:        meta.unit,
		})
	}
	return matched, nil
}
