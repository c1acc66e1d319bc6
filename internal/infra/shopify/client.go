package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

const (
	serviceName    = "shopify"
	maxErrorBody   = 4 << 10
	defaultTimeout = 30 * time.Second
)

// Config identifies the theme whose assets are read and written.
type Config struct {
	StoreURL          string
	AccessToken       string
	ThemeID           string
	APIVersion        string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the Shopify Admin REST theme asset endpoint.
type Client struct {
	assetsURL   string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type assetEnvelope struct {
	Asset asset `json:"asset"`
}

type asset struct {
	Key   string  `json:"key"`
	Value *string `json:"value,omitempty"`
}

// NewClient builds the asset client. A StoreURL without scheme is served over https.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	store := strings.TrimRight(strings.TrimSpace(cfg.StoreURL), "/")
	if !strings.Contains(store, "://") {
		store = "https://" + store
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		assetsURL:   fmt.Sprintf("%s/admin/api/%s/themes/%s/assets.json", store, url.PathEscape(cfg.APIVersion), url.PathEscape(cfg.ThemeID)),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
		metrics:     m,
		logger:      logger.With("adapter", "shopify"),
	}
}

// GetAsset returns the textual value of the theme asset stored under key.
func (c *Client) GetAsset(ctx context.Context, key string) (string, error) {
	endpoint := c.assetsURL + "?" + url.Values{"asset[key]": {key}}.Encode()
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("shopify: get asset %s: %w", key, err)
	}
	var envelope assetEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDecode, "decode shopify asset", err)
	}
	if envelope.Asset.Value == nil {
		return "", apperrors.Wrap(apperrors.CodeDecode, fmt.Sprintf("shopify asset %s has no text value", key), nil)
	}
	return *envelope.Asset.Value, nil
}

// PutAsset creates or replaces the theme asset stored under key.
func (c *Client) PutAsset(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(assetEnvelope{Asset: asset{Key: key, Value: &value}})
	if err != nil {
		return fmt.Errorf("shopify: encode asset %s: %w", key, err)
	}
	if _, err := c.do(ctx, http.MethodPut, c.assetsURL, payload); err != nil {
		return fmt.Errorf("shopify: put asset %s: %w", key, err)
	}
	c.logger.InfoContext(ctx, "shopify asset written", slog.String("key", key), slog.Int("bytes", len(value)))
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(serviceName, method, 0)
		return nil, apperrors.Wrap(apperrors.CodeUpstream, "shopify request failed", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(serviceName, method, resp.StatusCode)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WarnContext(ctx, "shopify request rejected", slog.String("method", method), slog.Int("status", resp.StatusCode))
		return nil, apperrors.FromStatus(serviceName, resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstream, "read shopify response", err)
	}
	return body, nil
}
