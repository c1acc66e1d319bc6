package gladly

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

const (
	serviceName    = "gladly"
	maxErrorBody   = 4 << 10
	maxPages       = 1000
	defaultTimeout = 30 * time.Second
)

// Config holds the static credentials of the knowledge base API.
type Config struct {
	BaseURL  string
	OrgID    string
	Username string
	APIToken string
	Timeout  time.Duration
}

// Client reads answers from the Gladly REST API.
type Client struct {
	baseURL    string
	orgID      string
	username   string
	apiToken   string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient builds an API client using basic auth.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		orgID:      cfg.OrgID,
		username:   cfg.Username,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
		logger:     logger.With("adapter", "gladly"),
	}
}

// ListAnswers walks every page of the answers listing for lang.
func (c *Client) ListAnswers(ctx context.Context, lang string) ([]faq.Record, error) {
	params := url.Values{"lng": {lang}}
	next := c.orgURL("answers") + "?" + params.Encode()

	var records []faq.Record
	for page := 1; next != ""; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("gladly: list answers: more than %d pages", maxPages)
		}
		body, header, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("gladly: list answers page %d: %w", page, err)
		}
		items, err := parseAnswerList(body, lang)
		if err != nil {
			return nil, fmt.Errorf("gladly: list answers page %d: %w", page, err)
		}
		records = append(records, items...)
		c.logger.DebugContext(ctx, "gladly answers page", slog.String("lang", lang), slog.Int("page", page), slog.Int("items", len(items)))

		next, err = nextLink(header, next)
		if err != nil {
			return nil, fmt.Errorf("gladly: list answers page %d: %w", page, err)
		}
	}
	return records, nil
}

// GetAnswer fetches the content of one answer in lang.
func (c *Client) GetAnswer(ctx context.Context, id, lang string) (faq.Record, error) {
	endpoint := c.orgURL("answers", id, "languages", lang)
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return faq.Record{}, fmt.Errorf("gladly: get answer %s: %w", id, err)
	}
	if !gjson.ValidBytes(body) {
		return faq.Record{}, apperrors.Wrap(apperrors.CodeDecode, "gladly answer detail is not valid json", nil)
	}
	record := extractRecord(gjson.ParseBytes(body), lang)
	if record.ID == "" {
		record.ID = id
	}
	return record, nil
}

// SearchAnswers runs a full-text query against the answers in lang.
func (c *Client) SearchAnswers(ctx context.Context, query, lang string) ([]faq.Record, error) {
	params := url.Values{"q": {query}, "lng": {lang}}
	body, _, err := c.get(ctx, c.orgURL("answers-search")+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("gladly: search answers: %w", err)
	}
	records, err := parseAnswerList(body, lang)
	if err != nil {
		return nil, fmt.Errorf("gladly: search answers: %w", err)
	}
	return records, nil
}

func (c *Client) orgURL(segments ...string) string {
	escaped := make([]string, 0, len(segments)+4)
	escaped = append(escaped, c.baseURL, "api", "v1", "orgs", url.PathEscape(c.orgID))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(serviceName, http.MethodGet, 0)
		return nil, nil, apperrors.Wrap(apperrors.CodeUpstream, "gladly request failed", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(serviceName, http.MethodGet, resp.StatusCode)

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WarnContext(ctx, "gladly request rejected", slog.Int("status", resp.StatusCode), slog.String("path", req.URL.Path))
		return nil, nil, apperrors.FromStatus(serviceName, resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeUpstream, "read gladly response", err)
	}
	return body, resp.Header, nil
}

func parseAnswerList(body []byte, lang string) ([]faq.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.Wrap(apperrors.CodeDecode, "gladly response is not valid json", nil)
	}
	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		// some deployments wrap the page in an envelope
		list = root.Get("results")
		if !list.IsArray() {
			return nil, apperrors.Wrap(apperrors.CodeDecode, "gladly response is not a list of answers", nil)
		}
	}
	items := list.Array()
	records := make([]faq.Record, 0, len(items))
	for _, item := range items {
		records = append(records, extractRecord(item, lang))
	}
	return records, nil
}

func extractRecord(item gjson.Result, lang string) faq.Record {
	record := faq.Record{
		ID:       firstString(item, "id", "answerId"),
		Question: firstString(item, "name", "title", "question"),
		Answer:   firstString(item, "bodyHtml", "answer", "content"),
		Language: firstString(item, "language", "lng"),
		Category: firstString(item, "category", "type"),
	}
	if record.Language == "" {
		record.Language = lang
	}
	record.Language = strings.ToLower(record.Language)
	return record
}

func firstString(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := item.Get(path); v.Exists() && strings.TrimSpace(v.String()) != "" {
			return v.String()
		}
	}
	return ""
}

// nextLink returns the absolute rel="next" target of an RFC 8288 Link header.
func nextLink(header http.Header, current string) (string, error) {
	for _, value := range header.Values("Link") {
		for _, part := range strings.Split(value, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
			for _, param := range segments[1:] {
				param = strings.TrimSpace(param)
				if !strings.EqualFold(param, `rel="next"`) && !strings.EqualFold(param, "rel=next") {
					continue
				}
				base, err := url.Parse(current)
				if err != nil {
					return "", err
				}
				ref, err := url.Parse(target)
				if err != nil {
					return "", fmt.Errorf("parse next link: %w", err)
				}
				return base.ResolveReference(ref).String(), nil
			}
		}
	}
	return "", nil
}
