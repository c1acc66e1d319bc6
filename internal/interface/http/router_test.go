package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/shopify"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

const (
	templatePath = "templates/page.faq.json"
	testTemplate = `{"sections":{"faq-1":{"type":"faq","blocks":{"b1":{"type":"question","settings":{"question_handle":"livraison","heading":"Livraison ?","question_content":"<p>Oui</p>"}}},"block_order":["b1"],"settings":{}}}}`
)

func TestRouter_Health(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, routerOptions{}), http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_ListQuestions(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, routerOptions{}), http.MethodGet, "/api/v1/questions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Questions []faq.Entry `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Questions, 1)
	require.Equal(t, "livraison", body.Questions[0].Handle)
}

func TestRouter_ListSections(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, routerOptions{}), http.MethodGet, "/api/v1/sections", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"faq-1"`)
}

func TestRouter_AddQuestionThenDuplicate(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{})
	payload := `{"handle":"q1","heading":"How do returns work?","content":"<p>30 days</p>"}`

	rec := performRequest(server, http.MethodPost, "/api/v1/questions", payload, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry faq.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, "q1", entry.Handle)
	require.Equal(t, "faq-1", entry.SectionID)

	rec = performRequest(server, http.MethodPost, "/api/v1/questions", payload, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, apperrors.CodeDuplicateHandle, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_AddQuestionInvalidJSON(t *testing.T) {
	rec := performRequest(newRouterUnderTest(t, routerOptions{}), http.MethodPost, "/api/v1/questions", `{"handle":1}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_RemoveQuestion(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{})

	rec := performRequest(server, http.MethodDelete, "/api/v1/questions/livraison", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = performRequest(server, http.MethodDelete, "/api/v1/questions/nonexistent-handle", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, apperrors.CodeNotFound, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_Sync(t *testing.T) {
	stub := &stubMapper{
		syncFn: func(_ context.Context, req mapper.SyncRequest) (mapper.SyncReport, error) {
			require.True(t, req.DryRun)
			require.Equal(t, []string{"fr-ca"}, req.Languages)
			return mapper.SyncReport{DryRun: true, TotalAdded: 2}, nil
		},
	}
	rec := performRequest(newRouterUnderTest(t, routerOptions{mapper: stub}), http.MethodPost, "/api/v1/sync", `{"languages":["fr-ca"],"dryRun":true}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report mapper.SyncReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 2, report.TotalAdded)
}

func TestRouter_SyncMapsErrorCodes(t *testing.T) {
	stub := &stubMapper{
		syncFn: func(context.Context, mapper.SyncRequest) (mapper.SyncReport, error) {
			return mapper.SyncReport{}, apperrors.Wrap(apperrors.CodeInvalidInput, "language es-mx is not supported", nil)
		},
	}
	server := newRouterUnderTest(t, routerOptions{mapper: stub})

	rec := performRequest(server, http.MethodPost, "/api/v1/sync", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeErrorBody(t, rec.Body.Bytes())["error"]["message"], "es-mx")

	stub.syncFn = func(context.Context, mapper.SyncRequest) (mapper.SyncReport, error) {
		return mapper.SyncReport{}, apperrors.FromStatus("gladly", http.StatusServiceUnavailable, "down")
	}
	rec = performRequest(server, http.MethodPost, "/api/v1/sync", "", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_RequiresBearerTokenWhenSecretSet(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{secret: "s3cret"})

	rec := performRequest(server, http.MethodGet, "/api/v1/questions", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(server, http.MethodGet, "/api/v1/questions", "", "Token abc")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := IssueToken("other", "ops", time.Hour)
	require.NoError(t, err)
	rec = performRequest(server, http.MethodGet, "/api/v1/questions", "", "Bearer "+forged)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "invalid_token", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	token, err := IssueToken("s3cret", "ops", time.Hour)
	require.NoError(t, err)
	rec = performRequest(server, http.MethodGet, "/api/v1/questions", "", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken("s3cret", "ops", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	require.Error(t, err)

	_, err = IssueToken("", "ops", time.Hour)
	require.Error(t, err)
}

func TestRouter_Metrics(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{metrics: metrics.New()})

	performRequest(server, http.MethodPost, "/api/v1/questions", `{"handle":"q1","heading":"Q","content":"A"}`, "")
	rec := performRequest(server, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `faqsync_theme_mutations_total{operation="add",outcome="ok"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{rateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}})

	require.Equal(t, http.StatusOK, performRequest(server, http.MethodGet, "/healthz", "", "").Code)
	rec := performRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, routerOptions{origins: []string{"https://admin.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/questions", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

type routerOptions struct {
	secret    string
	mapper    mapper.Service
	metrics   *metrics.Metrics
	rateLimit config.RateLimitConfig
	origins   []string
}

func newRouterUnderTest(t *testing.T, opts routerOptions) *http.Server {
	t.Helper()
	logger := newTestLogger()
	assets := shopify.NewMemoryAssets(map[string]string{templatePath: testTemplate})
	store := storefront.NewService(storefront.Config{FilePath: templatePath, SectionID: "faq-1"}, assets, nil, opts.metrics, logger)
	if opts.mapper == nil {
		opts.mapper = &stubMapper{}
	}
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			AllowOrigins: opts.origins,
			RateLimit:    opts.rateLimit,
		},
		Admin: config.AdminConfig{JWTSecret: opts.secret},
	}
	return NewRouter(cfg, NewHandler(store, opts.mapper, logger), opts.metrics)
}

func performRequest(server *http.Server, method, path, body, auth string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubMapper struct {
	syncFn func(ctx context.Context, req mapper.SyncRequest) (mapper.SyncReport, error)
}

func (s *stubMapper) Map(context.Context, mapper.MapRequest) (mapper.MapReport, error) {
	return mapper.MapReport{}, nil
}

func (s *stubMapper) Sync(ctx context.Context, req mapper.SyncRequest) (mapper.SyncReport, error) {
	if s.syncFn != nil {
		return s.syncFn(ctx, req)
	}
	return mapper.SyncReport{}, nil
}

func (s *stubMapper) Match(context.Context, mapper.MatchRequest) ([]faq.Link, error) {
	return nil, nil
}

func (s *stubMapper) Rehandle(context.Context, mapper.RehandleRequest) (storefront.RehandleResult, error) {
	return storefront.RehandleResult{}, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestClientLimitersEvictIdleClients(t *testing.T) {
	limiters := newClientLimiters(1, 1)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, limiters.allow("10.0.0.1", start))
	require.False(t, limiters.allow("10.0.0.1", start))
	require.True(t, limiters.allow("10.0.0.2", start.Add(visitorTTL+time.Second)))
	require.Len(t, limiters.clients, 1)
}
