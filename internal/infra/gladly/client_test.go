package gladly

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:  server.URL,
		OrgID:    "org-1",
		Username: "bot@example.com",
		APIToken: "secret",
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListAnswersFollowsNextLink(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "bot@example.com", user)
		require.Equal(t, "secret", pass)
		require.Equal(t, "/api/v1/orgs/org-1/answers", r.URL.Path)
		require.Equal(t, "fr-ca", r.URL.Query().Get("lng"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", `</api/v1/orgs/org-1/answers?lng=fr-ca&page=2>; rel="next"`)
			fmt.Fprint(w, `[{"id":"a1","name":"Retours ?","bodyHtml":"<p>30 jours</p>"}]`)
			return
		}
		fmt.Fprint(w, `[{"id":"a2","title":"Livraison","answer":"Gratuite","type":"shipping"}]`)
	}))

	records, err := client.ListAnswers(context.Background(), "fr-ca")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, records, 2)
	require.Equal(t, "a1", records[0].ID)
	require.Equal(t, "Retours ?", records[0].Question)
	require.Equal(t, "<p>30 jours</p>", records[0].Answer)
	require.Equal(t, "fr-ca", records[0].Language)
	require.Equal(t, "Livraison", records[1].Question)
	require.Equal(t, "Gratuite", records[1].Answer)
	require.Equal(t, "shipping", records[1].Category)
}

func TestListAnswersPropagatesStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))

	_, err := client.ListAnswers(context.Background(), "en-us")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	var statusErr *apperrors.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.Status)
	require.Contains(t, statusErr.Body, "bad credentials")
}

func TestGetAnswerUsesLanguagePath(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/orgs/org-1/answers/a1/languages/en-us", r.URL.Path)
		fmt.Fprint(w, `{"name":"Returns","bodyHtml":"<p>30 days</p>","category":"orders"}`)
	}))

	record, err := client.GetAnswer(context.Background(), "a1", "en-us")
	require.NoError(t, err)
	require.Equal(t, "a1", record.ID)
	require.Equal(t, "Returns", record.Question)
	require.Equal(t, "orders", record.Category)
	require.Equal(t, "en-us", record.Language)
}

func TestGetAnswerNotFound(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	_, err := client.GetAnswer(context.Background(), "missing", "en-us")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSearchAnswersSendsQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/orgs/org-1/answers-search", r.URL.Path)
		require.Equal(t, "sapin", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"results":[{"id":"s1","name":"Sapin naturel"}]}`)
	}))

	records, err := client.SearchAnswers(context.Background(), "sapin", "fr-ca")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Sapin naturel", records[0].Question)
}

func TestParseAnswerListRejectsGarbage(t *testing.T) {
	_, err := parseAnswerList([]byte(`{"answers":`), "fr-ca")
	require.True(t, apperrors.IsCode(err, apperrors.CodeDecode))

	_, err = parseAnswerList([]byte(`{"count":3}`), "fr-ca")
	require.True(t, apperrors.IsCode(err, apperrors.CodeDecode))
}

func TestNextLink(t *testing.T) {
	header := http.Header{}
	header.Add("Link", `<https://x.test/a?page=1>; rel="prev", <https://x.test/a?page=3>; rel="next"`)
	next, err := nextLink(header, "https://x.test/a?page=2")
	require.NoError(t, err)
	require.Equal(t, "https://x.test/a?page=3", next)

	next, err = nextLink(http.Header{}, "https://x.test/a")
	require.NoError(t, err)
	require.Empty(t, next)
}
