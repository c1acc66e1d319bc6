package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/bootstrap"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/export"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/backup"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/faqrepo"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/mappingstore"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/shopify"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/tabular"
	httpiface "github.com/AxialDev/faq-mapping-gladly-shopify/internal/interface/http"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

const (
	templatePath = "templates/page.faq.json"
	testTemplate = `{"sections":{"faq-1":{"type":"faq","blocks":{},"block_order":[],"settings":{}}}}`
)

type stubSource map[string][]faq.Record

func (s stubSource) ListAnswers(_ context.Context, lang string) ([]faq.Record, error) {
	return s[lang], nil
}

func (s stubSource) GetAnswer(_ context.Context, id, lang string) (faq.Record, error) {
	for _, rec := range s[lang] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return faq.Record{}, apperrors.Wrap(apperrors.CodeNotFound, id, nil)
}

type testApp struct {
	app     *bootstrap.App
	dir     string
	assets  *shopify.MemoryAssets
	backups *backup.MemoryStore
	archive *faqrepo.MemoryRepository
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	cfg := &config.Config{Admin: config.AdminConfig{JWTSecret: "s3cret"}}
	langs := faq.Languages{"fr-ca", "en-us"}

	assets := shopify.NewMemoryAssets(map[string]string{templatePath: testTemplate})
	backups := backup.NewMemoryStore()
	store := storefront.NewService(storefront.Config{FilePath: templatePath, SectionID: "faq-1", BackupEnabled: true}, assets, backups, nil, logger)

	files := tabular.NewDir(dir)
	archive := faqrepo.NewMemoryRepository()
	source := stubSource{
		"fr-ca": {{ID: "g1", Question: "Retours ?", Answer: "30 jours", Language: "fr-ca"}},
		"en-us": {{ID: "g1", Question: "Returns?", Answer: "<p>30 days</p>", Language: "en-us"}},
	}
	exporter := export.NewService(export.Config{
		SupportedLanguages: langs,
		CombinedFile:       tabular.CombinedFileName,
		LanguageFile:       tabular.LanguageFileName,
	}, source, files, archive, nil, logger)

	mapperSvc := mapper.NewService(mapper.Config{
		SupportedLanguages: langs,
		DefaultCategory:    "Général",
		MatchThreshold:     80,
		CombinedFile:       tabular.CombinedFileName,
		LanguageFile:       tabular.LanguageFileName,
	}, mapper.Dependencies{
		Storefront: store,
		Files:      files,
		Source:     exporter,
		Links:      mappingstore.NewFileStore(filepath.Join(dir, "mapping.csv")),
		Logger:     logger,
	})

	handler := httpiface.NewHandler(store, mapperSvc, logger)
	server := httpiface.NewRouter(cfg, handler, nil)
	app := bootstrap.NewApp(cfg, logger, server, exporter, store, mapperSvc)
	return testApp{app: app, dir: dir, assets: assets, backups: backups, archive: archive}
}

func (ta testApp) run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), ta.app, args[0], args[1:], &out)
	return &out, err
}

func TestRunAddThenList(t *testing.T) {
	ta := newTestApp(t)

	_, err := ta.run(t, "add", "-handle", "q1", "-heading", "How do returns work?", "-content", "<p>30 days</p>")
	require.NoError(t, err)

	out, err := ta.run(t, "list")
	require.NoError(t, err)
	var entries []faq.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "q1", entries[0].Handle)
	require.Equal(t, "<p>30 days</p>", entries[0].Content)
	require.Len(t, ta.backups.Keys(), 1)
}

func TestRunRemoveMissingHandle(t *testing.T) {
	ta := newTestApp(t)

	_, err := ta.run(t, "remove", "-handle", "nonexistent-handle")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestRunUnknownCommand(t *testing.T) {
	ta := newTestApp(t)

	_, err := ta.run(t, "publish")
	require.ErrorIs(t, err, errUsage)
}

func TestLookupNeedsNoApp(t *testing.T) {
	_, err := lookup("bogus")
	require.ErrorIs(t, err, errUsage)

	cmd, err := lookup("sync")
	require.NoError(t, err)
	require.NotNil(t, cmd)
}

func TestRunExportThenMap(t *testing.T) {
	ta := newTestApp(t)

	out, err := ta.run(t, "export")
	require.NoError(t, err)
	var result export.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, 2, result.Total)
	require.FileExists(t, filepath.Join(ta.dir, tabular.CombinedFileName))
	require.FileExists(t, filepath.Join(ta.dir, tabular.LanguageFileName("fr-ca")))

	out, err = ta.run(t, "archive", "-lang", "fr-ca")
	require.NoError(t, err)
	var archived []faq.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &archived))
	require.Len(t, archived, 1)
	require.Equal(t, "g1", archived[0].ID)

	out, err = ta.run(t, "map", "-lang", "fr-ca")
	require.NoError(t, err)
	var report mapper.MapReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, 1, report.Added)

	raw, err := os.ReadFile(filepath.Join(ta.dir, "mapping.csv"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "g1")
}

func TestRunSyncDryRun(t *testing.T) {
	ta := newTestApp(t)

	out, err := ta.run(t, "sync", "-lang", "fr-ca,en-us", "-dry-run")
	require.NoError(t, err)
	var report mapper.SyncReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.True(t, report.DryRun)
	require.Len(t, report.Languages, 2)
	require.Equal(t, 0, ta.assets.Writes())
}

func TestRunToken(t *testing.T) {
	ta := newTestApp(t)

	out, err := ta.run(t, "token", "-subject", "ops", "-ttl", time.Hour.String())
	require.NoError(t, err)
	subject, err := httpiface.ParseToken("s3cret", string(bytes.TrimSpace(out.Bytes())))
	require.NoError(t, err)
	require.Equal(t, "ops", subject)
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"fr-ca", "en-us"}, splitList(" fr-ca, ,en-us "))
	require.Nil(t, splitList(""))
}
