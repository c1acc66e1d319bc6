package faqrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo := newPostgresRepository(mock)
	repo.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestPostgresSaveRecordsUpserts(t *testing.T) {
	repo, mock := newMockRepository(t)
	stamp := repo.now()
	mock.ExpectExec(`INSERT INTO faq_records .* ON CONFLICT \(id, language\) DO UPDATE`).
		WithArgs(
			"g1", "fr-ca", "Retours ?", "v2", "", stamp,
			"g1", "en-us", "Returns?", "v1", "Help", stamp,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := repo.SaveRecords(context.Background(), []faq.Record{
		{ID: "g1", Language: "fr-ca", Question: "Retours ?", Answer: "v1"},
		{ID: "g1", Language: "en-us", Question: "Returns?", Answer: "v1", Category: "Help"},
		{ID: "g1", Language: "fr-ca", Question: "Retours ?", Answer: "v2"},
		{Language: "fr-ca", Question: "no id"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRecordsEmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.SaveRecords(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRecordsWrapsFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO faq_records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.SaveRecords(context.Background(), []faq.Record{{ID: "g1", Language: "fr-ca"}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeIO))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRecordsByLanguage(t *testing.T) {
	repo, mock := newMockRepository(t)
	rows := pgxmock.NewRows([]string{"id", "language", "question", "answer", "category"}).
		AddRow("g1", "fr-ca", "Retours ?", "30 jours", "").
		AddRow("g2", "fr-ca", "Livraison ?", "Gratuite", "Envoi")
	mock.ExpectQuery(`SELECT id, language, question, answer, category FROM faq_records WHERE language = \$1`).
		WithArgs("fr-ca").
		WillReturnRows(rows)

	records, err := repo.ListRecords(context.Background(), "fr-ca")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Envoi", records[1].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepositoryUpsertsAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.SaveRecords(ctx, []faq.Record{
		{ID: "g2", Language: "fr-ca", Answer: "a"},
		{ID: "g1", Language: "fr-ca", Answer: "b"},
		{ID: "g1", Language: "en-us", Answer: "c"},
	}))
	require.NoError(t, repo.SaveRecords(ctx, []faq.Record{{ID: "g1", Language: "fr-ca", Answer: "updated"}}))

	all, err := repo.ListRecords(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "en-us", all[0].Language)

	fr, err := repo.ListRecords(ctx, "fr-ca")
	require.NoError(t, err)
	require.Len(t, fr, 2)
	require.Equal(t, "updated", fr[0].Answer)
}
