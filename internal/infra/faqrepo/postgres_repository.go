package faqrepo

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

const (
	recordsTable = "faq_records"
	batchSize    = 500
)

var recordColumns = []string{"id", "language", "question", "answer", "category", "updated_at"}

//go:embed migrations/*.sql
var migrations embed.FS

// dbtx is the subset of pgxpool.Pool used by the repository.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository mirrors exported records into Postgres.
type PostgresRepository struct {
	db  dbtx
	now func() time.Time
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return newPostgresRepository(pool)
}

func newPostgresRepository(db dbtx) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// SaveRecords upserts records keyed by (id, language).
func (r *PostgresRepository) SaveRecords(ctx context.Context, records []faq.Record) error {
	records = dedupe(records)
	stamp := r.now()
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		insert := builder().Insert(recordsTable).Columns(recordColumns...)
		for _, rec := range records[start:end] {
			insert = insert.Values(rec.ID, rec.Language, rec.Question, rec.Answer, rec.Category, stamp)
		}
		insert = insert.Suffix(`ON CONFLICT (id, language) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			category = EXCLUDED.category,
			updated_at = EXCLUDED.updated_at`)

		sql, args, err := insert.ToSql()
		if err != nil {
			return apperrors.Wrap(apperrors.CodeIO, "build archive upsert", err)
		}
		if _, err := r.db.Exec(ctx, sql, args...); err != nil {
			return apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("archive records %d-%d", start, end), err)
		}
	}
	return nil
}

// ListRecords returns archived records, optionally limited to one language.
func (r *PostgresRepository) ListRecords(ctx context.Context, lang string) ([]faq.Record, error) {
	query := builder().Select("id", "language", "question", "answer", "category").
		From(recordsTable).
		OrderBy("language ASC", "id ASC")
	if lang != "" {
		query = query.Where(squirrel.Eq{"language": lang})
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "build archive query", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "query archive", err)
	}
	defer rows.Close()

	var out []faq.Record
	for rows.Next() {
		var rec faq.Record
		if err := rows.Scan(&rec.ID, &rec.Language, &rec.Question, &rec.Answer, &rec.Category); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDecode, "scan archive row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "iterate archive", err)
	}
	return out, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// dedupe keeps the last record per (id, language); one upsert statement
// cannot touch the same row twice.
func dedupe(records []faq.Record) []faq.Record {
	index := make(map[string]int, len(records))
	out := make([]faq.Record, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		key := archiveKey(rec)
		if i, ok := index[key]; ok {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

func archiveKey(rec faq.Record) string {
	return rec.Language + "\x00" + rec.ID
}
