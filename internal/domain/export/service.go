package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

// Config holds the export defaults.
type Config struct {
	SupportedLanguages faq.Languages
	CombinedFile       string
	// LanguageFile names the per-language output, e.g. gladly_answers_fr_ca.csv.
	LanguageFile func(lang string) string
}

// Request selects what to export. Empty Languages means every supported one.
type Request struct {
	Languages []string
	// ListOnly keeps the listing payload and skips the per-answer detail call.
	ListOnly bool
}

// LanguageResult summarizes one language of an export run.
type LanguageResult struct {
	Language string `json:"language"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result summarizes an export run.
type Result struct {
	Languages    []LanguageResult `json:"languages"`
	Total        int              `json:"total"`
	CombinedFile string           `json:"combinedFile,omitempty"`
}

// Source is the knowledge base the answers come from.
type Source interface {
	ListAnswers(ctx context.Context, lang string) ([]faq.Record, error)
	GetAnswer(ctx context.Context, id, lang string) (faq.Record, error)
}

// FileWriter stores a named table of records and returns where it went.
type FileWriter interface {
	WriteRecords(name string, records []faq.Record) (string, error)
}

// Archive mirrors fetched records into long-lived storage.
type Archive interface {
	SaveRecords(ctx context.Context, records []faq.Record) error
	ListRecords(ctx context.Context, lang string) ([]faq.Record, error)
}

// Service exports knowledge base answers to tabular files.
type Service interface {
	Fetch(ctx context.Context, lang string, listOnly bool) ([]faq.Record, int, error)
	Export(ctx context.Context, req Request) (Result, error)
	Archived(ctx context.Context, lang string) ([]faq.Record, error)
}

type service struct {
	cfg     Config
	source  Source
	files   FileWriter
	archive Archive
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService wires the export domain. archive may be nil.
func NewService(cfg Config, source Source, files FileWriter, archive Archive, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		cfg:     cfg,
		source:  source,
		files:   files,
		archive: archive,
		metrics: m,
		logger:  logger.With("component", "export.service"),
	}
}

// Fetch lists the answers of lang and resolves each one's detail. Answers
// without a detail in lang are skipped and counted.
func (s *service) Fetch(ctx context.Context, lang string, listOnly bool) ([]faq.Record, int, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !s.cfg.SupportedLanguages.Contains(lang) {
		return nil, 0, unsupported(lang)
	}
	listed, err := s.source.ListAnswers(ctx, lang)
	if err != nil {
		return nil, 0, err
	}
	records := make([]faq.Record, 0, len(listed))
	skipped := 0
	for _, item := range listed {
		record := item
		if !listOnly && item.ID != "" {
			detail, err := s.source.GetAnswer(ctx, item.ID, lang)
			switch {
			case apperrors.IsCode(err, apperrors.CodeNotFound):
				s.logger.WarnContext(ctx, "answer has no detail in language", slog.String("id", item.ID), slog.String("lang", lang))
				skipped++
				continue
			case err != nil:
				return nil, skipped, err
			}
			record = merge(item, detail)
		}
		if record.Language != "" && record.Language != lang {
			s.logger.WarnContext(ctx, "answer reports another language, filing under requested one",
				slog.String("id", record.ID), slog.String("reported", record.Language), slog.String("lang", lang))
		}
		record.Language = lang
		records = append(records, record)
	}
	return records, skipped, nil
}

func (s *service) Export(ctx context.Context, req Request) (Result, error) {
	langs, err := s.resolveLanguages(req.Languages)
	if err != nil {
		return Result{}, err
	}

	var (
		result   Result
		combined []faq.Record
		errs     []error
	)
	for _, lang := range langs {
		summary := LanguageResult{Language: lang}
		records, skipped, err := s.Fetch(ctx, lang, req.ListOnly)
		summary.Skipped = skipped
		if err != nil {
			s.logger.ErrorContext(ctx, "export aborted for language", slog.String("lang", lang), slog.String("error", err.Error()))
			s.metrics.ObserveRecords("export", "error", 1)
			summary.Error = err.Error()
			result.Languages = append(result.Languages, summary)
			errs = append(errs, fmt.Errorf("export %s: %w", lang, err))
			continue
		}
		summary.Records = len(records)
		if len(records) > 0 {
			path, err := s.files.WriteRecords(s.cfg.LanguageFile(lang), records)
			if err != nil {
				summary.Error = err.Error()
				result.Languages = append(result.Languages, summary)
				errs = append(errs, fmt.Errorf("export %s: %w", lang, err))
				continue
			}
			summary.File = path
		} else {
			s.logger.WarnContext(ctx, "no answers to export", slog.String("lang", lang))
		}
		s.metrics.ObserveRecords("export", "ok", len(records))
		s.logger.InfoContext(ctx, "language exported", slog.String("lang", lang), slog.Int("records", len(records)), slog.Int("skipped", skipped))
		result.Languages = append(result.Languages, summary)
		combined = append(combined, records...)
	}

	result.Total = len(combined)
	if len(combined) > 0 {
		path, err := s.files.WriteRecords(s.cfg.CombinedFile, combined)
		if err != nil {
			errs = append(errs, fmt.Errorf("export combined file: %w", err))
		} else {
			result.CombinedFile = path
		}
		if s.archive != nil {
			if err := s.archive.SaveRecords(ctx, combined); err != nil {
				errs = append(errs, fmt.Errorf("archive records: %w", err))
			}
		}
	}
	return result, errors.Join(errs...)
}

func (s *service) resolveLanguages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), s.cfg.SupportedLanguages...), nil
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, lang := range requested {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if !s.cfg.SupportedLanguages.Contains(lang) {
			return nil, unsupported(lang)
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out, nil
}

func merge(listed, detail faq.Record) faq.Record {
	out := listed
	if detail.Question != "" {
		out.Question = detail.Question
	}
	if detail.Answer != "" {
		out.Answer = detail.Answer
	}
	if detail.Category != "" {
		out.Category = detail.Category
	}
	if detail.Language != "" {
		out.Language = detail.Language
	}
	return out
}

// Archived returns the records mirrored by earlier exports. An empty lang
// lists every language.
func (s *service) Archived(ctx context.Context, lang string) ([]faq.Record, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang != "" && !s.cfg.SupportedLanguages.Contains(lang) {
		return nil, unsupported(lang)
	}
	if s.archive == nil {
		return []faq.Record{}, nil
	}
	records, err := s.archive.ListRecords(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return records, nil
}

func unsupported(lang string) error {
	return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("language %q is not in the supported list", lang), nil)
}
