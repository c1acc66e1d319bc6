package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// SyncRequest drives a live sync. Empty Languages means every supported one;
// a Query replaces the full listing with search results.
type SyncRequest struct {
	Languages   []string `json:"languages,omitempty"`
	DryRun      bool     `json:"dryRun"`
	Keywords    []string `json:"keywords,omitempty"`
	Query       string   `json:"query,omitempty"`
	Section     string   `json:"section,omitempty"`
	WithDetails bool     `json:"withDetails,omitempty"`
}

// LanguageReport counts the outcome of one language.
type LanguageReport struct {
	Language  string   `json:"language"`
	Query     string   `json:"query,omitempty"`
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// SyncReport aggregates every language of a sync run.
type SyncReport struct {
	DryRun         bool             `json:"dryRun"`
	Languages      []LanguageReport `json:"languages"`
	TotalProcessed int              `json:"totalProcessed"`
	TotalAdded     int              `json:"totalAdded"`
	TotalUpdated   int              `json:"totalUpdated"`
	TotalSkipped   int              `json:"totalSkipped"`
	TotalErrors    int              `json:"totalErrors"`
}

func (s *service) Sync(ctx context.Context, req SyncRequest) (SyncReport, error) {
	langs, err := s.languages(req.Languages)
	if err != nil {
		return SyncReport{}, err
	}
	query := strings.TrimSpace(req.Query)
	if query != "" && s.search == nil {
		return SyncReport{}, apperrors.Wrap(apperrors.CodeInvalidInput, "search is not available", nil)
	}

	links, err := s.loadLinks(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{DryRun: req.DryRun}
	for _, lang := range langs {
		lr := s.syncLanguage(ctx, lang, query, req, links)
		report.Languages = append(report.Languages, lr)
		report.TotalProcessed += lr.Processed
		report.TotalAdded += lr.Added
		report.TotalUpdated += lr.Updated
		report.TotalSkipped += lr.Skipped
		report.TotalErrors += len(lr.Errors)
	}
	s.logger.InfoContext(ctx, "sync finished",
		slog.Bool("dryRun", req.DryRun),
		slog.Int("processed", report.TotalProcessed),
		slog.Int("added", report.TotalAdded),
		slog.Int("updated", report.TotalUpdated),
		slog.Int("skipped", report.TotalSkipped),
		slog.Int("errors", report.TotalErrors),
	)
	return report, nil
}

func (s *service) syncLanguage(ctx context.Context, lang, query string, req SyncRequest, links map[string]faq.Link) LanguageReport {
	lr := LanguageReport{Language: lang, Query: query}
	logger := s.logger.With(slog.String("lang", lang), slog.Bool("dryRun", req.DryRun))

	records, err := s.records(ctx, lang, query, req.WithDetails)
	if err != nil {
		lr.Errors = append(lr.Errors, err.Error())
		logger.ErrorContext(ctx, "sync aborted for language", slog.String("error", err.Error()))
		return lr
	}
	records = filterKeywords(records, req.Keywords)
	lr.Total = len(records)

	existing, err := s.storefront.ListQuestions(ctx, req.Section)
	if err != nil {
		lr.Errors = append(lr.Errors, err.Error())
		logger.ErrorContext(ctx, "sync aborted: destination unreadable", slog.String("error", err.Error()))
		return lr
	}
	handles := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		handles[entry.Handle] = struct{}{}
	}

	var changed []faq.Link
	for _, record := range records {
		question := strings.TrimSpace(record.Question)
		in := s.input(record, s.cfg.HandleStrategy, req.Section)
		adoptLegacySlug(&in, record, s.cfg.HandleStrategy, handles)

		link, known := links[record.ID]
		repaired := false
		if known && strings.TrimSpace(link.Handle) == "" {
			// legacy mapping rows carry no handle; recover it from the theme
			// or publish the record again
			if _, published := handles[in.Handle]; published {
				link.Handle = in.Handle
				repaired = true
			} else {
				known = false
			}
		}
		switch {
		case known && sameSource(link, record):
			logger.DebugContext(ctx, "unchanged, skipping", slog.String("id", record.ID))
			lr.Skipped++
			if repaired && !req.DryRun {
				links[record.ID] = link
				changed = append(changed, link)
			}
		case known:
			if !req.DryRun {
				in.Handle = link.Handle
				if _, err := s.storefront.UpdateQuestion(ctx, in); err != nil {
					lr.Errors = append(lr.Errors, fmt.Sprintf("update %s: %v", record.ID, err))
					s.metrics.ObserveRecords("sync", "error", 1)
					continue
				}
				link.SourceQuestion = record.Question
				link.SourceAnswer = record.Answer
				link.DestinationHeading = in.Heading
				link.UpdatedAt = s.now()
				links[record.ID] = link
				changed = append(changed, link)
			}
			logger.InfoContext(ctx, "question updated", slog.String("id", record.ID), slog.String("handle", link.Handle))
			lr.Updated++
		default:
			if _, taken := handles[in.Handle]; taken {
				logger.InfoContext(ctx, "handle already published, skipping", slog.String("handle", in.Handle))
				lr.Skipped++
				break
			}
			if question == "" {
				lr.Errors = append(lr.Errors, fmt.Sprintf("add %s: answer has no question", record.ID))
				continue
			}
			if !req.DryRun {
				if _, err := s.storefront.AddQuestion(ctx, in); err != nil {
					lr.Errors = append(lr.Errors, fmt.Sprintf("add %s: %v", in.Handle, err))
					s.metrics.ObserveRecords("sync", "error", 1)
					continue
				}
				if record.ID != "" {
					link = faq.Link{
						SourceID:           record.ID,
						Handle:             in.Handle,
						SourceQuestion:     record.Question,
						SourceAnswer:       record.Answer,
						DestinationHeading: in.Heading,
						UpdatedAt:          s.now(),
					}
					links[record.ID] = link
					changed = append(changed, link)
				}
			}
			handles[in.Handle] = struct{}{}
			logger.InfoContext(ctx, "question added", slog.String("id", record.ID), slog.String("handle", in.Handle))
			lr.Added++
		}
		lr.Processed++
	}
	if !req.DryRun {
		s.metrics.ObserveRecords("sync", outcomeAdded, lr.Added)
		s.metrics.ObserveRecords("sync", outcomeUpdated, lr.Updated)
		s.metrics.ObserveRecords("sync", outcomeSkipped, lr.Skipped)
		s.saveLinks(ctx, changed)
	}
	return lr
}

// sameSource reports whether the stored pairing still matches record. Edge
// whitespace is ignored since published content is trimmed.
func sameSource(link faq.Link, record faq.Record) bool {
	return strings.TrimSpace(link.SourceQuestion) == strings.TrimSpace(record.Question) &&
		strings.TrimSpace(link.SourceAnswer) == strings.TrimSpace(record.Answer)
}

func (s *service) records(ctx context.Context, lang, query string, withDetails bool) ([]faq.Record, error) {
	if query == "" {
		records, _, err := s.source.Fetch(ctx, lang, !withDetails)
		return records, err
	}
	return s.search.SearchAnswers(ctx, query, lang)
}

func (s *service) languages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), s.cfg.SupportedLanguages...), nil
	}
	out := make([]string, 0, len(requested))
	for _, lang := range requested {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if !s.cfg.SupportedLanguages.Contains(lang) {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("language %q is not in the supported list", lang), nil)
		}
		out = append(out, lang)
	}
	return out, nil
}

func (s *service) loadLinks(ctx context.Context) (map[string]faq.Link, error) {
	out := make(map[string]faq.Link)
	if s.links == nil {
		return out, nil
	}
	links, err := s.links.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("mapper: load links: %w", err)
	}
	for _, link := range links {
		out[link.SourceID] = link
	}
	return out, nil
}

// filterKeywords keeps records whose question or answer contains any keyword,
// ignoring case.
func filterKeywords(records []faq.Record, keywords []string) []faq.Record {
	var needles []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			needles = append(needles, k)
		}
	}
	if len(needles) == 0 {
		return records
	}
	out := make([]faq.Record, 0, len(records))
	for _, r := range records {
		haystack := strings.ToLower(r.Question + "\n" + r.Answer)
		for _, needle := range needles {
			if strings.Contains(haystack, needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
