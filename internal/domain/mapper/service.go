package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/util"
)

// Handle strategies.
const (
	HandleFromID   = "id"
	HandleFromSlug = "slug"
)

// Duplicate policies.
const (
	OnDuplicateFail   = "fail"
	OnDuplicateSkip   = "skip"
	OnDuplicateUpdate = "update"
)

// Config holds the mapping defaults.
type Config struct {
	SupportedLanguages faq.Languages
	DefaultCategory    string
	DefaultIcon        string
	HandleStrategy     string
	OnDuplicate        string
	MatchThreshold     float64
	CombinedFile       string
	LanguageFile       func(lang string) string
}

// RecordReader loads answer rows written by the export.
type RecordReader interface {
	ReadRecords(name string) ([]faq.Record, error)
}

// Source fetches live answers from the knowledge base.
type Source interface {
	Fetch(ctx context.Context, lang string, listOnly bool) ([]faq.Record, int, error)
}

// Searcher runs a full-text query on the knowledge base.
type Searcher interface {
	SearchAnswers(ctx context.Context, query, lang string) ([]faq.Record, error)
}

// LinkStore persists source id to handle pairings.
type LinkStore interface {
	List(ctx context.Context) ([]faq.Link, error)
	Save(ctx context.Context, links ...faq.Link) error
}

// Service moves knowledge base answers into the storefront.
type Service interface {
	Map(ctx context.Context, req MapRequest) (MapReport, error)
	Sync(ctx context.Context, req SyncRequest) (SyncReport, error)
	Match(ctx context.Context, req MatchRequest) ([]faq.Link, error)
	Rehandle(ctx context.Context, req RehandleRequest) (storefront.RehandleResult, error)
}

type service struct {
	cfg        Config
	storefront storefront.Service
	files      RecordReader
	source     Source
	search     Searcher
	links      LinkStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Dependencies groups the collaborators of the mapper.
type Dependencies struct {
	Storefront storefront.Service
	Files      RecordReader
	Source     Source
	Search     Searcher
	Links      LinkStore
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// NewService wires the mapper domain.
func NewService(cfg Config, deps Dependencies) Service {
	if cfg.HandleStrategy == "" {
		cfg.HandleStrategy = HandleFromID
	}
	if cfg.OnDuplicate == "" {
		cfg.OnDuplicate = OnDuplicateFail
	}
	return &service{
		cfg:        cfg,
		storefront: deps.Storefront,
		files:      deps.Files,
		source:     deps.Source,
		search:     deps.Search,
		links:      deps.Links,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With("component", "mapper.service"),
		now:        util.NowUTC,
	}
}

// MapRequest selects the rows to publish and how conflicts are handled.
// Empty fields fall back to the configured defaults.
type MapRequest struct {
	File            string `json:"file,omitempty"`
	Language        string `json:"language,omitempty"`
	Section         string `json:"section,omitempty"`
	HandleStrategy  string `json:"handleStrategy,omitempty"`
	OnDuplicate     string `json:"onDuplicate,omitempty"`
	ContinueOnError bool   `json:"continueOnError,omitempty"`
}

// RowError describes one row that could not be published.
type RowError struct {
	Row     int    `json:"row"`
	ID      string `json:"id,omitempty"`
	Handle  string `json:"handle,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// MapReport counts the outcome of a map run.
type MapReport struct {
	File    string     `json:"file"`
	Total   int        `json:"total"`
	Added   int        `json:"added"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

func (s *service) Map(ctx context.Context, req MapRequest) (MapReport, error) {
	strategy, policy, err := s.policies(req.HandleStrategy, req.OnDuplicate)
	if err != nil {
		return MapReport{}, err
	}
	name := req.File
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang != "" && !s.cfg.SupportedLanguages.Contains(lang) {
		return MapReport{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("language %q is not in the supported list", lang), nil)
	}
	if name == "" {
		name = s.cfg.CombinedFile
		if lang != "" {
			name = s.cfg.LanguageFile(lang)
		}
	}
	records, err := s.files.ReadRecords(name)
	if err != nil {
		return MapReport{}, err
	}

	var published map[string]struct{}
	if strategy == HandleFromSlug {
		if published, err = s.publishedHandles(ctx, req.Section); err != nil {
			return MapReport{}, err
		}
	}

	report := MapReport{File: name}
	var linked []faq.Link
	for i, record := range records {
		if lang != "" && record.Language != "" && record.Language != lang {
			continue
		}
		report.Total++
		row := i + 2 // header is row 1
		in := s.input(record, strategy, req.Section)
		adoptLegacySlug(&in, record, strategy, published)
		outcome, err := s.publish(ctx, in, policy)
		if err != nil {
			rowErr := RowError{Row: row, ID: record.ID, Handle: in.Handle, Code: apperrors.CodeOf(err), Message: err.Error()}
			s.logger.WarnContext(ctx, "row not mapped", slog.Int("row", row), slog.String("handle", in.Handle), slog.String("error", err.Error()))
			s.metrics.ObserveRecords("map", "error", 1)
			report.Errors = append(report.Errors, rowErr)
			if !req.ContinueOnError {
				s.saveLinks(ctx, linked)
				return report, fmt.Errorf("mapper: row %d (%s): %w", row, in.Handle, err)
			}
			continue
		}
		s.metrics.ObserveRecords("map", outcome, 1)
		switch outcome {
		case outcomeAdded:
			report.Added++
		case outcomeUpdated:
			report.Updated++
		case outcomeSkipped:
			report.Skipped++
			continue
		}
		if record.ID != "" {
			linked = append(linked, faq.Link{
				SourceID:           record.ID,
				Handle:             in.Handle,
				SourceQuestion:     record.Question,
				SourceAnswer:       record.Answer,
				DestinationHeading: in.Heading,
				UpdatedAt:          s.now(),
			})
		}
	}
	s.saveLinks(ctx, linked)
	s.logger.InfoContext(ctx, "mapping finished",
		slog.String("file", name),
		slog.Int("total", report.Total),
		slog.Int("added", report.Added),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)),
	)
	return report, nil
}

const (
	outcomeAdded   = "added"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
)

func (s *service) publish(ctx context.Context, in storefront.QuestionInput, policy string) (string, error) {
	if in.Heading == "" {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "row has no question", nil)
	}
	_, err := s.storefront.AddQuestion(ctx, in)
	if err == nil {
		return outcomeAdded, nil
	}
	if !apperrors.IsCode(err, apperrors.CodeDuplicateHandle) {
		return "", err
	}
	switch policy {
	case OnDuplicateSkip:
		s.logger.InfoContext(ctx, "handle exists, skipping", slog.String("handle", in.Handle))
		return outcomeSkipped, nil
	case OnDuplicateUpdate:
		if _, err := s.storefront.UpdateQuestion(ctx, in); err != nil {
			return "", err
		}
		return outcomeUpdated, nil
	default:
		return "", err
	}
}

func (s *service) input(record faq.Record, strategy, section string) storefront.QuestionInput {
	return storefront.QuestionInput{
		Handle:   handleFor(record, strategy),
		Heading:  strings.TrimSpace(record.Question),
		Content:  faq.CleanContent(record.Answer),
		Section:  section,
		Category: s.cfg.DefaultCategory,
		Icon:     s.cfg.DefaultIcon,
	}
}

func handleFor(record faq.Record, strategy string) string {
	if strategy == HandleFromID && strings.TrimSpace(record.ID) != "" {
		return strings.TrimSpace(record.ID)
	}
	return faq.Slugify(record.Question)
}

// adoptLegacySlug points in at the accent-dropping slug of record when only
// that form is published, so older themes are not duplicated.
func adoptLegacySlug(in *storefront.QuestionInput, record faq.Record, strategy string, published map[string]struct{}) {
	if strategy == HandleFromID && strings.TrimSpace(record.ID) != "" {
		return
	}
	legacy := faq.LegacySlug(record.Question)
	if legacy == in.Handle {
		return
	}
	if _, ok := published[in.Handle]; ok {
		return
	}
	if _, ok := published[legacy]; ok {
		in.Handle = legacy
	}
}

func (s *service) publishedHandles(ctx context.Context, section string) (map[string]struct{}, error) {
	entries, err := s.storefront.ListQuestions(ctx, section)
	if err != nil {
		return nil, err
	}
	handles := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		handles[entry.Handle] = struct{}{}
	}
	return handles, nil
}

func (s *service) policies(strategy, policy string) (string, string, error) {
	if strategy == "" {
		strategy = s.cfg.HandleStrategy
	}
	if policy == "" {
		policy = s.cfg.OnDuplicate
	}
	switch strategy {
	case HandleFromID, HandleFromSlug:
	default:
		return "", "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown handle strategy %q", strategy), nil)
	}
	switch policy {
	case OnDuplicateFail, OnDuplicateSkip, OnDuplicateUpdate:
	default:
		return "", "", apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown duplicate policy %q", policy), nil)
	}
	return strategy, policy, nil
}

func (s *service) saveLinks(ctx context.Context, links []faq.Link) {
	if s.links == nil || len(links) == 0 {
		return
	}
	if err := s.links.Save(ctx, links...); err != nil {
		s.logger.WarnContext(ctx, "mapping links not saved", slog.Int("links", len(links)), slog.String("error", err.Error()))
	}
}
