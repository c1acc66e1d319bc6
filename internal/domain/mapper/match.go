package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// MatchRequest pairs the answers of one language with published questions.
type MatchRequest struct {
	Language  string  `json:"language"`
	Threshold float64 `json:"threshold,omitempty"`
	Section   string  `json:"section,omitempty"`
	Save      bool    `json:"save"`
}

// RehandleRequest rewrites destination handles to the linked source ids.
type RehandleRequest struct {
	Section string `json:"section,omitempty"`
}

func (s *service) Match(ctx context.Context, req MatchRequest) ([]faq.Link, error) {
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" && len(s.cfg.SupportedLanguages) > 0 {
		lang = s.cfg.SupportedLanguages[0]
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.MatchThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("threshold %v outside 0..100", threshold), nil)
	}
	section := req.Section
	if section == "" {
		section = storefront.AllSections
	}

	records, _, err := s.source.Fetch(ctx, lang, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.storefront.ListQuestions(ctx, section)
	if err != nil {
		return nil, err
	}

	var links []faq.Link
	for _, record := range records {
		best, score := bestMatch(record.Question, entries)
		if best == nil || score <= threshold {
			continue
		}
		links = append(links, faq.Link{
			SourceID:           record.ID,
			Handle:             best.Handle,
			SourceQuestion:     record.Question,
			SourceAnswer:       record.Answer,
			DestinationHeading: best.Heading,
			Score:              score,
			UpdatedAt:          s.now(),
		})
	}
	s.metrics.ObserveRecords("match", "matched", len(links))
	s.metrics.ObserveRecords("match", "unmatched", len(records)-len(links))
	s.logger.InfoContext(ctx, "matching finished",
		slog.String("lang", lang),
		slog.Int("records", len(records)),
		slog.Int("questions", len(entries)),
		slog.Int("matched", len(links)),
		slog.Float64("threshold", threshold),
	)

	if req.Save && s.links != nil && len(links) > 0 {
		if err := s.links.Save(ctx, links...); err != nil {
			return links, fmt.Errorf("mapper: save links: %w", err)
		}
	}
	return links, nil
}

func (s *service) Rehandle(ctx context.Context, req RehandleRequest) (storefront.RehandleResult, error) {
	if s.links == nil {
		return storefront.RehandleResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no mapping store configured", nil)
	}
	links, err := s.links.List(ctx)
	if err != nil {
		return storefront.RehandleResult{}, fmt.Errorf("mapper: load links: %w", err)
	}
	renames := make(map[string]string, len(links))
	for _, link := range links {
		if link.Handle == "" || link.SourceID == "" || link.Handle == link.SourceID {
			continue
		}
		if _, dup := renames[link.Handle]; dup {
			// first link wins, as in a top-down read of the mapping file
			continue
		}
		renames[link.Handle] = link.SourceID
	}
	section := req.Section
	if section == "" {
		section = storefront.AllSections
	}
	result, err := s.storefront.RehandleQuestions(ctx, renames, section)
	if err != nil {
		return storefront.RehandleResult{}, err
	}

	missing := make(map[string]struct{}, len(result.Missing))
	for _, m := range result.Missing {
		missing[m] = struct{}{}
	}
	var moved []faq.Link
	for _, link := range links {
		next, ok := renames[link.Handle]
		if !ok || next != link.SourceID {
			continue
		}
		if _, gone := missing[link.Handle]; gone {
			continue
		}
		link.Handle = link.SourceID
		link.UpdatedAt = s.now()
		moved = append(moved, link)
	}
	s.saveLinks(ctx, moved)
	return result, nil
}

func bestMatch(question string, entries []faq.Entry) (*faq.Entry, float64) {
	var (
		best      *faq.Entry
		bestScore float64
	)
	for i := range entries {
		score := TokenSortRatio(question, entries[i].Heading)
		if score > bestScore {
			best = &entries[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// TokenSortRatio scores two strings from 0 to 100 after normalizing them and
// sorting their words, so word order does not matter.
func TokenSortRatio(a, b string) float64 {
	left, right := sortTokens(a), sortTokens(b)
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 100
	}
	longest := max(utf8.RuneCountInString(left), utf8.RuneCountInString(right))
	distance := levenshtein.ComputeDistance(left, right)
	ratio := 100 * (1 - float64(distance)/float64(longest))
	return math.Round(ratio*100) / 100
}

func sortTokens(s string) string {
	tokens := strings.Fields(faq.NormalizeText(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
