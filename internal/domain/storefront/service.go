package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/util"
)

// Config locates the FAQ template inside the theme.
type Config struct {
	FilePath      string
	SectionID     string
	BackupEnabled bool
}

// QuestionInput describes a question to add or update. Empty Section means
// the configured FAQ section.
type QuestionInput struct {
	Handle   string `json:"handle"`
	Heading  string `json:"heading"`
	Content  string `json:"content"`
	Section  string `json:"section,omitempty"`
	Category string `json:"category,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// RehandleResult reports how many blocks were renamed and which old handles
// were not present.
type RehandleResult struct {
	Renamed int      `json:"renamed"`
	Missing []string `json:"missing,omitempty"`
}

// AllSections selects every section of the template in ListQuestions and
// RehandleQuestions.
const AllSections = "*"

// Service edits the FAQ questions stored in the theme template.
type Service interface {
	ListSections(ctx context.Context) ([]faq.Section, error)
	ListQuestions(ctx context.Context, section string) ([]faq.Entry, error)
	AddQuestion(ctx context.Context, in QuestionInput) (faq.Entry, error)
	UpdateQuestion(ctx context.Context, in QuestionInput) (faq.Entry, error)
	RemoveQuestion(ctx context.Context, handle, section string) error
	RehandleQuestions(ctx context.Context, handles map[string]string, section string) (RehandleResult, error)
}

// AssetClient reads and writes theme assets.
type AssetClient interface {
	GetAsset(ctx context.Context, key string) (string, error)
	PutAsset(ctx context.Context, key, value string) error
}

// BackupStore keeps snapshots of the template taken before each write.
type BackupStore interface {
	Save(ctx context.Context, key string, snapshot []byte) error
}

type service struct {
	cfg     Config
	assets  AssetClient
	backups BackupStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	keyMu    sync.Mutex
	lastKey  string
	keyCount int
}

// NewService wires the storefront domain.
func NewService(cfg Config, assets AssetClient, backups BackupStore, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		cfg:     cfg,
		assets:  assets,
		backups: backups,
		metrics: m,
		logger:  logger.With("component", "storefront.service"),
		now:     util.NowUTC,
		newID:   uuid.NewString,
	}
}

// BackupKey names the snapshot of path taken at ts.
func BackupKey(path string, ts time.Time) string {
	return backupKey(path, ts, 0)
}

func backupKey(path string, ts time.Time, n int) string {
	stamp := util.BackupStamp(ts)
	if n > 0 {
		stamp += "-" + strconv.Itoa(n+1)
	}
	return strings.TrimSuffix(path, ".json") + ".backup-" + stamp + ".json"
}

// nextBackupKey suffixes snapshots taken within the same second so none
// overwrites another.
func (s *service) nextBackupKey() string {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	ts := s.now()
	base := BackupKey(s.cfg.FilePath, ts)
	if base == s.lastKey {
		s.keyCount++
	} else {
		s.lastKey, s.keyCount = base, 0
	}
	return backupKey(s.cfg.FilePath, ts, s.keyCount)
}

func (s *service) ListSections(ctx context.Context) ([]faq.Section, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.sections(), nil
}

func (s *service) ListQuestions(ctx context.Context, section string) ([]faq.Entry, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.targetSections(doc, section)
	if err != nil {
		return nil, err
	}
	var entries []faq.Entry
	for _, id := range ids {
		entries = append(entries, doc.questions(id)...)
	}
	s.logger.DebugContext(ctx, "listed questions", slog.String("section", section), slog.Int("count", len(entries)))
	return entries, nil
}

func (s *service) AddQuestion(ctx context.Context, in QuestionInput) (faq.Entry, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return faq.Entry{}, err
	}
	sectionID := s.section(in.Section)
	entry := faq.Entry{
		BlockID:   s.newID(),
		Handle:    in.Handle,
		Heading:   in.Heading,
		Content:   in.Content,
		SectionID: sectionID,
	}
	err = s.mutate(ctx, "add", func(doc *document) error {
		if !doc.hasSection(sectionID) {
			return sectionNotFound(sectionID)
		}
		if _, exists := doc.findHandle(sectionID, in.Handle); exists {
			return apperrors.Wrap(apperrors.CodeDuplicateHandle, fmt.Sprintf("handle %q already exists in section %s", in.Handle, sectionID), nil)
		}
		if err := doc.addQuestion(sectionID, entry.BlockID, questionSettings{Handle: in.Handle, Heading: in.Heading, Content: in.Content}); err != nil {
			return err
		}
		return s.applySectionSettings(doc, sectionID, in)
	})
	if err != nil {
		return faq.Entry{}, err
	}
	s.logger.InfoContext(ctx, "question added", slog.String("handle", in.Handle), slog.String("section", sectionID), slog.String("block", entry.BlockID))
	return entry, nil
}

func (s *service) UpdateQuestion(ctx context.Context, in QuestionInput) (faq.Entry, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return faq.Entry{}, err
	}
	sectionID := s.section(in.Section)
	var entry faq.Entry
	err = s.mutate(ctx, "update", func(doc *document) error {
		if !doc.hasSection(sectionID) {
			return sectionNotFound(sectionID)
		}
		existing, ok := doc.findHandle(sectionID, in.Handle)
		if !ok {
			return questionNotFound(in.Handle, sectionID)
		}
		if err := doc.setBlockSetting(sectionID, existing.BlockID, "heading", in.Heading); err != nil {
			return err
		}
		if err := doc.setBlockSetting(sectionID, existing.BlockID, "question_content", in.Content); err != nil {
			return err
		}
		existing.Heading = in.Heading
		existing.Content = in.Content
		entry = existing
		return s.applySectionSettings(doc, sectionID, in)
	})
	if err != nil {
		return faq.Entry{}, err
	}
	s.logger.InfoContext(ctx, "question updated", slog.String("handle", in.Handle), slog.String("section", sectionID))
	return entry, nil
}

func (s *service) RemoveQuestion(ctx context.Context, handle, section string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "handle cannot be empty", nil)
	}
	sectionID := s.section(section)
	err := s.mutate(ctx, "remove", func(doc *document) error {
		if !doc.hasSection(sectionID) {
			return sectionNotFound(sectionID)
		}
		existing, ok := doc.findHandle(sectionID, handle)
		if !ok {
			return questionNotFound(handle, sectionID)
		}
		return doc.removeBlock(sectionID, existing.BlockID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "question removed", slog.String("handle", handle), slog.String("section", sectionID))
	return nil
}

func (s *service) RehandleQuestions(ctx context.Context, handles map[string]string, section string) (RehandleResult, error) {
	if len(handles) == 0 {
		return RehandleResult{}, nil
	}
	var result RehandleResult
	err := s.mutate(ctx, "rehandle", func(doc *document) error {
		ids, err := s.targetSections(doc, section)
		if err != nil {
			return err
		}
		result = RehandleResult{}
		present := make(map[string]struct{})
		for _, id := range ids {
			renamed, err := rehandleSection(doc, id, handles, present)
			if err != nil {
				return err
			}
			result.Renamed += renamed
		}
		for old := range handles {
			if _, ok := present[old]; !ok {
				result.Missing = append(result.Missing, old)
			}
		}
		sort.Strings(result.Missing)
		if result.Renamed == 0 {
			return errNothingToWrite
		}
		return nil
	})
	if err != nil {
		return RehandleResult{}, err
	}
	s.logger.InfoContext(ctx, "questions rehandled", slog.String("section", section), slog.Int("renamed", result.Renamed), slog.Int("missing", len(result.Missing)))
	return result, nil
}

// rehandleSection renames handles inside one section, refusing any rename
// that would leave two blocks with the same handle.
func rehandleSection(doc *document, sectionID string, handles map[string]string, present map[string]struct{}) (int, error) {
	entries := doc.questions(sectionID)
	final := make(map[string]string, len(entries))
	for _, entry := range entries {
		present[entry.Handle] = struct{}{}
		handle := entry.Handle
		if next := handles[entry.Handle]; next != "" {
			handle = next
		}
		if owner, clash := final[handle]; clash && owner != entry.BlockID {
			return 0, apperrors.Wrap(apperrors.CodeDuplicateHandle, fmt.Sprintf("handle %q would be used twice in section %s", handle, sectionID), nil)
		}
		final[handle] = entry.BlockID
	}
	renamed := 0
	for _, entry := range entries {
		next := handles[entry.Handle]
		if next == "" || next == entry.Handle {
			continue
		}
		if err := doc.setBlockSetting(sectionID, entry.BlockID, "question_handle", next); err != nil {
			return 0, err
		}
		renamed++
	}
	return renamed, nil
}

var errNothingToWrite = errors.New("storefront: nothing to write")

// mutate runs one read, backup, edit, write cycle against the template.
func (s *service) mutate(ctx context.Context, op string, edit func(doc *document) error) (err error) {
	defer func() {
		if errors.Is(err, errNothingToWrite) {
			err = nil
			return
		}
		s.metrics.ObserveMutation(op, err)
	}()

	doc, original, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := edit(doc); err != nil {
		return err
	}
	if s.cfg.BackupEnabled && s.backups != nil {
		key := s.nextBackupKey()
		if err := s.backups.Save(ctx, key, []byte(original)); err != nil {
			s.logger.ErrorContext(ctx, "backup failed, template left untouched", slog.String("key", key), slog.String("error", err.Error()))
			return apperrors.Wrap(apperrors.CodeIO, "backup theme template", err)
		}
		s.logger.InfoContext(ctx, "template backed up", slog.String("key", key))
	}
	if err := s.assets.PutAsset(ctx, s.cfg.FilePath, doc.String()); err != nil {
		return fmt.Errorf("storefront: write template: %w", err)
	}
	return nil
}

func (s *service) load(ctx context.Context) (*document, string, error) {
	value, err := s.assets.GetAsset(ctx, s.cfg.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("storefront: read template: %w", err)
	}
	doc, err := parseDocument(value)
	if err != nil {
		return nil, "", err
	}
	return doc, value, nil
}

// targetSections resolves the section argument of list and rehandle calls.
func (s *service) targetSections(doc *document, section string) ([]string, error) {
	if strings.TrimSpace(section) == AllSections {
		var ids []string
		for _, sec := range doc.sections() {
			ids = append(ids, sec.ID)
		}
		return ids, nil
	}
	sectionID := s.section(section)
	if !doc.hasSection(sectionID) {
		return nil, sectionNotFound(sectionID)
	}
	return []string{sectionID}, nil
}

func (s *service) section(section string) string {
	if trimmed := strings.TrimSpace(section); trimmed != "" {
		return trimmed
	}
	return s.cfg.SectionID
}

func (s *service) applySectionSettings(doc *document, sectionID string, in QuestionInput) error {
	if in.Category != "" {
		if err := doc.setSectionSetting(sectionID, "question_category", in.Category); err != nil {
			return err
		}
	}
	if in.Icon != "" {
		if err := doc.setSectionSetting(sectionID, "icon-faq", in.Icon); err != nil {
			return err
		}
	}
	return nil
}

func normalizeInput(in QuestionInput) (QuestionInput, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Heading = strings.TrimSpace(in.Heading)
	in.Category = strings.TrimSpace(in.Category)
	in.Icon = strings.TrimSpace(in.Icon)
	if in.Handle == "" {
		return in, apperrors.Wrap(apperrors.CodeInvalidInput, "handle cannot be empty", nil)
	}
	if in.Heading == "" {
		return in, apperrors.Wrap(apperrors.CodeInvalidInput, "heading cannot be empty", nil)
	}
	return in, nil
}

func sectionNotFound(sectionID string) error {
	return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("section %s not found", sectionID), nil)
}

func questionNotFound(handle, sectionID string) error {
	return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("question %q not found in section %s", handle, sectionID), nil)
}
