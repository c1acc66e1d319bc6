// Package tabular reads and writes the delimited files exchanged between the
// export, map and match commands.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// CombinedFileName holds every exported language.
const CombinedFileName = "gladly_answers_all.csv"

// RecordHeader is the column order of exported answer files.
var RecordHeader = []string{"id", "question", "answer", "language", "category"}

// LinkHeader is the column order of mapping files.
var LinkHeader = []string{"gladly_id", "shopify_handle", "gladly_question", "gladly_answer", "shopify_heading", "score", "updated_time"}

var (
	// ErrEmptyFile is returned for a file without a header row.
	ErrEmptyFile = errors.New("tabular: file is empty")
	// ErrInvalidEncoding is returned for files that are not UTF-8.
	ErrInvalidEncoding = errors.New("tabular: file is not valid UTF-8")
)

// columns written by older mapping files
var linkAliases = map[string]string{
	"bosapin_handle":   "shopify_handle",
	"bosapin_heading":  "shopify_heading",
	"shopify_question": "shopify_heading",
	"updated_at":       "updated_time",
}

// LanguageFileName is the export file of one language, e.g. gladly_answers_fr_ca.csv.
func LanguageFileName(lang string) string {
	return "gladly_answers_" + faq.FileSuffix(lang) + ".csv"
}

// WriteRecords encodes records with RecordHeader.
func WriteRecords(w io.Writer, records []faq.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.ID, r.Question, r.Answer, r.Language, r.Category})
	}
	return writeRows(w, RecordHeader, rows)
}

// ReadRecords decodes an answer file. Columns are matched by header name so
// extra columns are ignored.
func ReadRecords(r io.Reader) ([]faq.Record, error) {
	table, err := readTable(r, nil)
	if err != nil {
		return nil, err
	}
	if !table.has("id") && !table.has("question") {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "answer file needs an id or question column", nil)
	}
	records := make([]faq.Record, 0, len(table.rows))
	for _, row := range table.rows {
		record := faq.Record{
			ID:       table.value(row, "id"),
			Question: table.text(row, "question"),
			Answer:   table.text(row, "answer"),
			Language: strings.ToLower(table.value(row, "language")),
			Category: table.value(row, "category"),
		}
		if record.ID == "" && strings.TrimSpace(record.Question) == "" {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// WriteLinks encodes mapping links with LinkHeader.
func WriteLinks(w io.Writer, links []faq.Link) error {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		score := ""
		if l.Score > 0 {
			score = strconv.FormatFloat(l.Score, 'f', -1, 64)
		}
		updated := ""
		if !l.UpdatedAt.IsZero() {
			updated = l.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{l.SourceID, l.Handle, l.SourceQuestion, l.SourceAnswer, l.DestinationHeading, score, updated})
	}
	return writeRows(w, LinkHeader, rows)
}

// ReadLinks decodes a mapping file.
func ReadLinks(r io.Reader) ([]faq.Link, error) {
	table, err := readTable(r, linkAliases)
	if err != nil {
		return nil, err
	}
	if !table.has("gladly_id") {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "mapping file needs a gladly_id column", nil)
	}
	links := make([]faq.Link, 0, len(table.rows))
	for i, row := range table.rows {
		link := faq.Link{
			SourceID:           table.value(row, "gladly_id"),
			Handle:             table.value(row, "shopify_handle"),
			SourceQuestion:     table.text(row, "gladly_question"),
			SourceAnswer:       table.text(row, "gladly_answer"),
			DestinationHeading: table.text(row, "shopify_heading"),
		}
		if link.SourceID == "" {
			continue
		}
		if raw := table.value(row, "score"); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("mapping row %d: bad score %q", i+2, raw), err)
			}
			link.Score = score
		}
		if raw := table.value(row, "updated_time"); raw != "" {
			link.UpdatedAt = parseTime(raw)
		}
		links = append(links, link)
	}
	return links, nil
}

// WriteRecordsFile writes records to path, creating parent directories.
func WriteRecordsFile(path string, records []faq.Record) error {
	return writeFile(path, func(w io.Writer) error { return WriteRecords(w, records) })
}

// ReadRecordsFile reads an answer file from disk.
func ReadRecordsFile(path string) ([]faq.Record, error) {
	var records []faq.Record
	err := readFile(path, func(r io.Reader) (err error) {
		records, err = ReadRecords(r)
		return err
	})
	return records, err
}

// WriteLinksFile writes links to path, creating parent directories.
func WriteLinksFile(path string, links []faq.Link) error {
	return writeFile(path, func(w io.Writer) error { return WriteLinks(w, links) })
}

// ReadLinksFile reads a mapping file from disk.
func ReadLinksFile(path string) ([]faq.Link, error) {
	var links []faq.Link
	err := readFile(path, func(r io.Reader) (err error) {
		links, err = ReadLinks(r)
		return err
	})
	return links, err
}

func writeFile(path string, encode func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrap(apperrors.CodeIO, "create output directory", err)
		}
	}
	// write next to the target then rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create output file", err)
	}
	defer os.Remove(tmp.Name())
	if err := encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "close output file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "move output file", err)
	}
	return nil
}

func readFile(path string, decode func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("file %s not found", path), err)
		}
		return apperrors.Wrap(apperrors.CodeIO, "open input file", err)
	}
	defer f.Close()
	return decode(f)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "write csv header", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "write csv rows", err)
	}
	return nil
}

type table struct {
	index map[string]int
	rows  [][]string
}

func (t table) has(column string) bool {
	_, ok := t.index[column]
	return ok
}

func (t table) value(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// text returns a free-text cell verbatim.
func (t table) text(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func readTable(r io.Reader, aliases map[string]string) (table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table{}, apperrors.Wrap(apperrors.CodeInvalidInput, "read csv header", ErrEmptyFile)
	}
	if err != nil {
		return table{}, apperrors.Wrap(apperrors.CodeInvalidInput, "read csv header", err)
	}
	t := table{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, apperrors.Wrap(apperrors.CodeInvalidInput, "read csv row", err)
		}
		for _, cell := range row {
			if !utf8.ValidString(cell) {
				return table{}, apperrors.Wrap(apperrors.CodeInvalidInput, "read csv row", ErrInvalidEncoding)
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func parseTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Dir reads and writes answer files inside one data directory.
type Dir struct {
	root string
}

// NewDir binds file operations to root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Path resolves name inside the directory unless it is already absolute
// or explicitly relative to the working directory.
func (d *Dir) Path(name string) string {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "."+string(filepath.Separator)) {
		return name
	}
	return filepath.Join(d.root, name)
}

// WriteRecords writes records to the named file and returns its path.
func (d *Dir) WriteRecords(name string, records []faq.Record) (string, error) {
	path := d.Path(name)
	return path, WriteRecordsFile(path, records)
}

// ReadRecords loads the named answer file.
func (d *Dir) ReadRecords(name string) ([]faq.Record, error) {
	return ReadRecordsFile(d.Path(name))
}
