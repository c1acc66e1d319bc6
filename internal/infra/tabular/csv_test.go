package tabular

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

func TestWriteRecordsQuotesHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecords(&buf, []faq.Record{{
		ID:       "a1",
		Question: "Retours, échanges ?",
		Answer:   `<p class="x">30 jours</p>`,
		Language: "fr-ca",
	}})
	require.NoError(t, err)
	require.Equal(t, "id,question,answer,language,category\n"+
		`a1,"Retours, échanges ?","<p class=""x"">30 jours</p>",fr-ca,`+"\n", buf.String())
}

func TestReadRecordsByHeaderName(t *testing.T) {
	input := "\xEF\xBB\xBFLanguage,id,question,extra,answer\nFR-CA,a1,Retours ?,zzz,<p>30</p>\n,,,,\n"

	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, faq.Record{ID: "a1", Question: "Retours ?", Answer: "<p>30</p>", Language: "fr-ca"}, records[0])
}

func TestReadRecordsErrors(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = ReadRecords(strings.NewReader("foo,bar\n1,2\n"))
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestLinksRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mapping.csv")
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	links := []faq.Link{
		{SourceID: "g1", Handle: "shipping", SourceQuestion: "Livraison ?", SourceAnswer: "<p>Gratuite</p>", DestinationHeading: "Shipping", Score: 91.5, UpdatedAt: ts},
		{SourceID: "g2", Handle: "returns"},
	}
	require.NoError(t, WriteLinksFile(path, links))

	got, err := ReadLinksFile(path)
	require.NoError(t, err)
	require.Equal(t, links, got)
}

func TestReadLinksAcceptsLegacyColumns(t *testing.T) {
	input := "gladly_id,bosapin_handle,shopify_question,gladly_question,shopify_answer,gladly_answer,updated_time,bosapin_heading,score\n" +
		"g1,old-handle,Ancienne,Nouvelle,,<p>x</p>,2024-05-01T10:00:00.123456,,88\n"

	links, err := ReadLinks(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "old-handle", links[0].Handle)
	require.Equal(t, "Ancienne", links[0].DestinationHeading)
	require.Equal(t, "Nouvelle", links[0].SourceQuestion)
	require.Equal(t, float64(88), links[0].Score)
	require.Equal(t, 2024, links[0].UpdatedAt.Year())
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadRecordsFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestLanguageFileName(t *testing.T) {
	require.Equal(t, "gladly_answers_fr_ca.csv", LanguageFileName("fr-ca"))
}

func TestDirResolvesNames(t *testing.T) {
	root := t.TempDir()
	dir := NewDir(root)

	path, err := dir.WriteRecords(CombinedFileName, []faq.Record{{ID: "a1", Question: "Q", Language: "en-us"}})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, CombinedFileName), path)

	records, err := dir.ReadRecords(CombinedFileName)
	require.NoError(t, err)
	require.Len(t, records, 1)

	abs := filepath.Join(t.TempDir(), "x.csv")
	require.Equal(t, abs, dir.Path(abs))
}

func TestLinksKeepFreeTextWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.csv")
	links := []faq.Link{{SourceID: "g1", Handle: "g1", SourceQuestion: " Retours ? ", SourceAnswer: "<p>30 jours</p>\n", DestinationHeading: "Retours ?"}}
	require.NoError(t, WriteLinksFile(path, links))

	got, err := ReadLinksFile(path)
	require.NoError(t, err)
	require.Equal(t, " Retours ? ", got[0].SourceQuestion)
	require.Equal(t, "<p>30 jours</p>\n", got[0].SourceAnswer)
}
