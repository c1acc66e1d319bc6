package faq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "spaces become hyphens", in: "How do returns work", out: "how-do-returns-work"},
		{name: "punctuation dropped", in: "What's the delivery fee?", out: "whats-the-delivery-fee"},
		{name: "accents folded", in: "Livraison générale à Québec", out: "livraison-generale-a-quebec"},
		{name: "collapses whitespace", in: "  many   spaces\there ", out: "many-spaces-here"},
		{name: "empty falls back", in: "???", out: "faq-question"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.out, Slugify(tc.in), tc.name)
	}
}

func TestLegacySlugDropsAccents(t *testing.T) {
	require.Equal(t, "gnral", LegacySlug("Général"))
	require.Equal(t, "o-est-ma-commande", LegacySlug("Où est ma commande ?"))
	require.Equal(t, Slugify("How do returns work"), LegacySlug("How do returns work"))
}

func TestSlugifyTruncatesWithoutTrailingHyphen(t *testing.T) {
	title := strings.Repeat("abcd ", 20)
	got := Slugify(title)
	require.LessOrEqual(t, len(got), 50)
	require.False(t, strings.HasSuffix(got, "-"))
	require.True(t, strings.HasPrefix(got, "abcd-abcd"))
}

func TestCleanContent(t *testing.T) {
	require.Equal(t, "", CleanContent("   "))
	require.Equal(t, "<p>30 days</p>", CleanContent(" 30 days "))
	require.Equal(t, "<div>kept</div>", CleanContent("<div>kept</div>\n"))
}

func TestNormalizeText(t *testing.T) {
	require.Equal(t, "what s the distance", NormalizeText("What's, the distance?"))
	require.Equal(t, "ou est mon colis", NormalizeText("  Où est mon colis ? "))
}

func TestLanguagesContains(t *testing.T) {
	langs := Languages{"fr-ca", "en-us"}
	require.True(t, langs.Contains("fr-ca"))
	require.True(t, langs.Contains(" EN-US "))
	require.False(t, langs.Contains("es-mx"))
	require.Equal(t, "fr_ca", FileSuffix("fr-CA"))
}
