package expand_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/expand"
)

func TestExpand_SectionReference(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("capítulo 5")
	assert.Equal(t, []string{
		"capítulo 5",
		"chapter 5",
		"capitulo 5",
		"sección 5",
		"tema 5",
	}, got)
}

func TestExpand_OriginalAlwaysFirst(t *testing.T) {
	e := expand.New("en+es")

	queries := []string{
		"chapter 12",
		"what is this document about",
		"the installation manual",
		"plain query with no triggers",
	}
	for _, q := range queries {
		got := e.Expand(q)
		require.NotEmpty(t, got, "query %q", q)
		assert.Equal(t, q, got[0], "query %q", q)
	}
}

func TestExpand_CapsAtFive(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("what is chapter 3 of the manual about")
	assert.LessOrEqual(t, len(got), 5)
}

func TestExpand_NoTriggersReturnsOriginalOnly(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("kubernetes ingress configuration")
	assert.Equal(t, []string{"kubernetes ingress configuration"}, got)
}

func TestExpand_DeduplicatesCaseInsensitively(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("Chapter 7")
	seen := make(map[string]struct{})
	for _, v := range got {
		key := strings.ToLower(v)
		_, dup := seen[key]
		assert.False(t, dup, "duplicate variant %q", v)
		seen[key] = struct{}{}
	}
	// "Chapter 7" and the generated "chapter 7" collapse to one entry.
	assert.Equal(t, "Chapter 7", got[0])
	for _, v := range got[1:] {
		assert.NotEqual(t, "chapter 7", strings.ToLower(v))
	}
}

func TestExpand_EmptyQuery(t *testing.T) {
	e := expand.New("en+es")

	assert.Nil(t, e.Expand(""))
	assert.Nil(t, e.Expand("   "))
}

func TestExpand_EnglishOnly(t *testing.T) {
	e := expand.New("en")

	got := e.Expand("section 2")
	require.NotEmpty(t, got)
	assert.Equal(t, "section 2", got[0])
	assert.Contains(t, got, "chapter 2")
	for _, v := range got {
		assert.NotContains(t, v, "capítulo")
	}
}

func TestExpand_AboutParaphrases(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("de qué trata este documento")
	require.Greater(t, len(got), 1)
	assert.Contains(t, got, "document summary")
}

func TestExpand_DomainSynonyms(t *testing.T) {
	e := expand.New("en+es")

	got := e.Expand("configuration manual")
	require.Greater(t, len(got), 1)
	assert.Contains(t, got, "guide")
}

func TestNew_UnknownLanguageFallsBack(t *testing.T) {
	e := expand.New("de")

	got := e.Expand("kapitel... chapter 4")
	assert.Contains(t, got, "capítulo 4")
}
