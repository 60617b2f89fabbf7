package title_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/title"
)

func TestDerive_DomainMatch(t *testing.T) {
	got := title.Derive("I want to build an online shop with a shopping cart", "PostgreSQL")
	assert.Equal(t, "E-commerce Platform (PostgreSQL)", got)
}

func TestDerive_PluralKeywordMatches(t *testing.T) {
	got := title.Derive("manage products and orders", "MySQL")
	assert.Equal(t, "E-commerce Platform (MySQL)", got)
}

func TestDerive_FallbackTitlecasesMeaningfulWords(t *testing.T) {
	got := title.Derive("track my homework assignments", "PostgreSQL")
	assert.Equal(t, "Homework Assignments", got)
}

func TestDerive_AllStopwordsFallsBackToDatabaseType(t *testing.T) {
	got := title.Derive("build a new app", "SQLite")
	assert.Equal(t, "SQLite Database Design", got)
}

func TestDerive_Deterministic(t *testing.T) {
	prompt := "a clinic needs to track patients and doctors"
	first := title.Derive(prompt, "PostgreSQL")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, title.Derive(prompt, "PostgreSQL"))
	}
	assert.Equal(t, "Healthcare Management System (PostgreSQL)", first)
}

func TestClassify_OrderedTableFirstHitWins(t *testing.T) {
	// "store" (e-commerce) appears alongside "blog"; the e-commerce row
	// comes first in the table.
	d, ok := title.Classify("a store for my blog merch")
	require.True(t, ok)
	assert.Equal(t, "E-commerce Platform", d.Label)
}

func TestClassify_NoMatch(t *testing.T) {
	_, ok := title.Classify("something entirely undescribed")
	assert.False(t, ok)
}

func TestClassify_CaseAndPunctuationInsensitive(t *testing.T) {
	d, ok := title.Classify("LIBRARY!!! with books...")
	require.True(t, ok)
	assert.Equal(t, "Library Management System", d.Label)
	assert.NotEmpty(t, d.Entities)
}
