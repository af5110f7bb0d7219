package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverQuizDocumentDirect(t *testing.T) {
	doc, err := RecoverQuizDocument(`{"source_summary":"s","questions":[]}`)
	require.NoError(t, err)
	assert.Equal(t, "s", doc.SourceSummary)
	assert.Empty(t, doc.Questions)
}

func TestRecoverQuizDocumentFenced(t *testing.T) {
	doc, err := RecoverQuizDocument("```json\n{\"questions\":[]}\n```")
	require.NoError(t, err)
	assert.Empty(t, doc.Questions)
}

func TestRecoverQuizDocumentFencedNoLanguageTag(t *testing.T) {
	doc, err := RecoverQuizDocument("```\n{\"source_summary\":\"x\",\"questions\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", doc.SourceSummary)
}

func TestRecoverQuizDocumentProseWrapped(t *testing.T) {
	raw := `Sure! Here is your quiz: {"source_summary":"hemorrhage control","questions":[{"id":"Q1","stem":"s","options":[],"answer":{"label":"A","text":"a"}}]} Hope that helps.`
	doc, err := RecoverQuizDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, "hemorrhage control", doc.SourceSummary)
	require.Len(t, doc.Questions, 1)
	assert.Equal(t, "Q1", doc.Questions[0].ID)
}

func TestRecoverQuizDocumentWhitespace(t *testing.T) {
	doc, err := RecoverQuizDocument("\n\n  {\"questions\":[]}  \n")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestRecoverQuizDocumentUnparseable(t *testing.T) {
	raw := "I cannot produce a quiz from this document."
	doc, err := RecoverQuizDocument(raw)
	assert.Nil(t, doc)
	require.Error(t, err)

	var rerr *RecoverError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "json_decode_failed", rerr.Tag)
	assert.Equal(t, raw, rerr.Raw)
}

func TestRecoverQuizDocumentBrokenJSONEverywhere(t *testing.T) {
	_, err := RecoverQuizDocument("```json\n{\"questions\": [broken\n```")
	var rerr *RecoverError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "json_decode_failed", rerr.Tag)
}
