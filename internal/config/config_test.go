package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "data", "quizforge.db"))
	t.Setenv("ACTIVE_FORM_PATH", filepath.Join(dir, "data", "active_form.json"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MODEL", "")
	t.Setenv("MIN_QUESTIONS", "")
	t.Setenv("PIPELINE_PASSWORD", "")
	t.Setenv("PORT", "")

	cfg := Load()

	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIEndpoint)
	assert.Equal(t, "changeme", cfg.PipelinePassword)
	assert.Equal(t, 1, cfg.MinQuestions)
	assert.Equal(t, "8080", cfg.Port)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "db.sqlite"))
	t.Setenv("ACTIVE_FORM_PATH", filepath.Join(dir, "pointer.json"))
	t.Setenv("MODEL", "gpt-4o-mini")
	t.Setenv("MIN_QUESTIONS", "3")
	t.Setenv("PIPELINE_PASSWORD", "hunter2")
	t.Setenv("SHARE_WITH", "lead@example.com")

	cfg := Load()

	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 3, cfg.MinQuestions)
	assert.Equal(t, "hunter2", cfg.PipelinePassword)
	assert.Equal(t, "lead@example.com", cfg.ShareWith)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "db.sqlite"))
	t.Setenv("ACTIVE_FORM_PATH", filepath.Join(dir, "pointer.json"))
	t.Setenv("MIN_QUESTIONS", "three")

	cfg := Load()
	assert.Equal(t, 1, cfg.MinQuestions)
}
