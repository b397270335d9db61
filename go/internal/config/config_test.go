package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "LOG_FORMAT", "NATS_URL", "ARCHIVE_ENABLED", "GAME_RULES_FILE", "SHUTDOWN_TIMEOUT", "DB_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.NATSURL)
	assert.False(t, cfg.ArchiveEnabled)
	assert.Equal(t, "triviaroom", cfg.Database.Database)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 45, cfg.Rules.CountdownFor("medium"))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("GAME_RULES_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.True(t, cfg.ArchiveEnabled)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  casual: 90
  blitz: 10
default_tier: casual
total_questions: 5
settle_delay: 1500ms
`), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 90, rules.CountdownFor("casual"))
	assert.Equal(t, 10, rules.CountdownFor("blitz"))
	assert.Equal(t, 90, rules.CountdownFor("medium"))
	assert.Equal(t, 5, rules.TotalQuestions)
	assert.Equal(t, 10, rules.CorrectReward)
	assert.Equal(t, 1500*time.Millisecond, rules.SettleDelay)
}

func TestLoadRules_ExplicitZerosKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("correct_reward: 0\nsettle_delay: 0s\n"), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 0, rules.CorrectReward)
	assert.Equal(t, time.Duration(0), rules.SettleDelay)
	assert.Equal(t, 10, rules.TotalQuestions)
	assert.Equal(t, 45, rules.CountdownFor("medium"))
}

func TestLoadRules_TiersReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers:\n  blitz: 5\ndefault_tier: blitz\n"), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"blitz": 5}, rules.Tiers)
}

func TestLoadRules_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "absent.yaml")
	_, err := LoadRules(missing)
	assert.Error(t, err)

	badDefault := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badDefault, []byte("default_tier: nightmare\n"), 0o644))
	_, err = LoadRules(badDefault)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nightmare")

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("tiers: [1, 2\n"), 0o644))
	_, err = LoadRules(malformed)
	assert.Error(t, err)
}

func TestLoadWithRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total_questions: 3\n"), 0o644))
	t.Setenv("GAME_RULES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Rules.TotalQuestions)
}

func TestGetEnvAsBool_InvalidFallsBack(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		value := rapid.StringMatching(`[a-z]{3,8}`).Draw(rt, "value")
		if value == "true" || value == "false" {
			rt.Skip("parseable")
		}
		t.Setenv("TRIVIAROOM_TEST_BOOL", value)
		if got := getEnvAsBool("TRIVIAROOM_TEST_BOOL", true); !got {
			rt.Fatalf("getEnvAsBool(%q) = false, want default true", value)
		}
	})
}
