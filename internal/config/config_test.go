package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresTokens(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		key     string
		wantErr string
	}{
		{"no token", "", "k", "TELEGRAM_BOT_TOKEN is required"},
		{"no key", "t", "", "GEMINI_API_KEY is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", tt.token)
			t.Setenv("GEMINI_API_KEY", tt.key)
			_, err := Load()
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestLoadWebOnlyNeedsAPIKey(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadWeb()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
}

func TestDefaults(t *testing.T) {
	for _, k := range []string{"GENERATE_TIMEOUT_SECONDS", "VARIATIONS", "CORS_ORIGINS", "STORAGE_TYPE", "MEDIA_GROUP_DEBOUNCE_MS"} {
		t.Setenv(k, "")
	}

	cfg := LoadCLI()
	assert.Equal(t, 180*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 3, cfg.Variations)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, 1200*time.Millisecond, cfg.MediaGroupDebounce)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GENERATE_TIMEOUT_SECONDS", "-5")
	t.Setenv("ANALYZE_TIMEOUT_SECONDS", "soon")
	t.Setenv("VARIATIONS", "12")
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("OUTPUT_WIDTH", "0")

	cfg := LoadCLI()
	assert.Equal(t, 180*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 60*time.Second, cfg.AnalyzeTimeout)
	assert.Equal(t, 4, cfg.Variations)
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 1024, cfg.OutputWidth)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitCSV(" http://a , ,http://b"))
	assert.Nil(t, splitCSV(" , "))
}
