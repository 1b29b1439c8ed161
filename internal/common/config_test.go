package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mediclaim/constants"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, constants.DefaultAllowedOrigins, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes())

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-flash-latest", cfg.LLM.Model)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Zero(t, cfg.LLM.Timeout)

	assert.Equal(t, []string{"data/package_list_1.csv", "data/package_list_2.csv"}, cfg.Corpus.Sources)
	assert.Equal(t, "PACKAGE CODE", cfg.Corpus.CodeColumn)
	assert.Equal(t, constants.DefaultCandidateLimit, cfg.Retrieval.Limit)
	assert.Equal(t, constants.RankingDiscovery, cfg.Retrieval.Ranking)
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Zero(t, cfg.Workers.JobTimeout)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediclaim.yaml")
	yaml := `
llm:
  provider: OpenAI
  timeout: 45s
retrieval:
  ranking: " Hits "
  limit: 12
server:
  allowed_origins:
    - https://claims.example.org
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("MEDICLAIM_WORKERS_COUNT", "9")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.org, https://claims.example.org")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "o-key", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, constants.RankingHits, cfg.Retrieval.Ranking)
	assert.Equal(t, 12, cfg.Retrieval.Limit)
	assert.Equal(t, 9, cfg.Workers.Count)
	assert.Equal(t, []string{"https://claims.example.org", "https://a.example.org"}, cfg.Server.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:       LLMConfig{Provider: "gemini", APIKey: "k"},
			Retrieval: RetrievalConfig{Limit: 30, Ranking: constants.RankingDiscovery},
			Workers:   WorkerConfig{Count: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"unknown ranking", func(c *Config) { c.Retrieval.Ranking = "bm25" }, "retrieval.ranking"},
		{"zero limit", func(c *Config) { c.Retrieval.Limit = 0 }, "retrieval.limit"},
		{"no workers", func(c *Config) { c.Workers.Count = 0 }, "workers.count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)

			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, []string{tt.field}, verrs.Fields())
		})
	}

	require.NoError(t, valid().Validate())
}
