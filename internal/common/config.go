package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joseph-ayodele/mediclaim/constants"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Workers   WorkerConfig    `mapstructure:"workers"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string   `mapstructure:"http_addr"`
	GRPCAddr       string   `mapstructure:"grpc_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb"`
}

// LLMConfig holds LLM-related configuration. A zero Timeout means the
// generator calls carry no deadline of their own.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CorpusConfig names the reference sources and the headers of the semantic columns.
type CorpusConfig struct {
	Sources          []string `mapstructure:"sources"`
	CodeColumn       string   `mapstructure:"code_column"`
	NameColumn       string   `mapstructure:"name_column"`
	ProcedureColumn  string   `mapstructure:"procedure_column"`
	SpecialityColumn string   `mapstructure:"speciality_column"`
	Table            string   `mapstructure:"table"`
	Sheet            string   `mapstructure:"sheet"`
}

// RetrievalConfig holds candidate search configuration
type RetrievalConfig struct {
	Limit   int    `mapstructure:"limit"`
	Ranking string `mapstructure:"ranking"`
}

// WorkerConfig sizes the analysis worker pool. A zero JobTimeout disables the per-job deadline.
type WorkerConfig struct {
	Count      int           `mapstructure:"count"`
	QueueSize  int           `mapstructure:"queue_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

const envPrefix = "MEDICLAIM"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.allowed_origins", constants.DefaultAllowedOrigins)
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", time.Duration(0))

	v.SetDefault("corpus.sources", []string{"data/package_list_1.csv", "data/package_list_2.csv"})
	v.SetDefault("corpus.code_column", "PACKAGE CODE")
	v.SetDefault("corpus.name_column", "PACKAGE NAME")
	v.SetDefault("corpus.procedure_column", "Procedure")
	v.SetDefault("corpus.speciality_column", "SPECIALITY")
	v.SetDefault("corpus.table", "packages")
	v.SetDefault("corpus.sheet", "")

	v.SetDefault("retrieval.limit", constants.DefaultCandidateLimit)
	v.SetDefault("retrieval.ranking", constants.RankingDiscovery)

	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queue_size", 64)
	v.SetDefault("workers.job_timeout", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// LoadConfig loads configuration from defaults, an optional YAML file and the environment.
// Environment variables use the MEDICLAIM_ prefix (MEDICLAIM_LLM_MODEL); the bare
// GEMINI_API_KEY, OPENAI_API_KEY and ALLOWED_ORIGINS variables are honoured as well.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("extra_origins", "ALLOWED_ORIGINS")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	cfg.applyEnvOverrides(v)
	return &cfg, nil
}

func (c *Config) applyEnvOverrides(v *viper.Viper) {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = v.GetString("openai_api_key")
		default:
			c.LLM.APIKey = v.GetString("gemini_api_key")
		}
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.Model = "gpt-4o-mini"
		default:
			c.LLM.Model = "gemini-flash-latest"
		}
	}

	if extra := v.GetString("extra_origins"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	c.Server.AllowedOrigins = dedupeStrings(c.Server.AllowedOrigins)
	c.Retrieval.Ranking = strings.ToLower(strings.TrimSpace(c.Retrieval.Ranking))
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("llm.api_key", c.LLM.APIKey, Required)
	v.Field("llm.provider", c.LLM.Provider, OneOf("gemini", "openai"))
	v.Field("retrieval.ranking", c.Retrieval.Ranking, OneOf(constants.RankingDiscovery, constants.RankingHits))
	if c.Retrieval.Limit <= 0 {
		v.Add("retrieval.limit", c.Retrieval.Limit, "must be positive")
	}
	if c.Workers.Count <= 0 {
		v.Add("workers.count", c.Workers.Count, "must be positive")
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 20 << 20
	}
	return int64(s.MaxUploadMB) << 20
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
