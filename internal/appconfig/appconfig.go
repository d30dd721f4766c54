// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
//
// Values resolve in this order, highest first: command-line flags, MANARA_*
// environment variables (plus OPENAI_API_KEY / GEMINI_API_KEY for credentials),
// variables from a .env file, the config file, and built-in defaults.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// DefaultDotEnvPath is the .env file read before the environment is consulted.
	DefaultDotEnvPath = ".env"
	// EnvPrefix prefixes every environment override, e.g. MANARA_INDEXDIR.
	EnvPrefix = "MANARA"

	defaultRequestTimeout = 30 * time.Second
	defaultGenTimeout     = 60 * time.Second
	defaultMaxFileBytes   = 50 << 20
)

// Provider names accepted by the embedding, rerank and generation sections.
const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderGemini  = "gemini"
	ProviderTEI     = "tei"
	ProviderLexical = "lexical"
	ProviderNone    = "none"
)

// Config represents the top-level application configuration.
type Config struct {
	DataDir        string           `mapstructure:"dataDir" json:"dataDir"`
	IndexDir       string           `mapstructure:"indexDir" json:"indexDir"`
	Recursive      bool             `mapstructure:"recursive" json:"recursive"`
	Exclude        []string         `mapstructure:"exclude" json:"exclude,omitempty"`
	MaxFileBytes   int64            `mapstructure:"maxFileBytes" json:"maxFileBytes"`
	Chunk          ChunkConfig      `mapstructure:"chunk" json:"chunk"`
	Embedding      EmbeddingConfig  `mapstructure:"embedding" json:"embedding"`
	Rerank         RerankConfig     `mapstructure:"rerank" json:"rerank"`
	Generation     GenerationConfig `mapstructure:"generation" json:"generation"`
	Retrieval      RetrievalConfig  `mapstructure:"retrieval" json:"retrieval"`
	Server         ServerConfig     `mapstructure:"server" json:"server"`
	OpenAIAPIKey   string           `mapstructure:"openaiApiKey" json:"openaiApiKey,omitempty"`
	OpenAIBaseURL  string           `mapstructure:"openaiBaseUrl" json:"openaiBaseUrl,omitempty"`
	GeminiAPIKey   string           `mapstructure:"geminiApiKey" json:"geminiApiKey,omitempty"`
	RequestTimeout time.Duration    `mapstructure:"requestTimeout" json:"requestTimeout"`
	RetryAttempts  int              `mapstructure:"retryAttempts" json:"retryAttempts"`
	Metrics        bool             `mapstructure:"metrics" json:"metrics"`
	Debug          bool             `mapstructure:"debug" json:"debug"`
	LogFile        string           `mapstructure:"logFile" json:"logFile,omitempty"`
	LogLevel       string           `mapstructure:"logLevel" json:"logLevel"`
	LogJSON        bool             `mapstructure:"logJSON" json:"logJSON"`
	ConfigPath     string           `mapstructure:"-" json:"-"`
}

// ChunkConfig controls the word window used during ingestion.
type ChunkConfig struct {
	MaxWords int `mapstructure:"maxWords" json:"maxWords"`
	Overlap  int `mapstructure:"overlap" json:"overlap"`
}

// EmbeddingConfig selects the text-to-vector backend.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" json:"provider"`
	Model     string `mapstructure:"model" json:"model"`
	Host      string `mapstructure:"host" json:"host"`
	BatchSize int    `mapstructure:"batchSize" json:"batchSize"`
	CacheSize int    `mapstructure:"cacheSize" json:"cacheSize"`
}

// RerankConfig selects the cross-encoder used to re-score candidates.
type RerankConfig struct {
	Provider string `mapstructure:"provider" json:"provider"`
	URL      string `mapstructure:"url" json:"url"`
	Model    string `mapstructure:"model" json:"model"`
	APIKey   string `mapstructure:"apiKey" json:"apiKey,omitempty"`
}

// GenerationConfig selects the language model and its sampling parameters.
type GenerationConfig struct {
	Provider        string        `mapstructure:"provider" json:"provider"`
	Fallback        []string      `mapstructure:"fallback" json:"fallback,omitempty"`
	Model           string        `mapstructure:"model" json:"model"`
	Host            string        `mapstructure:"host" json:"host"`
	Temperature     float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens       int           `mapstructure:"maxTokens" json:"maxTokens"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
	HistoryMessages int           `mapstructure:"historyMessages" json:"historyMessages"`
}

// RetrievalConfig sizes the candidate pool and the final passage set.
type RetrievalConfig struct {
	K               int `mapstructure:"k" json:"k"`
	TopN            int `mapstructure:"topN" json:"topN"`
	MaxPassageWords int `mapstructure:"maxPassageWords" json:"maxPassageWords"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// Defaults returns the built-in value for every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"dataDir":                    "./data",
		"indexDir":                   "./kb_index",
		"recursive":                  false,
		"exclude":                    []string{},
		"maxFileBytes":               int64(defaultMaxFileBytes),
		"chunk.maxWords":             500,
		"chunk.overlap":              50,
		"embedding.provider":         ProviderOpenAI,
		"embedding.model":            "text-embedding-3-small",
		"embedding.host":             "http://localhost:11434",
		"embedding.batchSize":        32,
		"embedding.cacheSize":        512,
		"rerank.provider":            ProviderTEI,
		"rerank.url":                 "http://localhost:8081",
		"rerank.model":               "cross-encoder/ms-marco-MiniLM-L-6-v2",
		"rerank.apiKey":              "",
		"generation.provider":        ProviderOpenAI,
		"generation.fallback":        []string{},
		"generation.model":           "gpt-4o-mini",
		"generation.host":            "http://localhost:11434",
		"generation.temperature":     0.7,
		"generation.maxTokens":       300,
		"generation.timeout":         defaultGenTimeout,
		"generation.historyMessages": 10,
		"retrieval.k":                30,
		"retrieval.topN":             5,
		"retrieval.maxPassageWords":  200,
		"server.addr":                ":8080",
		"openaiApiKey":               "",
		"openaiBaseUrl":              "",
		"geminiApiKey":               "",
		"requestTimeout":             defaultRequestTimeout,
		"retryAttempts":              3,
		"metrics":                    false,
		"debug":                      false,
		"logFile":                    "",
		"logLevel":                   "info",
		"logJSON":                    false,
	}
}

// Configure registers defaults and environment bindings on v.
func Configure(v *viper.Viper) error {
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials also honour the variable names every SDK documents.
	if err := v.BindEnv("openaiApiKey", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return err
	}
	if err := v.BindEnv("geminiApiKey", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return err
	}
	return v.BindEnv("openaiBaseUrl", EnvPrefix+"_OPENAI_BASE_URL", "OPENAI_BASE_URL")
}

// LoadDotEnv copies variables from a .env file into the process environment.
// Variables already set are left alone, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultDotEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration file at path (if any) on a fresh viper
// instance and layers the .env file and environment on top.
func Load(path string) (Config, error) {
	if err := LoadDotEnv(""); err != nil {
		return Config{}, err
	}
	v := viper.New()
	if err := Configure(v); err != nil {
		return Config{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
			}
		}
	}
	cfg, err := FromViper(v)
	if err != nil {
		return Config{}, err
	}
	if v.ConfigFileUsed() != "" {
		if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
			cfg.ConfigPath = v.ConfigFileUsed()
		}
	}
	return cfg, nil
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot produce a working pipeline.
// Credentials are checked lazily by the backends that need them.
func (c Config) Validate() error {
	var problems []string
	if c.Chunk.MaxWords <= 0 {
		problems = append(problems, "chunk.maxWords must be positive")
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.MaxWords {
		problems = append(problems, fmt.Sprintf("chunk.overlap must be in [0, %d)", c.Chunk.MaxWords))
	}
	if c.Embedding.BatchSize <= 0 {
		problems = append(problems, "embedding.batchSize must be positive")
	}
	if c.Retrieval.K <= 0 || c.Retrieval.TopN <= 0 {
		problems = append(problems, "retrieval.k and retrieval.topN must be positive")
	} else if c.Retrieval.TopN > c.Retrieval.K {
		problems = append(problems, "retrieval.topN cannot exceed retrieval.k")
	}
	if !oneOf(c.Embedding.Provider, ProviderOpenAI, ProviderOllama, ProviderGemini) {
		problems = append(problems, fmt.Sprintf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if !oneOf(c.Rerank.Provider, ProviderTEI, ProviderLexical, ProviderNone) {
		problems = append(problems, fmt.Sprintf("unknown rerank.provider %q", c.Rerank.Provider))
	}
	for _, spec := range append([]string{c.Generation.Provider}, c.Generation.Fallback...) {
		name, _ := SplitProvider(spec)
		if !oneOf(name, ProviderOpenAI, ProviderOllama, ProviderGemini) {
			problems = append(problems, fmt.Sprintf("unknown generation provider %q", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SplitProvider parses a "provider" or "provider:model" entry.
func SplitProvider(spec string) (name, model string) {
	name, model, _ = strings.Cut(strings.TrimSpace(spec), ":")
	return strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(model)
}

func oneOf(value string, allowed ...string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// LogFilePath returns the path to the application log file. Empty means stdout only.
func (c Config) LogFilePath() string {
	return strings.TrimSpace(c.LogFile)
}

// BackendTimeout returns the per-request timeout for embedding and rerank calls.
func (c Config) BackendTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return c.RequestTimeout
}

// GenerationTimeout returns the deadline applied to one generation call.
func (c Config) GenerationTimeout() time.Duration {
	if c.Generation.Timeout <= 0 {
		return defaultGenTimeout
	}
	return c.Generation.Timeout
}

// Retries returns the number of retries for transient backend failures.
func (c Config) Retries() uint64 {
	if c.RetryAttempts <= 0 {
		return 0
	}
	return uint64(c.RetryAttempts)
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
