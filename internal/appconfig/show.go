package appconfig

import (
	"fmt"
	"io"
	"strings"
)

// ShowConfig prints the effective configuration with credentials masked.
func ShowConfig(out io.Writer, file string, cfg Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults, .env and environment).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Data Dir:          %s\n", cfg.DataDir)
	fmt.Fprintf(out, "  Index Dir:         %s\n", cfg.IndexDir)
	fmt.Fprintf(out, "  Recursive:         %v\n", cfg.Recursive)
	fmt.Fprintf(out, "  Exclude Globs:     %v\n", cfg.Exclude)
	fmt.Fprintf(out, "  Max File Bytes:    %d\n", cfg.MaxFileBytes)
	fmt.Fprintf(out, "  Chunk Words:       %d (overlap %d)\n", cfg.Chunk.MaxWords, cfg.Chunk.Overlap)
	fmt.Fprintf(out, "  Embedding:         %s %s (batch %d, cache %d)\n", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.BatchSize, cfg.Embedding.CacheSize)
	if strings.EqualFold(cfg.Embedding.Provider, ProviderOllama) {
		fmt.Fprintf(out, "  Embedding Host:    %s\n", cfg.Embedding.Host)
	}
	fmt.Fprintf(out, "  Rerank:            %s %s\n", cfg.Rerank.Provider, cfg.Rerank.Model)
	if strings.EqualFold(cfg.Rerank.Provider, ProviderTEI) {
		fmt.Fprintf(out, "  Rerank URL:        %s\n", cfg.Rerank.URL)
	}
	fmt.Fprintf(out, "  Generation:        %s %s (temperature %.2f, max tokens %d, timeout %s)\n",
		cfg.Generation.Provider, cfg.Generation.Model, cfg.Generation.Temperature, cfg.Generation.MaxTokens, cfg.GenerationTimeout())
	if len(cfg.Generation.Fallback) > 0 {
		fmt.Fprintf(out, "  Fallback:          %s\n", strings.Join(cfg.Generation.Fallback, ", "))
	}
	fmt.Fprintf(out, "  Retrieval:         k=%d topN=%d passage words=%d\n", cfg.Retrieval.K, cfg.Retrieval.TopN, cfg.Retrieval.MaxPassageWords)
	fmt.Fprintf(out, "  OpenAI API Key:    %s\n", MaskSecret(cfg.OpenAIAPIKey))
	if cfg.OpenAIBaseURL != "" {
		fmt.Fprintf(out, "  OpenAI Base URL:   %s\n", cfg.OpenAIBaseURL)
	}
	fmt.Fprintf(out, "  Gemini API Key:    %s\n", MaskSecret(cfg.GeminiAPIKey))
	fmt.Fprintf(out, "  Request Timeout:   %s (retries %d)\n", cfg.BackendTimeout(), cfg.Retries())
	fmt.Fprintf(out, "  Server Addr:       %s\n", cfg.Server.Addr)
	fmt.Fprintf(out, "  Metrics:           %v\n", cfg.Metrics)
	fmt.Fprintf(out, "  Debug:             %v\n", cfg.Debug)
	logFile := cfg.LogFilePath()
	if logFile == "" {
		logFile = "(stdout only)"
	}
	fmt.Fprintf(out, "  Log:               %s level=%s json=%v\n", logFile, cfg.LogLevel, cfg.LogJSON)
}
