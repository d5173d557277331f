// Package config loads application configuration from environment
// variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 8000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
//
// Narration Configuration:
// - TTS_API_KEY: API key for the narration provider (required)
// - TTS_API_URL: Narration endpoint URL (required)
// - TTS_VOICE: Voice preset (default: narrator)
// - TTS_TIMEOUT: Request timeout in seconds (default: 60)
//
// Pipeline Configuration:
// - TARGET_LANGUAGES: Comma-separated language codes (default: ko)
// - ANALYSIS_LANGUAGE: Language the analyzer translates into (default: first target)
// - OUTPUT_DIR: Directory for finished clips (default: ./output)
// - WORK_DIR: Directory for run intermediates (default: system temp)
// - OUTPUT_FORMAT: long or short (default: long)
// - SHORT_LAYOUT: stacked or sequential (default: stacked)
// - REPEAT_COUNT: Times the expression and narration repeat (default: 2)
// - REPEAT_GAP_MS: Silence between repeats in milliseconds (default: 500)
// - TAIL_PADDING_MS: Slide padding after narration ends (default: 300)
// - TRANSITION_MS: Transition beat length in milliseconds (default: 1000)
// - PIPELINE_MAX_CONCURRENCY: Concurrency ceiling (default: half the cores)
// - PIPELINE_TASK_TIMEOUT: Per-task timeout in seconds (default: 600)
// - MAX_BATCH_MINUTES: Batch file cap in minutes, 0 disables batching
// - BUFFER_TOLERANCE_MS: Slice padding in milliseconds (default: 200)
//
// Watch Mode:
// - MEDIA_DIRS: Comma-separated directories to scan
// - CRON_EXPR: Scan schedule (default: 0 * * * *)
//
// Persistence:
// - STATE_DB_PATH: SQLite path for job and run state (default: ./data/state.db)
// - JOB_WORKERS: Queue worker count (default: 1)
type Config struct {
	LLM      LLMConfig      `json:"llm"`
	TTS      TTSConfig      `json:"tts"`
	Pipeline PipelineConfig `json:"pipeline"`
	Watch    WatchConfig    `json:"watch"`
	State    StateConfig    `json:"state"`
}

// LLMConfig holds the configuration for the LLM client
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// TTSConfig holds the configuration for the narration client
type TTSConfig struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Voice   string `json:"voice"`
	Timeout int    `json:"timeout"`
}

// PipelineConfig tunes clip production
type PipelineConfig struct {
	TargetLanguages   []string `json:"target_languages"`
	AnalysisLanguage  string   `json:"analysis_language"`
	OutputDir         string   `json:"output_dir"`
	WorkDir           string   `json:"work_dir"`
	OutputFormat      string   `json:"output_format"`
	ShortLayout       string   `json:"short_layout"`
	RepeatCount       int      `json:"repeat_count"`
	RepeatGapMs       int      `json:"repeat_gap_ms"`
	TailPaddingMs     int      `json:"tail_padding_ms"`
	TransitionMs      int      `json:"transition_ms"`
	MaxConcurrency    int      `json:"max_concurrency"`
	TaskTimeoutSec    int      `json:"task_timeout_sec"`
	MaxBatchMinutes   int      `json:"max_batch_minutes"`
	BufferToleranceMs int      `json:"buffer_tolerance_ms"`
}

// WatchConfig tunes the directory scanner
type WatchConfig struct {
	MediaDirs []string `json:"media_dirs"`
	CronExpr  string   `json:"cron_expr"`
}

// StateConfig tunes job persistence
type StateConfig struct {
	DBPath     string `json:"db_path"`
	JobWorkers int    `json:"job_workers"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a Config from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
		},
		TTS: TTSConfig{
			APIKey:  getEnvString("TTS_API_KEY", ""),
			APIURL:  getEnvString("TTS_API_URL", ""),
			Voice:   getEnvString("TTS_VOICE", "narrator"),
			Timeout: getEnvInt("TTS_TIMEOUT", 60),
		},
		Pipeline: PipelineConfig{
			TargetLanguages:   getEnvList("TARGET_LANGUAGES", []string{"ko"}),
			AnalysisLanguage:  getEnvString("ANALYSIS_LANGUAGE", ""),
			OutputDir:         getEnvString("OUTPUT_DIR", "./output"),
			WorkDir:           getEnvString("WORK_DIR", ""),
			OutputFormat:      getEnvString("OUTPUT_FORMAT", "long"),
			ShortLayout:       getEnvString("SHORT_LAYOUT", "stacked"),
			RepeatCount:       getEnvInt("REPEAT_COUNT", 2),
			RepeatGapMs:       getEnvInt("REPEAT_GAP_MS", 500),
			TailPaddingMs:     getEnvInt("TAIL_PADDING_MS", 300),
			TransitionMs:      getEnvInt("TRANSITION_MS", 1000),
			MaxConcurrency:    getEnvInt("PIPELINE_MAX_CONCURRENCY", 0),
			TaskTimeoutSec:    getEnvInt("PIPELINE_TASK_TIMEOUT", 600),
			MaxBatchMinutes:   getEnvInt("MAX_BATCH_MINUTES", 0),
			BufferToleranceMs: getEnvInt("BUFFER_TOLERANCE_MS", 200),
		},
		Watch: WatchConfig{
			MediaDirs: getEnvList("MEDIA_DIRS", nil),
			CronExpr:  getEnvString("CRON_EXPR", "0 * * * *"),
		},
		State: StateConfig{
			DBPath:     getEnvString("STATE_DB_PATH", "./data/state.db"),
			JobWorkers: getEnvInt("JOB_WORKERS", 1),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.Pipeline.AnalysisLanguage == "" && len(config.Pipeline.TargetLanguages) > 0 {
		config.Pipeline.AnalysisLanguage = config.Pipeline.TargetLanguages[0]
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if len(c.Pipeline.TargetLanguages) == 0 {
		return fmt.Errorf("TARGET_LANGUAGES must name at least one language")
	}
	switch c.Pipeline.OutputFormat {
	case "long", "short":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be long or short, got %q", c.Pipeline.OutputFormat)
	}
	switch c.Pipeline.ShortLayout {
	case "stacked", "sequential":
	default:
		return fmt.Errorf("SHORT_LAYOUT must be stacked or sequential, got %q", c.Pipeline.ShortLayout)
	}
	if c.Pipeline.RepeatCount < 1 {
		return fmt.Errorf("REPEAT_COUNT must be at least 1, got %d", c.Pipeline.RepeatCount)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment value, trimming blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
