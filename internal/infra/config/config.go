// Package config provides application-wide configuration loaded once at startup.
// Precedence: built-in defaults < YAML file (MACROMETER_CONFIG) < environment.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// Config holds runtime configuration for MacroMeter.
type Config struct {
	// Decomposition
	LLMProvider       string        // LLM_PROVIDER — "gemini" | "ollama"; default: "gemini"
	Decomposer        string        // DECOMPOSER — "vision" | "rekognition"; default: "vision"
	GeminiAPIKey      string        // GEMINI_API_KEY, falls back to GOOGLE_GEMINI_API_KEY
	GeminiModel       string        // GEMINI_MODEL — default: "gemini-2.5-flash"
	GeminiBaseURL     string        // GEMINI_BASE_URL — default: Generative Language v1beta
	OllamaBaseURL     string        // OLLAMA_BASE_URL — default: "http://localhost:11434"
	OllamaVisionModel string        // OLLAMA_VISION_MODEL — default: "llama3.2-vision"
	VisionTimeout     time.Duration // VISION_TIMEOUT — default: 60s
	AWSRegion         string        // AWS_REGION — required when DECOMPOSER=rekognition

	// Nutrition lookup
	USDAAPIKey         string        // USDA_API_KEY — required
	USDABaseURL        string        // USDA_BASE_URL — default: "https://api.nal.usda.gov/fdc/v1"
	NutritionTimeout   time.Duration // NUTRITION_TIMEOUT — default: 30s
	LookupMaxAttempts  int           // LOOKUP_MAX_ATTEMPTS — default: 8
	LookupDelay        time.Duration // LOOKUP_DELAY — default: 1s
	LookupConcurrency  int           // LOOKUP_CONCURRENCY — default: 1 (sequential)
	NutritionCachePath string        // NUTRITION_CACHE_PATH — empty disables the cache
	NutritionCacheTTL  time.Duration // NUTRITION_CACHE_TTL — default: 720h; 0 keeps entries forever

	// Serving
	HTTPHost    string   // HTTP_HOST — default: "0.0.0.0"
	HTTPPort    int      // HTTP_PORT — default: 8080
	CORSOrigins []string // CORS_ALLOWED_ORIGINS — comma-separated; default: "*"
	LogLevel    string   // LOG_LEVEL — debug | info | warn | error; default: "info"
	LogFormat   string   // LOG_FORMAT — json | console; default: "json"
}

const (
	envKeyConfigFile         = "MACROMETER_CONFIG"
	envKeyLLMProvider        = "LLM_PROVIDER"
	envKeyDecomposer         = "DECOMPOSER"
	envKeyGeminiAPIKey       = "GEMINI_API_KEY"
	envKeyGoogleGeminiAPIKey = "GOOGLE_GEMINI_API_KEY"
	envKeyGeminiModel        = "GEMINI_MODEL"
	envKeyGeminiBaseURL      = "GEMINI_BASE_URL"
	envKeyOllamaBaseURL      = "OLLAMA_BASE_URL"
	envKeyOllamaVisionModel  = "OLLAMA_VISION_MODEL"
	envKeyVisionTimeout      = "VISION_TIMEOUT"
	envKeyAWSRegion          = "AWS_REGION"
	envKeyUSDAAPIKey         = "USDA_API_KEY"
	envKeyUSDABaseURL        = "USDA_BASE_URL"
	envKeyNutritionTimeout   = "NUTRITION_TIMEOUT"
	envKeyLookupMaxAttempts  = "LOOKUP_MAX_ATTEMPTS"
	envKeyLookupDelay        = "LOOKUP_DELAY"
	envKeyLookupConcurrency  = "LOOKUP_CONCURRENCY"
	envKeyCachePath          = "NUTRITION_CACHE_PATH"
	envKeyCacheTTL           = "NUTRITION_CACHE_TTL"
	envKeyHTTPHost           = "HTTP_HOST"
	envKeyHTTPPort           = "HTTP_PORT"
	envKeyCORSOrigins        = "CORS_ALLOWED_ORIGINS"
	envKeyLogLevel           = "LOG_LEVEL"
	envKeyLogFormat          = "LOG_FORMAT"
)

// Provider and decomposer names accepted by LLM_PROVIDER and DECOMPOSER.
const (
	ProviderGemini        = "gemini"
	ProviderOllama        = "ollama"
	DecomposerVision      = "vision"
	DecomposerRekognition = "rekognition"
)

// Load reads configuration from the optional YAML file and environment variables,
// applying defaults for missing values. Malformed numbers, durations or an unreadable
// YAML file are reported as apperr.ErrConfiguration.
func Load() (Config, error) {
	file, err := readFile(os.Getenv(envKeyConfigFile))
	if err != nil {
		return Config{}, err
	}
	s := source{file: file}

	cfg := Config{
		LLMProvider:        strings.ToLower(s.str(envKeyLLMProvider, ProviderGemini)),
		Decomposer:         strings.ToLower(s.str(envKeyDecomposer, DecomposerVision)),
		GeminiAPIKey:       s.first("", envKeyGeminiAPIKey, envKeyGoogleGeminiAPIKey),
		GeminiModel:        s.str(envKeyGeminiModel, "gemini-2.5-flash"),
		GeminiBaseURL:      s.str(envKeyGeminiBaseURL, "https://generativelanguage.googleapis.com/v1beta"),
		OllamaBaseURL:      s.str(envKeyOllamaBaseURL, "http://localhost:11434"),
		OllamaVisionModel:  s.str(envKeyOllamaVisionModel, "llama3.2-vision"),
		VisionTimeout:      s.duration(envKeyVisionTimeout, 60*time.Second),
		AWSRegion:          s.str(envKeyAWSRegion, ""),
		USDAAPIKey:         s.str(envKeyUSDAAPIKey, ""),
		USDABaseURL:        s.str(envKeyUSDABaseURL, "https://api.nal.usda.gov/fdc/v1"),
		NutritionTimeout:   s.duration(envKeyNutritionTimeout, 30*time.Second),
		LookupMaxAttempts:  s.integer(envKeyLookupMaxAttempts, 8),
		LookupDelay:        s.duration(envKeyLookupDelay, time.Second),
		LookupConcurrency:  s.integer(envKeyLookupConcurrency, 1),
		NutritionCachePath: s.str(envKeyCachePath, ""),
		NutritionCacheTTL:  s.duration(envKeyCacheTTL, 720*time.Hour),
		HTTPHost:           s.str(envKeyHTTPHost, "0.0.0.0"),
		HTTPPort:           s.integer(envKeyHTTPPort, 8080),
		CORSOrigins:        splitList(s.str(envKeyCORSOrigins, "*")),
		LogLevel:           strings.ToLower(s.str(envKeyLogLevel, "info")),
		LogFormat:          strings.ToLower(s.str(envKeyLogFormat, "json")),
	}
	if len(s.errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", apperr.ErrConfiguration, errors.Join(s.errs...))
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: load %s: %v", apperr.ErrConfiguration, path, err)
	}
	return nil
}

// ValidateNutrition checks what a nutrition lookup alone needs.
func (c Config) ValidateNutrition() error {
	return joinProblems(c.nutritionProblems())
}

// Validate checks everything the full pipeline needs and lists every problem at once.
func (c Config) Validate() error {
	problems := c.nutritionProblems()

	switch c.Decomposer {
	case DecomposerVision:
		switch c.LLMProvider {
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				problems = append(problems, envKeyGeminiAPIKey+" is required when "+envKeyLLMProvider+"=gemini")
			}
		case ProviderOllama:
			if c.OllamaBaseURL == "" {
				problems = append(problems, envKeyOllamaBaseURL+" is required when "+envKeyLLMProvider+"=ollama")
			}
		default:
			problems = append(problems, fmt.Sprintf("%s %q is not one of gemini, ollama", envKeyLLMProvider, c.LLMProvider))
		}
	case DecomposerRekognition:
		if c.AWSRegion == "" {
			problems = append(problems, envKeyAWSRegion+" is required when "+envKeyDecomposer+"=rekognition")
		}
	default:
		problems = append(problems, fmt.Sprintf("%s %q is not one of vision, rekognition", envKeyDecomposer, c.Decomposer))
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		problems = append(problems, fmt.Sprintf("%s %q is not one of json, console", envKeyLogFormat, c.LogFormat))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("%s %d is out of range", envKeyHTTPPort, c.HTTPPort))
	}
	return joinProblems(problems)
}

func (c Config) nutritionProblems() []string {
	var problems []string
	if c.USDAAPIKey == "" {
		problems = append(problems, envKeyUSDAAPIKey+" is required")
	}
	if c.LookupMaxAttempts < 1 {
		problems = append(problems, envKeyLookupMaxAttempts+" must be at least 1")
	}
	if c.LookupConcurrency < 1 {
		problems = append(problems, envKeyLookupConcurrency+" must be at least 1")
	}
	if c.LookupDelay < 0 {
		problems = append(problems, envKeyLookupDelay+" must not be negative")
	}
	return problems
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrConfiguration, strings.Join(problems, "; "))
}

// ─── sources ─────────────────────────────────────────────────────────────────

// readFile decodes a flat YAML mapping whose keys are the lower-cased variable
// names (e.g. "usda_api_key: ..."). An empty path means no file.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrConfiguration, path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", apperr.ErrConfiguration, path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// source resolves one key across environment, file and default, collecting parse errors.
type source struct {
	file map[string]string
	errs []error
}

func (s *source) str(key, fallback string) string {
	return envOr(key, fileOr(s.file, key, fallback))
}

// first resolves aliased keys: every key in the environment before any key in the
// file, so an env alias still beats the file.
func (s *source) first(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	for _, k := range keys {
		if v := fileOr(s.file, k, ""); v != "" {
			return v
		}
	}
	return fallback
}

func (s *source) integer(key string, fallback int) int {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return n
}

func (s *source) duration(key string, fallback time.Duration) time.Duration {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return d
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fileOr returns the file value for key, or fallback if absent.
func fileOr(file map[string]string, key, fallback string) string {
	if v, ok := file[strings.ToLower(key)]; ok && v != "" {
		return v
	}
	return fallback
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
