// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package config loads the slides translator configuration from an optional
// .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fmind/slides-translator-agent/orchestrator/llm/gemini"
)

// Environment variable names.
const (
	KeyProject               = "GOOGLE_CLOUD_PROJECT"
	KeyLocation              = "GOOGLE_CLOUD_LOCATION"
	KeyClientID              = "AUTHENTICATION_CLIENT_ID"
	KeyClientSecret          = "AUTHENTICATION_CLIENT_SECRET"
	KeyRedirectURL           = "AUTHENTICATION_REDIRECT_URL"
	KeyModelAgent            = "MODEL_NAME_AGENT"
	KeyModelTranslation      = "MODEL_NAME_TRANSLATION"
	KeyLoggingLevel          = "LOGGING_LEVEL"
	KeyTranslationWorkers    = "CONCURRENT_TRANSLATION_WORKERS"
	KeyTranslationsPerWorker = "CONCURRENT_TRANSLATIONS_PER_WORKER"
	KeySlidesBatchUpdates    = "CONCURRENT_SLIDES_BATCH_UPDATES"
	KeyTokenCacheKey         = "TOKEN_CACHE_KEY"
	KeyPort                  = "PORT"
	KeyRedisURL              = "REDIS_URL"
	KeyDatabaseURL           = "DATABASE_URL"
	KeyReportsBucket         = "REPORTS_BUCKET"
	KeyPricingFile           = "PRICING_FILE"
	KeyStateSigningKey       = "STATE_SIGNING_KEY"
	KeyCORSAllowedOrigins    = "CORS_ALLOWED_ORIGINS"
	KeyAPITokenKey           = "API_TOKEN_KEY"
)

// Defaults applied when a variable is unset.
const (
	DefaultLocation              = "global"
	DefaultModel                 = "gemini-2.5-flash"
	DefaultLoggingLevel          = "INFO"
	DefaultTranslationWorkers    = 10
	DefaultTranslationsPerWorker = 20
	DefaultSlidesBatchUpdates    = 50
	DefaultTokenCacheKey         = "user:slides_translator_token"
	DefaultPort                  = "8080"
	DefaultRedirectURL           = "http://localhost:8080/oauth/callback"
	DefaultCORSAllowedOrigins    = "*"
)

// ErrMissingConfig is returned when required variables are unset.
var ErrMissingConfig = errors.New("missing required configuration")

// ErrInvalidConfig is returned when a variable has an unusable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the runtime configuration.
type Config struct {
	ProjectID       string
	ProjectLocation string

	ClientID     string
	ClientSecret string
	RedirectURL  string

	ModelAgent       string
	ModelTranslation string

	LoggingLevel string

	TranslationWorkers    int
	TranslationsPerWorker int
	SlidesBatchUpdates    int

	TokenCacheKey   string
	StateSigningKey string

	// APITokenKey signs the bearer tokens naming API callers. When empty the
	// X-User-ID header is trusted.
	APITokenKey string

	Port               string
	RedisURL           string
	DatabaseURL        string
	ReportsBucket      string
	PricingFile        string
	CORSAllowedOrigins []string
}

// Load reads the .env file in the working directory when present, then the
// environment, and validates the result.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are ignored.
// Variables already present in the environment take precedence.
func LoadFiles(paths ...string) (*Config, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLocation, DefaultLocation)
	v.SetDefault(KeyModelAgent, DefaultModel)
	v.SetDefault(KeyModelTranslation, DefaultModel)
	v.SetDefault(KeyLoggingLevel, DefaultLoggingLevel)
	v.SetDefault(KeyTranslationWorkers, DefaultTranslationWorkers)
	v.SetDefault(KeyTranslationsPerWorker, DefaultTranslationsPerWorker)
	v.SetDefault(KeySlidesBatchUpdates, DefaultSlidesBatchUpdates)
	v.SetDefault(KeyTokenCacheKey, DefaultTokenCacheKey)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyRedirectURL, DefaultRedirectURL)
	v.SetDefault(KeyCORSAllowedOrigins, DefaultCORSAllowedOrigins)

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		KeyProject, KeyClientID, KeyClientSecret, KeyRedisURL,
		KeyDatabaseURL, KeyReportsBucket, KeyPricingFile, KeyStateSigningKey,
		KeyAPITokenKey,
	} {
		v.SetDefault(key, "")
	}
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		ProjectID:             v.GetString(KeyProject),
		ProjectLocation:       v.GetString(KeyLocation),
		ClientID:              v.GetString(KeyClientID),
		ClientSecret:          v.GetString(KeyClientSecret),
		RedirectURL:           v.GetString(KeyRedirectURL),
		ModelAgent:            v.GetString(KeyModelAgent),
		ModelTranslation:      v.GetString(KeyModelTranslation),
		LoggingLevel:          strings.ToUpper(v.GetString(KeyLoggingLevel)),
		TranslationWorkers:    v.GetInt(KeyTranslationWorkers),
		TranslationsPerWorker: v.GetInt(KeyTranslationsPerWorker),
		SlidesBatchUpdates:    v.GetInt(KeySlidesBatchUpdates),
		TokenCacheKey:         v.GetString(KeyTokenCacheKey),
		StateSigningKey:       v.GetString(KeyStateSigningKey),
		APITokenKey:           v.GetString(KeyAPITokenKey),
		Port:                  v.GetString(KeyPort),
		RedisURL:              v.GetString(KeyRedisURL),
		DatabaseURL:           v.GetString(KeyDatabaseURL),
		ReportsBucket:         v.GetString(KeyReportsBucket),
		PricingFile:           v.GetString(KeyPricingFile),
		CORSAllowedOrigins:    splitList(v.GetString(KeyCORSAllowedOrigins)),
	}
	if cfg.StateSigningKey == "" {
		cfg.StateSigningKey = cfg.ClientSecret
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks required variables and numeric bounds.
func (c *Config) Validate() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, KeyProject)
	}
	if c.ClientID == "" {
		missing = append(missing, KeyClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, KeyClientSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	bounds := []struct {
		key   string
		value int
	}{
		{KeyTranslationWorkers, c.TranslationWorkers},
		{KeyTranslationsPerWorker, c.TranslationsPerWorker},
		{KeySlidesBatchUpdates, c.SlidesBatchUpdates},
	}
	for _, b := range bounds {
		if b.value < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidConfig, b.key, b.value)
		}
	}
	if c.TokenCacheKey == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, KeyTokenCacheKey)
	}
	for key, model := range map[string]string{KeyModelAgent: c.ModelAgent, KeyModelTranslation: c.ModelTranslation} {
		if !gemini.IsValidModel(model) {
			return fmt.Errorf("%w: %s is not a Gemini model: %q", ErrInvalidConfig, key, model)
		}
	}
	return nil
}

// RedactedMap returns the effective configuration with secrets masked.
func (c *Config) RedactedMap() map[string]interface{} {
	return map[string]interface{}{
		KeyProject:               c.ProjectID,
		KeyLocation:              c.ProjectLocation,
		KeyClientID:              c.ClientID,
		KeyClientSecret:          redact(c.ClientSecret),
		KeyRedirectURL:           c.RedirectURL,
		KeyModelAgent:            c.ModelAgent,
		KeyModelTranslation:      c.ModelTranslation,
		KeyLoggingLevel:          c.LoggingLevel,
		KeyTranslationWorkers:    c.TranslationWorkers,
		KeyTranslationsPerWorker: c.TranslationsPerWorker,
		KeySlidesBatchUpdates:    c.SlidesBatchUpdates,
		KeyTokenCacheKey:         c.TokenCacheKey,
		KeyStateSigningKey:       redact(c.StateSigningKey),
		KeyAPITokenKey:           redact(c.APITokenKey),
		KeyPort:                  c.Port,
		KeyRedisURL:              redact(c.RedisURL),
		KeyDatabaseURL:           redact(c.DatabaseURL),
		KeyReportsBucket:         c.ReportsBucket,
		KeyPricingFile:           c.PricingFile,
		KeyCORSAllowedOrigins:    strings.Join(c.CORSAllowedOrigins, ","),
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
