// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/validator"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// LeadStoreConfig provides settings for the lead datastore REST client.
type LeadStoreConfig interface {
	GetLeadStoreURL() string
	GetLeadStoreAPIKey() string
}

// CRMConfig provides settings for the CRM client.
type CRMConfig interface {
	GetHubSpotToken() string
	GetHubSpotBaseURL() string
}

// TabularConfig provides settings for the tabular record store client.
type TabularConfig interface {
	GetAirtableToken() string
	GetAirtableBaseID() string
	GetAirtableTableID() string
	GetAirtableBaseURL() string
	IsAirtableEnabled() bool
}

// ThrottleConfig provides rate-limit and backoff settings for outbound calls.
type ThrottleConfig interface {
	GetCRMAPILimit() int
	GetSearchAPILimit() int
	GetMaxRetries() int
	GetRateLimitPause() time.Duration
}

// RunConfig provides batch orchestration settings.
type RunConfig interface {
	GetBatchSize() int
	GetMaxBatches() int
	GetLogEvery() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	LeadStoreURL    string `validate:"required,url"`
	LeadStoreAPIKey string `validate:"required"`
	HubSpotToken    string `validate:"required"`
	HubSpotBaseURL  string `validate:"required,url"`
	AirtableToken   string
	AirtableBaseID  string
	AirtableTableID string
	AirtableBaseURL string `validate:"required,url"`
	BatchSize       int    `validate:"gt=0"`
	MaxBatches      int    `validate:"gt=0"`
	MaxRetries      int    `validate:"gt=0"`
	LogEvery        int    `validate:"gt=0"`
	CRMAPILimit     int    `validate:"gt=0"`
	SearchAPILimit  int    `validate:"gt=0"`
	RateLimitPause  time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// LeadStoreConfig implementation
func (c *Config) GetLeadStoreURL() string    { return c.LeadStoreURL }
func (c *Config) GetLeadStoreAPIKey() string { return c.LeadStoreAPIKey }

// CRMConfig implementation
func (c *Config) GetHubSpotToken() string   { return c.HubSpotToken }
func (c *Config) GetHubSpotBaseURL() string { return c.HubSpotBaseURL }

// TabularConfig implementation
func (c *Config) GetAirtableToken() string   { return c.AirtableToken }
func (c *Config) GetAirtableBaseID() string  { return c.AirtableBaseID }
func (c *Config) GetAirtableTableID() string { return c.AirtableTableID }
func (c *Config) GetAirtableBaseURL() string { return c.AirtableBaseURL }
func (c *Config) IsAirtableEnabled() bool {
	return c.AirtableToken != "" && c.AirtableBaseID != "" && c.AirtableTableID != ""
}

// ThrottleConfig implementation
func (c *Config) GetCRMAPILimit() int              { return c.CRMAPILimit }
func (c *Config) GetSearchAPILimit() int           { return c.SearchAPILimit }
func (c *Config) GetMaxRetries() int               { return c.MaxRetries }
func (c *Config) GetRateLimitPause() time.Duration { return c.RateLimitPause }

// RunConfig implementation
func (c *Config) GetBatchSize() int  { return c.BatchSize }
func (c *Config) GetMaxBatches() int { return c.MaxBatches }
func (c *Config) GetLogEvery() int   { return c.LogEvery }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Legacy variable names from the hosted datastore are accepted as fallbacks
	// so existing cron environments keep working.
	storeURL := getEnv("LEADSTORE_URL", getEnv("SUPABASE_URL", ""))
	storeKey := firstNonEmpty(
		os.Getenv("LEADSTORE_API_KEY"),
		os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		os.Getenv("SUPABASE_API_KEY"),
		os.Getenv("SUPABASE_ANON_KEY"),
	)

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		LeadStoreURL:    strings.TrimSuffix(storeURL, "/"),
		LeadStoreAPIKey: storeKey,
		HubSpotToken:    getEnv("HUBSPOT_TOKEN", ""),
		HubSpotBaseURL:  getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
		AirtableToken:   getEnv("AIRTABLE_TOKEN", ""),
		AirtableBaseID:  getEnv("AIRTABLE_BASE_ID", "appjLxzpDaVbvKGc1"),
		AirtableTableID: getEnv("AIRTABLE_TABLE_ID", "tblrfGtVp21mUgtlB"),
		AirtableBaseURL: getEnv("AIRTABLE_BASE_URL", "https://api.airtable.com"),
		BatchSize:       mustInt(getEnv("BATCH_SIZE", "500")),
		MaxBatches:      mustInt(getEnv("MAX_BATCHES", "2")),
		MaxRetries:      mustInt(getEnv("MAX_RETRIES", "3")),
		LogEvery:        mustInt(getEnv("LOG_EVERY", "100")),
		CRMAPILimit:     mustInt(getEnv("CRM_API_LIMIT", "90")),
		SearchAPILimit:  mustInt(getEnv("SEARCH_API_LIMIT", "4")),
		RateLimitPause:  mustDuration(getEnv("RATE_LIMIT_PAUSE", "15s")),
	}

	if cfg.LeadStoreURL == "" || cfg.LeadStoreAPIKey == "" {
		return nil, apperr.Config("LEADSTORE_URL and LEADSTORE_API_KEY are required")
	}
	if cfg.HubSpotToken == "" {
		return nil, apperr.Config("HUBSPOT_TOKEN is required")
	}
	if cfg.RateLimitPause <= 0 {
		return nil, apperr.Config("RATE_LIMIT_PAUSE must be a positive duration")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "invalid configuration", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
