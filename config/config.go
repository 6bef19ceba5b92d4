// Package config has the configuration for the drugcheck API
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps the accepted ENV spellings to an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes
	CORSOrigins       []string
	RequireProxy      bool

	LLMProvider   string
	LLMModel      string
	LLMTimeout    time.Duration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	OpenFDABaseURL  string
	OpenFDAAPIKey   string
	NCBIBaseURL     string
	NCBIAPIKey      string
	NCBITool        string
	NCBIEmail       string
	UpstreamTimeout time.Duration

	ResearchResults    int
	ResearchRetryDelay time.Duration
	AlternativesMin    int
	AlternativesMax    int

	PatientsFile       string
	PatientsIDColumn   string
	PatientsReloadAt   string // gocron At() expression, e.g. "06:00;18:00"; empty disables reloads
	PatientsStaleAfter time.Duration
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
		CORSOrigins:       splitCSV(getEnvWithDefault("CORS_ORIGINS", "*")),
		RequireProxy:      getBoolEnvWithDefault("REQUIRE_PROXY", false),

		LLMProvider:   strings.ToLower(getEnvWithDefault("LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:      os.Getenv("LLM_MODEL"),
		LLMTimeout:    getDurationEnvWithDefault("LLM_TIMEOUT", 60*time.Second),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnvWithDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),

		OpenFDABaseURL:  getEnvWithDefault("OPENFDA_BASE_URL", "https://api.fda.gov"),
		OpenFDAAPIKey:   os.Getenv("OPENFDA_API_KEY"),
		NCBIBaseURL:     getEnvWithDefault("NCBI_BASE_URL", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"),
		NCBIAPIKey:      os.Getenv("NCBI_API_KEY"),
		NCBITool:        getEnvWithDefault("NCBI_TOOL", "drugcheck-api"),
		NCBIEmail:       os.Getenv("NCBI_EMAIL"),
		UpstreamTimeout: getDurationEnvWithDefault("UPSTREAM_TIMEOUT", 20*time.Second),

		ResearchResults:    getIntEnvWithDefault("RESEARCH_RESULTS", 5),
		ResearchRetryDelay: getDurationEnvWithDefault("RESEARCH_RETRY_DELAY", 800*time.Millisecond),
		AlternativesMin:    getIntEnvWithDefault("ALTERNATIVES_MIN", 1),
		AlternativesMax:    getIntEnvWithDefault("ALTERNATIVES_MAX", 4),

		PatientsFile:       getEnvWithDefault("PATIENTS_FILE", "data/patients.csv"),
		PatientsIDColumn:   getEnvWithDefault("PATIENTS_ID_COLUMN", "id"),
		PatientsReloadAt:   os.Getenv("PATIENTS_RELOAD_AT"),
		PatientsStaleAfter: getDurationEnvWithDefault("PATIENTS_STALE_AFTER", 25*time.Hour),
	}

	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultModel(cfg.LLMProvider)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-4o-mini"
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateProvider(cfg.LLMProvider); err != nil {
		return fmt.Errorf("invalid LLM_PROVIDER: %w", err)
	}

	for name, raw := range map[string]string{
		"OPENAI_BASE_URL":  cfg.OpenAIBaseURL,
		"OPENFDA_BASE_URL": cfg.OpenFDABaseURL,
		"NCBI_BASE_URL":    cfg.NCBIBaseURL,
	} {
		if err := validateBaseURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if err := validateAlternativesBounds(cfg.AlternativesMin, cfg.AlternativesMax); err != nil {
		return fmt.Errorf("invalid ALTERNATIVES_MIN/ALTERNATIVES_MAX: %w", err)
	}

	if cfg.ResearchResults < 1 || cfg.ResearchResults > 20 {
		return fmt.Errorf("invalid RESEARCH_RESULTS: must be between 1 and 20, got: %d", cfg.ResearchResults)
	}

	if cfg.UpstreamTimeout <= 0 || cfg.LLMTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT and LLM_TIMEOUT must be positive")
	}

	if cfg.ResearchRetryDelay < 0 {
		return fmt.Errorf("invalid RESEARCH_RETRY_DELAY: must not be negative")
	}

	if strings.TrimSpace(cfg.PatientsIDColumn) == "" {
		return fmt.Errorf("PATIENTS_ID_COLUMN cannot be empty")
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validateProvider(provider string) error {
	if provider != ProviderOpenAI && provider != ProviderGemini {
		return fmt.Errorf("LLM_PROVIDER must be one of: [%s %s], got: %s", ProviderOpenAI, ProviderGemini, provider)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %s", raw)
	}
	return nil
}

func validateAlternativesBounds(minItems, maxItems int) error {
	if minItems < 1 {
		return fmt.Errorf("minimum must be at least 1, got: %d", minItems)
	}
	if maxItems < minItems {
		return fmt.Errorf("maximum (%d) must not be lower than minimum (%d)", maxItems, minItems)
	}
	if maxItems > 10 {
		return fmt.Errorf("maximum is too large (max 10), got: %d", maxItems)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("20s") or plain seconds ("20")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT", "ADDRESS", "ENV", "LOG_LEVEL", "LOG_DIR", "LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE", "MAX_REQUEST_BODY", "MAX_HEADER_SIZE", "CORS_ORIGINS",
		"REQUIRE_PROXY", "LLM_PROVIDER", "LLM_MODEL", "LLM_TIMEOUT", "OPENAI_API_KEY",
		"OPENAI_BASE_URL", "GEMINI_API_KEY", "OPENFDA_BASE_URL", "OPENFDA_API_KEY",
		"NCBI_BASE_URL", "NCBI_API_KEY", "NCBI_TOOL", "NCBI_EMAIL", "UPSTREAM_TIMEOUT",
		"RESEARCH_RESULTS", "RESEARCH_RETRY_DELAY", "ALTERNATIVES_MIN", "ALTERNATIVES_MAX",
		"PATIENTS_FILE", "PATIENTS_ID_COLUMN", "PATIENTS_RELOAD_AT", "PATIENTS_STALE_AFTER",
	}
}

// ValidateCredentials checks that the selected LLM provider has an API key
func (c *Config) ValidateCredentials() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("missing required environment variables: [OPENAI_API_KEY]")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("missing required environment variables: [GEMINI_API_KEY]")
		}
	}
	return nil
}
