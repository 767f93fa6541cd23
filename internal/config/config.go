// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Server    ServerConfig
	OAuth     OAuthConfig
	Jira      JiraConfig
	Tracker   TrackerConfig
	LLM       LLMConfig
	Refresh   RefreshConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string
	FrontendURL  string
	CookieSecure bool
	SessionTTL   time.Duration
}

// OAuthConfig holds the Atlassian OAuth2 application credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// JiraConfig holds basic-auth credentials used by the CLI and MCP modes.
type JiraConfig struct {
	URL      string
	Username string
	Token    string
}

// TrackerConfig holds instance-specific tracker settings.
type TrackerConfig struct {
	// EpicLinkField is the custom field carrying a story's epic when the
	// issue has no parent, e.g. "customfield_10014".
	EpicLinkField string
	// TestCaseType is the issue type used when exporting test cases.
	TestCaseType string
	Timeout      time.Duration
	MaxResults   int
}

// LLMConfig holds language-model settings.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	JSONMode    bool
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// RefreshConfig controls the periodic snapshot refresh.
type RefreshConfig struct {
	Interval time.Duration
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Environment  string
}

var defaultScopes = []string{
	"read:jira-work",
	"write:jira-work",
	"read:jira-user",
	"offline_access",
}

// LoadConfig initializes and loads configuration from environment variables and,
// when configFile is not empty, from that file. Environment variables win.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Addr:         normalizeAddr(v.GetString("server.addr")),
			FrontendURL:  v.GetString("server.frontend_url"),
			CookieSecure: v.GetBool("server.cookie_secure"),
			SessionTTL:   v.GetDuration("server.session_ttl"),
		},
		OAuth: OAuthConfig{
			ClientID:     v.GetString("oauth.client_id"),
			ClientSecret: v.GetString("oauth.client_secret"),
			RedirectURL:  v.GetString("oauth.redirect_url"),
			Scopes:       v.GetStringSlice("oauth.scopes"),
		},
		Jira: JiraConfig{
			URL:      v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
		Tracker: TrackerConfig{
			EpicLinkField: v.GetString("tracker.epic_link_field"),
			TestCaseType:  v.GetString("tracker.test_case_type"),
			Timeout:       v.GetDuration("tracker.timeout"),
			MaxResults:    v.GetInt("tracker.max_results"),
		},
		LLM: LLMConfig{
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			JSONMode:    v.GetBool("llm.json_mode"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: v.GetFloat64("llm.temperature"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Refresh: RefreshConfig{
			Interval: v.GetDuration("refresh.interval"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			Environment:  v.GetString("telemetry.environment"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.cookie_secure", false)
	v.SetDefault("server.session_ttl", 24*time.Hour)
	v.SetDefault("oauth.redirect_url", "http://localhost:5000/auth/callback")
	v.SetDefault("oauth.scopes", defaultScopes)
	v.SetDefault("tracker.epic_link_field", "customfield_10014")
	v.SetDefault("tracker.test_case_type", "Sub-task")
	v.SetDefault("tracker.timeout", 30*time.Second)
	v.SetDefault("tracker.max_results", 100)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.json_mode", false)
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("refresh.interval", 60*time.Second)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")
}

// bindEnv maps the environment variable names the dashboard has always used.
func bindEnv(v *viper.Viper) {
	v.BindEnv("server.addr", "PORT")
	v.BindEnv("server.frontend_url", "FRONTEND_URL")
	v.BindEnv("server.cookie_secure", "COOKIE_SECURE")
	v.BindEnv("oauth.client_id", "CLIENT_ID")
	v.BindEnv("oauth.client_secret", "CLIENT_SECRET", "SECRET_KEY")
	v.BindEnv("oauth.redirect_url", "REDIRECT_URI")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("tracker.epic_link_field", "JIRA_EPIC_LINK_FIELD")
	v.BindEnv("tracker.test_case_type", "JIRA_TEST_CASE_TYPE")
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.model", "OPENAI_MODEL")
	v.BindEnv("llm.json_mode", "OPENAI_JSON_MODE")
	v.BindEnv("refresh.interval", "REFRESH_INTERVAL")
	v.BindEnv("telemetry.enabled", "PRISM_OTEL_ENABLED")
	v.BindEnv("telemetry.otlp_endpoint", "PRISM_OTEL_ENDPOINT")
	v.BindEnv("telemetry.environment", "PRISM_ENV")
}

// normalizeAddr accepts a bare port number as PORT has historically been.
func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// validateConfig ensures that values which are always required are sane.
func validateConfig(config *Config) error {
	if config.Tracker.Timeout <= 0 {
		return fmt.Errorf("tracker.timeout must be positive, got %s", config.Tracker.Timeout)
	}
	if config.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", config.LLM.Timeout)
	}
	if config.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", config.Refresh.Interval)
	}
	if config.Tracker.EpicLinkField == "" {
		return fmt.Errorf("tracker.epic_link_field must not be empty")
	}
	return nil
}

// ValidateOAuthConfig validates the settings needed to run the dashboard server.
func ValidateOAuthConfig(config *Config) error {
	var missingVars []string

	if config.OAuth.ClientID == "" {
		missingVars = append(missingVars, "CLIENT_ID")
	}
	if config.OAuth.ClientSecret == "" {
		missingVars = append(missingVars, "CLIENT_SECRET")
	}
	if config.OAuth.RedirectURL == "" {
		missingVars = append(missingVars, "REDIRECT_URI")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA basic-auth configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
