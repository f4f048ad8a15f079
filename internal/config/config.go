package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "NUTRILOG"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "nutrilog.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 60
	defaultGroqModel     = "llama-3.1-8b-instant"
	defaultOllamaHost    = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
	defaultAllowedOrigin = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	DatabaseDSN    string
	LogLevel       string
	SigningSecret  string
	TokenTTL       time.Duration
	AllowedOrigins []string
	GroqAPIKey     string
	GroqModel      string
	OllamaHost     string
	OllamaModel    string
	ForceRefresh   bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigin)
	configViper.SetDefault("groq.api_key", "")
	configViper.SetDefault("groq.model", defaultGroqModel)
	configViper.SetDefault("ollama.host", defaultOllamaHost)
	configViper.SetDefault("ollama.model", defaultOllamaModel)
	configViper.SetDefault("catalog.force_refresh", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		AllowedOrigins: splitOrigins(configViper.GetString("cors.allowed_origins")),
		GroqAPIKey:     configViper.GetString("groq.api_key"),
		GroqModel:      configViper.GetString("groq.model"),
		OllamaHost:     configViper.GetString("ollama.host"),
		OllamaModel:    configViper.GetString("ollama.model"),
		ForceRefresh:   configViper.GetBool("catalog.force_refresh"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" && strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.path or database.dsn is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
