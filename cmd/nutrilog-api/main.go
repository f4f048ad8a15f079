package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nutrilog/backend/internal/auth"
	"github.com/nutrilog/backend/internal/catalog"
	"github.com/nutrilog/backend/internal/config"
	"github.com/nutrilog/backend/internal/database"
	"github.com/nutrilog/backend/internal/estimator"
	"github.com/nutrilog/backend/internal/extraction"
	"github.com/nutrilog/backend/internal/llm"
	"github.com/nutrilog/backend/internal/logging"
	"github.com/nutrilog/backend/internal/meals"
	"github.com/nutrilog/backend/internal/server"
	"github.com/nutrilog/backend/internal/users"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrilog-api",
		Short: "NutriLog meal logging backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL DSN (overrides SQLite path)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("groq-api-key", defaults.GetString("groq.api_key"), "Groq API key")
	cmd.PersistentFlags().String("groq-model", defaults.GetString("groq.model"), "Groq model name")
	cmd.PersistentFlags().String("ollama-host", defaults.GetString("ollama.host"), "Ollama host URL")
	cmd.PersistentFlags().String("ollama-model", defaults.GetString("ollama.model"), "Ollama model name")
	cmd.PersistentFlags().Bool("force-refresh", defaults.GetBool("catalog.force_refresh"), "Re-estimate every food instead of using cache and history")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "groq.api_key", "groq-api-key")
	bindFlag(cmd, "groq.model", "groq-model")
	bindFlag(cmd, "ollama.host", "ollama-host")
	bindFlag(cmd, "ollama.model", "ollama-model")
	bindFlag(cmd, "catalog.force_refresh", "force-refresh")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var db *gorm.DB
	if appConfig.DatabaseDSN != "" {
		db, err = database.OpenPostgres(appConfig.DatabaseDSN, logger)
	} else {
		db, err = database.OpenSQLite(appConfig.DatabasePath, logger)
	}
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	backends, err := buildGenerators(appConfig, logger)
	if err != nil {
		return err
	}

	nutrientEstimator, err := estimator.New(estimator.Config{
		Backends: backends,
		Logger:   logger.Named("estimator"),
	})
	if err != nil {
		return err
	}

	extractor, err := extraction.New(extraction.Config{
		Generator: llm.Chain(backends...),
		Logger:    logger.Named("extraction"),
	})
	if err != nil {
		return err
	}

	store := catalog.NewMemoryStore()
	store.Seed()
	resolver, err := catalog.NewResolver(catalog.ResolverConfig{
		Store:        store,
		History:      meals.NewHistory(db),
		Estimator:    nutrientEstimator,
		ForceRefresh: appConfig.ForceRefresh,
		Logger:       logger.Named("catalog"),
	})
	if err != nil {
		return err
	}

	mealService, err := meals.NewService(meals.ServiceConfig{
		Database:   db,
		Extractor:  extractor,
		Resolver:   resolver,
		Clock:      time.Now,
		IDProvider: meals.NewUUIDProvider(),
		Logger:     logger.Named("meals"),
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: meals.NewUUIDProvider(),
		Clock:      time.Now,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "nutrilog-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:   tokenManager,
		UserService:    userService,
		MealService:    mealService,
		Generator:      llm.Chain(backends...),
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger.Named("http"),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildGenerators composes the estimation backends: the local Ollama
// instance first, Groq as the paid fallback when an API key is present.
func buildGenerators(appConfig config.AppConfig, logger *zap.Logger) ([]llm.Generator, error) {
	ollama, err := llm.NewOllama(llm.OllamaConfig{
		Host:   appConfig.OllamaHost,
		Model:  appConfig.OllamaModel,
		Logger: logger.Named("ollama"),
	})
	if err != nil {
		return nil, err
	}
	backends := []llm.Generator{ollama}

	if appConfig.GroqAPIKey != "" {
		groq, err := llm.NewOpenAICompatible(llm.OpenAICompatibleConfig{
			APIKey:   appConfig.GroqAPIKey,
			BaseURL:  groqBaseURL,
			Model:    appConfig.GroqModel,
			Provider: "groq",
			Logger:   logger.Named("groq"),
		})
		if err != nil {
			return nil, err
		}
		backends = append(backends, groq)
	}

	return backends, nil
}
