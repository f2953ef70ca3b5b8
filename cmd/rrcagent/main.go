package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/GautamArjun/rrc-chat-ui/internal/api"
	"github.com/GautamArjun/rrc-chat-ui/internal/config"
	"github.com/GautamArjun/rrc-chat-ui/internal/faq"
	"github.com/GautamArjun/rrc-chat-ui/internal/notify"
	"github.com/GautamArjun/rrc-chat-ui/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for agent state data
	DefaultStateDir = "/var/lib/rrcagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "rrcagent.db"
	// DefaultStudiesDir is the default directory holding study configs
	DefaultStudiesDir = "studies"
	// DefaultFAQFileName is the per-study FAQ document indexed at startup
	DefaultFAQFileName = "faq.md"
)

func main() {
	initializeLogger()

	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(cfg)

	st, err := store.New(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	loader := config.NewLoader(*flags.studiesDir)

	opts := []api.Option{api.WithAddr(*flags.apiAddr)}

	if responder := buildFAQResponder(*flags.openaiKey, *flags.studiesDir, *flags.studyID); responder != nil {
		opts = append(opts, api.WithFAQResponder(responder))
	}
	if notifier := buildNotifier(cfg); notifier != nil {
		opts = append(opts, api.WithNotifier(notifier))
	}

	slog.Info("Bootstrapping screening agent",
		"api_addr", *flags.apiAddr,
		"studies_dir", *flags.studiesDir,
		"dsn_set", *flags.dbDSN != "")
	server := api.NewServer(st, loader, opts...)
	if err := server.Run(); err != nil {
		slog.Error("Screening agent failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Screening agent exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	StudiesDir       string
	StudyID          string
	OpenAIKey        string
	APIAddr          string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	CoordinatorPhone string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	studiesDir *string
	studyID    *string
	openaiKey  *string
	apiAddr    *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("RRCAGENT_STATE_DIR"),
		StudiesDir:       os.Getenv("RRCAGENT_STUDIES_DIR"),
		StudyID:          os.Getenv("RRCAGENT_STUDY_ID"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		CoordinatorPhone: os.Getenv("COORDINATOR_PHONE"),
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No RRCAGENT_STATE_DIR set, using default", "default_state_dir", cfg.StateDir)
	}
	if cfg.StudiesDir == "" {
		cfg.StudiesDir = DefaultStudiesDir
		slog.Debug("No RRCAGENT_STUDIES_DIR set, using default", "default_studies_dir", cfg.StudiesDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"RRCAGENT_STATE_DIR", cfg.StateDir,
		"RRCAGENT_STUDIES_DIR", cfg.StudiesDir,
		"RRCAGENT_STUDY_ID", cfg.StudyID,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"API_ADDR", cfg.APIAddr)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	apiAddr := cfg.APIAddr
	if apiAddr == "" {
		apiAddr = api.DefaultAddr
	}
	flags := Flags{
		stateDir:   flag.String("state-dir", cfg.StateDir, "directory for agent state data"),
		dbDSN:      flag.String("db-dsn", cfg.DatabaseURL, "database DSN (SQLite path or Postgres URL)"),
		studiesDir: flag.String("studies-dir", cfg.StudiesDir, "directory holding per-study configuration"),
		studyID:    flag.String("study-id", cfg.StudyID, "study whose FAQ document is indexed at startup"),
		openaiKey:  flag.String("openai-key", cfg.OpenAIKey, "OpenAI API key for FAQ answering"),
		apiAddr:    flag.String("api-addr", apiAddr, "HTTP listen address"),
	}
	flag.Parse()
	return flags
}

// buildFAQResponder assembles the FAQ pipeline and indexes the study's FAQ
// document. Returns nil when no API key or study is configured.
func buildFAQResponder(openaiKey, studiesDir, studyID string) faq.Responder {
	if openaiKey == "" || studyID == "" {
		slog.Debug("FAQ boundary disabled", "openai_key_set", openaiKey != "", "study_id", studyID)
		return nil
	}
	embedder, err := faq.NewOpenAIEmbedder(openaiKey)
	if err != nil {
		slog.Error("Failed to create embedder", "error", err)
		return nil
	}
	llm, err := faq.NewOpenAILLM(openaiKey)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		return nil
	}
	service := faq.NewService(embedder, faq.NewIndex(), llm)

	docPath := filepath.Join(studiesDir, studyID, DefaultFAQFileName)
	count, err := service.IndexDocument(context.Background(), studyID, docPath)
	if err != nil {
		slog.Error("Failed to index FAQ document", "error", err, "path", docPath)
		return nil
	}
	slog.Info("FAQ document indexed", "study_id", studyID, "chunks", count)
	return service
}

// buildNotifier assembles the Twilio handoff notifier. Returns nil when the
// coordinator number or Twilio credentials are not configured.
func buildNotifier(cfg Config) notify.Notifier {
	if cfg.TwilioSID == "" || cfg.TwilioToken == "" || cfg.TwilioFrom == "" || cfg.CoordinatorPhone == "" {
		slog.Debug("Handoff alerts disabled", "twilio_configured", false)
		return nil
	}
	notifier, err := notify.NewTwilioNotifier(
		notify.WithAccountSID(cfg.TwilioSID),
		notify.WithAuthToken(cfg.TwilioToken),
		notify.WithFrom(cfg.TwilioFrom),
		notify.WithTo(cfg.CoordinatorPhone),
	)
	if err != nil {
		slog.Error("Failed to create Twilio notifier", "error", err)
		return nil
	}
	return notifier
}
