package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ReviewModeContext = "context"
	ReviewModeOff     = "off"

	defaultBranchPrefix        = "Code-Bot"
	defaultWebURL              = "https://github.com"
	defaultListenAddr          = ":8080"
	defaultMaxParallelRequests = 8
	defaultEventTimeout        = 60 * time.Second
)

type Config struct {
	GitHubToken        string
	GitHubAPIURL       string
	GitHubWebURL       string
	WebhookSecret      string
	ListenAddr         string
	DBConnectionString string
	TelegramBotToken   string
	TelegramChatID     int64
	BranchPrefix       string
	BranchTriggerLabel string
	ReviewMode         string
	MaxParallel        int
	EventTimeout       time.Duration
	LogLevel           string
	LogFormat          string
	LogDir             string
}

type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

// LoadEnvFiles loads the given .env files, or ./.env when none are named.
// A missing default file is not an error.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(files...)
}

func LoadConfig() (*Config, error) {
	config := &Config{
		GitHubToken:        strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubAPIURL:       strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
		GitHubWebURL:       defaultWebURL,
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		ListenAddr:         defaultListenAddr,
		DBConnectionString: strings.TrimSpace(os.Getenv("DB_CONNECTION_STRING")),
		TelegramBotToken:   strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		BranchPrefix:       defaultBranchPrefix,
		BranchTriggerLabel: strings.TrimSpace(os.Getenv("BRANCH_TRIGGER_LABEL")),
		ReviewMode:         ReviewModeContext,
		MaxParallel:        defaultMaxParallelRequests,
		EventTimeout:       defaultEventTimeout,
		LogLevel:           "info",
		LogFormat:          "text",
		LogDir:             strings.TrimSpace(os.Getenv("LOG_DIR")),
	}

	if webURL := strings.TrimSpace(os.Getenv("GITHUB_WEB_URL")); webURL != "" {
		if _, err := url.ParseRequestURI(webURL); err != nil {
			return nil, ConfigValidationError{Field: "GITHUB_WEB_URL", Message: fmt.Sprintf("invalid value %q: %v", webURL, err)}
		}
		config.GitHubWebURL = strings.TrimRight(webURL, "/")
	}

	if addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); addr != "" {
		config.ListenAddr = addr
	}

	if chatEnv := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); chatEnv != "" {
		parsed, err := strconv.ParseInt(chatEnv, 10, 64)
		if err != nil {
			return nil, ConfigValidationError{Field: "TELEGRAM_CHAT_ID", Message: fmt.Sprintf("invalid value %q: %v", chatEnv, err)}
		}
		config.TelegramChatID = parsed
	}

	if prefix := strings.TrimSpace(os.Getenv("BRANCH_PREFIX")); prefix != "" {
		config.BranchPrefix = strings.Trim(prefix, "/")
	}

	if mode := strings.TrimSpace(os.Getenv("REVIEW_MODE")); mode != "" {
		mode = strings.ToLower(mode)
		if mode != ReviewModeContext && mode != ReviewModeOff {
			return nil, ConfigValidationError{Field: "REVIEW_MODE", Message: fmt.Sprintf("invalid mode %q, must be one of: context, off", mode)}
		}
		config.ReviewMode = mode
	}

	if parallelEnv := strings.TrimSpace(os.Getenv("MAX_PARALLEL_REQUESTS")); parallelEnv != "" {
		parsed, err := strconv.Atoi(parallelEnv)
		if err != nil {
			return nil, ConfigValidationError{Field: "MAX_PARALLEL_REQUESTS", Message: fmt.Sprintf("invalid value %q: %v", parallelEnv, err)}
		}
		if parsed <= 0 {
			return nil, ConfigValidationError{Field: "MAX_PARALLEL_REQUESTS", Message: "must be positive"}
		}
		config.MaxParallel = parsed
	}

	if timeoutEnv := strings.TrimSpace(os.Getenv("EVENT_TIMEOUT")); timeoutEnv != "" {
		parsed, err := strconv.Atoi(timeoutEnv)
		if err != nil {
			return nil, ConfigValidationError{Field: "EVENT_TIMEOUT", Message: fmt.Sprintf("invalid value %q: %v", timeoutEnv, err)}
		}
		if parsed <= 0 {
			return nil, ConfigValidationError{Field: "EVENT_TIMEOUT", Message: "must be positive"}
		}
		config.EventTimeout = time.Duration(parsed) * time.Second
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(level)] {
			return nil, ConfigValidationError{Field: "LOG_LEVEL", Message: fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", level)}
		}
		config.LogLevel = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		validFormats := map[string]bool{"text": true, "json": true}
		if !validFormats[strings.ToLower(format)] {
			return nil, ConfigValidationError{Field: "LOG_FORMAT", Message: fmt.Sprintf("invalid format %q, must be one of: text, json", format)}
		}
		config.LogFormat = strings.ToLower(format)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return ConfigValidationError{Field: "GITHUB_TOKEN", Message: "is required"}
	}

	if len(c.GitHubToken) < 10 {
		return ConfigValidationError{Field: "GITHUB_TOKEN", Message: "appears to be invalid (too short)"}
	}

	if c.GitHubAPIURL != "" {
		if _, err := url.ParseRequestURI(c.GitHubAPIURL); err != nil {
			return ConfigValidationError{Field: "GITHUB_API_URL", Message: fmt.Sprintf("invalid URL: %v", err)}
		}
	}

	if c.MaxParallel > 64 {
		return ConfigValidationError{Field: "MAX_PARALLEL_REQUESTS", Message: "cannot exceed 64"}
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return ConfigValidationError{Field: "TELEGRAM_CHAT_ID", Message: "is required when TELEGRAM_BOT_TOKEN is set"}
	}

	if strings.ContainsAny(c.BranchPrefix, " ~^:?*[\\") {
		return ConfigValidationError{Field: "BRANCH_PREFIX", Message: "contains characters not allowed in git refs"}
	}

	return nil
}

func (c *Config) IsTelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func (c *Config) IsStoreEnabled() bool {
	return c.DBConnectionString != ""
}

func (c *Config) ReviewsEnabled() bool {
	return c.ReviewMode != ReviewModeOff
}
