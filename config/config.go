// Package config loads the application configuration from the
// environment, with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	once sync.Once
	cfg  *Config
)

// Config is the full application configuration.
type Config struct {
	Folders  FoldersConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Tags     TagsConfig
	Archive  ArchiveConfig
	Server   ServerConfig
	Log      LogConfig
	Registry RegistryConfig
}

type FoldersConfig struct {
	Inbox   string
	Archive string
	Temp    string
}

type OCRConfig struct {
	Enabled      bool
	Language     string
	Deskew       bool
	ForceOCR     bool
	SkipIfExists bool
	Optimize     int
	Timeout      time.Duration
}

type LLMConfig struct {
	Provider      string
	Model         string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	OllamaURL     string
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

type TagsConfig struct {
	MaxTags          int
	CustomCategories []string
	MinConfidence    float64
}

type ArchiveConfig struct {
	Structure      string
	SidecarEnabled bool
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	Parallel    int
}

type LogConfig struct {
	Level    string
	Encoding string
	File     string
}

type RegistryConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Get loads the configuration once and returns it. A .env file in the
// working directory is loaded first if present.
func Get() *Config {
	once.Do(func() {
		// running purely on environment variables is fine
		_ = godotenv.Load()
		cfg = load()
	})
	return cfg
}

func load() *Config {
	return &Config{
		Folders: FoldersConfig{
			Inbox:   getEnv("INBOX_FOLDER", "./inbox"),
			Archive: getEnv("ARCHIVE_FOLDER", "./archive"),
			Temp:    getEnv("TEMP_FOLDER", filepath.Join(os.TempDir(), "doctagger")),
		},
		OCR: OCRConfig{
			Enabled:      getEnvBool("OCR_ENABLED", true),
			Language:     getEnv("OCR_LANGUAGE", "eng"),
			Deskew:       getEnvBool("OCR_DESKEW", true),
			ForceOCR:     getEnvBool("OCR_FORCE", false),
			SkipIfExists: getEnvBool("OCR_SKIP_IF_EXISTS", true),
			Optimize:     getEnvInt("OCR_OPTIMIZE", 1),
			Timeout:      getEnvDuration("OCR_TIMEOUT", 5*time.Minute),
		},
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "ollama"),
			Model:         getEnv("LLM_MODEL", "llama3.1"),
			Timeout:       getEnvDuration("LLM_TIMEOUT", 2*time.Minute),
			Temperature:   getEnvFloat("LLM_TEMPERATURE", 0.1),
			MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 1024),
			OllamaURL:     getEnv("LLM_OLLAMA_URL", "http://localhost:11434"),
			OpenAIBaseURL: getEnv("LLM_OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:  getEnv("LLM_OPENAI_API_KEY", ""),
		},
		Tags: TagsConfig{
			MaxTags:          getEnvInt("TAGS_MAX_TAGS", 10),
			CustomCategories: getEnvList("TAGS_CUSTOM_CATEGORIES", nil),
			MinConfidence:    getEnvFloat("TAGS_MIN_CONFIDENCE", 0.0),
		},
		Archive: ArchiveConfig{
			Structure:      getEnv("ARCHIVE_STRUCTURE", "{year}/{month}/{document_type}"),
			SidecarEnabled: getEnvBool("SIDECAR_ENABLED", true),
		},
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			CORSOrigins: getEnvList("SERVER_CORS_ORIGINS", []string{"*"}),
			Parallel:    getEnvInt("SERVER_PARALLEL", 4),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
			File:     getEnv("LOG_FILE", ""),
		},
		Registry: RegistryConfig{
			Backend:       getEnv("REGISTRY_BACKEND", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
	}
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// plain number means seconds
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
