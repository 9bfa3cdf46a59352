package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the companion service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Extract   ExtractConfig   `mapstructure:"extract"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
	SiteURL string `mapstructure:"site_url"`
	AppName string `mapstructure:"app_name"`
}

// LLMConfig contains the upstream completion provider configuration
type LLMConfig struct {
	APIKey            string            `mapstructure:"api_key"`
	BaseURL           string            `mapstructure:"base_url"`
	Models            map[string]string `mapstructure:"models"` // friendly name -> upstream model id
	DefaultModel      string            `mapstructure:"default_model"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Temperature       float64           `mapstructure:"temperature"`
	ChatMaxTokens     int               `mapstructure:"chat_max_tokens"`
	BriefingMaxTokens int               `mapstructure:"briefing_max_tokens"`
}

// StorageConfig contains storage backends
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings for the exchange store
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Host == "" || r.Port == "" {
		return fmt.Errorf("storage.redis.host and storage.redis.port are required when redis is enabled")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LogFile      string `mapstructure:"log_file"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
}

// RetrievalConfig holds default retrieval settings; requests may override them
type RetrievalConfig struct {
	TopK           int     `mapstructure:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	UseMMR         bool    `mapstructure:"use_mmr"`
	ChunkSize      int     `mapstructure:"chunk_size"`
	OverlapSize    int     `mapstructure:"overlap_size"`
}

// ExtractConfig controls the URL extraction collaborator
type ExtractConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LoadConfig reads configuration from file and environment. A missing config
// file is not an error (env + defaults apply); a malformed one is fatal.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":10002")
	viper.SetDefault("server.site_url", "http://localhost:3000")
	viper.SetDefault("server.app_name", "AI Knowledge Companion")
	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.default_model", "google/gemini-2.0-flash-exp:free")
	viper.SetDefault("llm.models", map[string]string{
		"gemini-2.0-flash-exp": "google/gemini-2.0-flash-exp:free",
		"gpt-oss-20b":          "openai/gpt-oss-20b:free",
	})
	viper.SetDefault("llm.timeout", 25*time.Second)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.chat_max_tokens", 1500)
	viper.SetDefault("llm.briefing_max_tokens", 2000)
	viper.SetDefault("storage.redis.enabled", false)
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("retrieval.top_k", 16)
	viper.SetDefault("retrieval.score_threshold", 0.1)
	viper.SetDefault("retrieval.use_mmr", false)
	viper.SetDefault("retrieval.chunk_size", 4000)
	viper.SetDefault("retrieval.overlap_size", 200)
	viper.SetDefault("extract.timeout", 15*time.Second)
	viper.SetDefault("extract.max_chars", 20000)
	viper.SetDefault("extract.user_agent", "Mozilla/5.0 (compatible; AI-Knowledge-Companion/1.0)")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COMPANION")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// Deployment environments commonly set only the provider credential.
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}

	return &config
}
