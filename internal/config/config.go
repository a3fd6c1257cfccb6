package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/promptproof/market/internal/store"
	"github.com/promptproof/market/internal/utils"
)

//go:embed defaults.toml
var defaultSettings []byte

type Config struct {
	HTTPPort       string
	LogLevel       string
	AllowedOrigins []string

	UseSQLite  bool
	SQLitePath string

	DefaultLLMModel   string
	DefaultImageModel string
	Generation        GenerationDefaults

	OpenAIAPIKey  string
	OpenAIBaseURL string
	AtomaBearer   string
	AtomaBaseURL  string
	GeminiAPIKey  string

	ProviderTimeout  time.Duration
	ReasoningMarkers []string
}

// GenerationDefaults mirrors defaults.toml.
type GenerationDefaults struct {
	LLM   store.Settings `toml:"llm"`
	Image store.Settings `toml:"image"`
}

// LoadConfig reads envFiles (or .env when none are given) into the process
// environment and builds a Config from it. A missing .env is not an error;
// a missing file that was asked for is.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:       getEnv("PORT", "8000"),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		AllowedOrigins: utils.SplitList(getEnv("WHITELIST_URL", "*")),

		UseSQLite:  getEnvAsBool("USE_SQLITE", false),
		SQLitePath: getEnv("SQLITE_DB_PATH", "prompt_market.db"),

		DefaultLLMModel:   getEnv("DEFAULT_LLM_MODEL", "gpt-3.5-turbo"),
		DefaultImageModel: getEnv("DEFAULT_IMAGE_MODEL", "dall-e-2"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		AtomaBearer:   getEnv("ATOMA_BEARER", ""),
		AtomaBaseURL:  getEnv("ATOMA_BASE_URL", "https://api.atoma.network/v1"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),

		ProviderTimeout:  time.Duration(getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		ReasoningMarkers: utils.SplitList(getEnv("REASONING_MODEL_MARKERS", "r1")),
	}

	generation, err := LoadGenerationDefaults(getEnv("SETTINGS_FILE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Generation = *generation

	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
	}
	return cfg, nil
}

// LoadGenerationDefaults decodes the embedded defaults and, when path is
// set, overlays the keys present in that TOML file.
func LoadGenerationDefaults(path string) (*GenerationDefaults, error) {
	var defaults GenerationDefaults
	if err := toml.Unmarshal(defaultSettings, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse embedded settings: %w", err)
	}
	if path == "" {
		return &defaults, nil
	}

	if _, err := toml.DecodeFile(path, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &defaults, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
