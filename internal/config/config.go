package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config is the whole service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Addr string `mapstructure:"-"`
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig lists exact origins plus one origin regex.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	OriginPattern  string   `mapstructure:"origin_pattern"`
}

// DatabaseConfig describes the history store connection.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
}

// LLMConfig describes the completion provider.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"`
	OpenAIAPIKey  string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL string        `mapstructure:"openai_base_url"`
	ArkAPIKey     string        `mapstructure:"ark_api_key"`
	ArkBaseURL    string        `mapstructure:"ark_base_url"`
	ArkRegion     string        `mapstructure:"ark_region"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ModelA        string        `mapstructure:"model_a"`
	ModelB        string        `mapstructure:"model_b"`
}

// SpeechConfig describes the ElevenLabs voice provider.
type SpeechConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig describes where synthesized audio is published.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Bucket        string        `mapstructure:"bucket"`
	SupabaseURL   string        `mapstructure:"supabase_url"`
	SupabaseKey   string        `mapstructure:"supabase_key"`
	NATSURL       string        `mapstructure:"nats_url"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ChatConfig tunes the turn pipeline.
type ChatConfig struct {
	HistoryLimit    int  `mapstructure:"history_limit"`
	StrictArtifacts bool `mapstructure:"strict_artifacts"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	StorageSupabase = "supabase"
	StorageNATS     = "nats"
)

// envBindings maps viper keys to the environment variables the deployment uses.
// The lowercase database variables match the existing deployment .env.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"cors.allowed_origins":    "CORS_ALLOWED_ORIGINS",
	"cors.origin_pattern":     "CORS_ORIGIN_PATTERN",
	"database.driver":         "DATABASE_DRIVER",
	"database.url":            "DATABASE_URL",
	"database.user":           "user",
	"database.password":       "password",
	"database.host":           "host",
	"database.port":           "port",
	"database.name":           "dbname",
	"llm.provider":            "LLM_PROVIDER",
	"llm.openai_api_key":      "OPENAI_API_KEY",
	"llm.openai_base_url":     "OPENAI_BASE_URL",
	"llm.ark_api_key":         "ARK_API_KEY",
	"llm.ark_base_url":        "ARK_BASE_URL",
	"llm.ark_region":          "ARK_REGION",
	"llm.timeout":             "LLM_TIMEOUT",
	"llm.model_a":             "FT_MODEL_A",
	"llm.model_b":             "FT_MODEL_B",
	"speech.api_key":          "ELEVENLABS_API_KEY",
	"speech.base_url":         "ELEVENLABS_BASE_URL",
	"speech.timeout":          "TTS_TIMEOUT",
	"storage.driver":          "STORAGE_DRIVER",
	"storage.bucket":          "STORAGE_BUCKET",
	"storage.supabase_url":    "SUPABASE_URL",
	"storage.supabase_key":    "SUPABASE_KEY",
	"storage.nats_url":        "NATS_URL",
	"storage.public_base_url": "PUBLIC_BASE_URL",
	"storage.timeout":         "STORAGE_TIMEOUT",
	"chat.history_limit":      "CHAT_HISTORY_LIMIT",
	"chat.strict_artifacts":   "CHAT_STRICT_ARTIFACTS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:5174",
		"http://127.0.0.1:5174",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"https://artifact-chatbot.vercel.app",
	})
	v.SetDefault("cors.origin_pattern", `^https://.*\.vercel\.app$`)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.port", "5432")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.ark_base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("llm.ark_region", "cn-beijing")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("speech.base_url", "wss://api.elevenlabs.io")
	v.SetDefault("speech.timeout", "60s")
	v.SetDefault("storage.driver", StorageSupabase)
	v.SetDefault("storage.bucket", "minibox")
	v.SetDefault("storage.timeout", "30s")
	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.strict_artifacts", false)
}

// Load reads configuration from environment variables and, when CONFIG_FILE
// is set, a YAML file underneath them.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("bind CONFIG_FILE: %w", err)
	}
	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	// Lists from the environment arrive comma separated.
	cfg.CORS.AllowedOrigins = splitList(v.GetStringSlice("cors.allowed_origins"))

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	addr, err := listenAddr(c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Addr = addr

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.URL) == "" {
			c.Database.URL = "data/chat.db"
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			c.Database.URL = c.Database.postgresDSN()
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderArk {
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver != StorageSupabase && c.Storage.Driver != StorageNATS {
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	c.Storage.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.SupabaseURL), "/")
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")

	if c.Chat.HistoryLimit < 1 {
		c.Chat.HistoryLimit = 1
	}
	return nil
}

// listenAddr accepts "8080", ":8080" or "127.0.0.1:8080".
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// postgresDSN assembles the connection string from the discrete db_* variables.
func (d DatabaseConfig) postgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=require",
	}
	return u.String()
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Enabled reports whether the selected provider has credentials.
func (c LLMConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.ArkAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// NewChatModel creates the provider chat model. defaultModel is only the
// fallback name; callers pick the per-artifact model on each request.
func (c LLMConfig) NewChatModel(ctx context.Context, defaultModel string) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials are not configured", c.Provider)
	}

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL: c.ArkBaseURL,
			Region:  c.ArkRegion,
			APIKey:  c.ArkAPIKey,
			Model:   defaultModel,
		})
	default:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   defaultModel,
			Timeout: c.Timeout,
		})
	}
}

// Models returns the fine-tuned model overrides keyed by artifact id.
func (c LLMConfig) Models() map[string]string {
	return map[string]string{"a": c.ModelA, "b": c.ModelB}
}

// Enabled reports whether an ElevenLabs key is configured.
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Enabled reports whether the selected storage driver has what it needs.
func (c StorageConfig) Enabled() bool {
	switch c.Driver {
	case StorageNATS:
		return c.NATSURL != "" && c.PublicBaseURL != ""
	default:
		return c.SupabaseURL != "" && c.SupabaseKey != ""
	}
}

// BaseURL is the storage_base_url used to derive public audio URLs.
func (c StorageConfig) BaseURL() string {
	if c.Driver == StorageNATS {
		return c.PublicBaseURL
	}
	return c.SupabaseURL
}
