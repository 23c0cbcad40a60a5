package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Log       LogConfig       `toml:"log"`
	Auth      AuthConfig      `toml:"auth"`
	Identity  IdentityConfig  `toml:"identity"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
	Chat      ChatConfig      `toml:"chat"`
	Documents DocumentsConfig `toml:"documents"`
	Storage   StorageConfig   `toml:"storage"`
	LLM       LLMConfig       `toml:"llm"`
	Notify    NotifyConfig    `toml:"notify"`
	Views     ViewsConfig     `toml:"views"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
	WebDir  string `toml:"web_dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// DatabaseConfig selects the backing table store. Driver is one of
// postgres, mysql or sqlite; Path is only read by sqlite.
type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
	Path     string `toml:"path"`
}

// RedisConfig leaves Redis disabled when Addr is empty.
type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

// RabbitMQConfig leaves the broker disabled when URL is empty.
type RabbitMQConfig struct {
	URL                  string `toml:"url"`
	MessagePersistQueue  string `toml:"message_persist_queue"`
	DocumentProcessQueue string `toml:"document_process_queue"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
	AllowRegister   bool   `toml:"allow_register"`
}

type IdentityConfig struct {
	Domain       string `toml:"domain"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackURL  string `toml:"callback_url"`
	ReturnToURL  string `toml:"return_to_url"`
	CookieName   string `toml:"cookie_name"`
	CookieSecure bool   `toml:"cookie_secure"`
}

type ChatConfig struct {
	NewChatTitle  string `toml:"new_chat_title"`
	TitleMaxRunes int    `toml:"title_max_runes"`
	ReplyDelayMS  int    `toml:"reply_delay_ms"`
}

type DocumentsConfig struct {
	AllowedFileTypes  []string `toml:"allowed_file_types"`
	MaxFileSize       int64    `toml:"max_file_size"`
	ProcessingEnabled bool     `toml:"processing_enabled"`
}

// StorageConfig selects where uploaded bytes go: "local", "s3", or "" to
// keep uploads metadata-only.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	LocalPath   string `toml:"local_path"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

type LLMConfig struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	MaxContextMessage int    `toml:"max_context_message"`
}

type NotifyConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
	Limit      int `toml:"limit"`
}

type ViewsConfig struct {
	IdleTTLSeconds int `toml:"idle_ttl_seconds"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "", "local", "s3":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage driver s3 requires s3_bucket")
	}
	if c.Documents.MaxFileSize <= 0 {
		return fmt.Errorf("documents.max_file_size must be positive")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DB,
		c.Database.Params,
	)
}

func (c *Config) PostgresDSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DB,
	)
	if c.Database.Params != "" {
		dsn += " " + c.Database.Params
	}
	return dsn
}

// Default returns the built-in configuration before file and environment
// overrides.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "aria-chat",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
			WebDir:  "web",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Auth: AuthConfig{
			JWTSecret:       "change-me-in-production",
			JWTExpireMinute: 120,
			AllowRegister:   true,
		},
		Identity: IdentityConfig{
			CallbackURL: "http://localhost:8080/admin/callback",
			ReturnToURL: "http://localhost:8080/",
			CookieName:  "aria_admin_session",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Host:   "127.0.0.1",
			Port:   5432,
			User:   "postgres",
			DB:     "aria_chat",
			Params: "sslmode=disable",
			Path:   "data/aria.db",
		},
		Redis: RedisConfig{
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			MessagePersistQueue:  "chat.message.persist",
			DocumentProcessQueue: "documents.process",
		},
		Chat: ChatConfig{
			NewChatTitle:  "New Chat",
			TitleMaxRunes: 50,
			ReplyDelayMS:  1000,
		},
		Documents: DocumentsConfig{
			AllowedFileTypes:  []string{".pdf", ".txt", ".doc", ".docx"},
			MaxFileSize:       10 << 20,
			ProcessingEnabled: true,
		},
		Storage: StorageConfig{
			Driver:    "local",
			LocalPath: "data/uploads",
		},
		LLM: LLMConfig{
			Enabled:           false,
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			MaxContextMessage: 20,
		},
		Notify: NotifyConfig{
			TTLSeconds: 30,
			Limit:      20,
		},
		Views: ViewsConfig{
			IdleTTLSeconds: 1800,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.WebDir = getEnv("APP_WEB_DIR", cfg.App.WebDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getEnvAsBool("LOG_PRETTY", cfg.Log.Pretty)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)
	cfg.Auth.AllowRegister = getEnvAsBool("AUTH_ALLOW_REGISTER", cfg.Auth.AllowRegister)

	cfg.Identity.Domain = getEnv("IDENTITY_DOMAIN", cfg.Identity.Domain)
	cfg.Identity.ClientID = getEnv("IDENTITY_CLIENT_ID", cfg.Identity.ClientID)
	cfg.Identity.ClientSecret = getEnv("IDENTITY_CLIENT_SECRET", cfg.Identity.ClientSecret)
	cfg.Identity.CallbackURL = getEnv("IDENTITY_CALLBACK_URL", cfg.Identity.CallbackURL)
	cfg.Identity.ReturnToURL = getEnv("IDENTITY_RETURN_TO_URL", cfg.Identity.ReturnToURL)
	cfg.Identity.CookieName = getEnv("IDENTITY_COOKIE_NAME", cfg.Identity.CookieName)
	cfg.Identity.CookieSecure = getEnvAsBool("IDENTITY_COOKIE_SECURE", cfg.Identity.CookieSecure)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DB = getEnv("DB_NAME", cfg.Database.DB)
	cfg.Database.Params = getEnv("DB_PARAMS", cfg.Database.Params)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.MessagePersistQueue = getEnv("RABBITMQ_MESSAGE_PERSIST_QUEUE", cfg.RabbitMQ.MessagePersistQueue)
	cfg.RabbitMQ.DocumentProcessQueue = getEnv("RABBITMQ_DOCUMENT_PROCESS_QUEUE", cfg.RabbitMQ.DocumentProcessQueue)

	cfg.Chat.NewChatTitle = getEnv("CHAT_NEW_CHAT_TITLE", cfg.Chat.NewChatTitle)
	cfg.Chat.TitleMaxRunes = getEnvAsInt("CHAT_TITLE_MAX_RUNES", cfg.Chat.TitleMaxRunes)
	cfg.Chat.ReplyDelayMS = getEnvAsInt("CHAT_REPLY_DELAY_MS", cfg.Chat.ReplyDelayMS)

	cfg.Documents.AllowedFileTypes = getEnvAsList("DOCUMENTS_ALLOWED_FILE_TYPES", cfg.Documents.AllowedFileTypes)
	cfg.Documents.MaxFileSize = int64(getEnvAsInt("DOCUMENTS_MAX_FILE_SIZE", int(cfg.Documents.MaxFileSize)))
	cfg.Documents.ProcessingEnabled = getEnvAsBool("DOCUMENTS_PROCESSING_ENABLED", cfg.Documents.ProcessingEnabled)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.LocalPath = getEnv("STORAGE_LOCAL_PATH", cfg.Storage.LocalPath)
	cfg.Storage.S3Bucket = getEnv("STORAGE_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Region = getEnv("STORAGE_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Endpoint = getEnv("STORAGE_S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3AccessKey = getEnv("STORAGE_S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("STORAGE_S3_SECRET_KEY", cfg.Storage.S3SecretKey)

	cfg.LLM.Enabled = getEnvAsBool("LLM_ENABLED", cfg.LLM.Enabled)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.MaxContextMessage = getEnvAsInt("LLM_MAX_CONTEXT_MESSAGE", cfg.LLM.MaxContextMessage)

	cfg.Notify.TTLSeconds = getEnvAsInt("NOTIFY_TTL_SECONDS", cfg.Notify.TTLSeconds)
	cfg.Notify.Limit = getEnvAsInt("NOTIFY_LIMIT", cfg.Notify.Limit)
	cfg.Views.IdleTTLSeconds = getEnvAsInt("VIEWS_IDLE_TTL_SECONDS", cfg.Views.IdleTTLSeconds)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated value, dropping blank items.
func getEnvAsList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
