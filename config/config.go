package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerAddr string `yaml:"server_addr" validate:"required"`

	DB        DBConfig        `yaml:"db"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Loader    LoaderConfig    `yaml:"loader"`
	SMTP      SMTPConfig      `yaml:"smtp"`
}

type DBConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"min=0,max=65535"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	ConnRetries    int           `yaml:"conn_retries" validate:"min=1"`
	ConnRetryDelay time.Duration `yaml:"conn_retry_delay"`
}

type OllamaConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	ChatModel  string `yaml:"chat_model" validate:"required"`
	EmbedModel string `yaml:"embed_model" validate:"required"`

	Timeout         time.Duration `yaml:"timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
	RetryAttempts   int           `yaml:"retry_attempts" validate:"min=1"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	Temperature     float64       `yaml:"temperature" validate:"min=0,max=2"`
	TopP            float64       `yaml:"top_p" validate:"min=0,max=1"`
}

type EmbeddingConfig struct {
	Dimension int    `yaml:"dimension" validate:"min=1"`
	Version   string `yaml:"version"`
}

type ChatConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" validate:"min=0,max=1"`
}

type LoaderConfig struct {
	KnowledgeBaseDir string `yaml:"knowledge_base_dir" validate:"required"`
	ChunkSize        int    `yaml:"chunk_size" validate:"min=1"`
	ChunkOverlap     int    `yaml:"chunk_overlap" validate:"min=0"`
	Workers          int    `yaml:"workers" validate:"min=1"`
	// EmbedRate caps embedding requests per second during ingestion.
	EmbedRate float64 `yaml:"embed_rate" validate:"min=0"`
}

type SMTPConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	UseSSL     bool     `yaml:"use_ssl"`
	UseTLS     bool     `yaml:"use_tls"`
	From       string   `yaml:"from"`
	Subject    string   `yaml:"subject"`
	Recipients []string `yaml:"recipients"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. Pass an empty path to skip the file entirely.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	mergeEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerAddr: ":8000",
		DB: DBConfig{
			Host:           "localhost",
			Port:           5432,
			ConnRetries:    5,
			ConnRetryDelay: 2 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL:         "http://localhost:11434",
			ChatModel:       "llama3",
			EmbedModel:      "nomic-embed-text",
			Timeout:         60 * time.Second,
			GenerateTimeout: 300 * time.Second,
			ConnectTimeout:  5 * time.Second,
			HealthTimeout:   10 * time.Second,
			RetryAttempts:   3,
			RetryBackoff:    2 * time.Second,
			Temperature:     0,
			TopP:            1,
		},
		Embedding: EmbeddingConfig{
			Dimension: 768,
			Version:   "1.0",
		},
		Chat: ChatConfig{
			MinSimilarity: 0.6,
		},
		Loader: LoaderConfig{
			KnowledgeBaseDir: "knowledge_base",
			ChunkSize:        500,
			ChunkOverlap:     50,
			Workers:          2,
			EmbedRate:        4,
		},
		SMTP: SMTPConfig{
			Port:    587,
			UseTLS:  true,
			Subject: "New chatbot lead captured",
		},
	}
}

func mergeEnv(cfg *Config) {
	setString(&cfg.ServerAddr, "SERVER_ADDR")

	setString(&cfg.DB.URL, "DATABASE_URL")
	setDBString(&cfg.DB.Host, "DB_HOST")
	setDBInt(&cfg.DB.Port, "DB_PORT")
	setDBString(&cfg.DB.Name, "DB_NAME")
	setDBString(&cfg.DB.User, "DB_USER")
	setDBString(&cfg.DB.Password, "DB_PASSWORD")
	setInt(&cfg.DB.ConnRetries, "DB_CONN_RETRIES")
	setSeconds(&cfg.DB.ConnRetryDelay, "DB_CONN_RETRY_DELAY")

	setString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL", "OLLAMA_URL")
	setString(&cfg.Ollama.ChatModel, "OLLAMA_CHAT_MODEL", "OLLAMA_MODEL")
	setString(&cfg.Ollama.EmbedModel, "OLLAMA_EMBED_MODEL", "EMBEDDING_MODEL")
	setSeconds(&cfg.Ollama.Timeout, "OLLAMA_TIMEOUT")
	setSeconds(&cfg.Ollama.GenerateTimeout, "OLLAMA_GENERATE_TIMEOUT")
	setSeconds(&cfg.Ollama.ConnectTimeout, "OLLAMA_CONNECT_TIMEOUT")
	setSeconds(&cfg.Ollama.HealthTimeout, "OLLAMA_HEALTH_TIMEOUT")
	setInt(&cfg.Ollama.RetryAttempts, "OLLAMA_RETRY_ATTEMPTS")
	setSeconds(&cfg.Ollama.RetryBackoff, "OLLAMA_RETRY_BACKOFF")
	setFloat(&cfg.Ollama.Temperature, "OLLAMA_TEMPERATURE")
	setFloat(&cfg.Ollama.TopP, "OLLAMA_TOP_P")

	setInt(&cfg.Embedding.Dimension, "EMBEDDING_DIMENSION")
	setString(&cfg.Embedding.Version, "EMBEDDING_VERSION")

	setFloat(&cfg.Chat.MinSimilarity, "RAG_MIN_SIMILARITY")

	setString(&cfg.Loader.KnowledgeBaseDir, "KNOWLEDGE_BASE_DIR")
	setInt(&cfg.Loader.ChunkSize, "EMBEDDING_CHUNK_SIZE")
	setInt(&cfg.Loader.ChunkOverlap, "EMBEDDING_CHUNK_OVERLAP")
	setInt(&cfg.Loader.Workers, "LOADER_WORKERS")
	setFloat(&cfg.Loader.EmbedRate, "LOADER_EMBED_RATE")

	setBool(&cfg.SMTP.Enabled, "LEAD_NOTIFICATION_ENABLED")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setInt(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setBool(&cfg.SMTP.UseSSL, "SMTP_USE_SSL")
	setBool(&cfg.SMTP.UseTLS, "SMTP_USE_TLS")
	setString(&cfg.SMTP.From, "LEAD_NOTIFICATION_FROM")
	setString(&cfg.SMTP.Subject, "LEAD_NOTIFICATION_SUBJECT")
	if v := os.Getenv("LEAD_NOTIFICATION_RECIPIENTS"); v != "" {
		var recipients []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				recipients = append(recipients, r)
			}
		}
		cfg.SMTP.Recipients = recipients
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

// setDBString reads a DB_* variable, falling back to the legacy POSTGRES_*
// name so older deployments keep working.
func setDBString(dst *string, name string) {
	setString(dst, name, strings.Replace(name, "DB_", "POSTGRES_", 1))
}

func setDBInt(dst *int, name string) {
	for _, n := range []string{name, strings.Replace(name, "DB_", "POSTGRES_", 1)} {
		if v := os.Getenv(n); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
			return
		}
	}
}

func setInt(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, name string) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, name string) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

// setSeconds reads a duration expressed as seconds, matching how the runbooks
// document OLLAMA_TIMEOUT and friends.
func setSeconds(dst *time.Duration, name string) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(parsed * float64(time.Second))
		}
	}
}

// ConnString renders the Postgres connection string. DATABASE_URL wins when
// present.
func (c DBConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}
