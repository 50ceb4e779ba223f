package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultConfigFile     = "config.json"
	defaultServerAddress  = ":3001"
	defaultUploadDir      = "uploads"
	defaultMaxUploadBytes = 50 << 20
	defaultSQLiteDSN      = "pyq.db"
	defaultReindexMinutes = 60

	DefaultUploadBaseURL = "http://localhost:3001"
	DefaultChatBaseURL   = "http://localhost:5000/api"
)

// Config represents runtime configuration for the upload service and the portal client.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	MinIO       MinIOConfig               `json:"minio"`
	Client      ClientConfig              `json:"client"`
}

type BasicConfig struct {
	ServerAddress  string `json:"server_address"`
	UploadDir      string `json:"upload_dir"`
	StorageType    string `json:"storage_type"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	LogLevel       string `json:"log_level"`
	// ReindexInterval is expressed in minutes; zero means hourly, a negative value disables the periodic reindex.
	ReindexInterval int `json:"reindex_interval"`
	// CacheTTL is expressed in seconds.
	CacheTTL    int      `json:"cache_ttl"`
	AdminTokens []string `json:"admin_tokens"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Enabled reports whether a redis server has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

type MinIOConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

type ClientConfig struct {
	UploadBaseURL string `json:"upload_base_url"`
	ChatBaseURL   string `json:"chat_base_url"`
}

// Load reads configuration from the provided path (defaults to config.json) and
// applies environment overrides. A missing default config file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		resolveRelativeDSN(&cfg, filepath.Dir(absPath))
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	switch cfg.BasicConfig.StorageType {
	case "local", "minio":
	default:
		return nil, fmt.Errorf("unsupported storage_type %q", cfg.BasicConfig.StorageType)
	}
	if cfg.BasicConfig.StorageType == "minio" && cfg.MinIO.Endpoint == "" {
		return nil, errors.New("minio endpoint must be configured when storage_type is minio")
	}
	return &cfg, nil
}

func resolveRelativeDSN(cfg *Config, dir string) {
	for name, db := range cfg.Databases {
		if !isSQLite(name) || db.DSN == "" || db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file:") {
			continue
		}
		if !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(dir, db.DSN)
			cfg.Databases[name] = db
		}
	}
}

func applyEnv(cfg *Config) error {
	basic := &cfg.BasicConfig
	if v := envOrDefault("SERVER_ADDRESS", ""); v != "" {
		basic.ServerAddress = v
	}
	// PaaS platforms hand out the listening port via PORT.
	if v := envOrDefault("PORT", ""); v != "" {
		basic.ServerAddress = ":" + v
	}
	basic.UploadDir = envOrDefault("UPLOAD_DIR", basic.UploadDir)
	basic.StorageType = envOrDefault("STORAGE_TYPE", basic.StorageType)
	basic.LogLevel = envOrDefault("LOG_LEVEL", basic.LogLevel)

	maxBytes, err := parseIntEnv("MAX_UPLOAD_BYTES", basic.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("parse MAX_UPLOAD_BYTES: %w", err)
	}
	basic.MaxUploadBytes = maxBytes

	interval, err := parseIntEnv("REINDEX_INTERVAL_MINUTES", int64(basic.ReindexInterval))
	if err != nil {
		return fmt.Errorf("parse REINDEX_INTERVAL_MINUTES: %w", err)
	}
	basic.ReindexInterval = int(interval)

	ttl, err := parseIntEnv("CACHE_TTL_SECONDS", int64(basic.CacheTTL))
	if err != nil {
		return fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}
	basic.CacheTTL = int(ttl)

	if v := envOrDefault("ADMIN_TOKENS", ""); v != "" {
		basic.AdminTokens = splitList(v)
	}

	if v := envOrDefault("SQLITE_DSN", ""); v != "" {
		setDatabase(cfg, "sqlite3", func(db *DatabaseConfig) { db.DSN = v })
	}
	if v := envOrDefault("MYSQL_DSN", ""); v != "" {
		setDatabase(cfg, "mysql", func(db *DatabaseConfig) { db.DSN = v })
	}

	if addr := envOrDefault("REDIS_ADDR", ""); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR port: %w", err)
		}
		cfg.Redis.Host = host
		cfg.Redis.Port = port
	}
	cfg.Redis.Password = envOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	redisDB, err := parseIntEnv("REDIS_DB", int64(cfg.Redis.DB))
	if err != nil {
		return fmt.Errorf("parse REDIS_DB: %w", err)
	}
	cfg.Redis.DB = int(redisDB)

	cfg.MinIO.Endpoint = envOrDefault("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = envOrDefault("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = envOrDefault("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = envOrDefault("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.Region = envOrDefault("MINIO_REGION", cfg.MinIO.Region)
	if v := envOrDefault("MINIO_USE_SSL", ""); v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse MINIO_USE_SSL: %w", err)
		}
		cfg.MinIO.UseSSL = useSSL
	}

	cfg.Client.UploadBaseURL = envOrDefault("PYQ_API_URL", cfg.Client.UploadBaseURL)
	cfg.Client.ChatBaseURL = envOrDefault("PYQ_CHAT_API_URL", cfg.Client.ChatBaseURL)
	return nil
}

func applyDefaults(cfg *Config) {
	basic := &cfg.BasicConfig
	if basic.ServerAddress == "" {
		basic.ServerAddress = defaultServerAddress
	}
	if basic.UploadDir == "" {
		basic.UploadDir = defaultUploadDir
	}
	if basic.StorageType == "" {
		basic.StorageType = "local"
	}
	if basic.MaxUploadBytes <= 0 {
		basic.MaxUploadBytes = defaultMaxUploadBytes
	}
	if basic.LogLevel == "" {
		basic.LogLevel = "info"
	}
	if basic.ReindexInterval == 0 {
		basic.ReindexInterval = defaultReindexMinutes
	}
	if basic.CacheTTL <= 0 {
		basic.CacheTTL = 60
	}
	if cfg.Databases == nil {
		cfg.Databases = make(map[string]DatabaseConfig)
	}
	if db, ok := cfg.Databases["sqlite3"]; !ok || db.DSN == "" {
		db.DSN = defaultSQLiteDSN
		cfg.Databases["sqlite3"] = db
	}
	if cfg.Redis.Enabled() && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "pyq-uploads"
	}
	if cfg.Client.UploadBaseURL == "" {
		cfg.Client.UploadBaseURL = DefaultUploadBaseURL
	}
	if cfg.Client.ChatBaseURL == "" {
		cfg.Client.ChatBaseURL = DefaultChatBaseURL
	}
}

func setDatabase(cfg *Config, name string, fn func(*DatabaseConfig)) {
	if cfg.Databases == nil {
		cfg.Databases = make(map[string]DatabaseConfig)
	}
	db := cfg.Databases[name]
	fn(&db)
	cfg.Databases[name] = db
}

func isSQLite(name string) bool {
	name = strings.ToLower(name)
	return name == "sqlite" || name == "sqlite3"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
