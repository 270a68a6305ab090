package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	MigrationsDir string
	CORSOrigin    string
	FixturesPath  string
	// Persistence of locally layered comments
	PersistBackend       string
	PersistKey           string
	PersistMaxBytes      int
	PersistKeepPerEntity int
	RedisURL             string
	S3Endpoint           string
	S3AccessKey          string
	S3SecretKey          string
	S3Bucket             string
	S3UseSSL             bool
	// Full-text index
	MeiliURL       string
	MeiliMasterKey string
	// Hierarchical search
	SearchCacheSize int
	// Actor identity; an empty secret trusts the X-User-ID header
	AuthSecret  string
	TokenTTL    time.Duration
	DefaultRole string
	UsersFile   string
	// Reply notifications
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	PublicURL    string
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8787"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MigrationsDir: getenv("MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:    getenv("CORS_ORIGIN", "*"),
		FixturesPath:  getenv("FIXTURES_PATH", ""),
		// memory keeps everything in process; redis and s3 survive restarts
		PersistBackend:       strings.ToLower(getenv("PERSIST_BACKEND", "memory")),
		PersistKey:           getenv("PERSIST_KEY", "pp-comments"),
		PersistMaxBytes:      getenvInt("PERSIST_MAX_BYTES", 5*1024*1024),
		PersistKeepPerEntity: getenvInt("PERSIST_KEEP_PER_ENTITY", 100),
		RedisURL:             getenv("REDIS_URL", "redis://localhost:6379/0"),
		S3Endpoint:           getenv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:          getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:          getenv("S3_SECRET_KEY", ""),
		S3Bucket:             getenv("S3_BUCKET", "pattern-playground"),
		S3UseSSL:             getenvBool("S3_USE_SSL", false),
		MeiliURL:             getenv("MEILI_URL", ""),
		MeiliMasterKey:       getenv("MEILI_MASTER_KEY", ""),
		SearchCacheSize:      getenvInt("SEARCH_CACHE_SIZE", 256),
		AuthSecret:           getenv("AUTH_SECRET", ""),
		TokenTTL:             time.Duration(getenvInt("TOKEN_TTL_MINUTES", 12*60)) * time.Minute,
		DefaultRole:          getenv("DEFAULT_ROLE", "editor"),
		UsersFile:            getenv("USERS_FILE", ""),
		SMTPHost:             getenv("SMTP_HOST", ""),
		SMTPPort:             getenv("SMTP_PORT", "587"),
		SMTPUsername:         getenv("SMTP_USERNAME", ""),
		SMTPPassword:         getenv("SMTP_PASSWORD", ""),
		SMTPFrom:             getenv("SMTP_FROM", ""),
		PublicURL:            getenv("PUBLIC_URL", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
