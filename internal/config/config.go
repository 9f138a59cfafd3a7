package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisURL      string
	PartyCacheTTL time.Duration

	StorageDisk      string
	StorageLocalRoot string
	StorageBaseURL   string
	S3Bucket         string
	S3Region         string
	S3Key            string
	S3Secret         string
	S3Endpoint       string

	MaxUploadBytes      int64
	MaxVideoUploadBytes int64
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "pasarwarga"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),

		RedisURL:      getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		PartyCacheTTL: getDurationEnv("PARTY_CACHE_TTL", 10, time.Minute),

		StorageDisk:      getEnvOrDefault("STORAGE_DISK", "local"),
		StorageLocalRoot: getEnvOrDefault("STORAGE_LOCAL_ROOT", "public/uploads"),
		StorageBaseURL:   getEnvOrDefault("STORAGE_URL", "http://localhost:8080/public/uploads"),
		S3Bucket:         getEnvOrDefault("S3_BUCKET", ""),
		S3Region:         getEnvOrDefault("S3_REGION", "ap-southeast-1"),
		S3Key:            getEnvOrDefault("S3_KEY", ""),
		S3Secret:         getEnvOrDefault("S3_SECRET", ""),
		S3Endpoint:       getEnvOrDefault("S3_ENDPOINT", ""),

		MaxUploadBytes:      getInt64Env("MAX_UPLOAD_BYTES", 5<<20),
		MaxVideoUploadBytes: getInt64Env("MAX_VIDEO_UPLOAD_BYTES", 50<<20),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
