package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	JWTSecret      string
	GoogleClientID string
	AdminEmails    []string // emails granted admin on login
	S3Bucket       string
	S3Region       string
	S3AccessKeyID  string
	S3SecretKey    string
	MaxUploadMB    int64
}

func Load() (*Config, error) {
	maxMB := int64(20)
	if v := getEnv("MAX_UPLOAD_MB", "20"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxMB = n
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("MONGODB_DB", "keepnotes"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		AdminEmails:    splitList(getEnv("DEFAULT_ADMIN_EMAILS", "")),
		S3Bucket:       getEnv("AWS_S3_BUCKET", ""),
		S3Region:       getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:  getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MaxUploadMB:    maxMB,
	}, nil
}

// splitList parses a comma-separated env value, trimming and lowercasing
// entries and dropping empties.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
