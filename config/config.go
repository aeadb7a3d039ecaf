package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port           string
	BaseURL        string
	AllowedOrigins []string

	Store         string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisDB       int
	UserCacheTTL  time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	// GeoBoxKm is the half side of the box used by location queries.
	GeoBoxKm float64

	RequireEmailVerification bool

	GCSBucket      string
	SendgridAPIKey string
	MailFrom       string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:19006")
	v.SetDefault("STORE", StoreMongo)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "photohunter")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("USER_CACHE_TTL", "24h")
	v.SetDefault("JWT_TTL", "10h")
	v.SetDefault("GEO_BOX_KM", 3000.0)
	v.SetDefault("REQUIRE_EMAIL_VERIFICATION", true)
	v.SetDefault("MAIL_FROM", "noreply@photohunter.app")
}

// Load reads .env (if any), an optional config.yaml in the working directory
// and the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		glog.Infof("No .env file found, using environment only")
	}

	v := viper.New()
	defaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("while reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                     v.GetString("PORT"),
		BaseURL:                  strings.TrimSuffix(v.GetString("BASE_URL"), "/"),
		AllowedOrigins:           splitList(v.GetString("ALLOWED_ORIGINS")),
		Store:                    v.GetString("STORE"),
		MongoURI:                 v.GetString("MONGODB_URI"),
		MongoDatabase:            v.GetString("MONGODB_DATABASE"),
		RedisAddr:                v.GetString("REDIS_ADDR"),
		RedisDB:                  v.GetInt("REDIS_DB"),
		UserCacheTTL:             v.GetDuration("USER_CACHE_TTL"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		JWTTTL:                   v.GetDuration("JWT_TTL"),
		GeoBoxKm:                 v.GetFloat64("GEO_BOX_KM"),
		RequireEmailVerification: v.GetBool("REQUIRE_EMAIL_VERIFICATION"),
		GCSBucket:                v.GetString("GCS_BUCKET"),
		SendgridAPIKey:           v.GetString("SENDGRID_API_KEY"),
		MailFrom:                 v.GetString("MAIL_FROM"),
		GoogleClientID:           v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:       v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:        v.GetString("GOOGLE_REDIRECT_URL"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %v", cfg.JWTTTL)
	}
	if cfg.GeoBoxKm <= 0 {
		return nil, fmt.Errorf("GEO_BOX_KM must be positive, got %v", cfg.GeoBoxKm)
	}
	switch cfg.Store {
	case StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
