// Package config loads and validates process configuration from the
// environment, following the same .env-then-process-env precedence the
// teacher's own bootstrap uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AWSConfig carries the credentials and region used for every ASR/MT/TTS call.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// ServerConfig controls the Fiber HTTP/WS listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	SSLCertFile  string
	SSLKeyFile   string
}

// CORSConfig is the allowed-origin list for the HTTP/WS surface.
type CORSConfig struct {
	Origins []string
}

// DatabaseConfig is the meeting-metadata persistence target. URL is
// required: database.Connect rejects an empty URL at startup, and there is
// no in-process fallback store.
type DatabaseConfig struct {
	URL string
}

// RedisConfig is the transcript-buffer target. When URL is empty, transcript
// buffering is disabled and /api/meetings/{id}/transcripts returns only
// whatever has already been archived to Postgres.
type RedisConfig struct {
	URL string
}

// LiveKitConfig issues room-join tokens; media transport itself is out of
// scope for this service.
type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
}

// AuthConfig carries the shared secret used to validate an optional bearer
// token on join. Empty disables token validation entirely.
type AuthConfig struct {
	JWTSecret string
}

// S3Config backs the attendee-avatar / meeting-recording upload path on the
// REST surface. Left zero-valued disables that path; the pipeline never
// depends on it.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PresignExpiry   time.Duration
}

// ASRProvider selects the streaming recognizer backend. Only "aws" is
// implemented; "deepgram" is a recognized value that fails validation
// instead of silently falling back to a different provider.
type ASRProvider string

const (
	ASRProviderAWS      ASRProvider = "aws"
	ASRProviderDeepgram ASRProvider = "deepgram"
)

// Config is the fully resolved process configuration.
type Config struct {
	AWS      AWSConfig
	Server   ServerConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LiveKit  LiveKitConfig
	S3       S3Config
	Auth     AuthConfig
	ASR      ASRProvider
}

// Load reads .env (if present) then the process environment, and validates
// the result. It fails fast on anything that would otherwise surface as a
// confusing runtime error deep inside the pipeline.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine in production; only log-worthy, never fatal.
		_ = err
	}

	cfg := &Config{
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "3001"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			SSLCertFile:  os.Getenv("SSL_CERT_FILE"),
			SSLKeyFile:   os.Getenv("SSL_KEY_FILE"),
		},
		CORS: CORSConfig{
			Origins: splitCSV(getEnv("CORS_ORIGIN", "*")),
		},
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Redis:    RedisConfig{URL: os.Getenv("REDIS_URL")},
		LiveKit: LiveKitConfig{
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
			URL:       os.Getenv("LIVEKIT_URL"),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("S3_BUCKET_NAME"),
			PresignExpiry:   getDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Auth: AuthConfig{JWTSecret: os.Getenv("JWT_SECRET")},
		ASR:  ASRProvider(getEnv("ASR_PROVIDER", string(ASRProviderAWS))),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ASR {
	case ASRProviderAWS:
		// supported
	case ASRProviderDeepgram:
		return fmt.Errorf("ASR_PROVIDER=deepgram is recognized but not implemented")
	default:
		return fmt.Errorf("unknown ASR_PROVIDER %q", c.ASR)
	}
	if c.ASR == ASRProviderAWS {
		if c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for ASR_PROVIDER=aws")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
