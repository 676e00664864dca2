package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/face-liveness/internal/liveness"
)

// Config holds everything the broker reads from its environment.
type Config struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`

	AWS         AWSConfig         `mapstructure:"aws"`
	Rekognition RekognitionConfig `mapstructure:"rekognition"`
	Liveness    LivenessConfig    `mapstructure:"liveness"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// AWSConfig carries the region and optional static credentials.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// RekognitionConfig holds session settings sent with every create call.
type RekognitionConfig struct {
	AuditImagesLimit int32  `mapstructure:"audit_images_limit"`
	OutputBucket     string `mapstructure:"output_bucket"`
	OutputPrefix     string `mapstructure:"output_prefix"`
	KMSKeyID         string `mapstructure:"kms_key_id"`
}

// LivenessConfig controls the pass/fail rule.
type LivenessConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// CaptureConfig configures the capture page and vendor widget.
type CaptureConfig struct {
	Region            string `mapstructure:"region"`
	IdentityPoolID    string `mapstructure:"identity_pool_id"`
	FallbackSessionID string `mapstructure:"fallback_session_id"`
	// TokenTTL bounds how long a rendered capture page may report widget events when auth is on.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// AuthConfig enables bearer-token protection of the API when Secret is set.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTAudience string `mapstructure:"jwt_audience"`
}

// IsProduction reports whether error stacks must be hidden from callers.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// Validate checks value ranges. AWS credentials are optional; the default chain applies without them.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if strings.TrimSpace(c.AWS.Region) == "" {
		errs = append(errs, errors.New("AWS_REGION is required"))
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together"))
	}
	if c.Liveness.ConfidenceThreshold < 0 || c.Liveness.ConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("LIVENESS_CONFIDENCE_THRESHOLD must be within 0-100, got %v", c.Liveness.ConfidenceThreshold))
	}
	if c.Rekognition.AuditImagesLimit < 0 || c.Rekognition.AuditImagesLimit > 4 {
		errs = append(errs, fmt.Errorf("REKOGNITION_AUDIT_IMAGES_LIMIT must be within 0-4, got %d", c.Rekognition.AuditImagesLimit))
	}
	if c.Rekognition.OutputPrefix != "" && c.Rekognition.OutputBucket == "" {
		errs = append(errs, errors.New("REKOGNITION_OUTPUT_PREFIX requires REKOGNITION_OUTPUT_BUCKET"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.Auth.JWTSecret != "" && c.Capture.TokenTTL <= 0 {
		errs = append(errs, errors.New("CAPTURE_TOKEN_TTL must be positive when AUTH_JWT_SECRET is set"))
	}
	return errors.Join(errs...)
}

var envBindings = map[string]string{
	"port":                           "PORT",
	"environment":                    "APP_ENV",
	"log_level":                      "LOG_LEVEL",
	"shutdown_timeout":               "SHUTDOWN_TIMEOUT",
	"cors_origins":                   "CORS_ALLOWED_ORIGINS",
	"aws.region":                     "AWS_REGION",
	"aws.access_key_id":              "AWS_ACCESS_KEY_ID",
	"aws.secret_access_key":          "AWS_SECRET_ACCESS_KEY",
	"rekognition.audit_images_limit": "REKOGNITION_AUDIT_IMAGES_LIMIT",
	"rekognition.output_bucket":      "REKOGNITION_OUTPUT_BUCKET",
	"rekognition.output_prefix":      "REKOGNITION_OUTPUT_PREFIX",
	"rekognition.kms_key_id":         "REKOGNITION_KMS_KEY_ID",
	"liveness.confidence_threshold":  "LIVENESS_CONFIDENCE_THRESHOLD",
	"capture.region":                 "CAPTURE_REGION",
	"capture.identity_pool_id":       "CAPTURE_IDENTITY_POOL_ID",
	"capture.fallback_session_id":    "CAPTURE_FALLBACK_SESSION_ID",
	"capture.token_ttl":              "CAPTURE_TOKEN_TTL",
	"auth.jwt_secret":                "AUTH_JWT_SECRET",
	"auth.jwt_audience":              "AUTH_JWT_AUDIENCE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("liveness.confidence_threshold", liveness.DefaultConfidenceThreshold)
	v.SetDefault("capture.token_ttl", 15*time.Minute)
}

// Load reads the optional dotenv files, then binds the recognized environment variables.
// A missing dotenv file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// godotenv never overrides variables already present in the process environment.
		_ = godotenv.Load(file)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if cfg.Capture.Region == "" {
		cfg.Capture.Region = cfg.AWS.Region
	}
	return cfg, nil
}

// splitList accepts either a parsed list or a single comma separated entry from the environment.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
