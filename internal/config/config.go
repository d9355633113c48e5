package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	R2        R2Config
	Storage   StorageConfig
	Database  DatabaseConfig
	Encoder   EncoderConfig
	Pipeline  PipelineConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	BodyLimitMB int
}

// Development reports whether human readable logs are wanted.
func (s ServerConfig) Development() bool {
	return s.Env == "development"
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	SubmitPerHour int
	BatchPerHour  int
	UploadPerHour int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	// Endpoint overrides the account endpoint, e.g. for S3 or MinIO.
	Endpoint string
}

// Configured reports whether enough is set to talk to the bucket.
func (c R2Config) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != "" &&
		(c.AccountID != "" || c.Endpoint != "")
}

// StorageConfig is the filesystem fallback used when R2 is not configured.
type StorageConfig struct {
	LocalDir  string
	PublicURL string
}

type DatabaseConfig struct {
	Path string
}

type EncoderConfig struct {
	FFmpegPath   string
	FFprobePath  string
	Threads      int
	CRF          int
	Preset       string
	AudioBitrate string
}

type PipelineConfig struct {
	AnalysisConcurrency int
	BatchConcurrency    int
	SilenceThresholdDb  float64
	MinSilenceSeconds   float64
	SceneThreshold      float64
	EnvelopeWindow      float64 // seconds per loudness sample
	RetryBase           time.Duration
	RetryAttempts       int
	WorkDir             string
}

type WorkerConfig struct {
	Concurrency int
}

// Load reads .env, config.yaml and the environment, in increasing precedence.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	bindings := map[string]string{
		"server.port":                   "SERVER_PORT",
		"server.env":                    "SERVER_ENV",
		"server.log_level":              "LOG_LEVEL",
		"server.body_limit_mb":          "SERVER_BODY_LIMIT_MB",
		"redis.addr":                    "REDIS_ADDR",
		"redis.password":                "REDIS_PASSWORD",
		"redis.db":                      "REDIS_DB",
		"jwt.secret":                    "JWT_SECRET",
		"oidc.issuer":                   "OIDC_ISSUER",
		"oidc.client_id":                "OIDC_CLIENT_ID",
		"ratelimit.submit_per_hour":     "RATELIMIT_SUBMIT_PER_HOUR",
		"ratelimit.batch_per_hour":      "RATELIMIT_BATCH_PER_HOUR",
		"ratelimit.upload_per_hour":     "RATELIMIT_UPLOAD_PER_HOUR",
		"groq.api_key":                  "GROQ_API_KEY",
		"groq.base_url":                 "GROQ_BASE_URL",
		"groq.model":                    "GROQ_MODEL",
		"groq.timeout":                  "GROQ_TIMEOUT",
		"r2.account_id":                 "R2_ACCOUNT_ID",
		"r2.access_key_id":              "R2_ACCESS_KEY_ID",
		"r2.secret_access_key":          "R2_SECRET_ACCESS_KEY",
		"r2.bucket_name":                "R2_BUCKET_NAME",
		"r2.public_url":                 "R2_PUBLIC_URL",
		"r2.endpoint":                   "R2_ENDPOINT",
		"storage.local_dir":             "STORAGE_LOCAL_DIR",
		"storage.public_url":            "STORAGE_PUBLIC_URL",
		"database.path":                 "DATABASE_PATH",
		"encoder.ffmpeg_path":           "FFMPEG_PATH",
		"encoder.ffprobe_path":          "FFPROBE_PATH",
		"encoder.threads":               "FFMPEG_THREADS",
		"encoder.crf":                   "ENCODER_CRF",
		"encoder.preset":                "ENCODER_PRESET",
		"encoder.audio_bitrate":         "ENCODER_AUDIO_BITRATE",
		"pipeline.analysis_concurrency": "PIPELINE_ANALYSIS_CONCURRENCY",
		"pipeline.batch_concurrency":    "PIPELINE_BATCH_CONCURRENCY",
		"pipeline.silence_threshold_db": "PIPELINE_SILENCE_THRESHOLD_DB",
		"pipeline.min_silence_seconds":  "PIPELINE_MIN_SILENCE_SECONDS",
		"pipeline.scene_threshold":      "PIPELINE_SCENE_THRESHOLD",
		"pipeline.envelope_window":      "PIPELINE_ENVELOPE_WINDOW",
		"pipeline.retry_base":           "PIPELINE_RETRY_BASE",
		"pipeline.retry_attempts":       "PIPELINE_RETRY_ATTEMPTS",
		"pipeline.work_dir":             "PIPELINE_WORK_DIR",
		"worker.concurrency":            "WORKER_CONCURRENCY",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 1024)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.submit_per_hour", 20)
	v.SetDefault("ratelimit.batch_per_hour", 5)
	v.SetDefault("ratelimit.upload_per_hour", 50)

	// Groq defaults
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.timeout", 30*time.Second)

	v.SetDefault("storage.local_dir", "./data/storage")
	v.SetDefault("database.path", "./data/assets.db")

	// Encoder defaults, standard quality
	v.SetDefault("encoder.threads", 0)
	v.SetDefault("encoder.crf", 23)
	v.SetDefault("encoder.preset", "medium")
	v.SetDefault("encoder.audio_bitrate", "192k")

	v.SetDefault("pipeline.analysis_concurrency", 4)
	v.SetDefault("pipeline.batch_concurrency", 3)
	v.SetDefault("pipeline.silence_threshold_db", -50.0)
	v.SetDefault("pipeline.min_silence_seconds", 0.5)
	v.SetDefault("pipeline.scene_threshold", 0.3)
	v.SetDefault("pipeline.envelope_window", 0.1)
	v.SetDefault("pipeline.retry_base", time.Second)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.work_dir", filepath.Join(os.TempDir(), "autoedit"))

	v.SetDefault("worker.concurrency", 2)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		OIDC: OIDCConfig{
			Issuer:   v.GetString("oidc.issuer"),
			ClientID: v.GetString("oidc.client_id"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: v.GetInt("ratelimit.submit_per_hour"),
			BatchPerHour:  v.GetInt("ratelimit.batch_per_hour"),
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  v.GetString("groq.api_key"),
			BaseURL: v.GetString("groq.base_url"),
			Model:   v.GetString("groq.model"),
			Timeout: v.GetDuration("groq.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
			Endpoint:        v.GetString("r2.endpoint"),
		},
		Storage: StorageConfig{
			LocalDir:  v.GetString("storage.local_dir"),
			PublicURL: v.GetString("storage.public_url"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Encoder: EncoderConfig{
			FFmpegPath:   v.GetString("encoder.ffmpeg_path"),
			FFprobePath:  v.GetString("encoder.ffprobe_path"),
			Threads:      v.GetInt("encoder.threads"),
			CRF:          v.GetInt("encoder.crf"),
			Preset:       v.GetString("encoder.preset"),
			AudioBitrate: v.GetString("encoder.audio_bitrate"),
		},
		Pipeline: PipelineConfig{
			AnalysisConcurrency: v.GetInt("pipeline.analysis_concurrency"),
			BatchConcurrency:    v.GetInt("pipeline.batch_concurrency"),
			SilenceThresholdDb:  v.GetFloat64("pipeline.silence_threshold_db"),
			MinSilenceSeconds:   v.GetFloat64("pipeline.min_silence_seconds"),
			SceneThreshold:      v.GetFloat64("pipeline.scene_threshold"),
			EnvelopeWindow:      v.GetFloat64("pipeline.envelope_window"),
			RetryBase:           v.GetDuration("pipeline.retry_base"),
			RetryAttempts:       v.GetInt("pipeline.retry_attempts"),
			WorkDir:             v.GetString("pipeline.work_dir"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
		},
	}

	if cfg.Pipeline.BatchConcurrency <= 0 || cfg.Pipeline.AnalysisConcurrency <= 0 {
		return nil, errors.New("pipeline concurrency must be positive")
	}

	return cfg, nil
}
