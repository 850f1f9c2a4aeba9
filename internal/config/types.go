package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig  `json:"server"`
	Upload   UploadConfig  `json:"upload"`
	Database Database      `json:"database"`
	Redis    RedisConfig   `json:"redis"`
	S3       S3Config      `json:"s3"`
	Convert  ConvertConfig `json:"convert_worker"`
	Notify   WorkerConfig  `json:"notify_worker"`
	SMTP     SMTPConfig    `json:"smtp"`
	Auth     AuthConfig    `json:"auth"`
	Sentry   SentryConfig  `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port" validate:"required"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory"`
}

type Database struct {
	DSN string `json:"dsn" validate:"required"`
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes" validate:"min=1"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type S3Config struct {
	AccountID   string `json:"account_id"`
	BucketName  string `json:"bucket_name" validate:"required"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"`
	Region      string `json:"region"`
}

// WorkerConfig drives one Redis Stream consumer group.
type WorkerConfig struct {
	Stream       string        `json:"stream"`        // redis stream name
	Group        string        `json:"group"`         // consumer group name
	Workers      int           `json:"workers"`       // number of concurrent goroutines
	MaxAttempts  int           `json:"max_attempts"`  // max retries before DLQ
	MaxLen       int64         `json:"max_len"`       // stream max length before trim
	BackoffBase  time.Duration `json:"backoff_base"`  // base retry delay
	BlockTimeout time.Duration `json:"block_timeout"` // XREADGROUP block timeout
	Consumer     string        `json:"consumer"`
}

type ConvertConfig struct {
	WorkerConfig
	FFmpegPath string `json:"ffmpeg_path"` // defaults to "ffmpeg" on PATH
	Bitrate    string `json:"bitrate"`     // mp3 bitrate, e.g. "192k"
}

type SMTPConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from" validate:"required"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret" validate:"required"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
