package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds the directories artifacts live in. All are created at
// boot.
type StorageConfig struct {
	UploadDir     string
	ProcessedDir  string
	OverlaysDir   string
	WatermarksDir string
}

type WorkerConfig struct {
	Concurrency int
}

type RateLimitConfig struct {
	SubmitPerMin  int
	UploadPerHour int
}

type NotifyConfig struct {
	Channel string
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	_ = viper.BindEnv("storage.processed_dir", "PROCESSED_DIR")
	_ = viper.BindEnv("storage.overlays_dir", "OVERLAYS_DIR")
	_ = viper.BindEnv("storage.watermarks_dir", "WATERMARKS_DIR")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("ratelimit.submit_per_min", "RATELIMIT_SUBMIT_PER_MIN")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("notify.channel", "NOTIFY_CHANNEL")

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.upload_dir", "uploads")
	viper.SetDefault("storage.processed_dir", "processed")
	viper.SetDefault("storage.overlays_dir", "overlays")
	viper.SetDefault("storage.watermarks_dir", "watermarks")
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("ratelimit.submit_per_min", 60)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("notify.channel", "job-status")

	// Config file is optional; env vars and defaults are enough.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			UploadDir:     viper.GetString("storage.upload_dir"),
			ProcessedDir:  viper.GetString("storage.processed_dir"),
			OverlaysDir:   viper.GetString("storage.overlays_dir"),
			WatermarksDir: viper.GetString("storage.watermarks_dir"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerMin:  viper.GetInt("ratelimit.submit_per_min"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		Notify: NotifyConfig{
			Channel: viper.GetString("notify.channel"),
		},
	}

	return cfg, nil
}

// EnsureDirs creates every storage directory.
func (c *StorageConfig) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.ProcessedDir, c.OverlaysDir, c.WatermarksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
