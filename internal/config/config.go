// Package config собирает конфигурацию сервисов taskflow из переменных окружения.
//
// Перед чтением окружения подгружается необязательный файл .env;
// уже заданные переменные окружения имеют приоритет над .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shaiso/taskflow/internal/engine"
	"github.com/shaiso/taskflow/internal/repo"
)

// StorageDriver — тип хранилища задач и журнала.
type StorageDriver string

const (
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

// DevJWTSecret — секрет по умолчанию для локальной разработки.
const DevJWTSecret = "dev-secret-change-in-production"

// ErrInvalid — некорректное значение переменной окружения.
var ErrInvalid = errors.New("invalid config")

// Config — конфигурация API и планировщика.
type Config struct {
	API       APIConfig
	Storage   StorageConfig
	AMQP      AMQPConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig

	MissingDependencyPolicy engine.MissingDependencyPolicy
}

type APIConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Driver StorageDriver
	DSN    string
}

// AMQPConfig — публикация событий аудита. Пустой URL отключает публикацию.
type AMQPConfig struct {
	URL string
}

// Enabled сообщает, включена ли публикация событий.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

type AuthConfig struct {
	JWTSecret string
}

type SchedulerConfig struct {
	Port          string
	RefreshCron   string
	RefreshBatch  int
	RefreshLockID int64
}

// Load читает .env (если есть) и окружение.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv собирает конфигурацию только из окружения.
func FromEnv() (*Config, error) {
	policy, err := engine.ParseMissingDependencyPolicy(os.Getenv("MISSING_DEPENDENCY_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("%w: MISSING_DEPENDENCY_POLICY: %w", ErrInvalid, err)
	}

	driver := StorageDriver(getEnv("STORAGE_DRIVER", string(StoragePostgres)))
	if driver != StoragePostgres && driver != StorageMemory {
		return nil, fmt.Errorf("%w: STORAGE_DRIVER %q", ErrInvalid, driver)
	}

	cfg := &Config{
		API: APIConfig{
			Port:            getEnv("API_PORT", "8080"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Driver: driver,
			DSN:    getEnv("DB_URL", repo.DefaultDSN),
		},
		AMQP: AMQPConfig{
			URL: os.Getenv("AMQP_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", DevJWTSecret),
		},
		Scheduler: SchedulerConfig{
			Port:          getEnv("SCHED_PORT", "8081"),
			RefreshCron:   getEnv("PRIORITY_REFRESH_CRON", "*/15 * * * *"),
			RefreshBatch:  getEnvAsInt("PRIORITY_REFRESH_BATCH", 500),
			RefreshLockID: int64(getEnvAsInt("PRIORITY_REFRESH_LOCK_ID", 424242)),
		},
		MissingDependencyPolicy: policy,
	}

	if cfg.Scheduler.RefreshBatch <= 0 {
		return nil, fmt.Errorf("%w: PRIORITY_REFRESH_BATCH must be positive", ErrInvalid)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
