package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	s3storage "github.com/tendant/student-records/pkg/students/storage/s3"
)

// Repository variants
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Picture storage variants
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig represents configuration for the student records server.
// Every field can be set from the environment; a YAML file can be layered
// underneath with WithConfigFile.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`

	// Database configuration
	DatabaseType string `yaml:"database_type" env:"DATABASE_TYPE" env-default:"memory"` // "memory", "postgres", "sqlite"
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`
	DBSchema     string `yaml:"db_schema" env:"DB_SCHEMA"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"true"`
	SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"students.db"`

	DBConnectTimeout time.Duration `yaml:"db_connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"30s"`

	// Picture storage configuration
	StorageBackend string             `yaml:"storage_backend" env:"STORAGE_BACKEND" env-default:"fs"` // "memory", "fs", "s3"
	PictureFolder  string             `yaml:"picture_folder" env:"PICTURE_FOLDER" env-default:"students"`
	Local          LocalStorageConfig `yaml:"local" env-prefix:"LOCAL_"`
	S3             S3StorageConfig    `yaml:"s3" env-prefix:"S3_"`

	// HTTP options
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173" env-separator:","`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"10485760"`
}

// LocalStorageConfig configures the filesystem picture store
type LocalStorageConfig struct {
	BaseDir   string `yaml:"base_dir" env:"BASE_DIR"`
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"uploads/"`
}

// S3StorageConfig configures the S3-compatible picture store
type S3StorageConfig struct {
	Bucket                 string        `yaml:"bucket" env:"BUCKET"`
	Region                 string        `yaml:"region" env:"REGION" env-default:"us-east-1"`
	AccessKeyID            string        `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey        string        `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	Endpoint               string        `yaml:"endpoint" env:"ENDPOINT"`
	UsePathStyle           bool          `yaml:"use_path_style" env:"USE_PATH_STYLE" env-default:"false"`
	PresignDuration        time.Duration `yaml:"presign_duration" env:"PRESIGN_DURATION" env-default:"168h"`
	PublicBaseURL          string        `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	CreateBucketIfNotExist bool          `yaml:"create_bucket_if_not_exist" env:"CREATE_BUCKET" env-default:"false"`
}

// Load reads the environment into a ServerConfig, applies the supplied
// options on top and validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case DatabaseSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required when using sqlite")
		}
	default:
		return fmt.Errorf("database_type must be 'memory', 'postgres' or 'sqlite', got '%s'", c.DatabaseType)
	}

	switch c.StorageBackend {
	case StorageMemory, StorageFS:
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
		if c.S3.PresignDuration < 0 {
			return errors.New("s3 presign duration cannot be negative")
		}
		if c.S3.PresignDuration > s3storage.MaxPresignDuration {
			return fmt.Errorf("s3 presign duration cannot exceed %s", s3storage.MaxPresignDuration)
		}
	default:
		return fmt.Errorf("storage_backend must be 'memory', 'fs' or 's3', got '%s'", c.StorageBackend)
	}

	if c.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes cannot be negative")
	}

	return nil
}

// Addr returns the listen address for the configured port
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}
