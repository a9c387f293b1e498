package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithConfigFile reads a YAML, JSON, TOML or .env file. Environment
// variables still take precedence over values from the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithMemoryDatabase keeps students in process memory
func WithMemoryDatabase() Option {
	return func(c *ServerConfig) error {
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
		return nil
	}
}

// WithPostgres configures the Postgres repository
func WithPostgres(url, schema string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = url
		c.DBSchema = schema
		return nil
	}
}

// WithSQLite configures the SQLite repository stored at path
func WithSQLite(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
		c.DatabaseType = DatabaseSQLite
		c.SQLitePath = path
		return nil
	}
}

// WithMemoryStorage keeps pictures in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageBackend = StorageMemory
		return nil
	}
}

// WithFilesystemStorage stores pictures under baseDir/uploadDir
func WithFilesystemStorage(baseDir, uploadDir string) Option {
	return func(c *ServerConfig) error {
		c.StorageBackend = StorageFS
		c.Local.BaseDir = baseDir
		if uploadDir != "" {
			c.Local.UploadDir = uploadDir
		}
		return nil
	}
}

// WithS3Storage stores pictures in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageBackend = StorageS3
		c.S3.Bucket = bucket
		c.S3.Region = region
		return nil
	}
}

// WithS3Endpoint points the S3 storage at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithAllowedOrigins replaces the CORS origin allow-list
func WithAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.AllowedOrigins = origins
		return nil
	}
}

// WithMaxUploadBytes caps request body size; zero disables the limit
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("max upload bytes cannot be negative, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}
