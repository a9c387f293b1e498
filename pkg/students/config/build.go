package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/student-records/pkg/students"
	"github.com/tendant/student-records/pkg/students/api"
	"github.com/tendant/student-records/pkg/students/repo/memory"
	repopg "github.com/tendant/student-records/pkg/students/repo/postgres"
	"github.com/tendant/student-records/pkg/students/repo/sqlite"
	fsstorage "github.com/tendant/student-records/pkg/students/storage/fs"
	memorystorage "github.com/tendant/student-records/pkg/students/storage/memory"
	s3storage "github.com/tendant/student-records/pkg/students/storage/s3"
)

// Runtime holds the service built from a ServerConfig together with the
// resources it owns.
type Runtime struct {
	Service students.Service

	// Files is set when pictures live on the local filesystem.
	Files *fsstorage.Backend

	closers []func() error
}

// Close releases database connections held by the runtime
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// BuildService creates the student service from the configuration. This is
// the only place where the repository and picture storage variants are
// chosen.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildBlobStore(ctx, rt)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageBackend, err)
	}

	svc, err := students.New(
		students.WithRepository(repo),
		students.WithBlobStore(store),
		students.WithFolder(c.PictureFolder),
		students.WithLogger(logger),
	)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Service = svc

	logger.Info("Student service configured",
		"database", c.DatabaseType,
		"storage", c.StorageBackend,
		"folder", c.PictureFolder,
	)
	return rt, nil
}

// RouterConfig returns the HTTP router settings for a built runtime
func (c *ServerConfig) RouterConfig(rt *Runtime, logger *slog.Logger) api.RouterConfig {
	cfg := api.RouterConfig{
		Service:        rt.Service,
		Logger:         logger,
		AllowedOrigins: c.AllowedOrigins,
		MaxUploadBytes: c.MaxUploadBytes,
	}
	if rt.Files != nil {
		cfg.UploadRoot = rt.Files.UploadRoot()
		cfg.UploadURLPath = rt.Files.URLPath()
	}
	return cfg
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (students.Repository, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil
	case DatabasePostgres:
		pool, err := NewPostgresPool(ctx, c.DatabaseURL, c.DBSchema, c.DBConnectTimeout)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error {
			pool.Close()
			return nil
		})
		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	case DatabaseSQLite:
		store, err := sqlite.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPostgresPool opens a pgx pool and pings it with exponential backoff for
// up to connectTimeout. When schema is set every session uses it as
// search_path.
func NewPostgresPool(ctx context.Context, databaseURL, schema string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	// A zero timeout means a single attempt.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if connectTimeout > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 250 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = connectTimeout
		policy = b
	}

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("Postgres not reachable yet", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// buildBlobStore creates the picture storage backend
func (c *ServerConfig) buildBlobStore(ctx context.Context, rt *Runtime) (students.BlobStore, error) {
	switch c.StorageBackend {
	case StorageMemory:
		return memorystorage.New(), nil
	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir:   c.Local.BaseDir,
			UploadDir: c.Local.UploadDir,
		})
		if err != nil {
			return nil, err
		}
		rt.Files = store
		return store, nil
	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        c.S3.PresignDuration,
			PublicBaseURL:          c.S3.PublicBaseURL,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}
}
