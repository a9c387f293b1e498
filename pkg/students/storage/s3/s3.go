package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/student-records/pkg/students"
	"github.com/tendant/student-records/pkg/students/objectkey"
)

const backendName = "s3"

// DefaultPresignDuration is how long returned picture URLs stay valid.
const DefaultPresignDuration = 7 * 24 * time.Hour

// MaxPresignDuration is the longest expiry SigV4 accepts for a presigned URL.
const MaxPresignDuration = 7 * 24 * time.Hour

// Config options for the S3 backend
type Config struct {
	Region          string        // AWS region
	Bucket          string        // S3 bucket name
	AccessKeyID     string        // AWS access key ID
	SecretAccessKey string        // AWS secret access key
	Endpoint        string        // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool          // Use path-style addressing (default: false)
	PresignDuration time.Duration // Validity of presigned URLs (default: 7 days)

	// PublicBaseURL overrides the URL prefix locators are expected to start
	// with, e.g. when objects are fronted by a CDN.
	PublicBaseURL string

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist

	Keys objectkey.Generator
}

// Backend is an S3-compatible implementation of the students.BlobStore interface
type Backend struct {
	client          *s3.Client
	uploader        *manager.Uploader
	presignClient   *s3.PresignClient
	bucket          string
	bucketURL       string
	presignDuration time.Duration
	keys            objectkey.Generator
	config          Config
}

// New creates a new S3-compatible storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.PresignDuration <= 0 {
		config.PresignDuration = DefaultPresignDuration
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Addressing must match BucketURL or Delete cannot recognise the
	// locators Store hands out.
	s3Options := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = config.UsePathStyle
		},
	}

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	keys := config.Keys
	if keys == nil {
		keys = objectkey.NewRandomGenerator()
	}

	backend := &Backend{
		client:          client,
		uploader:        manager.NewUploader(client),
		presignClient:   s3.NewPresignClient(client),
		bucket:          config.Bucket,
		bucketURL:       BucketURL(config),
		presignDuration: config.PresignDuration,
		keys:            keys,
		config:          config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// BucketURL returns the URL prefix every object URL of the bucket starts
// with, ending in "/".
func BucketURL(config Config) string {
	if config.PublicBaseURL != "" {
		return strings.TrimSuffix(config.PublicBaseURL, "/") + "/"
	}
	region := config.Region
	if region == "" {
		region = "us-east-1"
	}
	if config.Endpoint != "" {
		endpoint := strings.TrimSuffix(config.Endpoint, "/")
		if config.UsePathStyle {
			return endpoint + "/" + config.Bucket + "/"
		}
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			u.Host = config.Bucket + "." + u.Host
			return strings.TrimSuffix(u.String(), "/") + "/"
		}
		return endpoint + "/" + config.Bucket + "/"
	}
	if config.UsePathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/", region, config.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", config.Bucket, region)
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) && !isAPIError(err, "NotFound", "NoSuchBucket", "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}

	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if isAPIError(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Store uploads the image and returns a presigned GET URL for it.
func (b *Backend) Store(ctx context.Context, image *students.Image, folder string) (string, error) {
	if image.IsEmpty() {
		return "", nil
	}

	key := b.keys.GenerateKey(folder, image.FileName)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(image.Data),
	}
	if image.ContentType != "" {
		input.ContentType = aws.String(image.ContentType)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return "", b.storageError("store", key, fmt.Errorf("failed to upload to S3: %w", err))
	}

	locator, err := b.presignGet(ctx, key)
	if err != nil {
		return "", b.storageError("store", key, fmt.Errorf("failed to generate presigned URL: %w", err))
	}

	return locator, nil
}

func (b *Backend) presignGet(ctx context.Context, key string) (string, error) {
	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// Delete removes the object a locator points at. It accepts plain object
// URLs and presigned URLs; locators outside the bucket are ignored.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	key, ok := b.ObjectKey(locator)
	if !ok {
		return nil
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.storageError("delete", locator, fmt.Errorf("failed to delete from S3: %w", err))
	}

	return nil
}

// ObjectKey extracts the object key from a bucket URL, dropping any query
// string. ok is false for blank or foreign locators.
func (b *Backend) ObjectKey(locator string) (string, bool) {
	if strings.TrimSpace(locator) == "" || !strings.HasPrefix(locator, b.bucketURL) {
		return "", false
	}

	key := strings.TrimPrefix(locator, b.bucketURL)
	if idx := strings.IndexByte(key, '?'); idx >= 0 {
		key = key[:idx]
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		return "", false
	}
	return key, true
}

func (b *Backend) storageError(op, locator string, err error) error {
	return &students.StorageError{Backend: backendName, Locator: locator, Op: op, Err: err}
}

func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
