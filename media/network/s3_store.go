package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	numRemoveRetries = 3
	partMB           = 10
	publicPathPrefix = "/storage/v1/object/public"
)

// S3StoreParams ...
type S3StoreParams struct {
	// StorageURL is the public base URL of the storage service, used for public object links.
	StorageURL string
	Region     string
	// Endpoint points the client at an S3 compatible service instead of AWS. Path-style addressing is used when set.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is a BlobStore backed by an S3 compatible object storage.
type S3Store struct {
	client     *s3.Client
	storageURL string
	removeWait time.Duration
	logger     log.Logger
}

// NewS3Store creates an S3Store from static or default AWS credentials.
// The principal needs s3:PutObject, s3:DeleteObject and s3:GetObject on the buckets. With
// s3:ListBucket as well, a taken key is detected before a put without upsert; without it the
// check cannot tell a missing key from a forbidden one and the put goes ahead.
func NewS3Store(ctx context.Context, params S3StoreParams, logger log.Logger) (*S3Store, error) {
	if params.StorageURL == "" {
		return nil, fmt.Errorf("storage URL must not be empty")
	}

	cfg, err := loadAWSCredentials(
		ctx,
		params.Region,
		params.AccessKeyID,
		params.SecretAccessKey,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}

	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, params.StorageURL, logger), nil
}

// NewS3StoreWithClient wraps an already configured S3 client.
func NewS3StoreWithClient(client *s3.Client, storageURL string, logger log.Logger) *S3Store {
	return &S3Store{
		client:     client,
		storageURL: strings.TrimRight(storageURL, "/"),
		removeWait: 1 * time.Second,
		logger:     logger,
	}
}

// PutObject writes size bytes of body under bucket/key.
// Without opts.Upsert an existing object is reported as ErrObjectExists and left untouched.
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body io.ReaderAt, size int64, opts PutOptions) error {
	if !opts.Upsert {
		exists, err := s.objectExists(ctx, bucket, key)
		if err != nil {
			return fmt.Errorf("validate object: %w", err)
		}
		if exists {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectExists)
		}
	}

	reader := io.NewSectionReader(newProgressReaderAt(body, size, opts.OnProgress), 0, size)

	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = partMB * 1024 * 1024
		// parts are read in order so progress offsets only grow
		u.Concurrency = 1
	})

	input := &s3.PutObjectInput{
		Body:          reader,
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String("max-age=" + opts.CacheControl)
	}

	s.logger.Debugf("Putting object %s/%s (%d bytes)", bucket, key, size)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

// RemoveObject deletes bucket/key. Deleting a missing key is not an error.
func (s *S3Store) RemoveObject(ctx context.Context, bucket, key string) error {
	return retry.Times(numRemoveRetries).Wait(s.removeWait).TryWithAbort(func(attempt uint) (error, bool) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var apiError smithy.APIError
			if errors.As(err, &apiError) && apiError.ErrorFault() == smithy.FaultClient {
				return fmt.Errorf("remove object: %w", err), true
			}
			if ctx.Err() != nil {
				return fmt.Errorf("remove object: %w", err), true
			}
			s.logger.Debugf("Remove %s/%s attempt %d failed: %s", bucket, key, attempt+1, err)
			return fmt.Errorf("remove object: %w", err), false
		}
		return nil, true
	})
}

// PublicURL returns <storageURL>/storage/v1/object/public/<bucket>/<key>.
func (s *S3Store) PublicURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("%s%s/%s/%s", s.storageURL, publicPathPrefix, url.PathEscape(bucket), strings.Join(segments, "/"))
}

// objectExists reports whether bucket/key is taken. Without s3:ListBucket S3 answers 403
// instead of 404 for a missing key; that case counts as absent and the random key is relied on.
func (s *S3Store) objectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusForbidden {
		s.logger.Debugf("HeadObject %s/%s is forbidden, treating the key as free", bucket, key)
		return false, nil
	}
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		return false, fmt.Errorf("aws api error: %w", err)
	}
	return false, fmt.Errorf("generic aws error: %w", err)
}

func loadAWSCredentials(
	ctx context.Context,
	region string,
	accessKeyID string,
	secretKey string,
	logger log.Logger,
) (*aws.Config, error) {
	if region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretKey != "" {
		logger.Debugf("aws credentials provided, using them...")
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config, %v", err)
	}

	return &cfg, nil
}
