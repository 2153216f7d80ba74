// Package media uploads, lists and removes the media files of the site.
// Small files are written in a single request followed by a metadata record,
// large files are written as numbered parts that the backend merges into one object.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/gracechurch/mediakit/media/chunkuploader"
	"github.com/gracechurch/mediakit/media/metadata"
	"github.com/gracechurch/mediakit/media/network"
)

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Service ...
type Service struct {
	blobs      network.BlobStore
	records    metadata.Repository
	merger     network.ChunkMerger
	downloader Downloader
	chunks     *chunkuploader.Uploader
	config     Config
	logger     log.Logger

	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	newKey func(folder, fileName string) string
	close  func() error
}

// NewService creates a Service over the given collaborators. `downloader` can be nil,
// unless you want to provide a custom `Downloader` implementation.
func NewService(
	blobs network.BlobStore,
	records metadata.Repository,
	merger network.ChunkMerger,
	downloader Downloader,
	config Config,
	logger log.Logger,
) (*Service, error) {
	if blobs == nil || records == nil || merger == nil {
		return nil, fmt.Errorf("blob store, metadata repository and chunk merger are required")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	if downloader == nil {
		downloader = network.NewDownloader(logger)
	}

	return &Service{
		blobs:      blobs,
		records:    records,
		merger:     merger,
		downloader: downloader,
		chunks:     chunkuploader.New(chunkuploader.Config{ChunkSize: config.ChunkSize}, logger),
		config:     config,
		logger:     logger,

		pathProvider: pathutil.NewPathProvider(),
		pathModifier: pathutil.NewPathModifier(),

		sleep:  sleepContext,
		now:    time.Now,
		newKey: GenerateObjectKey,
		close:  func() error { return nil },
	}, nil
}

// New connects to the S3 store, the merge function and the SQLite metadata database described by config.
func New(ctx context.Context, config Config, logger log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.NewLogger()
	}

	blobs, err := network.NewS3Store(ctx, network.S3StoreParams{
		StorageURL:      config.StorageURL,
		Region:          config.S3Region,
		Endpoint:        config.S3Endpoint,
		AccessKeyID:     config.AccessKeyID,
		SecretAccessKey: config.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create blob store: %w", err)
	}

	if config.FunctionsURL == "" {
		return nil, fmt.Errorf("functions URL is not set")
	}
	merger := network.NewMergeClient(config.FunctionsURL, config.APIKey, logger)

	records, err := metadata.OpenSQLite(ctx, config.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	service, err := NewService(blobs, records, merger, nil, config, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	service.close = records.Close
	return service, nil
}

// Close releases the resources opened by New.
func (s *Service) Close() error {
	return s.close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
