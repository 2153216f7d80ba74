package media

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
	"github.com/gracechurch/mediakit/media/chunkuploader"
)

// AnonymousOwnerID is recorded as the owner of uploads made without a signed-in user.
const AnonymousOwnerID = "00000000-0000-0000-0000-000000000000"

// Config ...
type Config struct {
	// ChunkSize is both the single-shot size limit and the part size of chunked uploads.
	ChunkSize int64
	// RetryBudget is the number of single-shot attempts. 0 makes every upload fail immediately.
	RetryBudget int
	// RetryBackoff is multiplied by the attempt number to get the wait before the next attempt.
	RetryBackoff time.Duration
	// CacheControl is the max-age, in seconds, served with uploaded objects.
	CacheControl string
	OwnerID      string
	// BatchConcurrency limits the number of files of one batch uploaded at the same time.
	BatchConcurrency int
	Validation       ValidationRules

	StorageURL      string
	S3Region        string
	S3Endpoint      string
	AccessKeyID     string
	SecretAccessKey string
	FunctionsURL    string
	APIKey          string
	DBPath          string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        chunkuploader.DefaultChunkSize,
		RetryBudget:      3,
		RetryBackoff:     time.Second,
		CacheControl:     "3600",
		OwnerID:          AnonymousOwnerID,
		BatchConcurrency: 4,
		Validation:       DefaultValidationRules(),
		DBPath:           "media.db",
	}
}

// ConfigFromEnv reads the connection settings from the environment on top of DefaultConfig.
func ConfigFromEnv(envRepo env.Repository) (Config, error) {
	config := DefaultConfig()

	config.StorageURL = envRepo.Get("MEDIA_STORAGE_URL")
	if config.StorageURL == "" {
		return Config{}, fmt.Errorf("the variable 'MEDIA_STORAGE_URL' is not defined")
	}
	config.S3Region = envRepo.Get("MEDIA_S3_REGION")
	if config.S3Region == "" {
		return Config{}, fmt.Errorf("the variable 'MEDIA_S3_REGION' is not defined")
	}
	config.FunctionsURL = envRepo.Get("MEDIA_FUNCTIONS_URL")
	if config.FunctionsURL == "" {
		return Config{}, fmt.Errorf("the variable 'MEDIA_FUNCTIONS_URL' is not defined")
	}
	config.APIKey = envRepo.Get("MEDIA_API_KEY")
	if config.APIKey == "" {
		return Config{}, fmt.Errorf("the variable 'MEDIA_API_KEY' is not defined")
	}

	config.S3Endpoint = envRepo.Get("MEDIA_S3_ENDPOINT")
	config.AccessKeyID = envRepo.Get("MEDIA_S3_ACCESS_KEY_ID")
	config.SecretAccessKey = envRepo.Get("MEDIA_S3_SECRET_ACCESS_KEY")
	if dbPath := envRepo.Get("MEDIA_DB_PATH"); dbPath != "" {
		config.DBPath = dbPath
	}

	if retries := envRepo.Get("MEDIA_UPLOAD_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("MEDIA_UPLOAD_RETRIES should be a non-negative integer, got: %s", retries)
		}
		config.RetryBudget = n
	}

	return config, nil
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size should be positive, got: %s", units.BytesSize(float64(c.ChunkSize)))
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("retry budget should not be negative, got: %d", c.RetryBudget)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff should not be negative, got: %s", c.RetryBackoff)
	}
	return nil
}
