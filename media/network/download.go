package network

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/melbahja/got"
)

// Downloader fetches public objects to local files.
type Downloader struct {
	client *http.Client
	logger log.Logger
}

// NewDownloader creates a Downloader on top of a retrying HTTP client.
func NewDownloader(logger log.Logger) *Downloader {
	retryableHTTPClient := retryhttp.NewClient(logger)
	retryableHTTPClient.CheckRetry = createCustomRetryFunction(logger)

	return &Downloader{
		client: retryableHTTPClient.StandardClient(),
		logger: logger,
	}
}

// Download writes the object behind url to dest.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	if url == "" {
		return fmt.Errorf("download URL is empty")
	}
	if dest == "" {
		return fmt.Errorf("download destination is empty")
	}

	d.logger.Debugf("Downloading %s to %s", url, dest)
	if err := downloadFile(ctx, d.client, url, dest); err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	return nil
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, downloadErr error) (bool, error) {
		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, downloadErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; downloadErr=%+v", retry, err, downloadErr)
		return retry, err
	}
}

func downloadFile(ctx context.Context, client *http.Client, url string, dest string) error {
	downloader := got.New()
	downloader.Client = client

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
