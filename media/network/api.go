package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const mergeFunctionName = "merge-chunks"

var redactedHeaders = []string{"Authorization", "apikey"}

// MergeClient invokes the server-side merge function over HTTP.
type MergeClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	apiKey     string
	logger     log.Logger
}

// NewMergeClient creates a client for <functionsURL>/merge-chunks.
// The merge is not idempotent (it deletes the parts), so transport retries are disabled.
func NewMergeClient(functionsURL, apiKey string, logger log.Logger) *MergeClient {
	httpClient := retryhttp.NewClient(logger)
	httpClient.RetryMax = 0
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return newMergeClient(httpClient, functionsURL, apiKey, logger)
}

func newMergeClient(client *retryablehttp.Client, baseURL, apiKey string, logger log.Logger) *MergeClient {
	return &MergeClient{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

// MergeChunks ...
func (c *MergeClient) MergeChunks(ctx context.Context, mergeRequest MergeRequest) error {
	if mergeRequest.Chunks <= 0 {
		return fmt.Errorf("chunk count must be positive, got %d", mergeRequest.Chunks)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, mergeFunctionName)

	body, err := json.Marshal(mergeRequest)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-type", "application/json")

	dump, err := dumpRedactedRequest(req.Request)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("Merge request dump: %s", string(dump))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Warnf("close response body: %s", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unwrapError(resp)
	}

	return nil
}

// dumpRedactedRequest dumps the request line and headers with the credentials masked.
// The body is left out so the request can still be sent.
func dumpRedactedRequest(req *http.Request) ([]byte, error) {
	clone := req.Clone(req.Context())
	for _, header := range redactedHeaders {
		if clone.Header.Get(header) != "" {
			clone.Header.Set(header, "[REDACTED]")
		}
	}
	return httputil.DumpRequest(clone, false)
}

func unwrapError(resp *http.Response) error {
	errorResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errorResp)))
}
