// Package docsapi is a client for the documents service's status endpoint.
// Requests go through the internal load balancer, which only accepts them
// with both the ingestion API token and the origin-verify secret that
// CloudFront would otherwise inject.
package docsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/eventbridge-dlq/internal/document"
	"github.com/fpang/eventbridge-dlq/internal/jsonutil"
	"github.com/fpang/eventbridge-dlq/internal/secrets"
)

const (
	// DefaultDocsPath is the documents resource prefix.
	DefaultDocsPath = "/api/documents"

	// DefaultTimeout bounds each status update request.
	DefaultTimeout = 30 * time.Second

	// maxBodyPreview caps how much of a response body is logged or kept.
	maxBodyPreview = 500
)

var (
	// ErrRemoteRejected marks a non-2xx response from the documents API.
	ErrRemoteRejected = errors.New("status update rejected")

	// ErrTransport marks a request that never got a response.
	ErrTransport = errors.New("status update transport failure")
)

// RemoteRejectedError carries the rejected response. It matches
// ErrRemoteRejected with errors.Is.
type RemoteRejectedError struct {
	StatusCode int
	Body       string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("status update rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteRejectedError) Is(target error) bool { return target == ErrRemoteRejected }

// Client updates document statuses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	docsPath   string
}

// NewClient creates a client for baseURL (scheme and host, no trailing
// slash needed). An empty docsPath uses DefaultDocsPath; a zero timeout uses
// DefaultTimeout.
func NewClient(baseURL, docsPath string, timeout time.Duration) *Client {
	if docsPath == "" {
		docsPath = DefaultDocsPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		docsPath:   "/" + strings.Trim(docsPath, "/"),
	}
}

// DocumentURL returns the resource URL of a document.
func (c *Client) DocumentURL(documentID string) string {
	return c.baseURL + c.docsPath + "/" + url.PathEscape(documentID)
}

type statusRequest struct {
	Status document.Status `json:"status"`
}

// UpdateStatus PATCHes the document's status. It makes exactly one request
// and does not retry; redelivery is left to the queue.
func (c *Client) UpdateStatus(ctx context.Context, documentID string, status document.Status, creds secrets.Bundle) error {
	if documentID == "" || !status.Valid() {
		return fmt.Errorf("update status: invalid document %q or status %q", documentID, status)
	}
	logger := zerolog.Ctx(ctx)
	target := c.DocumentURL(documentID)

	body, err := json.Marshal(statusRequest{Status: status})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", creds.APIToken)
	req.Header.Set("X-Origin-Verify", creds.OriginVerify)

	logger.Info().
		Str("documentId", documentID).
		Str("status", string(status)).
		Str("url", target).
		Msg("Updating document status")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).
			Str("documentId", documentID).
			Str("status", string(status)).
			Dur("duration", duration).
			Msg("Failed to update document status")
		return fmt.Errorf("%w: PATCH %s: %v", ErrTransport, target, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyPreview+1))
	if readErr != nil {
		logger.Debug().Err(readErr).
			Str("documentId", documentID).
			Int("httpStatus", resp.StatusCode).
			Msg("Failed to read status update response body")
	}
	preview := jsonutil.Preview(string(respBody), maxBodyPreview)

	logger.Info().
		Str("documentId", documentID).
		Str("status", string(status)).
		Int("httpStatus", resp.StatusCode).
		Str("responseBody", preview).
		Dur("duration", duration).
		Msg("Status update response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error().
			Str("documentId", documentID).
			Str("status", string(status)).
			Int("httpStatus", resp.StatusCode).
			Msg("Failed to update document status")
		return &RemoteRejectedError{StatusCode: resp.StatusCode, Body: preview}
	}
	return nil
}
