// Package platform is the HTTP client for the reel platform API. All
// responses are wrapped in a {data, error} envelope; a missing data field
// together with a present error field is treated as failure regardless of
// the transport-level status code.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is the set of platform operations the agent consumes.
type Client interface {
	GetReel(ctx context.Context, id string) (*ReelMetadata, error)
	UpdateMetadata(ctx context.Context, id string, delta MetadataDelta) (*ReelMetadata, error)
	GetVersions(ctx context.Context, id string) ([]*ReelVersion, error)
	RollbackVersion(ctx context.Context, id, versionID string) (*ReelMetadata, error)
	GetTranscript(ctx context.Context, id string) (*Transcript, error)
	UpdateTranscript(ctx context.Context, id string, transcript *Transcript) (*Transcript, error)
	StartReprocess(ctx context.Context, id string) (*ReprocessJob, error)
	GetReprocessStatus(ctx context.Context, id, jobID string) (*ReprocessJob, error)
	CancelReprocess(ctx context.Context, id, jobID string) error
	UpdatePermissions(ctx context.Context, id string, permissions ReelPermissions) (*ReelMetadata, error)
}

// HTTPClient talks to the reel platform over HTTP with bearer-token auth.
// The org slug, when set, is sent as the Host subdomain for tenancy
// resolution.
type HTTPClient struct {
	baseURL    string
	token      string
	orgSlug    string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token, orgSlug string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		orgSlug: orgSlug,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

// envelope is the platform's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// do issues one request and decodes the envelope into out. A nil out skips
// envelope decoding (no-content endpoints). Transport failures are
// returned as wrapped errors; completed-but-rejected requests as *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Reel-Request-Id", uuid.NewString())
	if c.deviceID != "" {
		req.Header.Set("X-Reel-Device-Id", c.deviceID)
	}

	// The platform resolves the tenant org from the Host header subdomain.
	if c.orgSlug != "" {
		req.Host = c.orgSlug + ".app.reelworks.local"
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if out == nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return fmt.Errorf("decode response envelope: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if env.Error != "" || len(env.Data) == 0 || string(env.Data) == "null" {
		msg := env.Error
		if msg == "" {
			msg = "missing data in response"
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func (c *HTTPClient) GetReel(ctx context.Context, id string) (*ReelMetadata, error) {
	var reel ReelMetadata
	if err := c.do(ctx, http.MethodGet, "/reels/"+id, nil, &reel); err != nil {
		return nil, err
	}
	return &reel, nil
}

func (c *HTTPClient) UpdateMetadata(ctx context.Context, id string, delta MetadataDelta) (*ReelMetadata, error) {
	var reel ReelMetadata
	if err := c.do(ctx, http.MethodPut, "/reels/"+id+"/metadata", delta, &reel); err != nil {
		return nil, err
	}
	c.logger.Info("metadata updated", "reel_id", id, "version", reel.CurrentVersion)
	return &reel, nil
}

func (c *HTTPClient) GetVersions(ctx context.Context, id string) ([]*ReelVersion, error) {
	var versions []*ReelVersion
	if err := c.do(ctx, http.MethodGet, "/reels/"+id+"/versions", nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *HTTPClient) RollbackVersion(ctx context.Context, id, versionID string) (*ReelMetadata, error) {
	var reel ReelMetadata
	if err := c.do(ctx, http.MethodPost, "/reels/"+id+"/versions/"+versionID+"/rollback", nil, &reel); err != nil {
		return nil, err
	}
	c.logger.Info("rollback applied", "reel_id", id, "target_version_id", versionID, "version", reel.CurrentVersion)
	return &reel, nil
}

func (c *HTTPClient) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	var transcript Transcript
	if err := c.do(ctx, http.MethodGet, "/reels/"+id+"/transcript", nil, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

func (c *HTTPClient) UpdateTranscript(ctx context.Context, id string, transcript *Transcript) (*Transcript, error) {
	var saved Transcript
	if err := c.do(ctx, http.MethodPut, "/reels/"+id+"/transcript", transcript, &saved); err != nil {
		return nil, err
	}
	c.logger.Info("transcript saved", "reel_id", id, "transcript_version", saved.Version)
	return &saved, nil
}

func (c *HTTPClient) StartReprocess(ctx context.Context, id string) (*ReprocessJob, error) {
	var job ReprocessJob
	if err := c.do(ctx, http.MethodPost, "/reels/"+id+"/reprocess", nil, &job); err != nil {
		return nil, err
	}
	c.logger.Info("reprocess started", "reel_id", id, "job_id", job.ID)
	return &job, nil
}

func (c *HTTPClient) GetReprocessStatus(ctx context.Context, id, jobID string) (*ReprocessJob, error) {
	var job ReprocessJob
	if err := c.do(ctx, http.MethodGet, "/reels/"+id+"/reprocess/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *HTTPClient) CancelReprocess(ctx context.Context, id, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/reels/"+id+"/reprocess/"+jobID, nil, nil)
}

func (c *HTTPClient) UpdatePermissions(ctx context.Context, id string, permissions ReelPermissions) (*ReelMetadata, error) {
	var reel ReelMetadata
	if err := c.do(ctx, http.MethodPut, "/reels/"+id+"/permissions", permissions, &reel); err != nil {
		return nil, err
	}
	c.logger.Info("permissions updated", "reel_id", id)
	return &reel, nil
}
