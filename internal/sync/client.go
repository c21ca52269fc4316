package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/models"
)

// Server endpoints, relative to the configured base URL.
const (
	pingPath = "/api/sync/ping"
	pushPath = "/api/sync/push"
	pullPath = "/api/sync/pull"
)

// Credential headers expected by the server.
const (
	headerCredentialKey = "X-Credential-Key"
	headerDeviceID      = "X-Device-Id"
)

// Client is the HTTP transport to the central sync server. It performs
// no retries: retry policy belongs to the orchestrator and the
// background scheduler. Every call is bounded by a timeout so a hung
// network can never block a till.
type Client struct {
	baseURL        string
	http           *http.Client
	creds          CredentialProvider
	probeTimeout   time.Duration
	requestTimeout time.Duration
}

// NewClient creates a transport against baseURL.
func NewClient(baseURL string, creds CredentialProvider, probeTimeout, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		creds:          creds,
		probeTimeout:   probeTimeout,
		requestTimeout: requestTimeout,
	}
}

// Ping issues the lightweight authenticated health check. Any transport
// error, timeout or non-200 status is reported as an error; the probe
// collapses all of them to Offline.
func (c *Client) Ping(ctx context.Context) error {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pingPath, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}

// Push transmits a changeset to the server. An empty changeset is a
// no-op success: it is not worth a network call.
func (c *Client) Push(ctx context.Context, cs *models.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPushFailed, "push aborted", err)
	}

	body, err := json.Marshal(cs)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPushFailed, "failed to encode changeset", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPushFailed, "failed to build push request", err)
	}
	c.setHeaders(req, creds)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPushFailed, "push transport error", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrPushFailed, fmt.Sprintf("push returned status %d", resp.StatusCode))
	}
	return nil
}

// Pull requests the server's changes accumulated since the checkpoint.
func (c *Client) Pull(ctx context.Context, since string) (*models.ChangeSet, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPullFailed, "pull aborted", err)
	}

	body, err := json.Marshal(models.PullRequest{Since: since})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPullFailed, "failed to encode pull request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pullPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPullFailed, "failed to build pull request", err)
	}
	c.setHeaders(req, creds)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPullFailed, "pull transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.New(apperrors.ErrPullFailed, fmt.Sprintf("pull returned status %d", resp.StatusCode))
	}

	var cs models.ChangeSet
	if err := json.NewDecoder(resp.Body).Decode(&cs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPullFailed, "failed to decode changeset", err)
	}
	return &cs, nil
}

func (c *Client) setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set(headerCredentialKey, creds.Key)
	req.Header.Set(headerDeviceID, creds.DeviceID)
}
