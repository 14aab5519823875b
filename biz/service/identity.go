package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

// IdentityChecker verifies that scope identifiers refer to live entities
// before files are attached to them.
type IdentityChecker interface {
	CheckWorkspace(ctx context.Context, workspaceID, domainID string) error
}

// NoopIdentityChecker accepts every workspace. Used when no identity
// endpoint is configured.
type NoopIdentityChecker struct{}

func (NoopIdentityChecker) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	return nil
}

// RemoteIdentityChecker calls an external identity service over HTTP.
type RemoteIdentityChecker struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewRemoteIdentityChecker(endpoint, token string, timeout time.Duration) *RemoteIdentityChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteIdentityChecker{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *RemoteIdentityChecker) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	payload, err := json.Marshal(map[string]string{
		"workspace_id": workspaceID,
		"domain_id":    domainID,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/identity/workspace/check", c.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("check workspace: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (workspace_id = %s, domain_id = %s)", ErrWorkspaceNotFound, workspaceID, domainID)
	default:
		return fmt.Errorf("check workspace: unexpected status %d", resp.StatusCode)
	}
}
