package save

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"meeting-session-service/internal/models"
)

// ErrUnconfirmedSave marks a persistence response that did not include a
// created-record identifier. It is treated exactly like a failure: a
// non-error response without confirmation must never count as success.
var ErrUnconfirmedSave = errors.New("persistence response missing meeting id")

// Persister is the remote persistence call. It must return the created
// meeting record's identifier for the save to count as confirmed.
type Persister interface {
	CreateMeeting(ctx context.Context, payload *models.PendingMeetingSave, userID string) (string, error)
}

// Identity resolves the current authenticated user, if any.
type Identity interface {
	CurrentUser(ctx context.Context) (userID string, ok bool)
}

// StaticIdentity is an Identity with a fixed user. An empty UserID means
// unauthenticated.
type StaticIdentity struct {
	UserID string
}

// CurrentUser returns the fixed user.
func (s StaticIdentity) CurrentUser(context.Context) (string, bool) {
	return s.UserID, s.UserID != ""
}

type createMeetingRequest struct {
	RoomID       string   `json:"roomId"`
	RoomName     string   `json:"roomName"`
	Transcript   []string `json:"transcript"`
	Participants []string `json:"participants"`
	UserID       string   `json:"userId"`
}

type createMeetingResponse struct {
	Success bool `json:"success"`
	Meeting struct {
		ID string `json:"id"`
	} `json:"meeting"`
	Error string `json:"error,omitempty"`
}

// HTTPPersister implements Persister against a JSON HTTP endpoint.
type HTTPPersister struct {
	url    string
	client *http.Client
}

// NewHTTPPersister creates a persister for the given endpoint.
func NewHTTPPersister(url string, timeout time.Duration) *HTTPPersister {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPersister{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// CreateMeeting submits the payload and returns the confirmed meeting id.
// The payload's idempotency key rides along as a header so the backend can
// deduplicate retries after ambiguous failures.
func (p *HTTPPersister) CreateMeeting(ctx context.Context, payload *models.PendingMeetingSave, userID string) (string, error) {
	body, err := json.Marshal(createMeetingRequest{
		RoomID:       payload.RoomID,
		RoomName:     payload.RoomName,
		Transcript:   payload.Transcript,
		Participants: payload.Participants,
		UserID:       userID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal save payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.IdempotencyKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("persistence call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read persistence response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("persistence call failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out createMeetingResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode persistence response: %w", err)
	}
	// Fail closed: an OK response without a confirmed identifier is a
	// failure, not a success.
	if !out.Success || out.Meeting.ID == "" {
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrUnconfirmedSave, out.Error)
		}
		return "", ErrUnconfirmedSave
	}
	return out.Meeting.ID, nil
}
