// Package api is the thin REST client for the event board backend. Calls are
// single round-trips with no built-in retry; transient failures surface to
// the caller, who decides what recovery means.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parsaabbasian/unispot-sync/internal/models"
	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

// SubmitRequest is the payload for creating an event. Validation tags mirror
// the server's binding requirements; content beyond that is not validated
// client-side.
type SubmitRequest struct {
	Title         string  `json:"title" validate:"required"`
	Description   string  `json:"description"`
	Category      string  `json:"category" validate:"required"`
	Latitude      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude     float64 `json:"lng" validate:"gte=-180,lte=180"`
	DurationHours float64 `json:"duration_hours" validate:"gt=0"`
	CreatorName   string  `json:"creator_name,omitempty"`
	CreatorEmail  string  `json:"creator_email,omitempty"`
}

type verifyRequest struct {
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the board's REST surface and derives the push-channel URL.
type Client struct {
	baseURL    string
	streamPath string
	http       *http.Client
	logger     *zap.Logger
}

// New constructs a client. baseURL is the http(s) origin of the backend.
func New(baseURL, streamPath string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streamPath == "" {
		streamPath = "/ws"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamPath: streamPath,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchEvents retrieves the authoritative snapshot around a point. The radius
// is in meters, matching the server's ST_DWithin filter.
func (c *Client) FetchEvents(ctx context.Context, lat, lng float64, radiusM int) ([]models.Event, error) {
	url := fmt.Sprintf("%s/api/events?lat=%f&lng=%f&radius=%d", c.baseURL, lat, lng, radiusM)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, c.rejection(resp)
	}

	var events []models.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// CreateEvent submits a sighting. On success the authoritative copy arrives
// asynchronously through the push channel; the returned event is only the
// server's acknowledgement body.
func (c *Client) CreateEvent(ctx context.Context, submit SubmitRequest) (*models.Event, error) {
	body, err := json.Marshal(submit)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/events", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit event: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.rejection(resp)
	}

	var created models.Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode created event: %w", err)
	}
	return &created, nil
}

// VerifyEvent endorses an event on behalf of the local identity.
func (c *Client) VerifyEvent(ctx context.Context, id uint, userName, userEmail string) error {
	body, err := json.Marshal(verifyRequest{UserName: userName, UserEmail: userEmail})
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}

	url := fmt.Sprintf("%s/api/events/%d/verify", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("verify event: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return c.rejection(resp)
	}
	return nil
}

// StreamURL derives the push-channel endpoint from the REST base by swapping
// the scheme http->ws / https->wss and appending the stream path.
func (c *Client) StreamURL() string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + c.streamPath
}

// rejection turns a non-200 response into a typed error carrying the
// server-provided message.
func (c *Client) rejection(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorBody
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		message = body.Error
	}
	if message == "" {
		message = fmt.Sprintf("server returned status %d", resp.StatusCode)
	}

	c.logger.Warn("request rejected",
		zap.Int("status", resp.StatusCode),
		zap.String("message", message))

	if resp.StatusCode == http.StatusNotFound {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	rejected := appErrors.Clone(appErrors.ErrRejected, message)
	rejected.Status = resp.StatusCode
	return rejected
}
