// Package client talks to the followpulse HTTP API and push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
)

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Notifications []protocol.Notification `json:"notifications"`
	UnreadCount   int64                   `json:"unreadCount"`
}

// QueueStatus is the server dispatch queue's observable state.
type QueueStatus struct {
	QueueLength int  `json:"queueLength"`
	Processing  bool `json:"processing"`
}

// Client is the followpulse API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client. token may be empty when the server runs without auth.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type relationshipRequest struct {
	ActorID uint `json:"actorId"`
}

// Follow makes actorID follow targetID. An error satisfying
// errors.Is(err, protocol.ErrAlreadySettled) means the follow already existed.
func (c *Client) Follow(ctx context.Context, actorID, targetID uint) error {
	path := "/api/relationship/" + strconv.FormatUint(uint64(targetID), 10)
	if err := c.doRequest(ctx, http.MethodPost, path, relationshipRequest{ActorID: actorID}, nil); err != nil {
		return fmt.Errorf("client.Follow: %w", err)
	}
	return nil
}

// Unfollow removes the follow from actorID to targetID. An error satisfying
// errors.Is(err, protocol.ErrAlreadySettled) means there was nothing to remove.
func (c *Client) Unfollow(ctx context.Context, actorID, targetID uint) error {
	path := "/api/relationship/" + strconv.FormatUint(uint64(targetID), 10)
	if err := c.doRequest(ctx, http.MethodDelete, path, relationshipRequest{ActorID: actorID}, nil); err != nil {
		return fmt.Errorf("client.Unfollow: %w", err)
	}
	return nil
}

// ListNotifications fetches the newest notifications for userID. limit <= 0 uses the server default.
func (c *Client) ListNotifications(ctx context.Context, userID uint, limit int) (*NotificationPage, error) {
	path := "/api/users/" + strconv.FormatUint(uint64(userID), 10) + "/notifications"
	if limit > 0 {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		path += "?" + params.Encode()
	}

	var page NotificationPage
	if err := c.getData(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("client.ListNotifications: %w", err)
	}
	return &page, nil
}

// UnreadCount returns the number of unread notifications for userID.
func (c *Client) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	path := "/api/users/" + strconv.FormatUint(uint64(userID), 10) + "/notifications/unread-count"
	if err := c.getData(ctx, path, &out); err != nil {
		return 0, fmt.Errorf("client.UnreadCount: %w", err)
	}
	return out.Count, nil
}

// MarkRead marks one notification as read.
func (c *Client) MarkRead(ctx context.Context, notificationID uint) (*protocol.Notification, error) {
	var n protocol.Notification
	path := "/api/notifications/" + strconv.FormatUint(uint64(notificationID), 10) + "/read"
	if err := c.dataRequest(ctx, http.MethodPatch, path, &n); err != nil {
		return nil, fmt.Errorf("client.MarkRead: %w", err)
	}
	return &n, nil
}

// MarkAllRead marks every notification of userID as read and returns how many changed.
func (c *Client) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	path := "/api/users/" + strconv.FormatUint(uint64(userID), 10) + "/notifications/read-all"
	if err := c.dataRequest(ctx, http.MethodPut, path, &out); err != nil {
		return 0, fmt.Errorf("client.MarkAllRead: %w", err)
	}
	return out.Updated, nil
}

// QueueStatus returns the server dispatch queue's backlog.
func (c *Client) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	var status QueueStatus
	if err := c.doRequest(ctx, http.MethodGet, "/api/queue/status", nil, &status); err != nil {
		return nil, fmt.Errorf("client.QueueStatus: %w", err)
	}
	return &status, nil
}

// envelope is the {"success":true,"data":...} wrapper the API uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) getData(ctx context.Context, path string, out any) error {
	return c.dataRequest(ctx, http.MethodGet, path, out)
}

func (c *Client) dataRequest(ctx context.Context, method, path string, out any) error {
	var env envelope
	if err := c.doRequest(ctx, method, path, nil, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Message != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
			}
			if apiErr.Error != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
