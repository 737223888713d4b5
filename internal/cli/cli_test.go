package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmdForTest()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var fastFlags = []string{"--debounce", "10ms", "--drain-interval", "5ms", "--retry-delay", "10ms", "--timeout", "5s"}

func TestFollowCmd(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/api/relationship/2":
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		case "/api/relationship/3":
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": protocol.MsgAlreadyFollowing})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	args := append([]string{"follow", "2", "3", "2", "--actor", "1", "--server", srv.URL}, fastFlags...)
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "follow user 2")
	assert.Contains(t, out, "follow user 3")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["/api/relationship/2"])
	assert.Equal(t, 1, hits["/api/relationship/3"])
}

func TestUnfollowCmd_ReportsTerminalFailure(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		mu.Lock()
		attempts++
		mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to unfollow user"})
	}))
	defer srv.Close()

	args := append([]string{"unfollow", "4", "--actor", "1", "--server", srv.URL}, fastFlags...)
	out, err := run(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 action(s) failed")
	assert.Contains(t, out, "gave up after 3 attempts")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestUnfollowCmd_CountsEveryTerminalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "unavailable"})
	}))
	defer srv.Close()

	args := []string{"unfollow", "2", "3", "4", "5", "6", "--actor", "1", "--server", srv.URL,
		"--debounce", "1ms", "--drain-interval", "1ms", "--retry-delay", "1ms", "--timeout", "5s"}
	out, err := run(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 action(s) failed")
	assert.Equal(t, 5, strings.Count(out, "gave up after 3 attempts"))
}

func TestFollowCmd_Validation(t *testing.T) {
	_, err := run(t, "follow", "2")
	assert.ErrorContains(t, err, "--actor is required")

	_, err = run(t, "follow", "abc", "--actor", "1")
	assert.ErrorContains(t, err, "invalid user id")
}

func TestInboxCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/5/notifications/read-all":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"updated": 1}})
		case "/api/users/5/notifications":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"notifications": []map[string]any{
					{"id": 2, "recipientId": 5, "kind": "FOLLOW", "title": "New Follower", "message": "Ada started following you"},
					{"id": 1, "recipientId": 5, "kind": "UNFOLLOW", "title": "User Unfollowed", "message": "Linus unfollowed you", "read": true},
				},
				"unreadCount": 1,
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := run(t, "inbox", "--user", "5", "--mark-all", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "marked 1 notification(s) read")
	assert.Contains(t, out, "1 unread")
	assert.Contains(t, out, "Ada started following you")
	assert.Contains(t, out, "Linus unfollowed you")
}

func TestQueueCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"queueLength": 4, "processing": true})
	}))
	defer srv.Close()

	out, err := run(t, "queue", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "4 queued")
	assert.Contains(t, out, "draining")
}
