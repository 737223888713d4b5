package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/anonto42/followpulse/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type fakeUsers struct {
	users map[uint]models.User
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[uint]models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	for _, u := range f.users {
		if u.FirebaseUID == uid {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUsers(context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeFollows struct {
	mu        sync.Mutex
	edges     map[[2]uint]bool
	createErr error
}

func newFakeFollows() *fakeFollows {
	return &fakeFollows{edges: map[[2]uint]bool{}}
}

func (f *fakeFollows) CreateFollow(_ context.Context, follower, following uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.edges[[2]uint{follower, following}] = true
	return nil
}

func (f *fakeFollows) DeleteFollow(_ context.Context, follower, following uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{follower, following}
	if !f.edges[key] {
		return repositories.ErrNotFound
	}
	delete(f.edges, key)
	return nil
}

func (f *fakeFollows) IsFollowing(_ context.Context, follower, following uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges[[2]uint{follower, following}], nil
}

func (f *fakeFollows) GetFollowersCount(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.edges {
		if k[1] == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeFollows) GetFollowingCount(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.edges {
		if k[0] == userID {
			n++
		}
	}
	return n, nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	rows []models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, req models.NotificationRequest) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := models.Notification{
		ID:          uint(len(f.rows) + 1),
		RecipientID: req.RecipientID,
		Kind:        req.Kind,
		Title:       req.Title,
		Message:     req.Message,
		CreatedAt:   time.Now(),
	}
	f.rows = append(f.rows, n)
	return &n, nil
}

func (f *fakeNotifications) ListByRecipient(_ context.Context, recipientID uint, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].RecipientID == recipientID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeNotifications) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			n := f.rows[i]
			return &n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeNotifications) MarkRead(_ context.Context, id uint) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Read = true
			n := f.rows[i]
			return &n, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for i := range f.rows {
		if f.rows[i].RecipientID == recipientID && !f.rows[i].Read {
			f.rows[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.RecipientID == recipientID && !row.Read {
			n++
		}
	}
	return n, nil
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	requests []models.NotificationRequest
	err      error
}

func (r *recordingEnqueuer) Enqueue(req models.NotificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingEnqueuer) queued() []models.NotificationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.NotificationRequest(nil), r.requests...)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validators.NewValidator()
	return e
}

func doRequest(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

var nopLogger = zap.NewNop()
