package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/circl/go-sdk/credstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, r)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.reqs...)
}

// newTestAPI serves routes and returns a client whose store holds "tok".
func newTestAPI(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *requestLog) {
	t.Helper()
	requests := &requestLog{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		requests.add(rec)

		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"message":"route not found"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(server.Close)

	store := credstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), credstore.KeyToken, "tok"))

	client, err := New(Config{BaseURL: server.URL + "/", ImageToken: "img-secret"}, store)
	require.NoError(t, err)
	return client, requests
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestNew_Validation(t *testing.T) {
	store := credstore.NewMemory()

	_, err := New(Config{}, store)
	assert.ErrorContains(t, err, "CIRCL_API_URL")

	_, err = New(Config{BaseURL: "ws://api.circl.example"}, store)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "https://api.circl.example"}, nil)
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "https://api.circl.example/"}, store)
	require.NoError(t, err)
	assert.Equal(t, "https://api.circl.example", c.BaseURL())
}

func TestNew_EnvFallback(t *testing.T) {
	t.Setenv("CIRCL_API_URL", "https://env.circl.example")
	t.Setenv("CIRCL_IMAGE_TOKEN", "env-token")
	t.Setenv("CIRCL_API_TIMEOUT", "3s")

	c, err := New(Config{}, credstore.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "https://env.circl.example", c.BaseURL())
	assert.Equal(t, "env-token", c.imageToken)
	assert.Equal(t, 3*time.Second, c.http.Timeout)
}

func TestClient_CurrentUser(t *testing.T) {
	client, requests := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /auth/user": reply(http.StatusOK, `{"status":"success","user":{
			"id":"u1","email":"ana@circl.example","firstName":"Ana","lastName":"Lima",
			"userName":"ana","profileImage":"https://api.circl.example/images/profile/u1.jpg",
			"createdAt":"2025-01-02T03:04:05Z","updatedAt":"2025-01-02T03:04:05Z"}}`),
	})

	u, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ana", u.UserName)
	assert.Equal(t, 2025, u.CreatedAt.Year())

	require.Len(t, requests.all(), 1)
	assert.Equal(t, "Bearer tok", requests.all()[0].Auth)
}

func TestClient_CurrentUser_NotSuccess(t *testing.T) {
	client, _ := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /auth/user": reply(http.StatusOK, `{"status":"error","message":"session revoked"}`),
	})

	_, err := client.CurrentUser(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "session revoked", apiErr.Message)
}

func TestClient_CurrentUser_Unauthorized(t *testing.T) {
	client, _ := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /auth/user": reply(http.StatusUnauthorized, `{"status":"error","message":"invalid token"}`),
	})

	_, err := client.CurrentUser(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestClient_NoToken(t *testing.T) {
	client, err := New(Config{BaseURL: "https://api.circl.example"}, credstore.NewMemory())
	require.NoError(t, err)

	_, err = client.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, client.Follow(context.Background(), "u2"), ErrUnauthenticated)
}

func TestClient_NonJSONError(t *testing.T) {
	client, _ := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /auth/user": reply(http.StatusBadGateway, `<html>bad gateway</html>`),
	})

	_, err := client.CurrentUser(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.False(t, IsUnauthorized(err))
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "api error: status 404: not found", (&Error{StatusCode: 404, Message: "not found"}).Error())
	assert.Equal(t, "api error: status 500", (&Error{StatusCode: 500}).Error())
}
