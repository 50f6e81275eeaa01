package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/config"
	"agora/internal/models"
	"agora/internal/service"
	"agora/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "server-test-secret-that-is-long-enough"

type testEnv struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Pagination *PageInfo       `json:"pagination"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:          "test",
		JWTSecret:    testJWTSecret,
		JWTTTLHours:  1,
		BcryptCost:   bcrypt.MinCost,
		FeatureFlags: "polls=on,reply_likes=on",
	}
	srv, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), mr: mr}
}

// register creates a user through the auth service and returns its token.
func (e *testEnv) register(t *testing.T, name string, role models.Role) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.srv.authService.Register(ctx, service.RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	if role != models.RoleUser {
		require.NoError(t, e.srv.deps.Repos.Users.Updates(ctx, res.User.ID, map[string]any{"role": string(role)}))
		res.User.Role = role
	}
	return res.User, res.Token
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	req := newRequest(t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (e *testEnv) createForum(t *testing.T, token, title string) models.Forum {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/forums", token, map[string]any{
		"title":       title,
		"description": "Everything about " + title + " and more",
		"category":    "technology",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decode[models.Forum](t, env)
}

func (e *testEnv) createPost(t *testing.T, token string, forumID uint, title string) models.Post {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/posts", token, map[string]any{
		"title":   title,
		"content": "Hello world, this is long enough",
		"forumId": forumID,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decode[models.Post](t, env)
}

func (e *testEnv) getForum(t *testing.T, id uint) models.Forum {
	t.Helper()
	status, env := e.do(t, http.MethodGet, fmt.Sprintf("/api/forums/%d", id), "", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	return decode[models.Forum](t, env)
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p, err := parsePagination(c, 20)
		if err != nil {
			return models.RespondWithError(c, err)
		}
		return c.JSON(p)
	})

	tests := []struct {
		query  string
		status int
		want   Pagination
	}{
		{"", http.StatusOK, Pagination{Page: 1, Limit: 20}},
		{"?page=3&limit=5", http.StatusOK, Pagination{Page: 3, Limit: 5}},
		{"?page=0", http.StatusBadRequest, Pagination{}},
		{"?limit=101", http.StatusBadRequest, Pagination{}},
		{"?limit=abc", http.StatusBadRequest, Pagination{}},
		{"?page=21474837&limit=100", http.StatusOK, Pagination{Page: 21474837, Limit: 100}},
		{"?page=21474838&limit=100", http.StatusBadRequest, Pagination{}},
		{"?page=9223372036854775807", http.StatusBadRequest, Pagination{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var got Pagination
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPagination_RepoAndPages(t *testing.T) {
	p := Pagination{Page: 3, Limit: 10}
	assert.Equal(t, 20, p.Repo().Offset)
	assert.Equal(t, 10, p.Repo().Limit)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return respondList(c, []int{}, Pagination{Page: 1, Limit: 10}, 21) })
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(3), env.Pagination.Pages)
	assert.Equal(t, int64(21), env.Pagination.Total)
}
