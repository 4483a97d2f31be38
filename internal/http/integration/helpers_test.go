package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/config"
	apphttp "github.com/geocoder89/postsapi/internal/http"
	"github.com/gin-gonic/gin"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		MaxBodyBytes:        1 << 20,
	}
}

func testJWT(cfg config.Config) *auth.Manager {
	return auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRouter(cfg config.Config, deps apphttp.Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return apphttp.NewRouter(quietLogger(), cfg, deps)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field string `json:"field"`
		Rule  string `json:"rule"`
	} `json:"errors"`
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c client) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			c.t.Fatalf("decode response: %v body=%s", err, w.Body.String())
		}
	}

	return w, env
}

// register creates an account and returns its id and access token.
func (c client) register(name, email string) (int64, string) {
	c.t.Helper()

	w, env := c.do(http.MethodPost, "/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secret123",
	})
	if w.Code != http.StatusCreated {
		c.t.Fatalf("register %s: got %d body=%s", email, w.Code, w.Body.String())
	}

	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		c.t.Fatalf("decode register: %v", err)
	}

	return out.User.ID, out.AccessToken
}

// tokenFor mints an access token for an arbitrary principal id.
func tokenFor(t *testing.T, jwt *auth.Manager, userID int64) string {
	t.Helper()

	token, err := jwt.GenerateAccessToken(userID, "p@example.com", "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

type postBody struct {
	ID          int64     `json:"id"`
	Titulo      string    `json:"titulo"`
	Descripcion string    `json:"descripcion"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type userBody struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v raw=%s", err, string(env.Data))
	}
	return out
}
