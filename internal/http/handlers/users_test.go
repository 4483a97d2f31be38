package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/http/handlers"
	"github.com/geocoder89/postsapi/internal/security"
)

type fakeUsersRepo struct {
	listFn       func(ctx context.Context) ([]user.User, error)
	getFn        func(ctx context.Context, id int64) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	emailTakenFn func(ctx context.Context, email string, exceptID int64) (bool, error)
	createFn     func(ctx context.Context, u user.User) (user.User, error)
	updateFn     func(ctx context.Context, id int64, ch user.Changes) (user.User, error)
	deleteFn     func(ctx context.Context, id int64) error
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []user.User{}, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	if f.emailTakenFn != nil {
		return f.emailTakenFn(ctx, email, exceptID)
	}
	return false, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	u.ID = 1
	return u, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id int64, ch user.Changes) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, ch)
	}
	return user.User{ID: id}, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateUserHandler_HashesPassword(t *testing.T) {
	var stored user.User
	repo := &fakeUsersRepo{
		createFn: func(ctx context.Context, u user.User) (user.User, error) {
			u.ID = 10
			stored = u
			return u, nil
		},
	}

	h := handlers.NewUsersHandler(repo)
	r := setupRouter(http.MethodPost, "/users", 1, h.Create)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/users", `{"name":"Juan","email":"Juan@Example.com","password":"secret123"}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if stored.PasswordHash == "" || stored.PasswordHash == "secret123" {
		t.Fatalf("password was not hashed: %q", stored.PasswordHash)
	}
	if err := security.CheckPassword(stored.PasswordHash, "secret123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if stored.Email != "juan@example.com" {
		t.Fatalf("email not normalized: %q", stored.Email)
	}
	if stored.Role != user.RoleUser {
		t.Fatalf("unexpected role %q", stored.Role)
	}

	var body map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &body); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Fatalf("password hash leaked in response: %v", body)
	}
	if _, leaked := body["password"]; leaked {
		t.Fatalf("password leaked in response: %v", body)
	}
}

func TestCreateUserHandler_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		repoSetUp func(*fakeUsersRepo)
		wantRule  string
	}{
		{
			name:     "short password",
			body:     `{"name":"Juan","email":"juan@example.com","password":"123"}`,
			wantRule: "min",
		},
		{
			name:     "password over bcrypt limit",
			body:     `{"name":"Juan","email":"juan@example.com","password":"` + strings.Repeat("a", 73) + `"}`,
			wantRule: "maxbytes",
		},
		{
			name:     "multibyte password over bcrypt limit",
			body:     `{"name":"Juan","email":"juan@example.com","password":"` + strings.Repeat("ñ", 40) + `"}`,
			wantRule: "maxbytes",
		},
		{
			name:     "bad email",
			body:     `{"name":"Juan","email":"juan","password":"secret123"}`,
			wantRule: "email",
		},
		{
			name: "duplicate email",
			body: `{"name":"Juan","email":"juan@example.com","password":"secret123"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.emailTakenFn = func(ctx context.Context, email string, exceptID int64) (bool, error) {
					return true, nil
				}
			},
			wantRule: "unique",
		},
		{
			name: "duplicate email lost race",
			body: `{"name":"Juan","email":"juan@example.com","password":"secret123"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantRule: "unique",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo)
			r := setupRouter(http.MethodPost, "/users", 1, h.Create)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, "/users", tt.body))

			resp := decodeValidation(t, w)
			if len(resp.Errors) == 0 || resp.Errors[0].Rule != tt.wantRule {
				t.Fatalf("got errors %+v, want rule %q", resp.Errors, tt.wantRule)
			}
		})
	}
}

func TestShowUserHandler_NotFound(t *testing.T) {
	h := handlers.NewUsersHandler(&fakeUsersRepo{})
	r := setupRouter(http.MethodGet, "/users/:id", 1, h.Show)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/99", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Status != "error" || env.Message != "Usuario no encontrado" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestUpdateUserHandler_PartialUpdate(t *testing.T) {
	current := user.User{ID: 4, Name: "Juan", Email: "juan@example.com", PasswordHash: "old"}

	var got user.Changes
	var exceptID int64
	repo := &fakeUsersRepo{
		getFn: func(ctx context.Context, id int64) (user.User, error) {
			if id != current.ID {
				return user.User{}, user.ErrNotFound
			}
			return current, nil
		},
		emailTakenFn: func(ctx context.Context, email string, except int64) (bool, error) {
			exceptID = except
			return false, nil
		},
		updateFn: func(ctx context.Context, id int64, ch user.Changes) (user.User, error) {
			got = ch
			u := current
			if ch.Name != nil {
				u.Name = *ch.Name
			}
			if ch.Email != nil {
				u.Email = *ch.Email
			}
			return u, nil
		},
	}

	h := handlers.NewUsersHandler(repo)
	r := setupRouter(http.MethodPatch, "/users/:id", 1, h.Update)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPatch, "/users/4", `{"name":"Juanito"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if got.Name == nil || *got.Name != "Juanito" {
		t.Fatalf("name change missing: %+v", got)
	}
	if got.Email != nil || got.PasswordHash != nil {
		t.Fatalf("absent fields must not change: %+v", got)
	}

	var u user.User
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if u.Email != "juan@example.com" {
		t.Fatalf("email changed unexpectedly: %q", u.Email)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPatch, "/users/4", `{"email":"juan@example.com","password":"nuevo123"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if exceptID != 4 {
		t.Fatalf("uniqueness check must exclude own id, got %d", exceptID)
	}
	if got.PasswordHash == nil || *got.PasswordHash == "nuevo123" {
		t.Fatalf("password must be re-hashed: %+v", got)
	}
}

func TestUpdateUserHandler_Errors(t *testing.T) {
	repo := &fakeUsersRepo{
		getFn: func(ctx context.Context, id int64) (user.User, error) {
			if id == 4 {
				return user.User{ID: 4}, nil
			}
			return user.User{}, user.ErrNotFound
		},
		emailTakenFn: func(ctx context.Context, email string, exceptID int64) (bool, error) {
			return email == "otro@example.com", nil
		},
	}

	h := handlers.NewUsersHandler(repo)
	r := setupRouter(http.MethodPut, "/users/:id", 1, h.Update)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/users/5", `{"name":"x"}`))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing user: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/users/4", `{"email":"otro@example.com"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("taken email: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/users/4", `{"name":"   "}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank name: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/users/4", `{"password":"`+strings.Repeat("x", 73)+`"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overlong password: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteUserHandler(t *testing.T) {
	deleted := false
	repo := &fakeUsersRepo{
		deleteFn: func(ctx context.Context, id int64) error {
			if deleted {
				return user.ErrNotFound
			}
			deleted = true
			return nil
		},
	}

	h := handlers.NewUsersHandler(repo)
	r := setupRouter(http.MethodDelete, "/users/:id", 1, h.Delete)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/users/2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Usuario eliminado correctamente" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/users/2", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d", w.Code)
	}
}
