package integration_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/security"
	"github.com/gin-gonic/gin"
)

// passwordHashOf reads the stored hash for a user straight from storage.
type passwordHashOf func(t *testing.T, email string) string

// runScenarios exercises the public contract against any storage backend.
func runScenarios(t *testing.T, router *gin.Engine, jwt *auth.Manager, hashOf passwordHashOf) {
	c := client{t: t, router: router}

	// principals 1 through 4
	tokens := make(map[int64]string)
	for i := 1; i <= 4; i++ {
		id, token := c.register("Usuario "+strconv.Itoa(i), "usuario"+strconv.Itoa(i)+"@example.com")
		tokens[id] = token
	}
	if len(tokens) != 4 || tokens[3] == "" || tokens[4] == "" {
		t.Fatalf("expected principals 1..4, got %v", tokens)
	}

	t.Run("post owner comes from the principal", func(t *testing.T) {
		token := tokens[3]

		w, env := c.do(http.MethodPost, "/posts", token, map[string]any{
			"titulo":      "Mi primer post",
			"descripcion": "contenido",
			"user_id":     77,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}

		p := decodeData[postBody](t, env)
		if p.UserID != 3 {
			t.Fatalf("data.user_id = %d, want 3", p.UserID)
		}

		// the owner can read it with 200, a different principal gets 404
		w, _ = c.do(http.MethodGet, "/posts/"+strconv.FormatInt(p.ID, 10), token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("owner show: got %d", w.Code)
		}

		other := tokens[4]
		w, env = c.do(http.MethodGet, "/posts/"+strconv.FormatInt(p.ID, 10), other, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("other show: got %d", w.Code)
		}
		if env.Status != "error" || env.Message != "Post no encontrado" {
			t.Fatalf("unexpected envelope %+v", env)
		}

		w, _ = c.do(http.MethodPut, "/posts/"+strconv.FormatInt(p.ID, 10), other, map[string]string{"titulo": "x", "descripcion": "y"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("other update: got %d", w.Code)
		}

		w, _ = c.do(http.MethodDelete, "/posts/"+strconv.FormatInt(p.ID, 10), other, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("other delete: got %d", w.Code)
		}

		w, env = c.do(http.MethodGet, "/posts", other, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("other list: got %d", w.Code)
		}
		if list := decodeData[[]postBody](t, env); len(list) != 0 {
			t.Fatalf("other principal sees %d posts", len(list))
		}

		w, env = c.do(http.MethodPatch, "/posts/"+strconv.FormatInt(p.ID, 10), token, map[string]string{"titulo": "Editado", "descripcion": "nuevo"})
		if w.Code != http.StatusOK {
			t.Fatalf("owner update: got %d", w.Code)
		}
		if up := decodeData[postBody](t, env); up.Titulo != "Editado" || up.UserID != 3 {
			t.Fatalf("unexpected update result %+v", up)
		}

		w, env = c.do(http.MethodDelete, "/posts/"+strconv.FormatInt(p.ID, 10), token, nil)
		if w.Code != http.StatusOK || env.Message != "Post eliminado" {
			t.Fatalf("owner delete: got %d %+v", w.Code, env)
		}

		w, _ = c.do(http.MethodDelete, "/posts/"+strconv.FormatInt(p.ID, 10), token, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("repeated delete: got %d", w.Code)
		}
	})

	t.Run("forged tokens are rejected", func(t *testing.T) {
		forged := auth.NewManager("another-secret", time.Hour, time.Hour)
		w, _ := c.do(http.MethodGet, "/posts", tokenFor(t, forged, 3), nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d", w.Code)
		}

		// a genuine token for a principal with no posts still lists nothing
		w, env := c.do(http.MethodGet, "/posts", tokenFor(t, jwt, 1), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
		if list := decodeData[[]postBody](t, env); len(list) != 0 {
			t.Fatalf("expected no posts, got %d", len(list))
		}
	})

	t.Run("requests without a principal are rejected", func(t *testing.T) {
		for _, path := range []string{"/posts", "/users", "/user"} {
			w, env := c.do(http.MethodGet, path, "", nil)
			if w.Code != http.StatusUnauthorized || env.Message != "No autenticado" {
				t.Fatalf("%s: got %d %+v", path, w.Code, env)
			}
		}
	})

	t.Run("anonymous requests get 401 before body checks", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("titulo=x"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("a deleted principal can no longer act", func(t *testing.T) {
		id, token := c.register("Efímero", "efimero@example.com")

		w, env := c.do(http.MethodDelete, "/users/"+strconv.FormatInt(id, 10), token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("self delete: got %d %+v", w.Code, env)
		}

		w, env = c.do(http.MethodPost, "/posts", token, map[string]string{"titulo": "huérfano", "descripcion": "sin dueño"})
		if w.Code != http.StatusUnauthorized || env.Message != "No autenticado" {
			t.Fatalf("post after delete: got %d %+v", w.Code, env)
		}

		w, _ = c.do(http.MethodGet, "/user", token, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("me after delete: got %d", w.Code)
		}
	})

	t.Run("user lifecycle", func(t *testing.T) {
		token := tokens[1]

		w, env := c.do(http.MethodPost, "/users", token, map[string]string{
			"name":     "Juan",
			"email":    "juan@example.com",
			"password": "secret123",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
		}
		juan := decodeData[userBody](t, env)

		hash := hashOf(t, "juan@example.com")
		if hash == "secret123" {
			t.Fatalf("password stored in plaintext")
		}
		if err := security.CheckPassword(hash, "secret123"); err != nil {
			t.Fatalf("stored hash does not verify: %v", err)
		}

		w, env = c.do(http.MethodPost, "/users", token, map[string]string{
			"name":     "Otro Juan",
			"email":    "juan@example.com",
			"password": "secret123",
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("duplicate: got %d", w.Code)
		}
		if len(env.Errors) == 0 || env.Errors[0].Field != "email" {
			t.Fatalf("duplicate should flag email: %+v", env.Errors)
		}

		id := strconv.FormatInt(juan.ID, 10)

		w, env = c.do(http.MethodPatch, "/users/"+id, token, map[string]string{"name": "Juanito"})
		if w.Code != http.StatusOK {
			t.Fatalf("update: got %d body=%s", w.Code, w.Body.String())
		}
		updated := decodeData[userBody](t, env)
		if updated.Name != "Juanito" || updated.Email != "juan@example.com" {
			t.Fatalf("partial update changed other fields: %+v", updated)
		}
		if hashOf(t, "juan@example.com") != hash {
			t.Fatalf("password hash changed without a password in the request")
		}

		w, env = c.do(http.MethodDelete, "/users/"+id, token, nil)
		if w.Code != http.StatusOK || env.Message != "Usuario eliminado correctamente" {
			t.Fatalf("delete: got %d %+v", w.Code, env)
		}

		w, env = c.do(http.MethodGet, "/users/"+id, token, nil)
		if w.Code != http.StatusNotFound || env.Message != "Usuario no encontrado" {
			t.Fatalf("show after delete: got %d %+v", w.Code, env)
		}

		w, _ = c.do(http.MethodDelete, "/users/"+id, token, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("repeated delete: got %d", w.Code)
		}
	})
}
