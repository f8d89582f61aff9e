package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func signedIn(a *Admin) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), a)))
		})
	}
}

func serve(repo Repository, a *Admin, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(NewService(repo, &recordingPublisher{})).RegisterRoutes(r, transport.Guards{Admin: signedIn(a)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandler_Verify(t *testing.T) {
	rec := serve(new(MockRepository), &Admin{ID: 1, Username: "root", SuperAdmin: true}, http.MethodPost, "/api/auth/verify", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"Super Admin"`)
}

func TestHandler_Create(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindByEmail", mock.Anything, "ops@example.com").Return(&Admin{ID: 2}, nil)

	rec := serve(repo, &Admin{ID: 1, SuperAdmin: true}, http.MethodPost, "/api/admin",
		`{"email":"ops@example.com","name":"Ops","username":"ops"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_Delete(t *testing.T) {
	repo := new(MockRepository)
	me := &Admin{ID: 1, SuperAdmin: true}

	assert.Equal(t, http.StatusForbidden, serve(repo, me, http.MethodDelete, "/api/admin/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(repo, me, http.MethodDelete, "/api/admin/abc", "").Code)

	repo.On("Delete", mock.Anything, int64(7)).Return(nil)
	assert.Equal(t, http.StatusOK, serve(repo, me, http.MethodDelete, "/api/admin/7", "").Code)
}

func TestHandler_List(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListRegular", mock.Anything).Return([]Admin{{ID: 2, Username: "ops"}}, nil)

	rec := serve(repo, &Admin{ID: 1, SuperAdmin: true}, http.MethodGet, "/api/admin", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"ops"`)
}
