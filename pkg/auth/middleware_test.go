package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequireActor_ResolvesRoleFromHeaders(t *testing.T) {
	m := NewMiddleware(zap.NewNop())
	userID := uuid.New()

	var got Actor
	handler := m.RequireActor(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		require.True(t, ok)
		got = actor
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/engagements", nil)
	req.Header.Set(HeaderUserID, userID.String())
	req.Header.Set(HeaderGroups, " Control Reviewer , Billing ")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, RoleControlReviewer, got.Role)
}

func TestRequireActor_SuperuserHeader(t *testing.T) {
	m := NewMiddleware(zap.NewNop())

	var got Actor
	handler := m.RequireActor(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetActor(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, uuid.NewString())
	req.Header.Set(HeaderGroups, "Client")
	req.Header.Set(HeaderSuperuser, "TRUE")
	handler(httptest.NewRecorder(), req)

	assert.Equal(t, RoleAdmin, got.Role)
}

func TestRequireActor_MissingOrBadIdentity(t *testing.T) {
	m := NewMiddleware(zap.NewNop())
	handler := m.RequireActor(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without identity")
	})

	for _, header := range []string{"", "not-a-uuid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(HeaderUserID, header)
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}
