package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "secret123", "secret123", true},
		{"different", "secret123", "secret456", false},
		{"different lengths", "short", "much-longer-string", false},
		{"both empty", "", "", true},
		{"one empty", "secret", "", false},
		{"case sensitive", "Secret", "secret", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeEqual(tt.a, tt.b))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc123", bearerToken("Bearer abc123"))
	assert.Equal(t, "abc123", bearerToken("abc123"))
	assert.Equal(t, "", bearerToken(""))
	// Bearer prefix is stripped only once
	assert.Equal(t, "Bearer abc", bearerToken("Bearer Bearer abc"))
}

func adminRequest(authorization string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/external/accounts/count", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func TestCheckAdminKey(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	tests := []struct {
		name       string
		auth       string
		wantOK     bool
		wantStatus int
	}{
		{"bearer form", "Bearer " + testAdminKey, true, http.StatusOK},
		{"raw form", testAdminKey, true, http.StatusOK},
		{"missing header", "", false, http.StatusUnauthorized},
		{"wrong key", "Bearer nope", false, http.StatusUnauthorized},
		{"wrong raw key", "nope", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ok := s.checkAdminKey(rec, adminRequest(tt.auth))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestCheckAdminKeyUnconfigured(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})
	s.cfg.Gateway.AdminKey = ""

	rec := httptest.NewRecorder()
	ok := s.checkAdminKey(rec, adminRequest("Bearer anything"))
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckAPIKeyDisabled(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})
	// No API key configured: everything passes
	rec := httptest.NewRecorder()
	assert.True(t, s.checkAPIKey(rec, adminRequest("")))
}

func TestCheckAPIKeyEnforced(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})
	s.cfg.Gateway.APIKey = "api-secret"

	rec := httptest.NewRecorder()
	assert.True(t, s.checkAPIKey(rec, adminRequest("Bearer api-secret")))

	rec = httptest.NewRecorder()
	assert.True(t, s.checkAPIKey(rec, adminRequest("api-secret")))

	rec = httptest.NewRecorder()
	assert.False(t, s.checkAPIKey(rec, adminRequest("Bearer wrong")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	assert.False(t, s.checkAPIKey(rec, adminRequest("")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
