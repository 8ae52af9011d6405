package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	protected := AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(email))
	}))

	valid := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
		Subject:   "analyst@bank.ru",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{
		Subject:   "analyst@bank.ru",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	foreign := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
		Subject:   "analyst@bank.ru",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	noExpiry := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.RegisteredClaims{Subject: "analyst@bank.ru"})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "analyst@bank.ru"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "analyst@bank.ru"},
		{"missing header", "", http.StatusUnauthorized, `{"error":"missing authorization header"}`},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `{"error":"invalid authentication scheme"}`},
		{"no token", "Bearer", http.StatusUnauthorized, `{"error":"invalid authentication scheme"}`},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"no expiry", "Bearer " + noExpiry, http.StatusUnauthorized, `{"error":"invalid token"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/clients", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rr.Body.String())
			} else {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}
}

func TestUserFromContextEmpty(t *testing.T) {
	_, ok := UserFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := mux.NewRouter()
	r.Use(RequestLogger(log))
	r.HandleFunc("/clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clients/cli_1", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/clients/{id}", entry.Data["path"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
}
