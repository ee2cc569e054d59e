package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, credentials string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if credentials != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credentials)))
	}

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr
}

func TestBasicAuth_AllowsValidCredentials(t *testing.T) {
	rr := serve(t, BasicAuth("EscrowApp", "EscrowKey001", ""), "EscrowApp:EscrowKey001")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBasicAuth_RejectsInvalidCredentials(t *testing.T) {
	rr := serve(t, BasicAuth("EscrowApp", "EscrowKey001", ""), "EscrowApp:WrongKey")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestBasicAuth_RejectsMissingCredentials(t *testing.T) {
	rr := serve(t, BasicAuth("EscrowApp", "EscrowKey001", ""), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBasicAuth_AcceptsBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("EscrowKey001"), bcrypt.MinCost)
	require.NoError(t, err)

	mw := BasicAuth("EscrowApp", "", string(hash))
	assert.Equal(t, http.StatusOK, serve(t, mw, "EscrowApp:EscrowKey001").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, "EscrowApp:WrongKey").Code)
}

func TestBasicAuth_MissingConfigurationIsServerError(t *testing.T) {
	rr := serve(t, BasicAuth("EscrowApp", "", ""), "EscrowApp:anything")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
