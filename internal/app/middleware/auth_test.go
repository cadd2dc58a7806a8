package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authProtected(t *testing.T, credential string) http.Handler {
	t.Helper()
	return BasicAuth(credential)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("secret"))
	}))
}

func TestBasicAuthAcceptsValidCredential(t *testing.T) {
	handler := authProtected(t, "watcher:s3cr3t-passphrase")

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("watcher", "s3cr3t-passphrase")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with valid credentials, got %d", rr.Code)
	}
	if rr.Body.String() != "secret" {
		t.Errorf("expected handler body, got %q", rr.Body.String())
	}
}

func TestBasicAuthRejectsWrongPassword(t *testing.T) {
	handler := authProtected(t, "watcher:s3cr3t-passphrase")

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("watcher", "wrong")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong password, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge header")
	}
}

func TestBasicAuthRejectsMissingCredentials(t *testing.T) {
	handler := authProtected(t, "watcher:s3cr3t-passphrase")

	req := httptest.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rr.Code)
	}
}

func TestBasicAuthRejectsWrongUser(t *testing.T) {
	handler := authProtected(t, "watcher:s3cr3t-passphrase")

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("intruder", "s3cr3t-passphrase")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong user, got %d", rr.Code)
	}
}

func TestWarnIfWeakCredentialDoesNotPanic(t *testing.T) {
	log := newTestLogger()

	WarnIfWeakCredential("user:password", log)
	WarnIfWeakCredential("user:", log)
	WarnIfWeakCredential("no-separator", log)
	WarnIfWeakCredential("user:correct-horse-battery-staple-9921", log)
}
