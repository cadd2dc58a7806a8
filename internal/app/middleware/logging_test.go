package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lookout-monitor/lookout/internal/logger"
	"github.com/lookout-monitor/lookout/internal/util"
)

func newTestLogger() logger.StyledLogger {
	loggerCfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(loggerCfg)
	return logger.NewPlainStyledLogger(log)
}

func TestRequestLoggingPropagatesContext(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetLogger(r.Context()) == nil {
			t.Error("expected context logger to be available")
			return
		}
		if GetRequestID(r.Context()) == "" {
			t.Error("expected request ID to be available")
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := RequestLogging(newTestLogger(), ProxyTrust{})(testHandler)

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("X-Request-ID", "test-request-123")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Lookout-Request-ID"); got != "test-request-123" {
		t.Errorf("expected inbound request ID to be echoed, got %q", got)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestRequestLoggingGeneratesRequestID(t *testing.T) {
	handler := RequestLogging(newTestLogger(), ProxyTrust{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/data", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Lookout-Request-ID") == "" {
		t.Error("expected a generated request ID header")
	}
}

func TestAccessLoggingPassesResponseThrough(t *testing.T) {
	handler := AccessLogging(newTestLogger(), ProxyTrust{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("access log test"))
	}))

	req := httptest.NewRequest("GET", "/api/history/web?region=syd", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "access log test" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestProxyTrustClientIP(t *testing.T) {
	trustedCIDRs, err := util.ParseTrustedCIDRs([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.RemoteAddr = "10.1.2.3:58000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	trusting := ProxyTrust{TrustHeaders: true, TrustedCIDRs: trustedCIDRs}
	if got := trusting.clientIP(req); got != "203.0.113.9" {
		t.Errorf("expected forwarded address from trusted proxy, got %q", got)
	}

	untrusting := ProxyTrust{}
	if got := untrusting.clientIP(req); got != "10.1.2.3" {
		t.Errorf("expected socket address without trust, got %q", got)
	}
}

func TestGetLoggerWithoutContext(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("expected default logger when no logger in context")
	}
}

func TestGetRequestIDWithoutContext(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty request ID when not in context, got %s", got)
	}
}
