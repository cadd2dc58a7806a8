package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// Error categories surfaced to users and written onto check records. The
// strings are part of the stored format; notification dedup and the incident
// log both key off them, so keep them stable.
const (
	errDNSFailed         = "DNS resolution failed"
	errHostNotFound      = "Host not found"
	errConnectionRefused = "Connection refused"
	errRequestTimeout    = "Request timeout"
	errTLS               = "TLS/SSL error"
	errConnectionFailed  = "Connection failed: "
)

// Categorise folds a transport error into one of the fixed category strings.
func Categorise(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return errHostNotFound
		case dnsErr.IsTimeout:
			return errRequestTimeout
		default:
			return errDNSFailed
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errRequestTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errRequestTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return errConnectionRefused
	}

	if isTLSError(err) {
		return errTLS
	}

	return errConnectionFailed + rootCause(err)
}

func isTLSError(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	if errors.As(err, &certErr) || errors.As(err, &recordErr) ||
		errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) {
		return true
	}
	// Handshake alerts arrive without a distinct type; match the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate")
}

// rootCause walks to the innermost error so the fallback message skips the
// url.Error and OpError wrapping noise.
func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func unexpectedStatusError(code int, expected []int) string {
	if len(expected) == 0 {
		return fmt.Sprintf("HTTP %d (expected 2xx)", code)
	}
	parts := make([]string, len(expected))
	for i, c := range expected {
		parts[i] = strconv.Itoa(c)
	}
	return fmt.Sprintf("HTTP %d (expected %s)", code, strings.Join(parts, ", "))
}

func missingKeywordError(keyword string) string {
	return "Response missing required keyword: " + keyword
}

func forbiddenKeywordError(keyword string) string {
	return "Response contains forbidden keyword: " + keyword
}

func jsonPathError(path, got, want string) string {
	if want == "" {
		return fmt.Sprintf("Response JSON path not found: %s", path)
	}
	return fmt.Sprintf("Response JSON mismatch at %s: got %q, expected %q", path, got, want)
}
