package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	zxcvbn "github.com/ccojocar/zxcvbn-go"

	"github.com/lookout-monitor/lookout/internal/logger"
)

const weakPasswordScoreThreshold = 3

// BasicAuth guards every route behind a single user:pass credential. Both
// sides are hashed before comparison so input length never leaks through
// the timing of the check.
func BasicAuth(credential string) func(http.Handler) http.Handler {
	wantUser, wantPass, _ := strings.Cut(credential, ":")
	wantUserHash := sha256.Sum256([]byte(wantUser))
	wantPassHash := sha256.Sum256([]byte(wantPass))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if ok {
				userHash := sha256.Sum256([]byte(user))
				passHash := sha256.Sum256([]byte(pass))

				userMatch := subtle.ConstantTimeCompare(userHash[:], wantUserHash[:]) == 1
				passMatch := subtle.ConstantTimeCompare(passHash[:], wantPassHash[:]) == 1

				if userMatch && passMatch {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="lookout", charset="UTF-8"`)
			http.Error(w, "Unauthorised", http.StatusUnauthorized)
		})
	}
}

// WarnIfWeakCredential scores the configured password at startup so weak
// protection shows up in the log rather than in an audit.
func WarnIfWeakCredential(credential string, log logger.StyledLogger) {
	_, pass, ok := strings.Cut(credential, ":")
	if !ok || pass == "" {
		log.Warn("Password protection configured without a password, every request will be rejected")
		return
	}

	result := zxcvbn.PasswordStrength(pass, nil)
	if result.Score < weakPasswordScoreThreshold {
		log.Warn("Status API password is weak",
			"score", result.Score,
			"crack_time", result.CrackTimeDisplay)
	}
}
