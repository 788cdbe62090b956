package webapp

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/squeakhq/squeakd/csrf"
	"github.com/squeakhq/squeakd/internal/logutil"
)

// csrfField is the form field state-changing requests must carry.
const csrfField = "csrftoken"

// RequestLog tags every request with an id and puts a request-scoped logger
// into the context. It runs first so every later stage logs with the same id.
func RequestLog(base zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := base.With().
			Str("req.id", uuid.NewString()).
			Str("req.method", r.Method).
			Str("req.path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(logutil.WithLogger(r.Context(), logger)))
	})
}

// Authenticate resolves the session cookie to an identity on the request
// context. It never rejects: an invalid or expired session is a normal
// condition and the request continues as anonymous.
func Authenticate(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.Resolve(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity guards routes that only make sense with an established
// session.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFProtect validates the submitted anti-forgery token before a
// state-changing handler runs. Without a session there is nothing to forge
// against, so the caller is sent back to the start page; with a session, a
// bad token is a hard 403.
func CSRFProtect(codec *csrf.Codec, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if err := codec.Verify(r.Context(), r.PostFormValue(csrfField), id.SessionID, time.Now()); err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
