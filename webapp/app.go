package webapp

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/csrf"
)

type (
	// Config wires the application together. Squeak is the downstream
	// handler for the protected message-board route; the board itself lives
	// outside this repo, so a nil Squeak gets a no-op stand-in.
	Config struct {
		Credentials credential.Store
		Params      credential.Params
		Auth        Authenticator
		CSRF        *csrf.Codec
		CSRFTTL     time.Duration
		Squeak      http.Handler
	}

	// App owns the route table: the authentication endpoints plus the
	// middleware pipeline every protected route passes through.
	App struct {
		cfg Config
		now func() time.Time
	}
)

func New(cfg Config) *App {
	if cfg.Squeak == nil {
		cfg.Squeak = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	return &App{cfg: cfg, now: time.Now}
}

// Handler assembles the router. Every route goes through the same pipeline,
// request logging then authentication, and the state-changing squeak route
// additionally passes the CSRF check before its handler runs.
func (a *App) Handler(base zerolog.Logger) http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/", http.HandlerFunc(a.whoami))
	router.Handler(http.MethodPost, "/signin", http.HandlerFunc(a.signin))
	router.Handler(http.MethodPost, "/signup", http.HandlerFunc(a.signup))
	router.Handler(http.MethodPost, "/signout", http.HandlerFunc(a.signout))
	router.Handler(http.MethodGet, "/csrftoken", RequireIdentity(http.HandlerFunc(a.csrfToken)))
	router.Handler(http.MethodPost, "/squeak", CSRFProtect(a.cfg.CSRF, a.cfg.Squeak))
	return RequestLog(base, Authenticate(a.cfg.Auth, router))
}
