package webapp

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/squeakhq/squeakd/internal/logutil"
	"github.com/squeakhq/squeakd/session"
)

const (
	// Stateless mode cookies (the token plus the username the fingerprint
	// binds to).
	sessionCookieName  = "sessionid"
	usernameCookieName = "username"
	// Stateful mode cookie, carrying a small JSON structure.
	statefulCookieName = "squeak-session"
)

type (
	// Authenticator resolves inbound cookies to an identity and manages the
	// cookie lifecycle around signin and signout. Exactly one implementation
	// is active per server instance, selected by deployment mode.
	Authenticator interface {
		// Resolve never fails: an absent, malformed, expired or forged
		// cookie simply yields an anonymous request.
		Resolve(r *http.Request) (Identity, bool)
		// Establish opens a session for username and sets its cookies.
		Establish(w http.ResponseWriter, r *http.Request, username string) error
		// Terminate ends the session (deleting the server-side record where
		// one exists) and clears the cookies.
		Terminate(w http.ResponseWriter, r *http.Request)
	}

	// BindingInput produces the context a stateless token is fingerprinted
	// against. One policy is chosen at startup and stays fixed for the life
	// of the server.
	BindingInput func(r *http.Request, username string) string
)

// BindUsername fingerprints tokens against the username alone. Sessions
// survive address changes (NAT, proxies, mobile networks), at the cost that a
// stolen cookie pair replays from anywhere until it expires.
func BindUsername(_ *http.Request, username string) string {
	return username
}

// BindClient fingerprints tokens against the client address, User-Agent and
// username. A lifted cookie stops working on another host, but legitimate
// sessions break whenever the client's apparent address changes. The username
// is part of the input so that rewriting the username cookie invalidates the
// token rather than renaming the session.
func BindClient(r *http.Request, username string) string {
	return clientAddr(r) + r.UserAgent() + username
}

// cookieValue reads a cookie and undoes the percent-encoding Establish
// applies. Missing or unreadable cookies mean anonymous, never an error.
func cookieValue(r *http.Request, name string) (string, bool) {
	raw, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	val, err := url.QueryUnescape(raw.Value)
	if err != nil {
		return "", false
	}
	return val, true
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type (
	// StatelessAuthenticator recognizes clients purely from the signed token
	// cookie; no server-side record exists, so nothing needs to be looked up
	// or deleted, and nothing can be revoked before expiry.
	StatelessAuthenticator struct {
		codec   *session.Codec
		binding BindingInput
		ttl     time.Duration
		secure  bool
		now     func() time.Time
	}
)

func NewStatelessAuthenticator(codec *session.Codec, binding BindingInput, ttl time.Duration, secureCookies bool) *StatelessAuthenticator {
	if binding == nil {
		binding = BindUsername
	}
	return &StatelessAuthenticator{
		codec:   codec,
		binding: binding,
		ttl:     ttl,
		secure:  secureCookies,
		now:     time.Now,
	}
}

func (a *StatelessAuthenticator) Resolve(r *http.Request) (Identity, bool) {
	token, ok := cookieValue(r, sessionCookieName)
	if !ok {
		return Identity{}, false
	}
	username, ok := cookieValue(r, usernameCookieName)
	if !ok {
		return Identity{}, false
	}
	if err := a.codec.Verify(token, a.binding(r, username), a.now()); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Debug().Str("token.digest", logutil.TokenDigest(token)).Msg("Session token did not verify, continuing as anonymous")
		return Identity{}, false
	}
	return Identity{SessionID: token, Username: username}, true
}

func (a *StatelessAuthenticator) Establish(w http.ResponseWriter, r *http.Request, username string) error {
	token := a.codec.Issue(a.binding(r, username), a.now().Add(a.ttl))
	http.SetCookie(w, a.cookie(sessionCookieName, token, a.ttl))
	http.SetCookie(w, a.cookie(usernameCookieName, username, a.ttl))
	return nil
}

func (a *StatelessAuthenticator) Terminate(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, a.cookie(sessionCookieName, "", -time.Hour))
	http.SetCookie(w, a.cookie(usernameCookieName, "", -time.Hour))
}

func (a *StatelessAuthenticator) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  a.now().Add(ttl),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type (
	// StatefulAuthenticator checks the cookie's session id against the
	// server-side session store. Deleting the record revokes the session at
	// once, which is what signout does.
	StatefulAuthenticator struct {
		sessions *session.Manager
		secure   bool
		now      func() time.Time
	}

	statefulCookie struct {
		SessionID string `json:"sessionid"`
		Username  string `json:"username"`
	}
)

func NewStatefulAuthenticator(sessions *session.Manager, secureCookies bool) *StatefulAuthenticator {
	return &StatefulAuthenticator{sessions: sessions, secure: secureCookies, now: time.Now}
}

func (a *StatefulAuthenticator) Resolve(r *http.Request) (Identity, bool) {
	sc, ok := a.parseCookie(r)
	if !ok {
		return Identity{}, false
	}
	active, err := a.sessions.IsActive(r.Context(), sc.SessionID)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("token.digest", logutil.TokenDigest(sc.SessionID)).Msg("Session store lookup failed, continuing as anonymous")
		return Identity{}, false
	}
	if !active {
		return Identity{}, false
	}
	return Identity{SessionID: sc.SessionID, Username: sc.Username}, true
}

func (a *StatefulAuthenticator) Establish(w http.ResponseWriter, r *http.Request, username string) error {
	id, err := a.sessions.Open(r.Context())
	if err != nil {
		return err
	}
	body, err := json.Marshal(statefulCookie{SessionID: id, Username: username})
	if err != nil {
		return err
	}
	http.SetCookie(w, a.cookie(string(body), a.sessions.TTL()))
	return nil
}

func (a *StatefulAuthenticator) Terminate(w http.ResponseWriter, r *http.Request) {
	if sc, ok := a.parseCookie(r); ok {
		if err := a.sessions.Close(r.Context(), sc.SessionID); err != nil {
			log := logutil.GetOrDefault(r.Context())
			log.Error().Err(err).Msg("Unable to close session, cookie cleared anyway")
		}
	}
	http.SetCookie(w, a.cookie("", -time.Hour))
}

func (a *StatefulAuthenticator) parseCookie(r *http.Request) (statefulCookie, bool) {
	val, ok := cookieValue(r, statefulCookieName)
	if !ok {
		return statefulCookie{}, false
	}
	var sc statefulCookie
	if err := json.Unmarshal([]byte(val), &sc); err != nil {
		return statefulCookie{}, false
	}
	if sc.SessionID == "" || sc.Username == "" {
		return statefulCookie{}, false
	}
	return sc, true
}

func (a *StatefulAuthenticator) cookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     statefulCookieName,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  a.now().Add(ttl),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
