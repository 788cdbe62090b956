package webapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/internal/logutil"
)

// whoami reports the authentication state of the caller. Rendering the board
// itself belongs to the front end; this probe is all it needs to decide
// between the start page and the main page.
func (a *App) whoami(w http.ResponseWriter, r *http.Request) {
	if id, ok := IdentityFrom(r.Context()); ok {
		writeJSON(w, map[string]interface{}{"authenticated": true, "username": id.Username})
		return
	}
	writeJSON(w, map[string]interface{}{"authenticated": false})
}

// signin verifies the submitted credentials and opens a session. Bad
// credentials are an expected outcome, not an error: the answer is 200 with
// a false body.
func (a *App) signin(w http.ResponseWriter, r *http.Request) {
	username, password := r.PostFormValue("username"), r.PostFormValue("password")
	if username == "" || password == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ok, err := a.cfg.Params.Authenticate(r.Context(), a.cfg.Credentials, username, password)
	if err != nil {
		// Hide the cause from the caller.
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Signin failed with an unexpected error")
		writeJSON(w, false)
		return
	}
	if !ok {
		writeJSON(w, false)
		return
	}
	a.establish(w, r, username)
}

// signup creates the account and signs the new user straight in. Unlike
// token failures, signup failures concern the user's own input and are
// reported with their reason.
func (a *App) signup(w http.ResponseWriter, r *http.Request) {
	username, password := r.PostFormValue("username"), r.PostFormValue("password")
	err := a.cfg.Params.CreateAccount(r.Context(), a.cfg.Credentials, username, password)
	switch {
	case errors.Is(err, credential.ErrInvalidUsername), errors.Is(err, credential.ErrUsernameTaken):
		writeJSON(w, map[string]string{"reason": "username"})
	case errors.Is(err, credential.ErrWeakPassword):
		writeJSON(w, map[string]string{"reason": "password"})
	case err != nil:
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Signup failed with an unexpected error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	default:
		a.establish(w, r, username)
	}
}

func (a *App) establish(w http.ResponseWriter, r *http.Request, username string) {
	if err := a.cfg.Auth.Establish(w, r, username); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to establish session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (a *App) signout(w http.ResponseWriter, r *http.Request) {
	a.cfg.Auth.Terminate(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// csrfToken hands the established session a fresh anti-forgery token for the
// front end to embed in its forms.
func (a *App) csrfToken(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	token, err := a.cfg.CSRF.Issue(r.Context(), id.SessionID, a.now().Add(a.cfg.CSRFTTL))
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("Unable to issue CSRF token")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
