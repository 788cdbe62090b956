package webapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/csrf"
	"github.com/squeakhq/squeakd/internal/testutil"
	"github.com/squeakhq/squeakd/session"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

var (
	testParams  = credential.Params{Iterations: 32, KeyLength: 64}
	testSecret  = []byte("0123456789abcdef0123456789abcdef")
	testCSRFKey = []byte("abcdef0123456789abcdef0123456789")
)

func jsonDecode(s string, v interface{}) error {
	return json.Unmarshal([]byte(s), v)
}

func statelessAuth(t *testing.T) *StatelessAuthenticator {
	t.Helper()
	codec, err := session.NewCodec(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return NewStatelessAuthenticator(codec, BindUsername, time.Minute, false)
}

func statefulAuth(t *testing.T) (*StatefulAuthenticator, *session.Manager) {
	t.Helper()
	store, err := session.NewMemoryStore(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	manager := session.NewManager(store, time.Minute)
	return NewStatefulAuthenticator(manager, false), manager
}

func testHandler(t *testing.T, auth Authenticator) http.Handler {
	t.Helper()
	codec, err := csrf.NewCodec(testCSRFKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	creds, cleanup := testutil.AcquireCredentialStore(context.Background(), t)
	t.Cleanup(cleanup)
	app := New(Config{
		Credentials: creds,
		Params:      testParams,
		Auth:        auth,
		CSRF:        codec,
		CSRFTTL:     time.Minute,
	})
	return app.Handler(zerolog.Nop())
}

func TestAnonymousWhoami(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	apitest.New().
		Handler(handler).
		Get("/").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.authenticated`, false)).
		End()
}

func TestSignupPolicyErrors(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	apitest.New().
		Handler(handler).
		Post("/signup").
		FormData("username", "ab").
		FormData("password", "S3cureP@ss").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.reason`, "username")).
		End()
	apitest.New().
		Handler(handler).
		Post("/signup").
		FormData("username", "alice").
		FormData("password", "alicepass1").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.reason`, "password")).
		End()
}

func TestSigninRequiresBothFields(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	apitest.New().
		Handler(handler).
		Post("/signin").
		FormData("username", "alice").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestAnonymousSqueakRedirectsToStart(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	apitest.New().
		Handler(handler).
		Post("/squeak").
		FormData("squeak", "hello").
		Expect(t).
		Status(http.StatusFound).
		End()
}

// signup posts the form and returns the cookies the server set.
func signup(t *testing.T, handler http.Handler, username, password string) []*http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup failed with status %v: %v", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "true") {
		t.Fatalf("signup did not succeed: %v", rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("successful signup must set session cookies")
	}
	return cookies
}

func get(handler http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func postForm(handler http.Handler, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSignupYieldsValidSession(t *testing.T) {
	for _, mode := range []string{"stateless", "stateful"} {
		t.Run(mode, func(t *testing.T) {
			var auth Authenticator
			if mode == "stateless" {
				auth = statelessAuth(t)
			} else {
				auth, _ = statefulAuth(t)
			}
			handler := testHandler(t, auth)
			cookies := signup(t, handler, "alice", "S3cureP@ss")

			rec := get(handler, "/", cookies)
			if rec.Code != http.StatusOK {
				t.Fatalf("whoami failed with status %v", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, `"authenticated":true`) || !strings.Contains(body, `"username":"alice"`) {
				t.Fatalf("signup must immediately yield a valid session, got %v", body)
			}
		})
	}
}

func TestSigninRejectsBadPassword(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	signup(t, handler, "alice", "S3cureP@ss")

	rec := postForm(handler, "/signin", url.Values{"username": {"alice"}, "password": {"wrongpass"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bad credentials answer 200, got %v", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "false" {
		t.Fatalf("bad credentials answer false, got %v", rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("bad credentials must not set cookies")
	}
}

func TestSignoutRevokesStatefulSession(t *testing.T) {
	auth, _ := statefulAuth(t)
	handler := testHandler(t, auth)
	cookies := signup(t, handler, "alice", "S3cureP@ss")

	rec := postForm(handler, "/signout", url.Values{}, cookies)
	if rec.Code != http.StatusFound {
		t.Fatalf("signout redirects to start, got %v", rec.Code)
	}

	// Replaying the old cookie must not work: the record is gone.
	rec = get(handler, "/", cookies)
	if !strings.Contains(rec.Body.String(), `"authenticated":false`) {
		t.Fatalf("a signed-out session must not resolve, got %v", rec.Body.String())
	}
}

func TestSqueakPipeline(t *testing.T) {
	auth, _ := statefulAuth(t)
	handler := testHandler(t, auth)
	cookies := signup(t, handler, "alice", "S3cureP@ss")

	// No token: hard 403, the session exists and must be protected.
	rec := postForm(handler, "/squeak", url.Values{"squeak": {"hi"}}, cookies)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("state change without CSRF token must be forbidden, got %v", rec.Code)
	}

	// Fetch a token and replay the post with it.
	rec = get(handler, "/csrftoken", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrftoken failed with status %v", rec.Code)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := jsonDecode(rec.Body.String(), &payload); err != nil {
		t.Fatal(err)
	}
	rec = postForm(handler, "/squeak", url.Values{"squeak": {"hi"}, "csrftoken": {payload.Token}}, cookies)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid CSRF token must let the squeak through, got %v", rec.Code)
	}

	// A token minted for one session must not validate for another.
	otherCookies := signup(t, handler, "mallory", "S3cureP@ss")
	rec = postForm(handler, "/squeak", url.Values{"squeak": {"hi"}, "csrftoken": {payload.Token}}, otherCookies)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("a CSRF token from another session must be forbidden, got %v", rec.Code)
	}
}

func TestCSRFTokenRequiresSession(t *testing.T) {
	handler := testHandler(t, statelessAuth(t))
	apitest.New().
		Handler(handler).
		Get("/csrftoken").
		Expect(t).
		Status(http.StatusForbidden).
		End()
}
