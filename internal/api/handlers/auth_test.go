package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func newOAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestGoogleSignInFlow(t *testing.T) {
	tokenSrv := newOAuthServer(t)
	store := &fakeStore{userID: uuid.MustParse("11111111-2222-3333-4444-555555555555")}
	h := NewHandler(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenSrv.URL},
	}, nil, store, "http://frontend.test/")
	h.FetchUser = func(ctx context.Context, token *oauth2.Token) (*UserProfile, error) {
		if token.AccessToken != "tok" {
			t.Errorf("unexpected token %q", token.AccessToken)
		}
		return &UserProfile{GoogleID: "g-1", Email: "ada@example.com", Name: "Ada"}, nil
	}

	app := httptest.NewServer(newRouter(h))
	defer app.Close()
	browser := newBrowser(t)

	resp, err := browser.Get(app.URL + "/login?next=/quiz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to Google, got %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || loc.Host != "accounts.example.com" {
		t.Fatalf("unexpected redirect %q", resp.Header.Get("Location"))
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("missing state parameter")
	}

	resp, err = browser.Get(app.URL + "/auth/google/callback?state=wrong&code=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched state, got %d", resp.StatusCode)
	}

	resp, err = browser.Get(app.URL + "/auth/google/callback?state=" + url.QueryEscape(state) + "&code=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect after callback, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "http://frontend.test/quiz" {
		t.Errorf("unexpected post-login redirect %q", got)
	}
	if len(store.users) != 1 || store.users[0].Email != "ada@example.com" {
		t.Errorf("user not stored: %+v", store.users)
	}

	resp, err = browser.Get(app.URL + "/api/auth/status")
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		Authenticated bool        `json:"authenticated"`
		User          UserProfile `json:"user"`
	}
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !status.Authenticated || status.User.Email != "ada@example.com" {
		t.Errorf("unexpected status %d %+v", resp.StatusCode, status)
	}

	resp, err = browser.Post(app.URL+"/logout", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout failed with %d", resp.StatusCode)
	}

	resp, err = browser.Get(app.URL + "/api/auth/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestHandleSignup(t *testing.T) {
	r := newRouter(NewHandler(nil, nil, nil, ""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/signup/?next=/", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?next=%2F" {
		t.Errorf("unexpected redirect %q", got)
	}
}

func TestHandleGoogleLogin_NotConfigured(t *testing.T) {
	r := newRouter(NewHandler(nil, nil, nil, ""))
	for _, path := range []string{"/login", "/auth/google/callback?state=x"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestRedirectTarget(t *testing.T) {
	h := &Handler{}
	if got := h.redirectTarget("/quiz"); got != "/quiz" {
		t.Errorf("expected relative redirect, got %q", got)
	}
	h.FrontendURL = "https://quiz.example.com/"
	if got := h.redirectTarget("//evil"); got != "https://quiz.example.com/" {
		t.Errorf("unexpected redirect %q", got)
	}
}
