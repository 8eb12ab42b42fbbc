package oauthlogin_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-legid-client/oauthlogin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "legid-web"
)

// fakeIDP is a token endpoint that enforces PKCE and signs ID tokens.
type fakeIDP struct {
	mu        sync.Mutex
	key       *rsa.PrivateKey
	challenge string
	nonce     string
	audience  string
	omitToken bool
	server    *httptest.Server
}

func (f *fakeIDP) expect(challenge, nonce string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge = challenge
	f.nonce = nonce
}

func (f *fakeIDP) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != f.challenge || r.PostForm.Get("code") != "good-code" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	aud := f.audience
	if aud == "" {
		aud = testClientID
	}
	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            aud,
		"sub":            "google-123",
		"email":          "a@b.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"nonce":          f.nonce,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	})
	signed, err := idToken.SignedString(f.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := map[string]any{
		"access_token": "provider-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !f.omitToken {
		body["id_token"] = signed
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type testFixture struct {
	idp      *fakeIDP
	provider *oauthlogin.Provider
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIDP{key: key}
	r := chi.NewRouter()
	r.Post("/token", idp.handleToken)
	idp.server = httptest.NewServer(r)
	t.Cleanup(idp.server.Close)

	verifier := oidc.NewVerifier(testIssuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: testClientID})

	provider, err := oauthlogin.NewGoogle(context.Background(), testClientID,
		oauthlogin.WithVerifier(verifier),
		oauthlogin.WithEndpoint(oauth2.Endpoint{
			AuthURL:   idp.server.URL + "/authorize",
			TokenURL:  idp.server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
	)
	require.NoError(t, err)
	return &testFixture{idp: idp, provider: provider}
}

// authorize plays the browser: it reads the authorization URL and primes
// the fake provider with the PKCE challenge and nonce it carries.
func (f *testFixture) authorize(t *testing.T, authURL string) url.Values {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("nonce"))
	f.idp.expect(q.Get("code_challenge"), q.Get("nonce"))
	return q
}

func TestFlow_Complete(t *testing.T) {
	t.Run("valid callback yields verified claims", func(t *testing.T) {
		f := setupTestFixture(t)
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")
		q := f.authorize(t, flow.AuthCodeURL())
		require.Equal(t, testClientID, q.Get("client_id"))
		require.Equal(t, "http://127.0.0.1:9999/callback", q.Get("redirect_uri"))
		require.Equal(t, flow.State(), q.Get("state"))

		res, err := flow.Complete(context.Background(), oauthlogin.Callback{State: flow.State(), Code: "good-code"})
		require.NoError(t, err)
		require.NotEmpty(t, res.IDToken)
		require.Equal(t, "provider-access", res.AccessToken)
		require.Equal(t, "google-123", res.Claims.Subject)
		require.Equal(t, "a@b.com", res.Claims.Email)
		require.True(t, res.Claims.EmailVerified)
		require.Equal(t, "Ada Lovelace", res.Claims.Name)
	})

	t.Run("state mismatch is rejected before exchange", func(t *testing.T) {
		f := setupTestFixture(t)
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")
		f.authorize(t, flow.AuthCodeURL())

		_, err := flow.Complete(context.Background(), oauthlogin.Callback{State: "forged", Code: "good-code"})
		require.ErrorIs(t, err, oauthlogin.InvalidStateErr)
	})

	t.Run("provider error is surfaced", func(t *testing.T) {
		f := setupTestFixture(t)
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")

		_, err := flow.Complete(context.Background(), oauthlogin.Callback{State: flow.State(), Error: "access_denied"})
		require.ErrorIs(t, err, oauthlogin.ProviderDeniedErr)
		require.Contains(t, err.Error(), "access_denied")
	})

	t.Run("nonce mismatch is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")
		q := f.authorize(t, flow.AuthCodeURL())
		f.idp.expect(q.Get("code_challenge"), "replayed-nonce")

		_, err := flow.Complete(context.Background(), oauthlogin.Callback{State: flow.State(), Code: "good-code"})
		require.ErrorIs(t, err, oauthlogin.InvalidNonceErr)
	})

	t.Run("wrong audience fails verification", func(t *testing.T) {
		f := setupTestFixture(t)
		f.idp.audience = "someone-else"
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")
		f.authorize(t, flow.AuthCodeURL())

		_, err := flow.Complete(context.Background(), oauthlogin.Callback{State: flow.State(), Code: "good-code"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "verify id token")
	})

	t.Run("missing id token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.idp.omitToken = true
		flow := f.provider.Begin("http://127.0.0.1:9999/callback")
		f.authorize(t, flow.AuthCodeURL())

		_, err := flow.Complete(context.Background(), oauthlogin.Callback{State: flow.State(), Code: "good-code"})
		require.ErrorIs(t, err, oauthlogin.MissingIDTokenErr)
	})

	t.Run("flows from one provider are independent", func(t *testing.T) {
		f := setupTestFixture(t)
		a := f.provider.Begin("http://127.0.0.1:9999/callback")
		b := f.provider.Begin("http://127.0.0.1:9999/callback")
		require.NotEqual(t, a.State(), b.State())

		f.authorize(t, a.AuthCodeURL())
		_, err := b.Complete(context.Background(), oauthlogin.Callback{State: b.State(), Code: "good-code"})
		require.Error(t, err)
	})
}

func TestProviders(t *testing.T) {
	t.Run("client id is required", func(t *testing.T) {
		_, err := oauthlogin.NewGoogle(context.Background(), "")
		require.ErrorIs(t, err, oauthlogin.MissingClientIDErr)
		_, err = oauthlogin.NewMicrosoft(context.Background(), "", "common")
		require.ErrorIs(t, err, oauthlogin.MissingClientIDErr)
	})

	t.Run("microsoft uses the tenant endpoints", func(t *testing.T) {
		p, err := oauthlogin.NewMicrosoft(context.Background(), "ms-client", "contoso")
		require.NoError(t, err)
		u, err := url.Parse(p.Begin("http://127.0.0.1:1/callback").AuthCodeURL())
		require.NoError(t, err)
		require.Equal(t, "login.microsoftonline.com", u.Host)
		require.Equal(t, "/contoso/oauth2/v2.0/authorize", u.Path)
	})
}

func TestCallbackServer(t *testing.T) {
	t.Run("delivers the first callback", func(t *testing.T) {
		s, err := oauthlogin.NewCallbackServer("127.0.0.1:0", zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		resp, err := http.Get(s.RedirectURL() + "?state=abc&code=xyz")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(s.RedirectURL() + "?state=second&code=other")
		require.NoError(t, err)
		_ = resp.Body.Close()

		cb, err := s.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, oauthlogin.Callback{State: "abc", Code: "xyz"}, cb)
	})

	t.Run("error callback reports failure page", func(t *testing.T) {
		s, err := oauthlogin.NewCallbackServer("127.0.0.1:0", zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		resp, err := http.Get(s.RedirectURL() + "?state=abc&error=access_denied&error_description=nope")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		cb, err := s.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "access_denied", cb.Error)
		require.Equal(t, "nope", cb.ErrorDescription)
	})

	t.Run("wait honours cancellation", func(t *testing.T) {
		s, err := oauthlogin.NewCallbackServer("127.0.0.1:0", zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = s.Wait(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)
	s, err := oauthlogin.NewCallbackServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	browser := func(authURL string) error {
		q := f.authorize(t, authURL)
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?state=" + url.QueryEscape(q.Get("state")) + "&code=good-code")
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := oauthlogin.Login(ctx, f.provider, s, browser)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", res.Claims.Email)
}
