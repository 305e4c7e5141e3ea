package smartsheet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/wsreaper/wsreaper/internal/tokenstore"
)

// Smartsheet OAuth endpoints. The authorize page lives on the app host,
// the token endpoint on the API host.
const (
	DefaultAuthURL  = "https://app.smartsheet.com/b/authorize"
	DefaultTokenURL = "https://api.smartsheet.com/2.0/token"
)

// tokenTimeout bounds token-endpoint calls only; regular API calls use the
// injected HTTP client's own timeout.
const tokenTimeout = 15 * time.Second

// defaultScopes is the permission set the deletion workflow needs.
var defaultScopes = []string{
	"READ_USERS",
	"READ_SHEETS",
	"WRITE_SHEETS",
	"DELETE_SHEETS",
	"ADMIN_WORKSPACES",
}

// ClientIdentity is the OAuth app registration. Immutable per deployment,
// never persisted by this system.
type ClientIdentity struct {
	ClientID     string
	ClientSecret string
}

// RefreshKind classifies a failed token refresh for operator alerting.
type RefreshKind string

const (
	// KindExpired: the provider rejected the grant for a reason other than
	// revocation; a later retry of the whole run may succeed.
	KindExpired RefreshKind = "token_expired"
	// KindRevoked: the provider returned invalid_grant. Terminal: the
	// refresh token is dead and a human must re-run the login flow.
	KindRevoked RefreshKind = "token_revoked"
	// KindNetwork: the token endpoint was unreachable or answered 5xx.
	KindNetwork RefreshKind = "network_error"
	// KindUnknown: anything that fits none of the above.
	KindUnknown RefreshKind = "unknown"
)

// RefreshError is the structured diagnostic record for a failed refresh.
// The manager never retries; callers decide based on Kind.
type RefreshError struct {
	Kind      RefreshKind
	Message   string
	Timestamp time.Time
	Cause     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("smartsheet: token refresh failed (%s): %s", e.Kind, e.Message)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// Manager owns the OAuth credential lifecycle: loading the persisted pair,
// refreshing it at the token endpoint, and persisting rotations before any
// caller sees the new session. It implements TokenSource for Client.
//
// One Manager is constructed per run and passed in explicitly; there is
// no process-wide singleton.
type Manager struct {
	store    tokenstore.Store
	identity ClientIdentity
	authURL  string
	tokenURL string
	logger   *slog.Logger

	// tokenClient is dedicated to token-endpoint calls with a short fixed
	// timeout, separate from the API client's transport.
	tokenClient *http.Client

	cred *tokenstore.Credential
}

// NewManager builds a credential manager around the given store and app
// identity.
func NewManager(store tokenstore.Store, identity ClientIdentity, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:       store,
		identity:    identity,
		authURL:     DefaultAuthURL,
		tokenURL:    DefaultTokenURL,
		logger:      logger,
		tokenClient: &http.Client{Timeout: tokenTimeout},
	}
}

// SetEndpoints overrides the OAuth endpoints. Tests point these at a mock
// server.
func (m *Manager) SetEndpoints(authURL, tokenURL string) {
	m.authURL = authURL
	m.tokenURL = tokenURL
}

// oauthConfig builds the oauth2.Config for the Smartsheet token endpoint.
// Smartsheet expects client_id/client_secret as form fields, not basic auth.
func (m *Manager) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.identity.ClientID,
		ClientSecret: m.identity.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       defaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.authURL,
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// tokenContext injects the dedicated short-timeout HTTP client into the
// oauth2 library for token-endpoint calls.
func (m *Manager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.tokenClient)
}

// Token implements TokenSource. It hands out the current access token and
// never refreshes on its own; refresh decisions belong to Connect and
// Refresh so the rotation is observable and persisted exactly once.
func (m *Manager) Token() (string, error) {
	if m.cred == nil || m.cred.AccessToken == "" {
		return "", ErrNotAuthorized
	}

	return m.cred.AccessToken, nil
}

// load pulls the persisted credential into memory, once.
func (m *Manager) load(ctx context.Context) error {
	if m.cred != nil {
		return nil
	}

	cred, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("smartsheet: loading credential: %w", err)
	}

	if cred == nil || (cred.AccessToken == "" && cred.RefreshToken == "") {
		return ErrNotAuthorized
	}

	m.cred = cred

	m.logger.Debug("loaded persisted credential",
		slog.Bool("has_access_token", cred.AccessToken != ""),
		slog.Bool("has_refresh_token", cred.RefreshToken != ""),
	)

	return nil
}

// Connect produces a validated API client. It loads the persisted
// credential, probes the current-user endpoint, and rotates the pair when
// the provider rejects the access token. Validation is proactive by
// choice: one extra round trip buys a clear failure at startup instead of
// a confusing one mid-run.
func (m *Manager) Connect(ctx context.Context, baseURL string, httpClient *http.Client) (*Client, error) {
	if err := m.load(ctx); err != nil {
		return nil, err
	}

	client := NewClient(baseURL, httpClient, m, m.logger)

	// No access token at all: a stored refresh token is the only way in.
	if m.cred.AccessToken == "" {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}

		return client, nil
	}

	_, err := client.GetCurrentUser(ctx)
	if err == nil {
		m.logger.Info("access token validated")
		return client, nil
	}

	// Only auth rejections mean the token is stale. Anything else (network
	// blip, throttling) keeps the current token to avoid refresh loops.
	if !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrForbidden) {
		m.logger.Warn("token validation failed with non-auth error, keeping token",
			slog.String("error", err.Error()),
		)

		return client, nil
	}

	m.logger.Info("access token rejected, refreshing")

	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}

	if _, err := client.GetCurrentUser(ctx); err != nil {
		return nil, fmt.Errorf("smartsheet: refreshed token rejected: %w", err)
	}

	return client, nil
}

// Refresh exchanges the stored refresh token for a new credential pair,
// persists the pair, and only then swaps it in. Failures are classified
// into a RefreshError; the manager itself never retries.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.load(ctx); err != nil {
		return err
	}

	if m.cred.RefreshToken == "" {
		return ErrNotAuthorized
	}

	m.logger.Info("refreshing access token")

	cfg := m.oauthConfig("")
	src := cfg.TokenSource(m.tokenContext(ctx), &oauth2.Token{RefreshToken: m.cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		refreshErr := classifyRefreshFailure(err)
		m.logger.Error("token refresh failed",
			slog.String("kind", string(refreshErr.Kind)),
			slog.String("error", refreshErr.Message),
			slog.Time("at", refreshErr.Timestamp),
		)

		return refreshErr
	}

	// Smartsheet rotates the refresh token on every exchange; fall back to
	// the old one only if the response omitted it.
	newCred := &tokenstore.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = m.cred.RefreshToken
	}

	// Persist before handing the new session to anyone. A crash after this
	// point loses nothing; a crash before it retries with the old pair.
	if err := m.store.Save(ctx, newCred); err != nil {
		return fmt.Errorf("smartsheet: persisting refreshed credential: %w", err)
	}

	m.cred = newCred

	m.logger.Info("token refresh successful, credential persisted")

	return nil
}

// classifyRefreshFailure maps a token-endpoint failure onto the refresh
// taxonomy. invalid_grant is the provider's signal that the refresh token
// was revoked; that is terminal and needs manual re-authorization.
func classifyRefreshFailure(err error) *RefreshError {
	re := &RefreshError{
		Kind:      KindUnknown,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch {
		case retrieveErr.ErrorCode == "invalid_grant":
			re.Kind = KindRevoked
		case retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError:
			re.Kind = KindNetwork
		case retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusBadRequest:
			re.Kind = KindExpired
		}

		return re
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		re.Kind = KindNetwork
	}

	return re
}

// stateTokenBytes is the number of random bytes for the OAuth2 state
// parameter.
const stateTokenBytes = 16

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback
// handler.
type callbackResult struct {
	code string
	err  error
}

// LoginWithBrowser performs the authorization code flow:
//  1. Binds a localhost HTTP server at the registered redirect URI
//  2. Opens the browser to the Smartsheet authorization page
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens at the token endpoint
//  5. Persists the credential pair to the store
//
// Unlike providers that accept any localhost port, Smartsheet requires the
// redirect URI to match the app registration exactly, so the listener
// binds the configured URI's host and port instead of a random port.
//
// openURL is called with the authorization URL; the CLI uses it to launch
// the default browser. If openURL returns an error, the URL is printed to
// stderr so the user can open it manually.
func (m *Manager) LoginWithBrowser(ctx context.Context, redirectURI string, openURL func(string) error) error {
	m.logger.Info("starting browser auth flow", slog.String("redirect_uri", redirectURI))

	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("smartsheet: parsing redirect URI: %w", err)
	}

	cfg := m.oauthConfig(redirectURI)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, err := startCallbackServer(ctx, parsed.Host, mux, resultCh, m.logger)
	if err != nil {
		return err
	}

	defer shutdownCallbackServer(srv, m.logger)

	state, err := generateState()
	if err != nil {
		return fmt.Errorf("smartsheet: generating state token: %w", err)
	}

	callbackPath := parsed.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})

	authURL := cfg.AuthCodeURL(state)

	launchBrowser(authURL, openURL, m.logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return err
	}

	m.logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(m.tokenContext(ctx), code)
	if err != nil {
		return fmt.Errorf("smartsheet: token exchange failed: %w", err)
	}

	cred := &tokenstore.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	if err := m.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("smartsheet: persisting credential: %w", err)
	}

	m.cred = cred

	m.logger.Info("login successful, credential persisted")

	return nil
}

// startCallbackServer binds the redirect URI's address and starts an HTTP
// server with the given mux.
func startCallbackServer(
	ctx context.Context,
	addr string,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smartsheet: binding callback listener on %s: %w", addr, err)
	}

	logger.Info("callback server listening", slog.String("addr", addr))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliverCallbackResult(resultCh, callbackResult{err: fmt.Errorf("smartsheet: callback server error: %w", serveErr)})
		}
	}()

	return srv, nil
}

// deliverCallbackResult hands a result to the login flow. Only the first
// result matters; later callback hits (browser refresh, link prefetch)
// are dropped so their handler goroutines never block on the full channel.
func deliverCallbackResult(resultCh chan<- callbackResult, res callbackResult) {
	select {
	case resultCh <- res:
	default:
	}
}

// handleOAuthCallback validates the state, extracts the code, and sends the
// result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	// Validate state to prevent CSRF.
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		deliverCallbackResult(resultCh, callbackResult{err: fmt.Errorf("smartsheet: OAuth2 state mismatch (possible CSRF)")})

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		deliverCallbackResult(resultCh, callbackResult{err: fmt.Errorf("smartsheet: authorization failed: %s: %s", errParam, desc)})

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		deliverCallbackResult(resultCh, callbackResult{err: fmt.Errorf("smartsheet: callback missing authorization code")})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	deliverCallbackResult(resultCh, callbackResult{code: code})
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, prints the URL
// to stderr as a fallback so the user can copy-paste it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is
// canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("smartsheet: browser auth canceled: %w", ctx.Err())
	}
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
