package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

const (
	// FirebaseProviderName identifies the Firebase client in errors and the provider registry.
	FirebaseProviderName = "firebase"

	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// firebaseCodes maps Identity Toolkit REST error messages to auth codes.
var firebaseCodes = map[string]string{
	"EMAIL_EXISTS":                CodeEmailAlreadyInUse,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"OPERATION_NOT_ALLOWED":       CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":     CodeOperationNotAllowed,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"USER_DISABLED":               CodeUserDisabled,
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"USER_NOT_FOUND":              CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":        CodeInvalidCredential,
	"INVALID_ID_TOKEN":            CodeInvalidCredential,
	"INVALID_REFRESH_TOKEN":       CodeInvalidCredential,
	"TOKEN_EXPIRED":               CodeInvalidCredential,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
}

// HTTPDoer is an interface for making HTTP requests.
// Both *http.Client and *resilience.Client satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FirebaseConfig holds configuration for the Firebase identity client.
type FirebaseConfig struct {
	APIKey string

	// IdentityToolkitURL and SecureTokenURL override the Google endpoints (tests).
	IdentityToolkitURL string
	SecureTokenURL     string

	// RequestURI is sent with federated sign-ins.
	RequestURI string

	// HTTPClient is optional; a single-shot resilient client is used by default.
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// FirebaseClient implements IdentityProvider against the Firebase Auth REST API.
type FirebaseClient struct {
	apiKey     string
	toolkitURL string
	tokenURL   string
	requestURI string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewFirebaseClient creates a Firebase identity client.
func NewFirebaseClient(cfg FirebaseConfig) *FirebaseClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.SingleShotClientConfig(FirebaseProviderName)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}
	toolkitURL := strings.TrimRight(cfg.IdentityToolkitURL, "/")
	if toolkitURL == "" {
		toolkitURL = DefaultIdentityToolkitURL
	}
	tokenURL := strings.TrimRight(cfg.SecureTokenURL, "/")
	if tokenURL == "" {
		tokenURL = DefaultSecureTokenURL
	}
	requestURI := cfg.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}

	return &FirebaseClient{
		apiKey:     cfg.APIKey,
		toolkitURL: toolkitURL,
		tokenURL:   tokenURL,
		requestURI: requestURI,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

type firebaseAuthResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	EmailVerified bool   `json:"emailVerified"`
}

func (r firebaseAuthResponse) identity() *Identity {
	return &Identity{
		UserID:        r.LocalID,
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		EmailVerified: r.EmailVerified,
		IDToken:       r.IDToken,
		RefreshToken:  r.RefreshToken,
	}
}

// SignUp implements IdentityProvider.
func (c *FirebaseClient) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	var resp firebaseAuthResponse
	err := c.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	id := resp.identity()
	id.EmailVerified = false
	return id, nil
}

// SetDisplayName implements IdentityProvider.
func (c *FirebaseClient) SetDisplayName(ctx context.Context, id *Identity, displayName string) error {
	idToken, err := c.idToken(ctx, id)
	if err != nil {
		return err
	}
	return c.call(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil)
}

// SendVerificationEmail implements IdentityProvider.
func (c *FirebaseClient) SendVerificationEmail(ctx context.Context, id *Identity) error {
	idToken, err := c.idToken(ctx, id)
	if err != nil {
		return err
	}
	return c.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

// SignIn implements IdentityProvider. The password endpoint does not report
// verification state, so the account is looked up afterwards.
func (c *FirebaseClient) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var resp firebaseAuthResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.Lookup(ctx, resp.identity())
}

// SignInWithGoogle implements IdentityProvider.
func (c *FirebaseClient) SignInWithGoogle(ctx context.Context, googleIDToken string) (*Identity, error) {
	postBody := url.Values{"id_token": {googleIDToken}, "providerId": {"google.com"}}.Encode()

	var resp firebaseAuthResponse
	err := c.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody,
		"requestUri":          c.requestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.identity(), nil
}

type firebaseLookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"users"`
}

// Lookup implements IdentityProvider.
func (c *FirebaseClient) Lookup(ctx context.Context, id *Identity) (*Identity, error) {
	idToken, err := c.idToken(ctx, id)
	if err != nil {
		return nil, err
	}

	var resp firebaseLookupResponse
	if err := c.call(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, NewAuthError(FirebaseProviderName, CodeUserNotFound)
	}

	u := resp.Users[0]
	return &Identity{
		UserID:        u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		IDToken:       idToken,
		RefreshToken:  id.RefreshToken,
	}, nil
}

type secureTokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// idToken returns a usable ID token for id, exchanging its refresh token
// when no ID token is held.
func (c *FirebaseClient) idToken(ctx context.Context, id *Identity) (string, error) {
	if id.IDToken != "" {
		return id.IDToken, nil
	}
	if id.RefreshToken == "" {
		return "", NewAuthError(FirebaseProviderName, CodeInvalidCredential)
	}

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {id.RefreshToken}}
	endpoint := c.tokenURL + "/token?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp secureTokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.IDToken, nil
}

func (c *FirebaseClient) call(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	endpoint := c.toolkitURL + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("method", method).Msg("calling identity provider")
	return c.do(req, out)
}

type firebaseErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *FirebaseClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure.FromTransport(FirebaseProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return failure.Server(FirebaseProviderName, "DECODE_ERROR", "decoding response: "+err.Error())
	}
	return nil
}

// errorFromResponse maps a Firebase error body. Messages look like
// "WEAK_PASSWORD : Password should be at least 6 characters".
func (c *FirebaseClient) errorFromResponse(resp *http.Response) error {
	var body firebaseErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)

	reason, _, _ := strings.Cut(body.Error.Message, " ")
	if code, ok := firebaseCodes[reason]; ok {
		return NewAuthError(FirebaseProviderName, code)
	}
	if strings.HasPrefix(reason, "TOO_MANY_ATTEMPTS") {
		return NewAuthError(FirebaseProviderName, CodeTooManyRequests)
	}
	if resp.StatusCode == http.StatusBadRequest {
		c.logger.Warn().Str("reason", body.Error.Message).Msg("unmapped identity provider error")
		return NewAuthError(FirebaseProviderName, strings.ToLower(reason))
	}
	return failure.FromStatus(FirebaseProviderName, resp.StatusCode, body.Error.Message)
}
