package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apihttp "settlement-engine/internal/common/http"
)

var (
	// ErrCredentialExpired is returned when Keycloak rejects the service
	// account credentials or the access token (HTTP 401/403).
	ErrCredentialExpired = errors.New("keycloak credential expired or invalid")
	ErrUserNotFound      = errors.New("keycloak user not found")
)

type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *apihttp.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// RoleRepresentation is one entry of a Keycloak realm role mapping.
type RoleRepresentation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   apihttp.NewClient(timeout, "settlement-engine"),
	}
}

func (k *KeycloakClient) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	// refresh a little early so a token never expires mid-request
	if k.accessToken != "" && time.Now().Add(10*time.Second).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusBadRequest:
		// invalid_client and unauthorized_client come back as 400/401
		return "", fmt.Errorf("%w: token request status %d: %s", ErrCredentialExpired, resp.StatusCode, apihttp.ErrorBody(resp))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, apihttp.ErrorBody(resp))
	}

	var tokenResp TokenResponse
	if err := apihttp.DecodeJSON(resp, &tokenResp); err != nil {
		return "", err
	}

	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return k.accessToken, nil
}

func (k *KeycloakClient) dropToken() {
	k.mu.Lock()
	k.accessToken = ""
	k.tokenExpiry = time.Time{}
	k.mu.Unlock()
}

// GetRealmRoles returns the realm role names mapped to a user.
func (k *KeycloakClient) GetRealmRoles(ctx context.Context, userID string) ([]string, error) {
	accessToken, err := k.token(ctx)
	if err != nil {
		return nil, err
	}

	rolesURL := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm",
		k.baseURL, k.realm, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rolesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create role mapping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := k.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to send role mapping request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		k.dropToken()
		return nil, fmt.Errorf("%w: role mapping status %d", ErrCredentialExpired, resp.StatusCode)
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("keycloak role mapping failed with status %d: %s", resp.StatusCode, apihttp.ErrorBody(resp))
	}

	var roles []RoleRepresentation
	if err := apihttp.DecodeJSON(resp, &roles); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}
