package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTokenURL   = "https://oauth2.googleapis.com/token"
	defaultAPIBaseURL = "https://gmail.googleapis.com"

	defaultTimeout = 15 * time.Second
	defaultQPS     = 8
)

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	// TopicName is the Pub/Sub topic watch notifications are published to.
	TopicName string
	// TokenURL and APIBaseURL default to Google's production endpoints;
	// tests point them at an httptest server.
	TokenURL   string
	APIBaseURL string
	// Timeout bounds every outbound call. A timed-out call is a failure for
	// that request; the client never retries on its own.
	Timeout time.Duration
	// QPS caps the request rate against the provider.
	QPS float64
}

// Client is a wire-level client for the Google OAuth and Gmail endpoints this
// core depends on. Response shapes are decoded into explicit result types at
// the boundary rather than navigated dynamically.
type Client struct {
	clientID     string
	clientSecret string
	topicName    string
	tokenURL     string
	apiBaseURL   string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a Google provider client.
func NewClient(opts Options) *Client {
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiBaseURL := strings.TrimSuffix(opts.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	qps := opts.QPS
	if qps <= 0 {
		qps = defaultQPS
	}

	return &Client{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		topicName:    opts.TopicName,
		tokenURL:     tokenURL,
		apiBaseURL:   apiBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(qps), 1),
	}
}

// TokenResponse is the decoded response from the OAuth token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// WatchResult is the decoded outcome of a watch registration.
type WatchResult struct {
	HistoryID  string
	Expiration time.Time
}

// SendResponse is the decoded outcome of a message send.
type SendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// apiError is the error envelope Gmail wraps failures in.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RefreshToken exchanges a refresh token for a new access token.
// On a provider-declared error the returned error carries the error
// description; callers must not persist anything in that case.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error) {
	form := url.Values{}
	form.Add("client_id", c.clientID)
	form.Add("client_secret", c.clientSecret)
	form.Add("refresh_token", refreshToken)
	form.Add("grant_type", "refresh_token")

	return c.postTokenForm(ctx, form)
}

// ExchangeCode exchanges an authorization code for the initial token set.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (TokenResponse, error) {
	form := url.Values{}
	form.Add("client_id", c.clientID)
	form.Add("client_secret", c.clientSecret)
	form.Add("code", code)
	form.Add("grant_type", "authorization_code")
	if redirectURI != "" {
		form.Add("redirect_uri", redirectURI)
	}

	return c.postTokenForm(ctx, form)
}

func (c *Client) postTokenForm(ctx context.Context, form url.Values) (TokenResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return TokenResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to send token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenData TokenResponse
	if err := json.Unmarshal(body, &tokenData); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenData.Error != "" {
		desc := tokenData.ErrorDescription
		if desc == "" {
			desc = tokenData.Error
		}
		return TokenResponse{}, fmt.Errorf("token endpoint returned %s: %s", tokenData.Error, desc)
	}
	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if tokenData.AccessToken == "" {
		return TokenResponse{}, fmt.Errorf("token response missing access_token")
	}

	return tokenData, nil
}

// RegisterWatch registers a push-notification subscription on the inbox label.
// The returned expiration is the provider-declared hard deadline after which
// no further notifications arrive.
func (c *Client) RegisterWatch(ctx context.Context, accessToken string) (WatchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return WatchResult{}, err
	}

	payload := map[string]interface{}{
		"topicName":         c.topicName,
		"labelIds":          []string{"INBOX"},
		"labelFilterAction": "include",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return WatchResult{}, fmt.Errorf("failed to encode watch request: %w", err)
	}

	requestURL := c.apiBaseURL + "/gmail/v1/users/me/watch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return WatchResult{}, fmt.Errorf("failed to create watch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WatchResult{}, fmt.Errorf("failed to send watch request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return WatchResult{}, fmt.Errorf("failed to read watch response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return WatchResult{}, fmt.Errorf("watch registration failed with status %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	// Gmail returns expiration as epoch milliseconds in a quoted string.
	var decoded struct {
		HistoryID  string `json:"historyId"`
		Expiration string `json:"expiration"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return WatchResult{}, fmt.Errorf("failed to parse watch response: %w", err)
	}

	expMillis, err := strconv.ParseInt(decoded.Expiration, 10, 64)
	if err != nil {
		return WatchResult{}, fmt.Errorf("invalid watch expiration %q: %w", decoded.Expiration, err)
	}

	return WatchResult{
		HistoryID:  decoded.HistoryID,
		Expiration: time.UnixMilli(expMillis).UTC(),
	}, nil
}

// SendMessage transmits a base64url-encoded MIME envelope. When threadID is
// set the provider threads the reply into the existing conversation;
// otherwise it assigns a new thread id, returned in the response.
func (c *Client) SendMessage(ctx context.Context, accessToken, raw, threadID string) (SendResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SendResponse{}, err
	}

	payload := map[string]string{"raw": raw}
	if threadID != "" {
		payload["threadId"] = threadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResponse{}, fmt.Errorf("failed to encode send request: %w", err)
	}

	requestURL := c.apiBaseURL + "/gmail/v1/users/me/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return SendResponse{}, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SendResponse{}, fmt.Errorf("failed to send message request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResponse{}, fmt.Errorf("failed to read send response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SendResponse{}, fmt.Errorf("send failed with status %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	var sendData SendResponse
	if err := json.Unmarshal(respBody, &sendData); err != nil {
		return SendResponse{}, fmt.Errorf("failed to parse send response: %w", err)
	}

	return sendData, nil
}

// GetSignature fetches the signature configured on the account's primary
// send-as address. Callers treat any failure here as cosmetic.
func (c *Client) GetSignature(ctx context.Context, accessToken string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	requestURL := c.apiBaseURL + "/gmail/v1/users/me/settings/sendAs"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signature request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send signature request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read signature response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signature fetch failed with status %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	var decoded struct {
		SendAs []struct {
			SendAsEmail string `json:"sendAsEmail"`
			IsPrimary   bool   `json:"isPrimary"`
			Signature   string `json:"signature"`
		} `json:"sendAs"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse signature response: %w", err)
	}

	for _, sa := range decoded.SendAs {
		if sa.IsPrimary {
			return sa.Signature, nil
		}
	}
	if len(decoded.SendAs) > 0 {
		return decoded.SendAs[0].Signature, nil
	}
	return "", nil
}

// apiErrorMessage pulls the message out of Gmail's error envelope, falling
// back to the raw body.
func apiErrorMessage(body []byte) string {
	var decoded apiError
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return string(body)
}
