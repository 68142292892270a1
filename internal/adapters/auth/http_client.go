package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ogurasousui/user-service/internal/core/registration"
)

const (
	createCredentialPath = "/api/auth"
	idempotencyHeader    = "Idempotency-Key"
	maxErrorBodyBytes    = 1 << 10
)

var _ registration.AuthClient = (*HTTPClient)(nil)

// HTTPClient は認証サービスの REST API を呼び出す registration.AuthClient の実装です。
// リトライは行いません。
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPClient は HTTPClient を生成します。httpClient が nil の場合は http.DefaultClient を使います。
func NewHTTPClient(baseURL string, timeout time.Duration, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

type createCredentialRequest struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Role     string `json:"role"`
}

// NotifyUserCreated は新規ユーザーの資格情報を認証サービスに登録します。
func (c *HTTPClient) NotifyUserCreated(ctx context.Context, cred registration.NewCredential) error {
	body, err := json.Marshal(createCredentialRequest{
		UserID:   cred.UserID,
		Email:    cred.Email,
		Password: cred.Password,
		Provider: strings.ToUpper(string(cred.Provider)),
		Role:     strings.ToUpper(string(cred.Role)),
	})
	if err != nil {
		return fmt.Errorf("auth: encode request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createCredentialPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cred.IdempotencyKey != "" {
		req.Header.Set(idempotencyHeader, cred.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	detail := strings.TrimSpace(string(snippet))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, detail)
}
