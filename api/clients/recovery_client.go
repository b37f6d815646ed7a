package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/manuelog-udc/tfm-munics/api"
	"github.com/manuelog-udc/tfm-munics/verifier"
)

// APIError is a non-2xx response of the recovery API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with code %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// RecoveryClient calls the recovery API. Mutating calls are signed with
// privateKey, which identifies the caller.
type RecoveryClient struct {
	baseURL    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewRecoveryClient creates a client for the server at baseURL. privateKey may
// be nil for read-only use.
func NewRecoveryClient(baseURL string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *RecoveryClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &RecoveryClient{
		baseURL:    baseURL,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

func (c *RecoveryClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/recovery/status", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RecoveryClient) Events(ctx context.Context) (*api.EventsResponse, error) {
	var resp api.EventsResponse
	if err := c.do(ctx, http.MethodGet, "/api/recovery/events", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start opens a recovery request for the client's address.
func (c *RecoveryClient) Start(ctx context.Context, payment api.Payment) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/api/recovery/start", api.StartRequest{Payment: payment}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel votes to cancel the active request. The client key must belong to
// a wallet owner.
func (c *RecoveryClient) Cancel(ctx context.Context, payment api.Payment) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/api/recovery/cancel", api.CancelRequest{Payment: payment}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete submits proof against the verifying key at index.
func (c *RecoveryClient) Complete(ctx context.Context, index int, proof *verifier.Proof, payment api.Payment) (*api.StatusResponse, error) {
	req := api.CompleteRequest{Payment: payment, Index: index, Proof: proof}
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/api/recovery/complete", req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RecoveryClient) Keys(ctx context.Context) (*api.KeysResponse, error) {
	var resp api.KeysResponse
	if err := c.do(ctx, http.MethodGet, "/api/keys", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RecoveryClient) AddKey(ctx context.Context, vk *verifier.VerifyingKey) (int, error) {
	var resp api.AddKeyResponse
	if err := c.do(ctx, http.MethodPost, "/api/keys", api.AddKeyRequest{Key: vk}, true, &resp); err != nil {
		return 0, err
	}
	return resp.Index, nil
}

func (c *RecoveryClient) SubstituteKeys(ctx context.Context, keys []*verifier.VerifyingKey) (*api.SubstituteKeysResponse, error) {
	var resp api.SubstituteKeysResponse
	if err := c.do(ctx, http.MethodPost, "/api/keys/substitute", api.SubstituteKeysRequest{Keys: keys}, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RecoveryClient) InvalidateKey(ctx context.Context, index int) (*api.KeysResponse, error) {
	var resp api.KeysResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/keys/%d", index), nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RecoveryClient) do(ctx context.Context, method, path string, payload any, signed bool, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var req *http.Request
	var err error
	if signed {
		if c.privateKey == nil {
			return fmt.Errorf("%s %s requires a signing key", method, path)
		}
		req, err = CreateSignedRequest(ctx, method, c.baseURL+path, body, c.privateKey)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	}
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// CreateSignedRequest builds a request carrying the caller signature over
// method, URL path, the current time, a fresh nonce and body.
func CreateSignedRequest(ctx context.Context, method, reqURL string, body []byte, privateKey *ecdsa.PrivateKey) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// only the path is signed, not the full URL
	parsedURL, err := url.Parse(reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sr := api.SignedRequest{
		Method:    method,
		Path:      parsedURL.Path,
		Timestamp: time.Now().Unix(),
		Nonce:     uuid.NewString(),
	}
	signature, err := api.SignRequest(privateKey, sr, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.SignatureHeader, signature)
	req.Header.Set(api.TimestampHeader, strconv.FormatInt(sr.Timestamp, 10))
	req.Header.Set(api.NonceHeader, sr.Nonce)
	return req, nil
}
