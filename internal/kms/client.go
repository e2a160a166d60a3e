// Package kms is a thin REST client for the external key management
// service's encrypt and decrypt operations. Request and response bodies are
// structured JSON types; bodies are never assembled by string concatenation.
package kms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/bulkcrypt/internal/auth"
)

// KeyID identifies a symmetric key as a project/location/keyring/key tuple.
type KeyID struct {
	Project  string
	Location string
	KeyRing  string
	Key      string
}

// ResourceName renders the key reference the REST API expects.
func (k KeyID) ResourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s",
		k.Project, k.Location, k.KeyRing, k.Key)
}

type encryptRequest struct {
	Plaintext string `json:"plaintext"`
}

type encryptResponse struct {
	Name       string `json:"name"`
	Ciphertext string `json:"ciphertext"`
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// Client calls the key service over HTTP. Every call carries a bearer token
// from the configured TokenSource, runs under its own timeout, and transient
// failures are retried with exponential backoff.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      auth.TokenSource
	callTimeout time.Duration
	retryCount  uint64
	backoff     time.Duration
}

func NewClient(baseURL string, tokens auth.TokenSource, callTimeout time.Duration, retryCount int, backoff time.Duration) *Client {
	if retryCount < 0 {
		retryCount = 0
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		tokens:      tokens,
		callTimeout: callTimeout,
		retryCount:  uint64(retryCount),
		backoff:     backoff,
	}
}

// Encrypt submits a base64 plaintext and returns the base64 ciphertext.
// A 200 response with an empty ciphertext field is treated as a failure.
func (c *Client) Encrypt(ctx context.Context, key KeyID, plaintextB64 string) (string, error) {
	var resp encryptResponse
	err := c.call(ctx, key, "encrypt", encryptRequest{Plaintext: plaintextB64}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Ciphertext == "" {
		return "", ErrorEmptyCiphertext
	}
	return resp.Ciphertext, nil
}

// Decrypt submits a base64 ciphertext and returns the base64 plaintext.
func (c *Client) Decrypt(ctx context.Context, key KeyID, ciphertext string) (string, error) {
	var resp decryptResponse
	err := c.call(ctx, key, "decrypt", decryptRequest{Ciphertext: ciphertext}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Plaintext == "" {
		return "", ErrorEmptyPlaintext
	}
	return resp.Plaintext, nil
}

func (c *Client) call(ctx context.Context, key KeyID, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:%s", c.baseURL, key.ResourceName(), op)

	b := retry.WithMaxRetries(c.retryCount, retry.NewExponential(c.backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		return c.doOnce(ctx, url, body, out)
	})
}

func (c *Client) doOnce(ctx context.Context, url string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// a token mint hiccup should not fail the whole file
		return retry.RetryableError(fmt.Errorf("obtaining token: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, data)
		if apiErr.Retryable() {
			return retry.RetryableError(apiErr)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func parseAPIError(statusCode int, data []byte) *APIError {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Code != 0 {
		return &er.Error
	}
	return &APIError{Code: statusCode, Status: http.StatusText(statusCode), Message: string(data)}
}

// IsPermanent reports whether err is a non-retryable service rejection, so
// callers can distinguish authorization and malformed-request failures from
// exhausted retries on transient ones.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Retryable()
}
